package insurai

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// NoPolicyName is reported for claims without a policy.
const NoPolicyName = "N/A"

// ClaimView is the claim representation returned to admin callers.
type ClaimView struct {
	ID             int64           `json:"id"`
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	Amount         decimal.Decimal `json:"amount"`
	Status         ClaimStatus     `json:"status"`
	Remarks        *string         `json:"remarks"`
	ClaimDate      time.Time       `json:"claimDate"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
	EmployeeID     int64           `json:"employeeId"`
	EmployeeName   string          `json:"employeeName"`
	PolicyID       *int64          `json:"policyId"`
	PolicyName     string          `json:"policyName"`
	Documents      []string        `json:"documents"`
	AssignedHrID   *int64          `json:"assignedHrId"`
	AssignedHrName *string         `json:"assignedHrName"`
	FraudFlag      bool            `json:"fraudFlag"`
	FraudReason    *string         `json:"fraudReason"`
}

// Views resolves employee, HR and policy names for claims. Missing related
// records leave the name empty rather than failing the listing.
func (m *ClaimLifecycleManager) Views(ctx context.Context, claims []*Claim) ([]ClaimView, error) {
	names := map[AccountKind]map[int64]string{
		AccountEmployee: {},
		AccountHR:       {},
	}
	policyNames := map[int64]string{}

	accountName := func(kind AccountKind, id int64) (string, error) {
		if name, ok := names[kind][id]; ok {
			return name, nil
		}
		account, err := m.accounts.Get(ctx, kind, id)
		if err != nil {
			if IsNotFound(err) {
				names[kind][id] = ""
				return "", nil
			}
			return "", err
		}
		names[kind][id] = account.Name
		return account.Name, nil
	}

	policyName := func(id *int64) (string, error) {
		if id == nil || m.policies == nil {
			return NoPolicyName, nil
		}
		if name, ok := policyNames[*id]; ok {
			return name, nil
		}
		policy, err := m.policies.GetByID(ctx, *id)
		if err != nil {
			if IsNotFound(err) {
				policyNames[*id] = NoPolicyName
				return NoPolicyName, nil
			}
			return "", err
		}
		policyNames[*id] = policy.PolicyName
		return policy.PolicyName, nil
	}

	views := make([]ClaimView, 0, len(claims))
	for _, c := range claims {
		view := ClaimView{
			ID:           c.ID,
			Title:        c.Title,
			Description:  c.Description,
			Amount:       c.Amount,
			Status:       c.Status,
			Remarks:      cloneString(c.Remarks),
			ClaimDate:    c.ClaimDate,
			CreatedAt:    c.CreatedAt,
			UpdatedAt:    c.UpdatedAt,
			EmployeeID:   c.EmployeeID,
			PolicyID:     cloneInt64(c.PolicyID),
			Documents:    append([]string{}, c.Documents...),
			AssignedHrID: cloneInt64(c.AssignedHrID),
			FraudFlag:    c.FraudFlag,
			FraudReason:  cloneString(c.FraudReason),
		}

		var err error
		if view.EmployeeName, err = accountName(AccountEmployee, c.EmployeeID); err != nil {
			return nil, err
		}
		if view.PolicyName, err = policyName(c.PolicyID); err != nil {
			return nil, err
		}
		if c.AssignedHrID != nil {
			name, err := accountName(AccountHR, *c.AssignedHrID)
			if err != nil {
				return nil, err
			}
			view.AssignedHrName = &name
		}
		views = append(views, view)
	}
	return views, nil
}
