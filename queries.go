package insurai

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
)

// SubmitQueryInput is an employee question.
type SubmitQueryInput struct {
	PolicyName string `json:"policyName"`
	ClaimType  string `json:"claimType"`
	QueryText  string `json:"queryText"`
	AgentID    *int64 `json:"agentId"`
}

func (in SubmitQueryInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.QueryText, validation.Required, validation.Length(1, 4000)),
	)
}

// QueryService routes employee questions to agents.
type QueryService struct {
	queries  EmployeeQueries
	accounts Accounts
	auditor  Auditor
	notifier Notifier
	now      Clock
	logger   Logger
}

func NewQueryService(queries EmployeeQueries, accounts Accounts, auditor Auditor, notifier Notifier, logger Logger) *QueryService {
	return &QueryService{
		queries:  queries,
		accounts: accounts,
		auditor:  normalizeAuditor(auditor),
		notifier: normalizeNotifier(notifier),
		now:      time.Now,
		logger:   normalizeLogger(logger),
	}
}

// WithClock replaces the service clock.
func (s *QueryService) WithClock(clock Clock) *QueryService {
	s.now = normalizeClock(clock)
	return s
}

// Submit stores a question for the caller and notifies the agent. Without an
// explicit agent the first active agent receives it.
func (s *QueryService) Submit(ctx context.Context, actor Identity, in SubmitQueryInput) (*EmployeeQuery, error) {
	in.QueryText = strings.TrimSpace(in.QueryText)
	if err := in.Validate(); err != nil {
		return nil, fromValidation(err, "invalid query")
	}

	employee, err := s.accounts.GetByEmail(ctx, AccountEmployee, actor.Subject)
	if err != nil {
		return nil, err
	}

	var agent *Account
	if in.AgentID != nil {
		agent, err = s.accounts.GetByID(ctx, AccountAgent, *in.AgentID)
	} else {
		agent, err = s.accounts.FirstActive(ctx, AccountAgent)
	}
	if err != nil {
		return nil, err
	}

	query := &EmployeeQuery{
		EmployeeID: employee.ID,
		AgentID:    int64Ptr(agent.ID),
		PolicyName: nonBlank(&in.PolicyName),
		ClaimType:  nonBlank(&in.ClaimType),
		QueryText:  in.QueryText,
		CreatedAt:  s.now().UTC(),
	}
	if _, err := s.queries.Create(ctx, query); err != nil {
		return nil, err
	}

	s.sideEffects(ctx, actor, "submit_query", query, EventQuerySubmitted, RecipientFromAccount(agent), map[string]any{
		"employee_name": employee.Name,
	})
	return query, nil
}

// Answer writes the agent response. A query is answered exactly once.
func (s *QueryService) Answer(ctx context.Context, actor Identity, queryID int64, response string) (*EmployeeQuery, error) {
	response = strings.TrimSpace(response)
	if response == "" {
		return nil, validationError("response is required", goerrors.FieldError{Field: "response", Message: "cannot be blank"})
	}

	query, err := s.queries.GetByID(ctx, queryID)
	if err != nil {
		return nil, err
	}

	agent, err := s.accounts.GetByEmail(ctx, AccountAgent, actor.Subject)
	if err != nil {
		return nil, err
	}
	if query.AgentID != nil && *query.AgentID != agent.ID {
		return nil, newError(ErrInsufficientRole, map[string]any{"query_id": queryID, "reason": "query is assigned to another agent"})
	}
	if query.Answered() {
		return nil, newError(ErrQueryAlreadyAnswered, map[string]any{"query_id": queryID})
	}

	now := s.now().UTC()
	ok, err := s.queries.Answer(ctx, queryID, response, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, newError(ErrQueryAlreadyAnswered, map[string]any{"query_id": queryID, "conflict": true})
	}
	query.Response = &response
	query.AnsweredAt = &now

	employee, err := s.accounts.GetByID(ctx, AccountEmployee, query.EmployeeID)
	if err != nil {
		s.logger.Error("query answered but employee lookup failed", "query_id", queryID, "error", err)
		s.audit(ctx, actor, "answer_query", query)
		return query, nil
	}

	s.sideEffects(ctx, actor, "answer_query", query, EventQueryAnswered, RecipientFromAccount(employee), map[string]any{
		"agent_name": agent.Name,
		"response":   response,
	})
	return query, nil
}

func (s *QueryService) ListForEmployee(ctx context.Context, actor Identity) ([]*EmployeeQuery, error) {
	employee, err := s.accounts.GetByEmail(ctx, AccountEmployee, actor.Subject)
	if err != nil {
		return nil, err
	}
	return s.queries.ListByEmployee(ctx, employee.ID)
}

func (s *QueryService) ListForAgent(ctx context.Context, actor Identity, pendingOnly bool) ([]*EmployeeQuery, error) {
	agent, err := s.accounts.GetByEmail(ctx, AccountAgent, actor.Subject)
	if err != nil {
		return nil, err
	}
	return s.queries.ListByAgent(ctx, agent.ID, pendingOnly)
}

func (s *QueryService) sideEffects(ctx context.Context, actor Identity, action string, query *EmployeeQuery, kind EventKind, recipient Recipient, extra map[string]any) {
	s.audit(ctx, actor, action, query)

	payload := map[string]any{
		"query_id":   query.ID,
		"query_text": query.QueryText,
	}
	if query.PolicyName != nil {
		payload["policy_name"] = *query.PolicyName
	}
	if query.ClaimType != nil {
		payload["claim_type"] = *query.ClaimType
	}
	for k, v := range extra {
		payload[k] = v
	}
	if err := s.notifier.Enqueue(context.WithoutCancel(ctx), kind, recipient, payload); err != nil {
		s.logger.Error("query notification failed", "query_id", query.ID, "kind", kind, "error", err)
	}
}

func (s *QueryService) audit(ctx context.Context, actor Identity, action string, query *EmployeeQuery) {
	entry := auditEntry(actor, action, "query", query.ID, nil)
	if err := s.auditor.Append(context.WithoutCancel(ctx), entry); err != nil {
		s.logger.Error("query audit failed", "query_id", query.ID, "action", action, "error", err)
	}
}
