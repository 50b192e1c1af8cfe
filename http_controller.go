package insurai

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
	"github.com/shopspring/decimal"
)

// Controller exposes the portal operations over HTTP. Every privileged
// route runs the authorization gate before the handler.
type Controller struct {
	Auth      *RouteAuthenticator
	Auther    *Auther
	Registrar *RegisterAccountHandler
	// ResetRequests and Resets serve the employee password reset routes.
	ResetRequests *InitializePasswordResetHandler
	Resets        *FinalizePasswordResetHandler
	Directory     *UserDirectory
	Claims        *ClaimLifecycleManager
	AuditLog      *AuditRecorder
	Queries       *QueryService
	Policies      *PolicyService
	Logger        Logger
}

type ControllerOption func(*Controller)

func WithControllerLogger(logger Logger) ControllerOption {
	return func(c *Controller) {
		c.Logger = normalizeLogger(logger)
	}
}

func WithLogin(auther *Auther) ControllerOption {
	return func(c *Controller) { c.Auther = auther }
}

func WithRegistrar(handler *RegisterAccountHandler) ControllerOption {
	return func(c *Controller) { c.Registrar = handler }
}

func WithPasswordResets(requests *InitializePasswordResetHandler, resets *FinalizePasswordResetHandler) ControllerOption {
	return func(c *Controller) {
		c.ResetRequests = requests
		c.Resets = resets
	}
}

func WithDirectory(directory *UserDirectory) ControllerOption {
	return func(c *Controller) { c.Directory = directory }
}

func WithClaims(manager *ClaimLifecycleManager) ControllerOption {
	return func(c *Controller) { c.Claims = manager }
}

func WithAuditLog(recorder *AuditRecorder) ControllerOption {
	return func(c *Controller) { c.AuditLog = recorder }
}

func WithQueries(service *QueryService) ControllerOption {
	return func(c *Controller) { c.Queries = service }
}

func WithPolicies(service *PolicyService) ControllerOption {
	return func(c *Controller) { c.Policies = service }
}

func NewController(auth *RouteAuthenticator, opts ...ControllerOption) *Controller {
	c := &Controller{
		Auth:   auth,
		Logger: defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// RegisterRoutes mounts the routes of every configured service. Literal
// admin paths are registered before the /admin/:kind patterns.
func RegisterRoutes[T any](r router.Router[T], c *Controller) {
	admin := c.Auth.ProtectedRoute(RoleAdmin)
	hr := c.Auth.ProtectedRoute(RoleHR)
	employee := c.Auth.ProtectedRoute(RoleEmployee)
	agent := c.Auth.ProtectedRoute(RoleAgent)

	if c.Auther != nil {
		r.Post("/admin/login", c.login(AccountAdmin))
		r.Post("/hr/login", c.login(AccountHR))
		r.Post("/employee/login", c.login(AccountEmployee))
		r.Post("/agent/login", c.login(AccountAgent))
	}

	if c.Registrar != nil {
		r.Post("/admin/hr/register", c.register(AccountHR), admin)
		r.Post("/admin/agent/register", c.register(AccountAgent), admin)
		r.Post("/employee/register", c.register(AccountEmployee))
	}

	if c.ResetRequests != nil && c.Resets != nil {
		r.Post("/employee/password/reset", c.RequestPasswordReset)
		r.Post("/employee/password/reset/:token", c.FinalizePasswordReset)
	}

	if c.Claims != nil {
		r.Get("/admin/claims", c.ListClaims, admin)
		r.Get("/admin/claims/fraud", c.ListFraudClaims, admin)
		r.Put("/admin/claims/:id/assign", c.AssignClaim, admin)

		r.Post("/employee/claims", c.SubmitClaim, employee)
		r.Get("/employee/claims", c.ListOwnClaims, employee)

		r.Get("/hr/claims", c.ListAssignedClaims, hr)
		r.Put("/hr/claims/:id/decision", c.DecideClaim, hr)
		r.Put("/hr/claims/:id/fraud", c.FlagFraud, hr)
		r.Delete("/hr/claims/:id/fraud", c.ClearFraud, hr)
		r.Put("/hr/claims/:id/reimbursement", c.RecordReimbursement, hr)
	}

	if c.AuditLog != nil {
		r.Get("/admin/audit/logs", c.AuditLogs, admin)
	}

	if c.Queries != nil {
		r.Post("/employee/queries", c.SubmitQuery, employee)
		r.Get("/employee/queries", c.ListOwnQueries, employee)
		r.Get("/agent/queries", c.ListAgentQueries, agent)
		r.Put("/agent/queries/:id/response", c.AnswerQuery, agent)
	}

	if c.Policies != nil {
		r.Post("/admin/policies", c.CreatePolicy, admin)
		r.Post("/employee/enrollments", c.RequestEnrollment, employee)
		r.Put("/hr/enrollments/:id/approve", c.ApproveEnrollment, hr)
	}

	if c.Directory != nil {
		r.Get("/admin/:kind", c.ListAccounts, admin)
		r.Put("/admin/:kind/:id/status", c.SetAccountStatus, admin)
		r.Put("/admin/:kind/:id", c.UpdateAccount, admin)
		r.Delete("/admin/:kind/:id", c.DeleteAccount, admin)
	}
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c *Controller) login(kind AccountKind) router.HandlerFunc {
	return func(ctx router.Context) error {
		var req LoginRequest
		if err := ctx.Bind(&req); err != nil {
			return badBody(err)
		}
		result, err := c.Auther.Login(ctx.Context(), kind, req.Email, req.Password)
		if err != nil {
			return err
		}
		return ctx.JSON(http.StatusOK, result)
	}
}

func (c *Controller) register(kind AccountKind) router.HandlerFunc {
	return func(ctx router.Context) error {
		var msg RegisterAccountMessage
		if err := ctx.Bind(&msg); err != nil {
			return badBody(err)
		}
		msg.Kind = kind

		actor, _ := IdentityFromLocals(ctx)
		if _, err := c.Registrar.Register(requestContext(ctx), actor, msg); err != nil {
			return err
		}
		return ctx.SendString(fmt.Sprintf("%s registered successfully", loginLabel(kind)))
	}
}

type PasswordResetRequest struct {
	Email string `json:"email"`
}

// RequestPasswordReset answers the same way whether or not the email
// belongs to an active employee.
func (c *Controller) RequestPasswordReset(ctx router.Context) error {
	var req PasswordResetRequest
	if err := ctx.Bind(&req); err != nil {
		return badBody(err)
	}
	if _, err := c.ResetRequests.Request(requestContext(ctx), req.Email); err != nil {
		return err
	}
	return ctx.SendString("If the email is registered, a password reset link has been sent")
}

func (c *Controller) FinalizePasswordReset(ctx router.Context) error {
	var msg FinalizePasswordResetMessage
	if err := ctx.Bind(&msg); err != nil {
		return badBody(err)
	}
	msg.Session = ctx.Param("token")
	if err := c.Resets.Execute(requestContext(ctx), msg); err != nil {
		return err
	}
	return ctx.SendString("Password updated successfully")
}

type StatusRequest struct {
	Status string `json:"status"`
}

// SetAccountStatus activates the account when status is "Active" in any
// case and deactivates it for every other value.
func (c *Controller) SetAccountStatus(ctx router.Context) error {
	kind, id, err := accountParams(ctx)
	if err != nil {
		return err
	}
	var req StatusRequest
	if err := ctx.Bind(&req); err != nil {
		return badBody(err)
	}

	active := strings.EqualFold(strings.TrimSpace(req.Status), "Active")
	if err := c.Directory.SetActive(requestContext(ctx), identity(ctx), kind, id, active); err != nil {
		return err
	}
	return ctx.SendString(fmt.Sprintf("%s status updated to %s", loginLabel(kind), statusLabel(active)))
}

func (c *Controller) UpdateAccount(ctx router.Context) error {
	kind, id, err := accountParams(ctx)
	if err != nil {
		return err
	}
	var update AccountUpdate
	if err := ctx.Bind(&update); err != nil {
		return badBody(err)
	}
	if err := c.Directory.Update(requestContext(ctx), identity(ctx), kind, id, update); err != nil {
		return err
	}
	return ctx.SendString(fmt.Sprintf("%s updated successfully", loginLabel(kind)))
}

func (c *Controller) DeleteAccount(ctx router.Context) error {
	kind, id, err := accountParams(ctx)
	if err != nil {
		return err
	}
	if err := c.Directory.Delete(requestContext(ctx), identity(ctx), kind, id); err != nil {
		return err
	}
	return ctx.SendString(fmt.Sprintf("%s deleted successfully", loginLabel(kind)))
}

func (c *Controller) ListAccounts(ctx router.Context) error {
	kind, err := managedKind(ctx.Param("kind"))
	if err != nil {
		return err
	}
	accounts, err := c.Directory.List(requestContext(ctx), kind)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, accounts)
}

func (c *Controller) ListClaims(ctx router.Context) error {
	return c.renderClaims(ctx, ClaimFilter{})
}

func (c *Controller) ListFraudClaims(ctx router.Context) error {
	claims, err := c.Claims.ListFraudFlagged(requestContext(ctx))
	if err != nil {
		return err
	}
	return c.renderViews(ctx, claims)
}

func (c *Controller) ListOwnClaims(ctx router.Context) error {
	account, err := c.caller(ctx, AccountEmployee)
	if err != nil {
		return err
	}
	return c.renderClaims(ctx, ClaimFilter{EmployeeID: int64Ptr(account.ID)})
}

func (c *Controller) ListAssignedClaims(ctx router.Context) error {
	account, err := c.caller(ctx, AccountHR)
	if err != nil {
		return err
	}
	filter := ClaimFilter{AssignedHrID: int64Ptr(account.ID)}
	if raw := ctx.Query("status"); raw != "" {
		status, err := ParseClaimStatus(raw)
		if err != nil {
			return err
		}
		filter.Status = status
	}
	return c.renderClaims(ctx, filter)
}

type SubmitClaimRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	ClaimDate   string          `json:"claimDate"`
	PolicyID    *int64          `json:"policyId"`
	Documents   []string        `json:"documents"`
}

// SubmitClaim files a claim for the calling employee. The employee is taken
// from the token, never from the body.
func (c *Controller) SubmitClaim(ctx router.Context) error {
	var req SubmitClaimRequest
	if err := ctx.Bind(&req); err != nil {
		return badBody(err)
	}
	account, err := c.caller(ctx, AccountEmployee)
	if err != nil {
		return err
	}
	claimDate, err := parseDate(req.ClaimDate)
	if err != nil {
		return err
	}

	claim, err := c.Claims.Submit(requestContext(ctx), identity(ctx), SubmitClaimInput{
		EmployeeID:  account.ID,
		Title:       req.Title,
		Description: req.Description,
		Amount:      req.Amount,
		ClaimDate:   claimDate,
		PolicyID:    req.PolicyID,
		Documents:   req.Documents,
	})
	if err != nil {
		return err
	}
	return c.renderView(ctx, claim)
}

type AssignRequest struct {
	HrID int64 `json:"hrId"`
}

func (r AssignRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.HrID, validation.Required),
	)
}

func (c *Controller) AssignClaim(ctx router.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	var req AssignRequest
	if err := ctx.Bind(&req); err != nil {
		return badBody(err)
	}
	if err := req.Validate(); err != nil {
		return fromValidation(err, "invalid assignment")
	}
	claim, err := c.Claims.Assign(requestContext(ctx), identity(ctx), id, req.HrID)
	if err != nil {
		return err
	}
	return c.renderView(ctx, claim)
}

type DecisionRequest struct {
	Status  string `json:"status"`
	Remarks string `json:"remarks"`
}

func (c *Controller) DecideClaim(ctx router.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	var req DecisionRequest
	if err := ctx.Bind(&req); err != nil {
		return badBody(err)
	}
	outcome, err := ParseDecision(req.Status)
	if err != nil {
		return err
	}
	claim, err := c.Claims.Decide(requestContext(ctx), identity(ctx), id, outcome, req.Remarks)
	if err != nil {
		return err
	}
	return c.renderView(ctx, claim)
}

type FraudRequest struct {
	Reason string `json:"reason"`
}

func (c *Controller) FlagFraud(ctx router.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	var req FraudRequest
	if err := ctx.Bind(&req); err != nil {
		return badBody(err)
	}
	claim, err := c.Claims.FlagFraud(requestContext(ctx), identity(ctx), id, req.Reason)
	if err != nil {
		return err
	}
	return c.renderView(ctx, claim)
}

func (c *Controller) ClearFraud(ctx router.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	claim, err := c.Claims.ClearFraud(requestContext(ctx), identity(ctx), id)
	if err != nil {
		return err
	}
	return c.renderView(ctx, claim)
}

type ReimbursementRequest struct {
	Status string `json:"status"`
}

func (c *Controller) RecordReimbursement(ctx router.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	var req ReimbursementRequest
	if err := ctx.Bind(&req); err != nil {
		return badBody(err)
	}
	status, err := ParseReimbursementStatus(req.Status)
	if err != nil {
		return err
	}
	claim, err := c.Claims.RecordReimbursement(requestContext(ctx), identity(ctx), id, status)
	if err != nil {
		return err
	}
	return c.renderView(ctx, claim)
}

// AuditLogs re-derives the caller from the Authorization header before
// reading the log, independent of the route middleware.
func (c *Controller) AuditLogs(ctx router.Context) error {
	if _, err := c.Auth.Authorize(ctx, RoleAdmin); err != nil {
		return err
	}

	filter := AuditFilter{
		ActorEmail: ctx.Query("actor"),
		TargetType: ctx.Query("targetType"),
		TargetID:   ctx.Query("targetId"),
		Action:     ctx.Query("action"),
		Limit:      ctx.QueryInt("limit", 0),
	}
	entries, err := c.AuditLog.Query(requestContext(ctx), filter)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (c *Controller) SubmitQuery(ctx router.Context) error {
	var in SubmitQueryInput
	if err := ctx.Bind(&in); err != nil {
		return badBody(err)
	}
	query, err := c.Queries.Submit(requestContext(ctx), identity(ctx), in)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, query)
}

func (c *Controller) ListOwnQueries(ctx router.Context) error {
	queries, err := c.Queries.ListForEmployee(requestContext(ctx), identity(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, queries)
}

func (c *Controller) ListAgentQueries(ctx router.Context) error {
	queries, err := c.Queries.ListForAgent(requestContext(ctx), identity(ctx), queryBool(ctx, "pending"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, queries)
}

type AnswerRequest struct {
	Response string `json:"response"`
}

func (c *Controller) AnswerQuery(ctx router.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	var req AnswerRequest
	if err := ctx.Bind(&req); err != nil {
		return badBody(err)
	}
	query, err := c.Queries.Answer(requestContext(ctx), identity(ctx), id, req.Response)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, query)
}

type CreatePolicyRequest struct {
	PolicyName     string          `json:"policyName"`
	PolicyType     string          `json:"policyType"`
	ProviderName   string          `json:"providerName"`
	CoverageAmount decimal.Decimal `json:"coverageAmount"`
	RenewalDate    string          `json:"renewalDate"`
}

func (c *Controller) CreatePolicy(ctx router.Context) error {
	var req CreatePolicyRequest
	if err := ctx.Bind(&req); err != nil {
		return badBody(err)
	}
	renewal, err := parseDate(req.RenewalDate)
	if err != nil {
		return err
	}
	policy, err := c.Policies.CreatePolicy(requestContext(ctx), identity(ctx), CreatePolicyInput{
		PolicyName:     req.PolicyName,
		PolicyType:     req.PolicyType,
		ProviderName:   req.ProviderName,
		CoverageAmount: req.CoverageAmount,
		RenewalDate:    renewal,
	})
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, policy)
}

type EnrollmentRequest struct {
	PolicyID int64 `json:"policyId"`
}

func (c *Controller) RequestEnrollment(ctx router.Context) error {
	var req EnrollmentRequest
	if err := ctx.Bind(&req); err != nil {
		return badBody(err)
	}
	if req.PolicyID <= 0 {
		return validationError("policy is required", goerrors.FieldError{Field: "policyId", Message: "cannot be blank"})
	}
	enrollment, err := c.Policies.RequestEnrollment(requestContext(ctx), identity(ctx), req.PolicyID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, enrollment)
}

func (c *Controller) ApproveEnrollment(ctx router.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	enrollment, err := c.Policies.ApproveEnrollment(requestContext(ctx), identity(ctx), id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, enrollment)
}

func (c *Controller) renderClaims(ctx router.Context, filter ClaimFilter) error {
	claims, err := c.Claims.List(requestContext(ctx), filter)
	if err != nil {
		return err
	}
	return c.renderViews(ctx, claims)
}

func (c *Controller) renderViews(ctx router.Context, claims []*Claim) error {
	views, err := c.Claims.Views(requestContext(ctx), claims)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, views)
}

func (c *Controller) renderView(ctx router.Context, claim *Claim) error {
	views, err := c.Claims.Views(requestContext(ctx), []*Claim{claim})
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, views[0])
}

// caller resolves the account behind the token subject.
func (c *Controller) caller(ctx router.Context, kind AccountKind) (*Account, error) {
	if c.Directory == nil {
		return nil, newError(ErrStorageUnavailable, map[string]any{"reason": "user directory not configured"})
	}
	return c.Directory.FindByEmail(requestContext(ctx), kind, identity(ctx).Subject)
}

func identity(ctx router.Context) Identity {
	id, _ := IdentityFromLocals(ctx)
	return id
}

func accountParams(ctx router.Context) (AccountKind, int64, error) {
	kind, err := managedKind(ctx.Param("kind"))
	if err != nil {
		return "", 0, err
	}
	id, err := pathID(ctx)
	if err != nil {
		return "", 0, err
	}
	return kind, id, nil
}

func managedKind(raw string) (AccountKind, error) {
	kind, err := ParseAccountKind(raw)
	if err != nil || kind == AccountAdmin {
		return "", notFound("route", raw)
	}
	return kind, nil
}

func pathID(ctx router.Context) (int64, error) {
	raw := ctx.Param("id")
	id := ctx.ParamsInt("id", 0)
	if id <= 0 {
		return 0, notFound("resource", raw)
	}
	return int64(id), nil
}

func queryBool(ctx router.Context, name string) bool {
	v, err := strconv.ParseBool(ctx.Query(name))
	return err == nil && v
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, validationError("invalid date", goerrors.FieldError{
		Field:   "date",
		Message: "must be YYYY-MM-DD or RFC3339",
		Value:   raw,
	})
}

func badBody(err error) error {
	return wrapError(ErrValidation, err, map[string]any{"reason": "request body could not be parsed"})
}

func statusLabel(active bool) string {
	if active {
		return "Active"
	}
	return "Inactive"
}
