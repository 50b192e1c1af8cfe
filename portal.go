package insurai

import (
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-router"
)

// PortalOptions tune the services NewPortal assembles. Zero values fall
// back to the defaults of each service.
type PortalOptions struct {
	Logger            Logger
	Clock             Clock
	Notifier          Notifier
	Hasher            PasswordAuthenticator
	AuthScheme        string
	RenewalWindowDays int
	OnSideEffectError SideEffectErrorHandler
	ExtraClaimHooks   []PostCommitHook
}

// Portal wires every service on top of one repository manager and one
// token service.
type Portal struct {
	Repo      RepositoryManager
	Tokens    TokenService
	Gate      *AuthorizationGate
	AuditLog  *AuditRecorder
	Directory *UserDirectory
	Claims    *ClaimLifecycleManager
	Auther    *Auther
	Registrar *RegisterAccountHandler
	// ResetRequests issues reset links and Resets redeems them.
	ResetRequests *InitializePasswordResetHandler
	Resets        *FinalizePasswordResetHandler
	Queries       *QueryService
	Policies      *PolicyService
	Logger        Logger
}

func NewPortal(repo RepositoryManager, tokens TokenService, opts PortalOptions) *Portal {
	logger := normalizeLogger(opts.Logger)
	clock := normalizeClock(opts.Clock)
	hasher := opts.Hasher
	if hasher == nil {
		hasher = NewBcryptHasher(0)
	}

	auditLog := NewAuditRecorder(repo.AuditLogs(), WithAuditClock(clock))
	directory := NewUserDirectory(repo.Accounts(),
		WithDirectoryClock(clock),
		WithDirectoryAuditor(auditLog),
		WithDirectoryLogger(logger),
	)

	claims := NewClaimLifecycleManager(repo.Claims(), directory,
		WithLifecycleClock(clock),
		WithLifecycleLogger(logger),
		WithLifecycleAuditor(auditLog),
		WithLifecycleNotifier(opts.Notifier),
		WithLifecyclePolicies(repo.Policies()),
		WithPostCommitHooks(opts.ExtraClaimHooks...),
		WithSideEffectErrorHandler(opts.OnSideEffectError),
	)

	registrar := NewRegisterAccountHandler(repo, hasher, auditLog, logger)
	registrar.now = clock

	return &Portal{
		Repo:      repo,
		Tokens:    tokens,
		Gate:      NewAuthorizationGate(tokens, WithGateScheme(opts.AuthScheme), WithGateLogger(logger)),
		AuditLog:  auditLog,
		Directory: directory,
		Claims:    claims,
		Auther:    NewAuthenticator(repo.Accounts(), hasher, tokens).WithLogger(logger).WithAuditor(auditLog),
		Registrar: registrar,
		ResetRequests: NewInitializePasswordResetHandler(repo, opts.Notifier, auditLog, logger).
			WithClock(clock),
		Resets: NewFinalizePasswordResetHandler(repo, hasher, auditLog, logger).
			WithClock(clock),
		Queries: NewQueryService(repo.Queries(), repo.Accounts(), auditLog, opts.Notifier, logger).WithClock(clock),
		Policies: NewPolicyService(repo.Policies(), repo.Accounts(), auditLog, opts.Notifier,
			WithPolicyClock(clock),
			WithRenewalWindow(opts.RenewalWindowDays),
			WithPolicyLogger(logger),
		),
		Logger: logger,
	}
}

// Controller returns the HTTP controller for every portal service.
func (p *Portal) Controller() *Controller {
	return NewController(NewHTTPAuthenticator(p.Gate, p.Logger),
		WithControllerLogger(p.Logger),
		WithLogin(p.Auther),
		WithRegistrar(p.Registrar),
		WithPasswordResets(p.ResetRequests, p.Resets),
		WithDirectory(p.Directory),
		WithClaims(p.Claims),
		WithAuditLog(p.AuditLog),
		WithQueries(p.Queries),
		WithPolicies(p.Policies),
	)
}

// Server returns a router server with every portal route mounted.
func (p *Portal) Server(corsOrigins ...string) router.Server[*fiber.App] {
	server := NewServer(p.Logger, corsOrigins...)
	RegisterRoutes(server.Router(), p.Controller())
	return server
}

// App returns the fiber app behind Server.
func (p *Portal) App(corsOrigins ...string) *fiber.App {
	return p.Server(corsOrigins...).WrappedRouter()
}
