package insurai

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"

	"github.com/goliatone/go-insurai/middleware/jwtware"
)

// RouteAuthenticator turns the authorization gate into router middleware.
type RouteAuthenticator struct {
	gate   *AuthorizationGate
	Logger Logger
	// ErrorHandler receives gate rejections. The default hands them to the
	// app error handler unchanged.
	ErrorHandler router.ErrorHandler
}

func NewHTTPAuthenticator(gate *AuthorizationGate, logger Logger) *RouteAuthenticator {
	return &RouteAuthenticator{
		gate:   gate,
		Logger: normalizeLogger(logger),
		ErrorHandler: func(_ router.Context, err error) error {
			return err
		},
	}
}

// ProtectedRoute admits only callers whose token carries role. The handler
// chain stops before any domain work when the gate rejects the call.
func (a *RouteAuthenticator) ProtectedRoute(role Role) router.MiddlewareFunc {
	return jwtware.New(jwtware.Config{
		RequiredRole: role.String(),
		ContextKey:   IdentityLocalsKey,
		ErrorHandler: a.ErrorHandler,
		Authorize: func(credential, required string) (any, error) {
			return a.gate.Authorize(credential, Role(required))
		},
	})
}

// Authorize re-checks the request header against role. Handlers that must
// not trust upstream middleware call it directly.
func (a *RouteAuthenticator) Authorize(ctx router.Context, role Role) (Identity, error) {
	return a.gate.Authorize(ctx.Header(router.HeaderAuthorization), role)
}

// NewServer returns the fiber backed router server. Errors returned by any
// handler are rendered by ErrorHandler. CORS is enabled for corsOrigins
// when any are given.
func NewServer(logger Logger, corsOrigins ...string) router.Server[*fiber.App] {
	logger = normalizeLogger(logger)
	return router.NewFiberAdapter(func(*fiber.App) *fiber.App {
		app := fiber.New(fiber.Config{
			AppName:               "insurai",
			DisableStartupMessage: true,
			ErrorHandler:          ErrorHandler(logger),
		})
		if origins := nonEmpty(corsOrigins); len(origins) > 0 {
			app.Use(cors.New(cors.Config{
				AllowOrigins: strings.Join(origins, ","),
				AllowHeaders: "Origin, Content-Type, Accept, Authorization",
			}))
		}
		return app
	})
}

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type ErrorBody struct {
	Category         string                `json:"category"`
	TextCode         string                `json:"text_code,omitempty"`
	Message          string                `json:"message"`
	ValidationErrors []goerrors.FieldError `json:"validation_errors,omitempty"`
}

// ErrorHandler renders err with the status from HTTPStatus. Metadata and
// wrapped sources are logged, never returned to the client.
func ErrorHandler(logger Logger) fiber.ErrorHandler {
	logger = normalizeLogger(logger)
	return func(c *fiber.Ctx, err error) error {
		var fiberErr *fiber.Error
		if goerrors.As(err, &fiberErr) {
			return c.Status(fiberErr.Code).JSON(ErrorResponse{Error: ErrorBody{
				Category: string(categoryForStatus(fiberErr.Code)),
				Message:  fiberErr.Message,
			}})
		}

		var richErr *goerrors.Error
		if !goerrors.As(err, &richErr) {
			richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "An unexpected server error occurred").
				WithCode(goerrors.CodeInternal)
		}

		status := HTTPStatus(richErr)
		args := []any{"method", c.Method(), "path", c.Path(), "status", status}
		for _, attr := range goerrors.ToSlogAttributes(richErr) {
			args = append(args, attr)
		}
		if status >= http.StatusInternalServerError {
			logger.Error("request failed", args...)
		} else {
			logger.Info("request rejected", args...)
		}
		if len(richErr.Metadata) > 0 {
			logger.Debug("request error details", "details", print.MaybePrettyJSON(richErr.Metadata))
		}

		return c.Status(status).JSON(ErrorResponse{Error: ErrorBody{
			Category:         richErr.Category.String(),
			TextCode:         richErr.TextCode,
			Message:          richErr.Message,
			ValidationErrors: richErr.ValidationErrors,
		}})
	}
}

func categoryForStatus(status int) goerrors.Category {
	switch status {
	case http.StatusNotFound:
		return goerrors.CategoryNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return goerrors.CategoryValidation
	case http.StatusForbidden:
		return goerrors.CategoryAuthz
	case http.StatusUnauthorized:
		return goerrors.CategoryAuth
	default:
		return goerrors.CategoryInternal
	}
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
