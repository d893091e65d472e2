// Package rbac adapts authorization decisions to HTTP responses.
package rbac

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/gatehouse-io/gatehouse/internal/audit"
	"github.com/gatehouse-io/gatehouse/internal/authz"
	"github.com/gatehouse-io/gatehouse/internal/platform/httpx"
	"github.com/gatehouse-io/gatehouse/internal/shared"
)

// Authorizer decides whether a credential may perform an action.
type Authorizer interface {
	Authorize(ctx context.Context, credential string, action authz.Action, recordID string) (authz.Decision, error)
}

// DecisionObserver receives every decision reached.
type DecisionObserver interface {
	ObserveDecision(d authz.Decision)
}

// Guard runs the authorization engine for a request and writes the failure
// response when access is not granted.
type Guard struct {
	Engine Authorizer
	Logger *slog.Logger
	Audit  audit.Recorder
	// Metrics is optional.
	Metrics DecisionObserver
	// DistinctForbidden answers role and ownership denials with 403 instead of 401.
	DistinctForbidden bool
	Now               func() time.Time
}

// Check authorizes the request. When it returns false the response has
// already been written and the handler must stop.
func (g *Guard) Check(w http.ResponseWriter, r *http.Request, action authz.Action, recordID string) (authz.Decision, bool) {
	ctx := r.Context()
	decision, err := g.Engine.Authorize(ctx, shared.BearerToken(r), action, recordID)
	if err != nil {
		g.writeError(w, r, action, recordID, err)
		return authz.Decision{}, false
	}
	g.observe(ctx, decision)
	if decision.Allowed() {
		return decision, true
	}
	g.writeDenied(w, decision)
	return decision, false
}

// Require is a middleware for actions that need no record id or list scope.
func (g *Guard) Require(action authz.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := g.Check(w, r, action, ""); !ok {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// StatusFor maps a denial reason to the HTTP status returned to the client.
func (g *Guard) StatusFor(reason authz.Reason) int {
	switch reason {
	case authz.ReasonInsufficientRole, authz.ReasonNotOwner:
		if g.DistinctForbidden {
			return http.StatusForbidden
		}
	}
	return http.StatusUnauthorized
}

func (g *Guard) writeDenied(w http.ResponseWriter, d authz.Decision) {
	httpx.WriteProblem(w, httpx.ProblemDetail{
		Title:  "Not Authorized",
		Status: g.StatusFor(d.Reason),
		Detail: d.Err().Error(),
		Reason: string(d.Reason),
	})
}

func (g *Guard) writeError(w http.ResponseWriter, r *http.Request, action authz.Action, recordID string, err error) {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		g.logger().DebugContext(r.Context(), "authorization abandoned", slog.String("action", action.String()), slog.Any("error", err))
	case errors.Is(err, authz.ErrRecordNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", NotFoundMessage(action.Entity, recordID))
	default:
		g.logger().ErrorContext(r.Context(), "authorization failed", slog.String("action", action.String()), slog.String("record", recordID), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "authorization could not be completed")
	}
}

// NotFoundMessage is the detail used for missing records.
func NotFoundMessage(entity authz.EntityType, id string) string {
	return fmt.Sprintf("%s not found with id of %s", entity, id)
}

func (g *Guard) observe(ctx context.Context, d authz.Decision) {
	if g.Metrics != nil {
		g.Metrics.ObserveDecision(d)
	}
	if g.Audit == nil {
		return
	}
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	entry := audit.FromDecision(d, middleware.GetReqID(ctx), now())
	// Recording must not fail the request.
	if err := g.Audit.Record(context.WithoutCancel(ctx), entry); err != nil {
		g.logger().WarnContext(ctx, "audit record failed", slog.Any("error", err))
	}
}

func (g *Guard) logger() *slog.Logger {
	if g.Logger != nil {
		return g.Logger
	}
	return slog.Default()
}
