// Package audit records authorization decisions for review.
package audit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gatehouse-io/gatehouse/internal/authz"
)

// Entry is one recorded authorization decision.
type Entry struct {
	At          time.Time `json:"at"`
	RequestID   string    `json:"request_id,omitempty"`
	PrincipalID string    `json:"principal_id,omitempty"`
	Role        string    `json:"role,omitempty"`
	Entity      string    `json:"entity"`
	Operation   string    `json:"operation"`
	RecordID    string    `json:"record_id,omitempty"`
	Effect      string    `json:"effect"`
	Reason      string    `json:"reason,omitempty"`
}

// FromDecision flattens a decision into an Entry.
func FromDecision(d authz.Decision, requestID string, at time.Time) Entry {
	return Entry{
		At:          at.UTC(),
		RequestID:   requestID,
		PrincipalID: d.Principal.ID,
		Role:        string(d.Principal.Role),
		Entity:      string(d.Action.Entity),
		Operation:   string(d.Action.Operation),
		RecordID:    d.RecordID,
		Effect:      string(d.Effect),
		Reason:      string(d.Reason),
	}
}

func (e Entry) validate() error {
	if e.Entity == "" || e.Operation == "" || e.Effect == "" {
		return errors.New("audit: entry requires entity/operation/effect")
	}
	return nil
}

// Recorder persists or forwards audit entries.
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
}

// LogRecorder writes entries to a structured logger.
type LogRecorder struct {
	Logger *slog.Logger
}

// Record implements Recorder.
func (r LogRecorder) Record(ctx context.Context, e Entry) error {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	level := slog.LevelDebug
	if e.Effect == string(authz.EffectDeny) {
		level = slog.LevelWarn
	}
	logger.LogAttrs(ctx, level, "authz decision",
		slog.String("effect", e.Effect),
		slog.String("reason", e.Reason),
		slog.String("principal", e.PrincipalID),
		slog.String("role", e.Role),
		slog.String("action", e.Entity+":"+e.Operation),
		slog.String("record", e.RecordID),
		slog.String("request_id", e.RequestID),
	)
	return nil
}

// Fanout forwards entries to every recorder and joins their errors.
type Fanout []Recorder

// Record implements Recorder.
func (f Fanout) Record(ctx context.Context, e Entry) error {
	var errs []error
	for _, r := range f {
		if r == nil {
			continue
		}
		if err := r.Record(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// DeniesOnly forwards only denied decisions.
type DeniesOnly struct {
	Next Recorder
}

// Record implements Recorder.
func (d DeniesOnly) Record(ctx context.Context, e Entry) error {
	if e.Effect != string(authz.EffectDeny) || d.Next == nil {
		return nil
	}
	return d.Next.Record(ctx, e)
}
