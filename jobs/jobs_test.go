package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse-io/gatehouse/internal/audit"
)

type outcomes struct{ errs []error }

func (o *outcomes) ObserveAuditTask(err error) { o.errs = append(o.errs, err) }

type sink struct {
	entries []audit.Entry
	err     error
}

func (s *sink) Record(_ context.Context, e audit.Entry) error {
	s.entries = append(s.entries, e)
	return s.err
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestServeMuxRoutesAuditTasks(t *testing.T) {
	store := &sink{}
	obs := &outcomes{}
	mux := NewServeMux(discard(), obs, TaskHandler{Type: audit.TaskRecord, Handler: audit.HandleRecordTask(store)})

	task, err := audit.NewRecordTask(audit.Entry{Entity: "resource", Operation: "read", Effect: "allow"})
	require.NoError(t, err)
	require.NoError(t, mux.ProcessTask(context.Background(), task))
	assert.Len(t, store.entries, 1)
	require.Len(t, obs.errs, 1)
	assert.NoError(t, obs.errs[0])

	bad := asynq.NewTask(audit.TaskRecord, []byte("not json"))
	err = mux.ProcessTask(context.Background(), bad)
	assert.ErrorIs(t, err, asynq.SkipRetry)
	require.Len(t, obs.errs, 2)
	assert.Error(t, obs.errs[1])
}

func TestServeMuxIgnoresEmptyRegistrations(t *testing.T) {
	mux := NewServeMux(discard(), nil, TaskHandler{Type: "", Handler: nil}, TaskHandler{Type: "x"})
	err := mux.ProcessTask(context.Background(), asynq.NewTask("x", nil))
	assert.Error(t, err)
}

type stubPurger struct {
	cutoff time.Time
	err    error
}

func (s *stubPurger) Purge(_ context.Context, before time.Time) (int64, error) {
	s.cutoff = before
	return 3, s.err
}

func TestAuditPurgeUsesRetention(t *testing.T) {
	purger := &stubPurger{}
	now := time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)
	task, err := NewAuditPurgeTask(30)
	require.NoError(t, err)

	require.NoError(t, HandleAuditPurge(purger, func() time.Time { return now })(context.Background(), task))
	assert.Equal(t, time.Date(2024, 5, 31, 12, 0, 0, 0, time.UTC), purger.cutoff)
}

func TestAuditPurgeRejectsBadPayload(t *testing.T) {
	_, err := NewAuditPurgeTask(0)
	assert.Error(t, err)

	err = HandleAuditPurge(&stubPurger{}, nil)(context.Background(), asynq.NewTask(TaskAuditPurge, []byte(`{"retention_days":-1}`)))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestAuditPurgeRetriesStoreErrors(t *testing.T) {
	task, err := NewAuditPurgeTask(7)
	require.NoError(t, err)
	err = HandleAuditPurge(&stubPurger{err: errors.New("db down")}, nil)(context.Background(), task)
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}
