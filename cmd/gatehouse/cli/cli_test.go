package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse-io/gatehouse/internal/audit"
	"github.com/gatehouse-io/gatehouse/internal/authz"
)

type stubInspector struct {
	info     *asynq.QueueInfo
	err      error
	requeued int
}

func (s *stubInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.info, nil
}

func (s *stubInspector) ListArchivedTasks(string, ...asynq.ListOption) ([]*asynq.TaskInfo, error) {
	return nil, nil
}

func (s *stubInspector) RunAllArchivedTasks(string) (int, error) {
	s.requeued++
	return 2, nil
}

func TestCommandJSON(t *testing.T) {
	cli := &AuditQueueCLI{inspector: &stubInspector{info: &asynq.QueueInfo{Queue: audit.QueueAudit, Pending: 4}}}
	stdout := new(bytes.Buffer)
	code := cli.Command(context.Background(), AuditQueueOptions{JSONOutput: true, Stdout: stdout, Stderr: new(bytes.Buffer)})
	require.Equal(t, 0, code)

	var stats QueueStats
	require.NoError(t, json.NewDecoder(stdout).Decode(&stats))
	require.Equal(t, audit.QueueAudit, stats.Queue)
	require.Equal(t, 4, stats.Pending)
}

func TestCommandFlagsArchivedBacklog(t *testing.T) {
	insp := &stubInspector{info: &asynq.QueueInfo{Archived: 3}}
	cli := &AuditQueueCLI{inspector: insp}
	stdout := new(bytes.Buffer)
	code := cli.Command(context.Background(), AuditQueueOptions{Requeue: true, Stdout: stdout, Stderr: new(bytes.Buffer)})
	require.Equal(t, 10, code)
	require.Equal(t, 1, insp.requeued)
	require.Contains(t, stdout.String(), "requeued 2 archived task(s)")
	require.Contains(t, stdout.String(), "archived")
}

func TestCommandMissingQueueIsEmpty(t *testing.T) {
	cli := &AuditQueueCLI{inspector: &stubInspector{err: asynq.ErrQueueNotFound}}
	code := cli.Command(context.Background(), AuditQueueOptions{Stdout: new(bytes.Buffer), Stderr: new(bytes.Buffer)})
	require.Equal(t, 0, code)
}

func TestCommandInspectorFailure(t *testing.T) {
	cli := &AuditQueueCLI{inspector: &stubInspector{err: errors.New("redis down")}}
	stderr := new(bytes.Buffer)
	code := cli.Command(context.Background(), AuditQueueOptions{Stdout: new(bytes.Buffer), Stderr: stderr})
	require.Equal(t, 1, code)
	require.Contains(t, stderr.String(), "redis down")
}

func TestPrintPolicyTable(t *testing.T) {
	out := new(bytes.Buffer)
	require.NoError(t, PrintPolicy(out, authz.DefaultPolicy(), false))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Equal(t, len(authz.DefaultPolicy().Rules())+1, len(lines))
	require.True(t, strings.HasPrefix(lines[0], "ACTION"))
	require.Contains(t, out.String(), "resource:delete")
	require.NotContains(t, out.String(), "none")
}

func TestPrintPolicyJSON(t *testing.T) {
	out := new(bytes.Buffer)
	require.NoError(t, PrintPolicy(out, authz.DefaultPolicy(), true))
	var rows []map[string]string
	require.NoError(t, json.NewDecoder(out).Decode(&rows))
	require.Equal(t, map[string]string{"action": "audit:list", "role": "admin", "grant": "all"}, rows[0])
}
