package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store writes entries into authz_audit.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore returns a new Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Record implements Recorder.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if s == nil || s.pool == nil {
		return errors.New("audit store not initialised")
	}
	if err := e.validate(); err != nil {
		return err
	}
	at := e.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `INSERT INTO authz_audit
		(occurred_at, request_id, principal_id, role, entity, operation, record_id, effect, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		at, e.RequestID, e.PrincipalID, e.Role, e.Entity, e.Operation, e.RecordID, e.Effect, e.Reason)
	if err != nil {
		return fmt.Errorf("audit: insert: %w", err)
	}
	return nil
}

// Window fetches entries matching filters, newest first.
func (s *Store) Window(ctx context.Context, f Filters, limit, offset int) ([]Entry, error) {
	var (
		conditions []string
		args       []any
	)
	add := func(column, value string) {
		if value = strings.TrimSpace(value); value != "" {
			args = append(args, value)
			conditions = append(conditions, fmt.Sprintf("%s = $%d", column, len(args)))
		}
	}
	add("principal_id", f.PrincipalID)
	add("entity", f.Entity)
	add("effect", f.Effect)
	add("reason", f.Reason)
	if !f.From.IsZero() {
		args = append(args, f.From)
		conditions = append(conditions, fmt.Sprintf("occurred_at >= $%d", len(args)))
	}
	if !f.To.IsZero() {
		args = append(args, f.To)
		conditions = append(conditions, fmt.Sprintf("occurred_at < $%d", len(args)))
	}

	query := `SELECT occurred_at, request_id, principal_id, role, entity, operation, record_id, effect, reason FROM authz_audit`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	args = append(args, limit, offset)
	query += fmt.Sprintf(" ORDER BY occurred_at DESC, id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: query: %w", err)
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.At, &e.RequestID, &e.PrincipalID, &e.Role, &e.Entity, &e.Operation, &e.RecordID, &e.Effect, &e.Reason); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Purge deletes entries recorded before cutoff and returns how many went.
func (s *Store) Purge(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM authz_audit WHERE occurred_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("audit: purge: %w", err)
	}
	return tag.RowsAffected(), nil
}
