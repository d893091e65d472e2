package resources

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatehouse-io/gatehouse/internal/authz"
	"github.com/gatehouse-io/gatehouse/internal/platform/db"
	"github.com/gatehouse-io/gatehouse/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const selectResource = `SELECT r.id, r.name, r.description, r.created_at, r.updated_at,
	u.id, u.name, u.email
	FROM resources r JOIN users u ON u.id = r.created_by`

func scanResource(row pgx.Row) (*Resource, error) {
	var res Resource
	err := row.Scan(&res.ID, &res.Name, &res.Description, &res.CreatedAt, &res.UpdatedAt,
		&res.Owner.ID, &res.Owner.Name, &res.Owner.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &res, nil
}

// LoadOwner implements authz.RecordStore.
func (r *Repository) LoadOwner(ctx context.Context, _ authz.EntityType, id string) (string, error) {
	if !db.IsUUID(id) {
		return "", authz.ErrRecordNotFound
	}
	var owner string
	err := r.pool.QueryRow(ctx, `SELECT created_by FROM resources WHERE id = $1`, id).Scan(&owner)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", authz.ErrRecordNotFound
		}
		return "", fmt.Errorf("resources: load owner: %w", err)
	}
	return owner, nil
}

// ListScopedBy returns the resources inside scope, newest first.
func (r *Repository) ListScopedBy(ctx context.Context, scope authz.ListScope) ([]Resource, error) {
	query := selectResource
	var args []any
	if !scope.All {
		if !db.IsUUID(scope.Owner) {
			return nil, nil
		}
		query += ` WHERE r.created_by = $1`
		args = append(args, scope.Owner)
	}
	query += ` ORDER BY r.created_at DESC, r.id`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Resource
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	return out, rows.Err()
}

// Get returns one resource.
func (r *Repository) Get(ctx context.Context, id string) (*Resource, error) {
	if !db.IsUUID(id) {
		return nil, shared.ErrNotFound
	}
	return scanResource(r.pool.QueryRow(ctx, selectResource+` WHERE r.id = $1`, id))
}

// Create inserts a resource owned by ownerID.
func (r *Repository) Create(ctx context.Context, id, ownerID string, in CreateInput) (*Resource, error) {
	_, err := r.pool.Exec(ctx, `INSERT INTO resources (id, name, description, created_by) VALUES ($1, $2, $3, $4)`,
		id, in.Name, in.Description, ownerID)
	if err != nil {
		return nil, fmt.Errorf("resources: create: %w", err)
	}
	return r.Get(ctx, id)
}

// Update applies the non-nil fields of in.
func (r *Repository) Update(ctx context.Context, id string, in UpdateInput) (*Resource, error) {
	if !db.IsUUID(id) {
		return nil, shared.ErrNotFound
	}
	sets := []string{"updated_at = now()"}
	args := []any{id}
	if in.Name != nil {
		args = append(args, *in.Name)
		sets = append(sets, fmt.Sprintf("name = $%d", len(args)))
	}
	if in.Description != nil {
		args = append(args, *in.Description)
		sets = append(sets, fmt.Sprintf("description = $%d", len(args)))
	}
	tag, err := r.pool.Exec(ctx, `UPDATE resources SET `+strings.Join(sets, ", ")+` WHERE id = $1`, args...)
	if err != nil {
		return nil, fmt.Errorf("resources: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, shared.ErrNotFound
	}
	return r.Get(ctx, id)
}

// Delete removes a resource.
func (r *Repository) Delete(ctx context.Context, id string) error {
	if !db.IsUUID(id) {
		return shared.ErrNotFound
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM resources WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("resources: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
