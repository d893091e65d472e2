package users

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

const userColumns = `id, name, email, role, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	var role string
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &role, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	u.Role = authz.Role(role)
	return &u, nil
}

// ListUsers returns all users ordered by creation.
func (r *Repository) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

// GetUser returns one user.
func (r *Repository) GetUser(ctx context.Context, id string) (*User, error) {
	if !db.IsUUID(id) {
		return nil, shared.ErrNotFound
	}
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// UpdateUser applies the non-nil fields of in.
func (r *Repository) UpdateUser(ctx context.Context, id string, in UpdateInput) (*User, error) {
	if !db.IsUUID(id) {
		return nil, shared.ErrNotFound
	}
	sets := []string{"updated_at = now()"}
	args := []any{id}
	if in.Name != nil {
		args = append(args, *in.Name)
		sets = append(sets, fmt.Sprintf("name = $%d", len(args)))
	}
	if in.Email != nil {
		args = append(args, *in.Email)
		sets = append(sets, fmt.Sprintf("email = $%d", len(args)))
	}
	if in.Role != nil {
		args = append(args, string(*in.Role))
		sets = append(sets, fmt.Sprintf("role = $%d", len(args)))
	}
	query := `UPDATE users SET ` + strings.Join(sets, ", ") + ` WHERE id = $1 RETURNING ` + userColumns
	user, err := scanUser(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, shared.ErrEmailTaken
		}
		return nil, err
	}
	return user, nil
}

// DeleteUser removes a user and the resources it created.
func (r *Repository) DeleteUser(ctx context.Context, id string) error {
	if !db.IsUUID(id) {
		return shared.ErrNotFound
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM resources WHERE created_by = $1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

// LoadRole implements authz.PrincipalStore.
func (r *Repository) LoadRole(ctx context.Context, id string) (authz.Role, error) {
	if !db.IsUUID(id) {
		return "", authz.ErrPrincipalNotFound
	}
	var role string
	err := r.pool.QueryRow(ctx, `SELECT role FROM users WHERE id = $1`, id).Scan(&role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", authz.ErrPrincipalNotFound
		}
		return "", err
	}
	return authz.Role(role), nil
}

// LoadOwner implements authz.RecordStore. A user record is owned by itself.
func (r *Repository) LoadOwner(ctx context.Context, _ authz.EntityType, id string) (string, error) {
	if !db.IsUUID(id) {
		return "", authz.ErrRecordNotFound
	}
	var owner string
	err := r.pool.QueryRow(ctx, `SELECT id FROM users WHERE id = $1`, id).Scan(&owner)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", authz.ErrRecordNotFound
		}
		return "", err
	}
	return owner, nil
}
