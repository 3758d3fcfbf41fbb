package postgres

import (
	"context"
	"errors"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/yunhaishang/Mallorn-sub002/internal/domain/model"
	"github.com/yunhaishang/Mallorn-sub002/internal/port/outbound/repository"
)

var principalColumns = []string{
	"id",
	"email",
	"username",
	"password_hash",
	"credit_score",
	"active",
	"locked",
	"lockout_end",
	"failed_attempts",
	"security_stamp",
	"two_factor_enabled",
	"email_verified",
	"created_at",
	"updated_at",
}

// principalRepository implements repository.PrincipalRepository.
type principalRepository struct {
	db      DB
	builder squirrel.StatementBuilderType
}

// NewPrincipalRepository creates a new PrincipalRepository.
func NewPrincipalRepository(db DB) repository.PrincipalRepository {
	return &principalRepository{
		db:      db,
		builder: newBuilder(),
	}
}

func (r *principalRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Principal, error) {
	return r.findOne(ctx, squirrel.Eq{"id": id})
}

func (r *principalRepository) FindByEmail(ctx context.Context, email string) (*model.Principal, error) {
	return r.findOne(ctx, squirrel.Eq{"email": email})
}

func (r *principalRepository) findOne(ctx context.Context, pred any) (*model.Principal, error) {
	stmt, args, err := r.builder.Select(principalColumns...).
		From("users").
		Where(pred).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select principal sql: %w", err)
	}

	row := r.db.QueryRow(ctx, stmt, args...)
	principal, err := scanPrincipal(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("select principal: %w", err)
	}
	return principal, nil
}

func (r *principalRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*model.Principal, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	stmt, args, err := r.builder.Select(principalColumns...).
		From("users").
		Where(squirrel.Eq{"id": ids}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select principals sql: %w", err)
	}

	rows, err := r.db.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("select principals: %w", err)
	}
	defer rows.Close()

	principals := make([]*model.Principal, 0, len(ids))
	for rows.Next() {
		principal, err := scanPrincipal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan principal: %w", err)
		}
		principals = append(principals, principal)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate principals: %w", err)
	}

	return principals, nil
}

func (r *principalRepository) FindAdmin(ctx context.Context, principalID uuid.UUID) (*model.Admin, error) {
	stmt, args, err := r.builder.Select("principal_id", "role", "category_id").
		From("admins").
		Where(squirrel.Eq{"principal_id": principalID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select admin sql: %w", err)
	}

	var admin model.Admin
	row := r.db.QueryRow(ctx, stmt, args...)
	if err := row.Scan(&admin.PrincipalID, &admin.Role, &admin.CategoryID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("select admin: %w", err)
	}

	return &admin, nil
}

func scanPrincipal(row pgx.Row) (*model.Principal, error) {
	var p principalRow
	if err := row.Scan(
		&p.ID,
		&p.Email,
		&p.Username,
		&p.PasswordHash,
		&p.CreditScore,
		&p.Active,
		&p.Locked,
		&p.LockoutEnd,
		&p.FailedAttempts,
		&p.SecurityStamp,
		&p.TwoFactorEnabled,
		&p.EmailVerified,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return p.toModel(), nil
}
