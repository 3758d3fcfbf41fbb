package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/yunhaishang/Mallorn-sub002/internal/domain/model"
	"github.com/yunhaishang/Mallorn-sub002/internal/port/outbound/repository"
)

var credentialColumns = []string{
	"id",
	"principal_id",
	"token_hash",
	"device_id",
	"issued_at",
	"expires_at",
	"revoked",
	"revoked_at",
	"revoked_reason",
	"revoked_by",
	"replaced_by",
	"rotated_at",
}

// credentialRepository implements repository.CredentialRepository.
type credentialRepository struct {
	db      DB
	builder squirrel.StatementBuilderType
	now     func() time.Time
}

// NewCredentialRepository creates a new CredentialRepository.
func NewCredentialRepository(db DB) repository.CredentialRepository {
	return &credentialRepository{
		db:      db,
		builder: newBuilder(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (r *credentialRepository) Create(ctx context.Context, cred *model.RefreshCredential) error {
	stmt, args, err := r.insertCredential(cred).ToSql()
	if err != nil {
		return fmt.Errorf("build insert credential sql: %w", err)
	}

	if _, err := r.db.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert credential: %w", err)
	}
	return nil
}

func (r *credentialRepository) insertCredential(cred *model.RefreshCredential) squirrel.InsertBuilder {
	return r.builder.Insert("refresh_credentials").
		Columns(credentialColumns...).
		Values(
			cred.ID(),
			cred.PrincipalID(),
			cred.TokenHash(),
			cred.DeviceID(),
			cred.IssuedAt(),
			cred.ExpiresAt(),
			cred.Revoked(),
			cred.RevokedAt(),
			nullableString(cred.RevokedReason()),
			nullableString(cred.RevokedBy()),
			cred.ReplacedBy(),
			cred.RotatedAt(),
		)
}

func (r *credentialRepository) FindByTokenHash(ctx context.Context, hash string) (*model.RefreshCredential, error) {
	return r.findOne(ctx, squirrel.Eq{"token_hash": hash})
}

func (r *credentialRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.RefreshCredential, error) {
	return r.findOne(ctx, squirrel.Eq{"id": id})
}

func (r *credentialRepository) findOne(ctx context.Context, pred any) (*model.RefreshCredential, error) {
	stmt, args, err := r.builder.Select(credentialColumns...).
		From("refresh_credentials").
		Where(pred).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select credential sql: %w", err)
	}

	row := r.db.QueryRow(ctx, stmt, args...)
	cred, err := scanCredential(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("select credential: %w", err)
	}
	return cred, nil
}

// Rotate performs the conditional state transition that makes rotation
// exactly-once. The UPDATE only matches while replaced_by is unset and
// the row is unrevoked, so of any number of racing callers (including
// callers in other process instances) exactly one sees a row affected;
// losers get ErrStaleTransition. The successor insert rides the same
// transaction so a crash cannot leave a consumed credential with no
// successor.
func (r *credentialRepository) Rotate(ctx context.Context, id uuid.UUID, successor *model.RefreshCredential) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin rotate tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	stmt, args, err := r.builder.Update("refresh_credentials").
		Set("replaced_by", successor.ID()).
		Set("rotated_at", r.now()).
		Where(squirrel.Eq{"id": id, "revoked": false}).
		Where("replaced_by IS NULL").
		ToSql()
	if err != nil {
		return fmt.Errorf("build rotate sql: %w", err)
	}

	tag, err := tx.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("mark credential rotated: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrStaleTransition
	}

	insertStmt, insertArgs, err := r.insertCredential(successor).ToSql()
	if err != nil {
		return fmt.Errorf("build insert successor sql: %w", err)
	}
	if _, err := tx.Exec(ctx, insertStmt, insertArgs...); err != nil {
		return fmt.Errorf("insert successor credential: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit rotate tx: %w", err)
	}
	committed = true
	return nil
}

func (r *credentialRepository) Revoke(ctx context.Context, id uuid.UUID, reason, actor string) error {
	// Guarded on revoked = false so a second revocation never overwrites
	// the original reason; zero rows affected means already revoked.
	stmt, args, err := r.builder.Update("refresh_credentials").
		Set("revoked", true).
		Set("revoked_at", r.now()).
		Set("revoked_reason", reason).
		Set("revoked_by", actor).
		Where(squirrel.Eq{"id": id, "revoked": false}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build revoke sql: %w", err)
	}

	if _, err := r.db.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("revoke credential: %w", err)
	}
	return nil
}

func (r *credentialRepository) RevokeChain(ctx context.Context, id uuid.UUID, reason, actor string) (int, error) {
	revoked := 0
	next := &id

	// Walk replaced_by links forward from the presented credential. The
	// chain is finite (each rotation appends exactly one successor) and
	// per-link revocation is idempotent, so a concurrent walk is safe.
	for next != nil {
		cred, err := r.FindByID(ctx, *next)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				break
			}
			return revoked, err
		}

		if !cred.Revoked() {
			if err := r.Revoke(ctx, cred.ID(), reason, actor); err != nil {
				return revoked, err
			}
			revoked++
		}

		next = cred.ReplacedBy()
	}

	return revoked, nil
}

func (r *credentialRepository) RevokeAllForPrincipal(ctx context.Context, principalID uuid.UUID, reason, actor string) (int, error) {
	stmt, args, err := r.builder.Update("refresh_credentials").
		Set("revoked", true).
		Set("revoked_at", r.now()).
		Set("revoked_reason", reason).
		Set("revoked_by", actor).
		Where(squirrel.Eq{"principal_id": principalID, "revoked": false}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build revoke all sql: %w", err)
	}

	tag, err := r.db.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("revoke all credentials: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *credentialRepository) DeleteExpired(ctx context.Context, retention time.Duration) (int, error) {
	cutoff := r.now().Add(-retention)

	// Only rows expired beyond the retention window qualify; an expired
	// row cannot win the rotation CAS, so nothing is deleted
	// mid-transition.
	stmt, args, err := r.builder.Delete("refresh_credentials").
		Where(squirrel.Lt{"expires_at": cutoff}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete expired sql: %w", err)
	}

	tag, err := r.db.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("delete expired credentials: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func scanCredential(row pgx.Row) (*model.RefreshCredential, error) {
	var c credentialRow
	if err := row.Scan(
		&c.ID,
		&c.PrincipalID,
		&c.TokenHash,
		&c.DeviceID,
		&c.IssuedAt,
		&c.ExpiresAt,
		&c.Revoked,
		&c.RevokedAt,
		&c.RevokedReason,
		&c.RevokedBy,
		&c.ReplacedBy,
		&c.RotatedAt,
	); err != nil {
		return nil, err
	}
	return c.toModel(), nil
}
