package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"secure-payment-gateway/internal/core/domain"
	"secure-payment-gateway/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TeamRepo implements ports.TeamRepository.
type TeamRepo struct {
	pool Pool
}

// NewTeamRepo creates a new TeamRepo.
func NewTeamRepo(pool Pool) *TeamRepo {
	return &TeamRepo{pool: pool}
}

// currencies the URLs/Limits/Features/SupportedCurrencies fields round-trip
// through JSONB columns; teamRow mirrors the wire shape for scanning.
type teamRow struct {
	urls       []byte
	currencies []byte
	limits     []byte
	features   []byte
}

func encodeTeam(t *domain.Team) (urls, currencies, limits, features []byte, err error) {
	if urls, err = json.Marshal(t.URLs); err != nil {
		return
	}
	if currencies, err = json.Marshal(t.SupportedCurrencies); err != nil {
		return
	}
	if limits, err = json.Marshal(t.Limits); err != nil {
		return
	}
	if features, err = json.Marshal(t.Features); err != nil {
		return
	}
	return
}

func decodeTeam(t *domain.Team, row teamRow) error {
	if err := json.Unmarshal(row.urls, &t.URLs); err != nil {
		return fmt.Errorf("decode urls: %w", err)
	}
	if err := json.Unmarshal(row.currencies, &t.SupportedCurrencies); err != nil {
		return fmt.Errorf("decode supported_currencies: %w", err)
	}
	if err := json.Unmarshal(row.limits, &t.Limits); err != nil {
		return fmt.Errorf("decode limits: %w", err)
	}
	if err := json.Unmarshal(row.features, &t.Features); err != nil {
		return fmt.Errorf("decode features: %w", err)
	}
	return nil
}

const teamColumns = `id, slug, password_hash, api_secret_enc, name, contact_email, webhook_secret_enc,
	urls, supported_currencies, limits, features,
	failed_auth_attempts, locked_until, is_active, created_at, updated_at`

// Create inserts a new team.
func (r *TeamRepo) Create(ctx context.Context, t *domain.Team) error {
	urls, currencies, limits, features, err := encodeTeam(t)
	if err != nil {
		return fmt.Errorf("encode team: %w", err)
	}
	query := `INSERT INTO teams (` + teamColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`
	_, err = r.pool.Exec(ctx, query,
		t.ID, t.Slug, t.PasswordHash, t.APISecretEnc, t.Name, t.ContactEmail, t.WebhookSecretEnc,
		urls, currencies, limits, features,
		t.FailedAuthAttempts, t.LockedUntil, t.IsActive, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert team: %w", err)
	}
	return nil
}

func (r *TeamRepo) scanTeam(row pgx.Row) (*domain.Team, error) {
	t := &domain.Team{}
	var tr teamRow
	err := row.Scan(
		&t.ID, &t.Slug, &t.PasswordHash, &t.APISecretEnc, &t.Name, &t.ContactEmail, &t.WebhookSecretEnc,
		&tr.urls, &tr.currencies, &tr.limits, &tr.features,
		&t.FailedAuthAttempts, &t.LockedUntil, &t.IsActive, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan team: %w", err)
	}
	if err := decodeTeam(t, tr); err != nil {
		return nil, err
	}
	return t, nil
}

// GetByID fetches a team by its UUID.
func (r *TeamRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Team, error) {
	query := `SELECT ` + teamColumns + ` FROM teams WHERE id = $1`
	return r.scanTeam(r.pool.QueryRow(ctx, query, id))
}

// GetBySlug fetches a team by its public slug.
func (r *TeamRepo) GetBySlug(ctx context.Context, slug string) (*domain.Team, error) {
	query := `SELECT ` + teamColumns + ` FROM teams WHERE slug = $1`
	return r.scanTeam(r.pool.QueryRow(ctx, query, slug))
}

// Update persists the mutable fields of a team record.
func (r *TeamRepo) Update(ctx context.Context, t *domain.Team) error {
	urls, currencies, limits, features, err := encodeTeam(t)
	if err != nil {
		return fmt.Errorf("encode team: %w", err)
	}
	query := `UPDATE teams SET name=$1, contact_email=$2, webhook_secret_enc=$3,
		urls=$4, supported_currencies=$5, limits=$6, features=$7,
		is_active=$8, updated_at=NOW()
		WHERE id=$9`
	_, err = r.pool.Exec(ctx, query,
		t.Name, t.ContactEmail, t.WebhookSecretEnc,
		urls, currencies, limits, features,
		t.IsActive, t.ID,
	)
	if err != nil {
		return fmt.Errorf("update team: %w", err)
	}
	return nil
}

// IncrementFailedAttempts bumps the lockout counter; when it reaches
// threshold the caller supplies lockUntil to set on the same row.
func (r *TeamRepo) IncrementFailedAttempts(ctx context.Context, teamID uuid.UUID, lockUntil *time.Time) (int, error) {
	query := `UPDATE teams SET failed_auth_attempts = failed_auth_attempts + 1,
		locked_until = COALESCE($2, locked_until), updated_at = NOW()
		WHERE id = $1
		RETURNING failed_auth_attempts`
	var count int
	err := r.pool.QueryRow(ctx, query, teamID, lockUntil).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("increment failed attempts: %w", err)
	}
	return count, nil
}

// ResetFailedAttempts clears the lockout counter after a successful login.
func (r *TeamRepo) ResetFailedAttempts(ctx context.Context, teamID uuid.UUID) error {
	query := `UPDATE teams SET failed_auth_attempts = 0, locked_until = NULL, updated_at = NOW() WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, teamID)
	if err != nil {
		return fmt.Errorf("reset failed attempts: %w", err)
	}
	return nil
}

var _ ports.TeamRepository = (*TeamRepo)(nil)
