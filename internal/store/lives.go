package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/digitalentity/aientity/internal/domain"
)

// CreateLife inserts a new Life row. life_number is caller-assigned
// (max+1, computed under the lifecycle lock) so this call never races
// with itself.
func (s *Store) CreateLife(ctx context.Context, life domain.Life) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO lives (life_number, born_at, bootstrap_mode, model, identity_name, identity_icon, identity_pronoun)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, life.LifeNumber, life.BornAt, life.BootstrapMode, life.Model,
		life.Identity.Name, life.Identity.Icon, life.Identity.Pronoun)
	if err != nil {
		return fmt.Errorf("failed to create life %d: %w", life.LifeNumber, err)
	}
	return nil
}

// CloseLife records died_at/death_cause for a life that has no died_at yet.
func (s *Store) CloseLife(ctx context.Context, lifeNumber int64, diedAt time.Time, cause domain.DeathCause) error {
	res, err := s.DB.ExecContext(ctx, `
		UPDATE lives SET died_at = ?, death_cause = ? WHERE life_number = ? AND died_at IS NULL
	`, diedAt, cause, lifeNumber)
	if err != nil {
		return fmt.Errorf("failed to close life %d: %w", lifeNumber, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("life %d not found or already closed", lifeNumber)
	}
	return nil
}

// SetIdentity records the identity triple/model chosen by the agent on birth.
func (s *Store) SetIdentity(ctx context.Context, lifeNumber int64, identity domain.Identity, model string) error {
	_, err := s.DB.ExecContext(ctx, `
		UPDATE lives SET identity_name = ?, identity_icon = ?, identity_pronoun = ?, model = ? WHERE life_number = ?
	`, identity.Name, identity.Icon, identity.Pronoun, model, lifeNumber)
	if err != nil {
		return fmt.Errorf("failed to set identity for life %d: %w", lifeNumber, err)
	}
	return nil
}

// MaxLifeNumber returns the highest allocated life_number, or 0 if none.
func (s *Store) MaxLifeNumber(ctx context.Context) (int64, error) {
	var n sql.NullInt64
	if err := s.DB.QueryRowContext(ctx, "SELECT MAX(life_number) FROM lives").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to read max life_number: %w", err)
	}
	return n.Int64, nil
}

func scanLife(row interface{ Scan(...any) error }) (domain.Life, error) {
	var life domain.Life
	var diedAt sql.NullTime
	var cause sql.NullString
	if err := row.Scan(&life.LifeNumber, &life.BornAt, &diedAt, &cause, &life.BootstrapMode,
		&life.Model, &life.Identity.Name, &life.Identity.Icon, &life.Identity.Pronoun); err != nil {
		return domain.Life{}, err
	}
	if diedAt.Valid {
		life.DiedAt = &diedAt.Time
	}
	if cause.Valid {
		dc := domain.DeathCause(cause.String)
		life.DeathCause = &dc
	}
	return life, nil
}

const lifeColumns = `life_number, born_at, died_at, death_cause, bootstrap_mode, model, identity_name, identity_icon, identity_pronoun`

// GetLife fetches a single life by number.
func (s *Store) GetLife(ctx context.Context, lifeNumber int64) (domain.Life, error) {
	row := s.DB.QueryRowContext(ctx, "SELECT "+lifeColumns+" FROM lives WHERE life_number = ?", lifeNumber)
	life, err := scanLife(row)
	if err == sql.ErrNoRows {
		return domain.Life{}, fmt.Errorf("life %d not found", lifeNumber)
	}
	if err != nil {
		return domain.Life{}, fmt.Errorf("failed to get life %d: %w", lifeNumber, err)
	}
	return life, nil
}

// RecentDeathCauses returns the death causes of the N most recent closed
// lives, most recent first, used to decide a trauma-based bootstrap
// override on respawn.
func (s *Store) RecentDeathCauses(ctx context.Context, n int) ([]domain.DeathCause, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT death_cause FROM lives WHERE died_at IS NOT NULL ORDER BY life_number DESC LIMIT ?
	`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to read recent death causes: %w", err)
	}
	defer rows.Close()

	var out []domain.DeathCause
	for rows.Next() {
		var cause sql.NullString
		if err := rows.Scan(&cause); err != nil {
			return nil, err
		}
		if cause.Valid {
			out = append(out, domain.DeathCause(cause.String))
		}
	}
	return out, rows.Err()
}
