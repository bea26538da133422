package store

import (
	"context"
	"fmt"

	"github.com/digitalentity/aientity/internal/domain"
)

// InsertMemoryFragments persists the fragments an observer derived from a
// life's activity at the moment of death.
func (s *Store) InsertMemoryFragments(ctx context.Context, lifeNumber int64, texts []string) error {
	if len(texts) == 0 {
		return nil
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin memory fragment insert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO memory_fragments (life_number, text) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare memory fragment insert: %w", err)
	}
	defer stmt.Close()

	for _, text := range texts {
		if _, err := stmt.ExecContext(ctx, lifeNumber, text); err != nil {
			return fmt.Errorf("failed to insert memory fragment for life %d: %w", lifeNumber, err)
		}
	}
	return tx.Commit()
}

// RandomFragments returns up to n fragments drawn at random across all
// prior lives, for presentation to a freshly birthed agent (§3: "a random
// 1-10 subset of all prior fragments"). SQLite's RANDOM() ordering is
// sufficient here — this is flavor text, not a fairness-critical draw.
func (s *Store) RandomFragments(ctx context.Context, n int) ([]domain.MemoryFragment, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, life_number, text FROM memory_fragments ORDER BY RANDOM() LIMIT ?
	`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to select random memory fragments: %w", err)
	}
	defer rows.Close()

	var out []domain.MemoryFragment
	for rows.Next() {
		var f domain.MemoryFragment
		if err := rows.Scan(&f.ID, &f.LifeNumber, &f.Text); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// FragmentCount reports how many fragments exist in total, so callers can
// decide whether a rebirth has any history to draw from at all.
func (s *Store) FragmentCount(ctx context.Context) (int, error) {
	var n int
	if err := s.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM memory_fragments").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count memory fragments: %w", err)
	}
	return n, nil
}
