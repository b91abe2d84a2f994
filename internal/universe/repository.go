// Package universe stores the scan universe: the securities the nightly
// pipeline fetches, validates and scores.
package universe

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/vigil/internal/domain"
)

const securitiesColumns = `symbol, name, sector, active, created_at, updated_at`

const schema = `
CREATE TABLE IF NOT EXISTS securities (
    symbol     TEXT PRIMARY KEY,
    name       TEXT NOT NULL DEFAULT '',
    sector     TEXT NOT NULL DEFAULT '',
    active     INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_securities_active ON securities(active);
`

// Repository handles security database operations
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a security repository and ensures its schema
func NewRepository(db *sql.DB, log zerolog.Logger) (*Repository, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("creating securities schema: %w", err)
	}
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "universe").Logger(),
	}, nil
}

// Upsert inserts or updates a security, preserving created_at on update
func (r *Repository) Upsert(security domain.Security) error {
	now := time.Now().UTC()
	query := `
		INSERT INTO securities (symbol, name, sector, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET
			name = excluded.name,
			sector = excluded.sector,
			active = excluded.active,
			updated_at = excluded.updated_at`

	symbol := normalizeSymbol(security.Symbol)
	if symbol == "" {
		return fmt.Errorf("security symbol is empty")
	}
	_, err := r.db.Exec(query, symbol, security.Name, security.Sector, security.Active, now, now)
	if err != nil {
		return fmt.Errorf("upserting security %s: %w", symbol, err)
	}
	return nil
}

// Seed inserts any of the given securities not already present. Existing
// rows are left untouched so manual edits survive restarts.
func (r *Repository) Seed(securities []domain.Security) error {
	now := time.Now().UTC()
	query := `
		INSERT INTO securities (symbol, name, sector, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol) DO NOTHING`

	inserted := 0
	for _, s := range securities {
		symbol := normalizeSymbol(s.Symbol)
		if symbol == "" {
			continue
		}
		res, err := r.db.Exec(query, symbol, s.Name, s.Sector, s.Active, now, now)
		if err != nil {
			return fmt.Errorf("seeding security %s: %w", symbol, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}
	if inserted > 0 {
		r.log.Info().Int("inserted", inserted).Msg("Universe seeded")
	}
	return nil
}

// GetBySymbol returns a security by symbol, or nil when not found
func (r *Repository) GetBySymbol(symbol string) (*domain.Security, error) {
	query := "SELECT " + securitiesColumns + " FROM securities WHERE symbol = ?"
	rows, err := r.db.Query(query, normalizeSymbol(symbol))
	if err != nil {
		return nil, fmt.Errorf("querying security by symbol: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	security, err := scanSecurity(rows)
	if err != nil {
		return nil, err
	}
	return &security, nil
}

// GetAllActive returns the active universe ordered by symbol
func (r *Repository) GetAllActive() ([]domain.Security, error) {
	query := "SELECT " + securitiesColumns + " FROM securities WHERE active = 1 ORDER BY symbol"
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("querying active securities: %w", err)
	}
	defer rows.Close()

	var out []domain.Security
	for rows.Next() {
		security, err := scanSecurity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, security)
	}
	return out, rows.Err()
}

// SetActive flips a security's active flag
func (r *Repository) SetActive(symbol string, active bool) error {
	res, err := r.db.Exec(
		"UPDATE securities SET active = ?, updated_at = ? WHERE symbol = ?",
		active, time.Now().UTC(), normalizeSymbol(symbol))
	if err != nil {
		return fmt.Errorf("updating active flag for %s: %w", symbol, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("security %s not found", symbol)
	}
	return nil
}

// Count returns total and active security counts
func (r *Repository) Count() (total, active int, err error) {
	err = r.db.QueryRow(
		"SELECT COUNT(*), COALESCE(SUM(active), 0) FROM securities").Scan(&total, &active)
	if err != nil {
		return 0, 0, fmt.Errorf("counting securities: %w", err)
	}
	return total, active, nil
}

func scanSecurity(rows *sql.Rows) (domain.Security, error) {
	var s domain.Security
	if err := rows.Scan(&s.Symbol, &s.Name, &s.Sector, &s.Active, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return domain.Security{}, fmt.Errorf("scanning security: %w", err)
	}
	return s, nil
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
