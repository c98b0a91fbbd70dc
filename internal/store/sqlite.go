package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/aozorabiz/kaisha-intel/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It is the default
// for single-node and development setups.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS companies (
	id                   TEXT PRIMARY KEY,
	name                 TEXT NOT NULL DEFAULT '',
	website              TEXT NOT NULL DEFAULT '',
	prefecture           TEXT NOT NULL DEFAULT '',
	city                 TEXT NOT NULL DEFAULT '',
	address              TEXT NOT NULL DEFAULT '',
	industry             TEXT,
	employee_count       TEXT,
	annual_revenue       TEXT,
	name_kana            TEXT,
	established_date     TEXT,
	representative_name  TEXT,
	phone                TEXT,
	fax                  TEXT,
	business_description TEXT,
	capital              TEXT,
	fiscal_year_end      TEXT,
	retrieved_info       TEXT,
	updated_at           DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS profiles (
	user_id    TEXT PRIMARY KEY,
	company_id TEXT REFERENCES companies(id),
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS sessions (
	token      TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	expires_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS dashboard_data (
	user_id    TEXT NOT NULL,
	company_id TEXT NOT NULL,
	data_type  TEXT NOT NULL,
	data       TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now')),
	expires_at DATETIME NOT NULL,
	PRIMARY KEY (user_id, company_id, data_type)
);

CREATE INDEX IF NOT EXISTS idx_profiles_company_id ON profiles(company_id);
CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);
CREATE INDEX IF NOT EXISTS idx_dashboard_data_expires_at ON dashboard_data(expires_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpdateCompanyIntel(ctx context.Context, companyID string, result *model.CompanyIntel) error {
	retrievedJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal retrieved info")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE companies SET
		   industry = ?, employee_count = ?, annual_revenue = ?,
		   name_kana = ?, established_date = ?, representative_name = ?,
		   phone = ?, fax = ?, business_description = ?,
		   capital = ?, fiscal_year_end = ?, retrieved_info = ?,
		   updated_at = ?
		 WHERE id = ?`,
		result.Industry, result.EmployeeCount, result.AnnualRevenue,
		result.CompanyNameKana, result.EstablishedDate, result.RepresentativeName,
		result.Phone, result.Fax, result.BusinessDescription,
		result.Capital, result.FiscalYearEnd, string(retrievedJSON),
		time.Now().UTC(), companyID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update company intel %s", companyID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("company not found: %s", companyID)
	}
	return nil
}

func (s *SQLiteStore) GetCompanyForUser(ctx context.Context, userID string) (*model.Company, error) {
	var c model.Company
	var industry sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT c.id, c.name, c.website, c.prefecture, c.city, c.address, c.industry
		 FROM profiles p JOIN companies c ON c.id = p.company_id
		 WHERE p.user_id = ?`,
		userID,
	).Scan(&c.ID, &c.Name, &c.Website, &c.Prefecture, &c.City, &c.Address, &industry)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get company for user %s", userID)
	}
	c.Industry = industry.String
	return &c, nil
}

func (s *SQLiteStore) GetDashboardCache(ctx context.Context, userID, companyID, dataType string, maxAge time.Duration) (json.RawMessage, time.Time, bool, error) {
	cutoff := time.Now().UTC().Add(-maxAge)

	var data string
	var updatedAt time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT data, updated_at FROM dashboard_data
		 WHERE user_id = ? AND company_id = ? AND data_type = ? AND updated_at > ?`,
		userID, companyID, dataType, cutoff,
	).Scan(&data, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, time.Time{}, false, nil
		}
		return nil, time.Time{}, false, eris.Wrap(err, "sqlite: get dashboard cache")
	}
	return json.RawMessage(data), updatedAt, true, nil
}

func (s *SQLiteStore) SetDashboardCache(ctx context.Context, userID, companyID, dataType string, data json.RawMessage, expiresAt time.Time) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dashboard_data (user_id, company_id, data_type, data, updated_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, company_id, data_type) DO UPDATE SET
		   data = excluded.data, updated_at = excluded.updated_at, expires_at = excluded.expires_at`,
		userID, companyID, dataType, string(data), now, expiresAt,
	)
	return eris.Wrap(err, "sqlite: set dashboard cache")
}

func (s *SQLiteStore) DeleteDashboardCache(ctx context.Context, userID, companyID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM dashboard_data WHERE user_id = ? AND company_id = ?`,
		userID, companyID,
	)
	return eris.Wrap(err, "sqlite: delete dashboard cache")
}

func (s *SQLiteStore) CreateSession(ctx context.Context, userID string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (token, user_id, expires_at) VALUES (?, ?, ?)`,
		token, userID, time.Now().UTC().Add(ttl),
	)
	if err != nil {
		return "", eris.Wrapf(err, "sqlite: create session for %s", userID)
	}
	return token, nil
}

func (s *SQLiteStore) PurgeExpired(ctx context.Context) (int64, error) {
	now := time.Now().UTC()

	res, err := s.db.ExecContext(ctx, `DELETE FROM dashboard_data WHERE expires_at < ?`, now)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: purge dashboard cache")
	}
	purged, _ := res.RowsAffected()

	res, err = s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < ?`, now)
	if err != nil {
		return purged, eris.Wrap(err, "sqlite: purge sessions")
	}
	n, _ := res.RowsAffected()
	return purged + n, nil
}

func (s *SQLiteStore) GetSessionUser(ctx context.Context, token string) (string, error) {
	var userID string
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id FROM sessions WHERE token = ? AND expires_at > ?`,
		token, time.Now().UTC(),
	).Scan(&userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", eris.Wrap(err, "sqlite: get session user")
	}
	return userID, nil
}
