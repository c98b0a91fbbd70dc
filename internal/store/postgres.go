package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/aozorabiz/kaisha-intel/internal/model"
)

// Pool is the pgx pool surface the store uses, narrow enough for pgxmock.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"get_company_for_user": `SELECT c.id, c.name, c.website, c.prefecture, c.city, c.address, c.industry
	                         FROM profiles p JOIN companies c ON c.id = p.company_id WHERE p.user_id = $1`,
	"get_session_user":    `SELECT user_id FROM sessions WHERE token = $1 AND expires_at > now()`,
	"get_dashboard_cache": `SELECT data, updated_at FROM dashboard_data WHERE user_id = $1 AND company_id = $2 AND data_type = $3 AND updated_at > $4`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool, mainly for tests.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS companies (
	id                   TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
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
	retrieved_info       JSONB,
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS profiles (
	user_id    TEXT PRIMARY KEY,
	company_id TEXT REFERENCES companies(id),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS sessions (
	token      TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS dashboard_data (
	user_id    TEXT NOT NULL,
	company_id TEXT NOT NULL,
	data_type  TEXT NOT NULL,
	data       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (user_id, company_id, data_type)
);

CREATE INDEX IF NOT EXISTS idx_profiles_company_id ON profiles(company_id);
CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);
CREATE INDEX IF NOT EXISTS idx_dashboard_data_expires_at ON dashboard_data(expires_at);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) UpdateCompanyIntel(ctx context.Context, companyID string, result *model.CompanyIntel) error {
	retrievedJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal retrieved info")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE companies SET
		   industry = $1, employee_count = $2, annual_revenue = $3,
		   name_kana = $4, established_date = $5, representative_name = $6,
		   phone = $7, fax = $8, business_description = $9,
		   capital = $10, fiscal_year_end = $11, retrieved_info = $12,
		   updated_at = $13
		 WHERE id = $14`,
		result.Industry, result.EmployeeCount, result.AnnualRevenue,
		result.CompanyNameKana, result.EstablishedDate, result.RepresentativeName,
		result.Phone, result.Fax, result.BusinessDescription,
		result.Capital, result.FiscalYearEnd, retrievedJSON,
		time.Now().UTC(), companyID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update company intel %s", companyID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("company not found: %s", companyID)
	}
	return nil
}

func (s *PostgresStore) GetCompanyForUser(ctx context.Context, userID string) (*model.Company, error) {
	var c model.Company
	var industry *string
	err := s.pool.QueryRow(ctx,
		`SELECT c.id, c.name, c.website, c.prefecture, c.city, c.address, c.industry
		 FROM profiles p JOIN companies c ON c.id = p.company_id
		 WHERE p.user_id = $1`,
		userID,
	).Scan(&c.ID, &c.Name, &c.Website, &c.Prefecture, &c.City, &c.Address, &industry)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get company for user %s", userID)
	}
	if industry != nil {
		c.Industry = *industry
	}
	return &c, nil
}

func (s *PostgresStore) GetDashboardCache(ctx context.Context, userID, companyID, dataType string, maxAge time.Duration) (json.RawMessage, time.Time, bool, error) {
	cutoff := time.Now().UTC().Add(-maxAge)

	var data []byte
	var updatedAt time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT data, updated_at FROM dashboard_data
		 WHERE user_id = $1 AND company_id = $2 AND data_type = $3 AND updated_at > $4`,
		userID, companyID, dataType, cutoff,
	).Scan(&data, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, time.Time{}, false, nil
		}
		return nil, time.Time{}, false, eris.Wrap(err, "postgres: get dashboard cache")
	}
	return data, updatedAt, true, nil
}

func (s *PostgresStore) SetDashboardCache(ctx context.Context, userID, companyID, dataType string, data json.RawMessage, expiresAt time.Time) error {
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO dashboard_data (user_id, company_id, data_type, data, updated_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (user_id, company_id, data_type) DO UPDATE SET data = $4, updated_at = $5, expires_at = $6`,
		userID, companyID, dataType, []byte(data), now, expiresAt,
	)
	return eris.Wrap(err, "postgres: set dashboard cache")
}

func (s *PostgresStore) DeleteDashboardCache(ctx context.Context, userID, companyID string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM dashboard_data WHERE user_id = $1 AND company_id = $2`,
		userID, companyID,
	)
	return eris.Wrap(err, "postgres: delete dashboard cache")
}

func (s *PostgresStore) CreateSession(ctx context.Context, userID string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sessions (token, user_id, expires_at) VALUES ($1, $2, $3)`,
		token, userID, time.Now().UTC().Add(ttl),
	)
	if err != nil {
		return "", eris.Wrapf(err, "postgres: create session for %s", userID)
	}
	return token, nil
}

func (s *PostgresStore) PurgeExpired(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM dashboard_data WHERE expires_at < now()`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: purge dashboard cache")
	}
	purged := tag.RowsAffected()

	tag, err = s.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at < now()`)
	if err != nil {
		return purged, eris.Wrap(err, "postgres: purge sessions")
	}
	return purged + tag.RowsAffected(), nil
}

func (s *PostgresStore) GetSessionUser(ctx context.Context, token string) (string, error) {
	var userID string
	err := s.pool.QueryRow(ctx,
		`SELECT user_id FROM sessions WHERE token = $1 AND expires_at > now()`,
		token,
	).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", eris.Wrap(err, "postgres: get session user")
	}
	return userID, nil
}
