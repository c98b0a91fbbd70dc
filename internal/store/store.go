// Package store persists companies, profiles, sessions and the dashboard
// cache, with Postgres and SQLite drivers behind one interface.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aozorabiz/kaisha-intel/internal/model"
)

// Store defines the persistence interface for the intel service.
type Store interface {
	// Companies
	UpdateCompanyIntel(ctx context.Context, companyID string, result *model.CompanyIntel) error
	GetCompanyForUser(ctx context.Context, userID string) (*model.Company, error)

	// Dashboard cache. Get treats rows older than maxAge as misses and
	// reports found=false for them.
	GetDashboardCache(ctx context.Context, userID, companyID, dataType string, maxAge time.Duration) (json.RawMessage, time.Time, bool, error)
	SetDashboardCache(ctx context.Context, userID, companyID, dataType string, data json.RawMessage, expiresAt time.Time) error
	DeleteDashboardCache(ctx context.Context, userID, companyID string) error

	// Sessions. CreateSession mints a new token for the user; GetSessionUser
	// returns "" when the token is unknown or expired.
	CreateSession(ctx context.Context, userID string, ttl time.Duration) (string, error)
	GetSessionUser(ctx context.Context, token string) (string, error)

	// PurgeExpired removes expired dashboard cache rows and sessions,
	// returning the number of rows deleted.
	PurgeExpired(ctx context.Context) (int64, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
