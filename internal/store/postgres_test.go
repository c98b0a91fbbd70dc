package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aozorabiz/kaisha-intel/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresWithPool(mock), mock
}

func TestPostgresStore_GetCompanyForUser_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM profiles p JOIN companies c`).
		WithArgs("no-such-user").
		WillReturnError(pgx.ErrNoRows)

	company, err := s.GetCompanyForUser(context.Background(), "no-such-user")
	require.NoError(t, err)
	assert.Nil(t, company)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetCompanyForUser(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	industry := "製造業"
	mock.ExpectQuery(`FROM profiles p JOIN companies c`).
		WithArgs("u1").
		WillReturnRows(pgxmock.NewRows(
			[]string{"id", "name", "website", "prefecture", "city", "address", "industry"}).
			AddRow("c1", "青空商事", "https://aozora.example.jp", "愛知県", "名古屋市", "中区1-2-3", &industry))

	company, err := s.GetCompanyForUser(context.Background(), "u1")
	require.NoError(t, err)
	require.NotNil(t, company)
	assert.Equal(t, "c1", company.ID)
	assert.Equal(t, "製造業", company.Industry)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateCompanyIntel(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	industry := "製造業"
	result := &model.CompanyIntel{Industry: &industry}

	mock.ExpectExec(`UPDATE companies SET`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), "c1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.UpdateCompanyIntel(context.Background(), "c1", result))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateCompanyIntel_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE companies SET`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateCompanyIntel(context.Background(), "missing", &model.CompanyIntel{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "company not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetDashboardCache_Miss(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT data, updated_at FROM dashboard_data`).
		WithArgs("u1", "c1", "local_info", pgxmock.AnyArg()).
		WillReturnError(pgx.ErrNoRows)

	_, _, found, err := s.GetDashboardCache(context.Background(), "u1", "c1", "local_info", 30*time.Minute)
	require.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetDashboardCache_Hit(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	updated := time.Now().UTC().Add(-5 * time.Minute)
	mock.ExpectQuery(`SELECT data, updated_at FROM dashboard_data`).
		WithArgs("u1", "c1", "local_info", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"data", "updated_at"}).
			AddRow([]byte(`{"events":[]}`), updated))

	data, updatedAt, found, err := s.GetDashboardCache(context.Background(), "u1", "c1", "local_info", 30*time.Minute)
	require.NoError(t, err)
	assert.True(t, found)
	assert.JSONEq(t, `{"events":[]}`, string(data))
	assert.Equal(t, updated, updatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SetDashboardCache_Upsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`ON CONFLICT \(user_id, company_id, data_type\) DO UPDATE`).
		WithArgs("u1", "c1", "local_info", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.SetDashboardCache(context.Background(), "u1", "c1", "local_info",
		[]byte(`{}`), time.Now().Add(30*time.Minute))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteDashboardCache(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM dashboard_data`).
		WithArgs("u1", "c1").
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	require.NoError(t, s.DeleteDashboardCache(context.Background(), "u1", "c1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetSessionUser(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT user_id FROM sessions`).
		WithArgs("tok-1").
		WillReturnRows(pgxmock.NewRows([]string{"user_id"}).AddRow("u1"))

	userID, err := s.GetSessionUser(context.Background(), "tok-1")
	require.NoError(t, err)
	assert.Equal(t, "u1", userID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetSessionUser_Expired(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT user_id FROM sessions`).
		WithArgs("stale-token").
		WillReturnError(pgx.ErrNoRows)

	userID, err := s.GetSessionUser(context.Background(), "stale-token")
	require.NoError(t, err)
	assert.Empty(t, userID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PurgeExpired(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM dashboard_data WHERE expires_at < now\(\)`).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))
	mock.ExpectExec(`DELETE FROM sessions WHERE expires_at < now\(\)`).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	purged, err := s.PurgeExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), purged)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateSession(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO sessions`).
		WithArgs(pgxmock.AnyArg(), "u1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	token, err := s.CreateSession(context.Background(), "u1", time.Hour)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.NoError(t, mock.ExpectationsWereMet())
}
