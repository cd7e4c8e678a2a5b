package db

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockedPostgres returns an adapter backed by sqlmock so adapter logic can
// be exercised without a server.
func mockedPostgres(t *testing.T) (*PostgresAdapter, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })
	return &PostgresAdapter{db: mockDB}, mock
}

// validatePrefixLen is the fixed length of "PREPARE <name> AS ": the name is
// "sqlscout_" plus a dashless UUID, so the prefix never varies.
const validatePrefixLen = len("PREPARE ") + len("sqlscout_") + 32 + len(" AS ")

func TestPostgresAdapter_Exec(t *testing.T) {
	adapter, mock := mockedPostgres(t)

	mock.ExpectQuery("SELECT id, email FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email"}).
			AddRow(int64(1), "a@example.com").
			AddRow(int64(2), "b@example.com"))

	res, err := adapter.Exec(context.Background(), "SELECT id, email FROM users")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "email"}, res.Columns)
	assert.Equal(t, int64(2), res.RowCount)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "a@example.com", res.Rows[0][1])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAdapter_ExecError(t *testing.T) {
	adapter, mock := mockedPostgres(t)

	mock.ExpectQuery("SELECT broken").
		WillReturnError(&pgconn.PgError{
			Code:     "42703",
			Message:  `column "broken" does not exist`,
			Position: 8,
		})

	_, err := adapter.Exec(context.Background(), "SELECT broken")
	require.Error(t, err)

	var sqlErr *SQLError
	require.ErrorAs(t, err, &sqlErr)
	assert.Equal(t, "42703", sqlErr.Code)
	assert.Equal(t, 8, sqlErr.Position)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAdapter_TableColumns(t *testing.T) {
	adapter, mock := mockedPostgres(t)

	mock.ExpectQuery("information_schema.columns").
		WillReturnRows(sqlmock.NewRows([]string{"table_schema", "table_name", "column_name"}).
			AddRow("public", "users", "id").
			AddRow("public", "users", "email").
			AddRow("audit", "users", "changed_at"))

	rows, err := adapter.TableColumns(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "public", rows[0].Schema)
	assert.Equal(t, "email", rows[1].Column)
	assert.Equal(t, "audit", rows[2].Schema)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAdapter_Validate(t *testing.T) {
	adapter, mock := mockedPostgres(t)

	mock.ExpectExec(`PREPARE sqlscout_[0-9a-f]{32} AS SELECT \* FROM users`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DEALLOCATE "sqlscout_[0-9a-f]{32}"`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := adapter.Validate(context.Background(), "SELECT * FROM users")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAdapter_ValidateSuppressesParameterCodes(t *testing.T) {
	for _, code := range []string{"42P18", "42P08"} {
		adapter, mock := mockedPostgres(t)

		mock.ExpectExec("PREPARE sqlscout_").
			WillReturnError(&pgconn.PgError{Code: code, Message: "could not determine data type"})

		err := adapter.Validate(context.Background(), "SELECT * FROM users WHERE id = $1")
		assert.NoError(t, err, "code %s must not surface", code)
	}
}

func TestPostgresAdapter_ValidateShiftsErrorPosition(t *testing.T) {
	adapter, mock := mockedPostgres(t)

	// The server reports positions into "PREPARE <name> AS <stmt>"; the
	// caller must see a position into <stmt> alone.
	mock.ExpectExec("PREPARE sqlscout_").
		WillReturnError(&pgconn.PgError{
			Code:     "42P01",
			Message:  `relation "missing" does not exist`,
			Position: int32(validatePrefixLen + 15),
		})

	err := adapter.Validate(context.Background(), "SELECT * FROM missing")
	require.Error(t, err)

	var sqlErr *SQLError
	require.ErrorAs(t, err, &sqlErr)
	assert.Equal(t, "42P01", sqlErr.Code)
	assert.Equal(t, 15, sqlErr.Position)
}

func TestPostgresAdapter_ValidatePositionInsidePrefix(t *testing.T) {
	adapter, mock := mockedPostgres(t)

	// A position inside the injected prefix cannot map onto the caller's
	// SQL; it degrades to "no position" rather than a bogus offset.
	mock.ExpectExec("PREPARE sqlscout_").
		WillReturnError(&pgconn.PgError{
			Code:     "42601",
			Message:  "syntax error",
			Position: 3,
		})

	err := adapter.Validate(context.Background(), "SELECT 1")
	require.Error(t, err)

	var sqlErr *SQLError
	require.ErrorAs(t, err, &sqlErr)
	assert.Zero(t, sqlErr.Position)
}

func TestPostgresAdapter_NotConnected(t *testing.T) {
	adapter := NewPostgresAdapter()

	_, err := adapter.Exec(context.Background(), "SELECT 1")
	assert.Error(t, err)

	_, err = adapter.TableColumns(context.Background())
	assert.Error(t, err)

	assert.Error(t, adapter.Validate(context.Background(), "SELECT 1"))
	assert.NoError(t, adapter.Close())
}
