package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mahmoud0nasser/Agentic-Banking-Churn-Chatbot/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_GetCustomer(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	rows := pgxmock.NewRows(model.CustomerColumns).
		AddRow(int64(15634602), "Hargrave", 619.0, "France", "Female", 42, 2, 0.0, 1, 1, 1, 101348.88, 1)
	mock.ExpectQuery(`SELECT CustomerId, Surname, .* FROM customers WHERE customerid = \$1`).
		WithArgs(int64(15634602)).
		WillReturnRows(rows)

	c, err := s.GetCustomer(context.Background(), "15634602")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "15634602", c.CustomerID)
	assert.Equal(t, "Hargrave", c.Surname)
	assert.True(t, c.HasCrCard)
	assert.Equal(t, 1, c.Exited)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetCustomer_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM customers WHERE customerid = \$1`).
		WithArgs(int64(12345678)).
		WillReturnError(pgx.ErrNoRows)

	c, err := s.GetCustomer(context.Background(), "12345678")
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ImportCustomers(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_customers"`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_customers"}, foldedCustomerColumns()).WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "customers" .* ON CONFLICT \("customerid"\) DO UPDATE SET`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	n, err := s.ImportCustomers(context.Background(), sampleCustomers())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Query(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT Geography, AVG\(Age\)`).
		WillReturnRows(pgxmock.NewRows([]string{"geography", "avg"}).
			AddRow("France", 42.5).
			AddRow("Spain", 41.0))

	tbl, err := s.Query(context.Background(), `SELECT Geography, AVG(Age) FROM customers GROUP BY Geography`)
	require.NoError(t, err)
	assert.Equal(t, []string{"geography", "avg"}, tbl.Columns)
	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, "France", tbl.Rows[0][0])
	assert.Equal(t, 42.5, tbl.Rows[0][1])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_QueryError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT bogus`).WillReturnError(&pgconn.PgError{Code: "42703", Message: `column "bogus" does not exist`})

	_, err := s.Query(context.Background(), `SELECT bogus FROM customers`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: query")
	assert.Contains(t, err.Error(), "bogus")
}

func TestPostgresStore_InsertPrediction(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO predictions`).
		WithArgs(model.UnknownCustomer, `{"Age":40}`, 1, 0.81, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.InsertPrediction(context.Background(), model.PredictionRecord{
		CustomerID: model.UnknownCustomer, Features: `{"Age":40}`, Prediction: 1, Probability: 0.81,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertInteraction(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	mock.ExpectExec(`INSERT INTO logs`).
		WithArgs("how many?", "| n |", ts).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.InsertInteraction(context.Background(), model.Interaction{Query: "how many?", Response: "| n |", Timestamp: ts})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ActivitySince(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT\s+\(SELECT COUNT\(\*\) FROM customers\)`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"c", "p", "pc", "mp", "i"}).AddRow(10000, 12, 4, 0.37, 30))

	st, err := s.ActivitySince(context.Background(), time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 10000, st.Customers)
	assert.Equal(t, 12, st.Predictions)
	assert.Equal(t, 4, st.PredictedChurn)
	assert.InDelta(t, 0.37, st.MeanProbability, 0.0001)
	assert.Equal(t, 30, st.Interactions)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateChat(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`INSERT INTO chats .* RETURNING id`).
		WithArgs("Predict churn for...", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))

	c, err := s.CreateChat(context.Background(), "Predict churn for...")
	require.NoError(t, err)
	assert.Equal(t, int64(7), c.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetChat_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, title, created_at FROM chats WHERE id = \$1`).
		WithArgs(int64(42)).
		WillReturnError(pgx.ErrNoRows)

	c, err := s.GetChat(context.Background(), 42)
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteChat_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM chats WHERE id = \$1`).
		WithArgs(int64(42)).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := s.DeleteChat(context.Background(), 42)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListMessages(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT id, chat_id, content, role, created_at FROM messages WHERE chat_id = \$1 ORDER BY id`).
		WithArgs(int64(3)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "chat_id", "content", "role", "created_at"}).
			AddRow(int64(1), int64(3), "hello", "user", now).
			AddRow(int64(2), int64(3), "hi", "assistant", now))

	msgs, err := s.ListMessages(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, model.RoleAssistant, msgs[1].Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS customers`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFoldedCustomerColumns(t *testing.T) {
	cols := foldedCustomerColumns()
	assert.Equal(t, "customerid", cols[0])
	assert.Equal(t, "estimatedsalary", cols[11])
	assert.Len(t, cols, len(model.CustomerColumns))
}
