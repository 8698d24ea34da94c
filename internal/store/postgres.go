package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/mahmoud0nasser/Agentic-Banking-Churn-Chatbot/internal/db"
	"github.com/mahmoud0nasser/Agentic-Banking-Churn-Chatbot/internal/model"
)

// PostgresStore implements Store using pgxpool. Customer columns are created
// unquoted so that oracle-written SQL using the dataset's CamelCase names
// resolves through Postgres case folding.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"get_customer":      `SELECT ` + customerSelect + ` FROM customers WHERE customerid = $1`,
	"insert_prediction": `INSERT INTO predictions (customer_id, features, prediction, probability, timestamp) VALUES ($1, $2, $3, $4, $5)`,
	"insert_log":        `INSERT INTO logs (query, response, timestamp) VALUES ($1, $2, $3)`,
	"insert_message":    `INSERT INTO messages (chat_id, content, role, created_at) VALUES ($1, $2, $3, $4) RETURNING id`,
	"list_messages":     `SELECT id, chat_id, content, role, created_at FROM messages WHERE chat_id = $1 ORDER BY id`,
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
				// Tables may not exist before the first migrate.
				var pgErr interface{ SQLState() string }
				if errors.As(err, &pgErr) && pgErr.SQLState() == "42P01" {
					continue
				}
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
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for bulk loaders.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS customers (
	CustomerId      BIGINT PRIMARY KEY,
	Surname         TEXT,
	CreditScore     DOUBLE PRECISION,
	Geography       TEXT,
	Gender          TEXT,
	Age             INTEGER,
	Tenure          INTEGER,
	Balance         DOUBLE PRECISION,
	NumOfProducts   INTEGER,
	HasCrCard       INTEGER,
	IsActiveMember  INTEGER,
	EstimatedSalary DOUBLE PRECISION,
	Exited          INTEGER
);

CREATE TABLE IF NOT EXISTS predictions (
	id          BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
	customer_id TEXT,
	features    JSONB,
	prediction  INTEGER,
	probability DOUBLE PRECISION,
	timestamp   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS logs (
	id        BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
	query     TEXT,
	response  TEXT,
	timestamp TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS chats (
	id         BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
	title      TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS messages (
	id         BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
	chat_id    BIGINT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
	content    TEXT NOT NULL,
	role       TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_predictions_timestamp ON predictions(timestamp);
CREATE INDEX IF NOT EXISTS idx_logs_timestamp ON logs(timestamp);
CREATE INDEX IF NOT EXISTS idx_messages_chat_id ON messages(chat_id);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) GetCustomer(ctx context.Context, customerID string) (*model.Customer, error) {
	id, err := parseCustomerID(customerID)
	if err != nil {
		return nil, err
	}
	c, err := scanCustomer(s.pool.QueryRow(ctx,
		`SELECT `+customerSelect+` FROM customers WHERE customerid = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get customer %s", customerID)
	}
	return c, nil
}

// ImportCustomers upserts customers keyed on CustomerId.
func (s *PostgresStore) ImportCustomers(ctx context.Context, customers []model.Customer) (int64, error) {
	rows := make([][]any, 0, len(customers))
	for _, c := range customers {
		row, err := customerRow(c)
		if err != nil {
			return 0, err
		}
		rows = append(rows, row)
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "customers",
		Columns:      foldedCustomerColumns(),
		ConflictKeys: []string{"customerid"},
	}, rows)
	return n, eris.Wrap(err, "postgres: import customers")
}

func (s *PostgresStore) CountCustomers(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM customers`).Scan(&n)
	return n, eris.Wrap(err, "postgres: count customers")
}

// Query runs an arbitrary statement and returns every row. NUMERIC results
// (AVG over integers, for instance) are converted to float64.
func (s *PostgresStore) Query(ctx context.Context, statement string) (*model.Table, error) {
	rows, err := s.pool.Query(ctx, statement)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query")
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	t := &model.Table{Columns: make([]string, len(fields))}
	for i, f := range fields {
		t.Columns[i] = f.Name
	}

	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, eris.Wrap(err, "postgres: query values")
		}
		for i, v := range vals {
			vals[i] = normalizeValue(v)
		}
		t.Rows = append(t.Rows, vals)
	}
	return t, eris.Wrap(rows.Err(), "postgres: query iterate")
}

func (s *PostgresStore) InsertPrediction(ctx context.Context, rec model.PredictionRecord) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO predictions (customer_id, features, prediction, probability, timestamp) VALUES ($1, $2, $3, $4, $5)`,
		rec.CustomerID, rec.Features, rec.Prediction, rec.Probability, rec.Timestamp,
	)
	return eris.Wrap(err, "postgres: insert prediction")
}

func (s *PostgresStore) InsertInteraction(ctx context.Context, entry model.Interaction) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO logs (query, response, timestamp) VALUES ($1, $2, $3)`,
		entry.Query, entry.Response, entry.Timestamp,
	)
	return eris.Wrap(err, "postgres: insert log")
}

func (s *PostgresStore) ActivitySince(ctx context.Context, since time.Time) (*model.ActivityStats, error) {
	var st model.ActivityStats
	err := s.pool.QueryRow(ctx, `SELECT
		(SELECT COUNT(*) FROM customers),
		(SELECT COUNT(*) FROM predictions WHERE timestamp >= $1),
		(SELECT COUNT(*) FROM predictions WHERE timestamp >= $1 AND prediction = 1),
		(SELECT COALESCE(AVG(probability), 0) FROM predictions WHERE timestamp >= $1),
		(SELECT COUNT(*) FROM logs WHERE timestamp >= $1)`,
		since.UTC(),
	).Scan(&st.Customers, &st.Predictions, &st.PredictedChurn, &st.MeanProbability, &st.Interactions)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: activity since")
	}
	return &st, nil
}

func (s *PostgresStore) CreateChat(ctx context.Context, title string) (*model.Chat, error) {
	c := model.Chat{Title: title, CreatedAt: time.Now().UTC()}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO chats (title, created_at) VALUES ($1, $2) RETURNING id`,
		title, c.CreatedAt,
	).Scan(&c.ID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert chat")
	}
	return &c, nil
}

func (s *PostgresStore) GetChat(ctx context.Context, chatID int64) (*model.Chat, error) {
	var c model.Chat
	err := s.pool.QueryRow(ctx,
		`SELECT id, title, created_at FROM chats WHERE id = $1`, chatID,
	).Scan(&c.ID, &c.Title, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get chat %d", chatID)
	}
	return &c, nil
}

func (s *PostgresStore) ListChats(ctx context.Context) ([]model.Chat, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, title, created_at FROM chats ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list chats")
	}
	defer rows.Close()

	var chats []model.Chat
	for rows.Next() {
		var c model.Chat
		if err := rows.Scan(&c.ID, &c.Title, &c.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan chat")
		}
		chats = append(chats, c)
	}
	return chats, eris.Wrap(rows.Err(), "postgres: list chats iterate")
}

func (s *PostgresStore) UpdateChatTitle(ctx context.Context, chatID int64, title string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE chats SET title = $1 WHERE id = $2`, title, chatID)
	if err != nil {
		return eris.Wrapf(err, "postgres: update chat title %d", chatID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "chat %d", chatID)
	}
	return nil
}

// DeleteChat relies on ON DELETE CASCADE to remove the chat's messages.
func (s *PostgresStore) DeleteChat(ctx context.Context, chatID int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM chats WHERE id = $1`, chatID)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete chat %d", chatID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "chat %d", chatID)
	}
	return nil
}

func (s *PostgresStore) DeleteAllChats(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM chats`)
	return eris.Wrap(err, "postgres: delete all chats")
}

func (s *PostgresStore) CreateMessage(ctx context.Context, chatID int64, role model.Role, content string) (*model.Message, error) {
	m := model.Message{ChatID: chatID, Content: content, Role: role, CreatedAt: time.Now().UTC()}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO messages (chat_id, content, role, created_at) VALUES ($1, $2, $3, $4) RETURNING id`,
		chatID, content, string(role), m.CreatedAt,
	).Scan(&m.ID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert message for chat %d", chatID)
	}
	return &m, nil
}

func (s *PostgresStore) ListMessages(ctx context.Context, chatID int64) ([]model.Message, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, chat_id, content, role, created_at FROM messages WHERE chat_id = $1 ORDER BY id`, chatID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list messages for chat %d", chatID)
	}
	defer rows.Close()

	var msgs []model.Message
	for rows.Next() {
		var m model.Message
		var role string
		if err := rows.Scan(&m.ID, &m.ChatID, &m.Content, &role, &m.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan message")
		}
		m.Role = model.Role(role)
		msgs = append(msgs, m)
	}
	return msgs, eris.Wrap(rows.Err(), "postgres: list messages iterate")
}

// foldedCustomerColumns returns the customer columns as Postgres stores
// unquoted identifiers.
func foldedCustomerColumns() []string {
	cols := make([]string, len(model.CustomerColumns))
	for i, c := range model.CustomerColumns {
		cols[i] = strings.ToLower(c)
	}
	return cols
}

func normalizeValue(v any) any {
	switch x := v.(type) {
	case pgtype.Numeric:
		f, err := x.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	case []byte:
		return string(x)
	default:
		return v
	}
}
