package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/mahmoud0nasser/Agentic-Banking-Churn-Chatbot/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
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
CREATE TABLE IF NOT EXISTS customers (
	CustomerId      INTEGER PRIMARY KEY,
	Surname         TEXT,
	CreditScore     INTEGER,
	Geography       TEXT,
	Gender          TEXT,
	Age             INTEGER,
	Tenure          INTEGER,
	Balance         REAL,
	NumOfProducts   INTEGER,
	HasCrCard       INTEGER,
	IsActiveMember  INTEGER,
	EstimatedSalary REAL,
	Exited          INTEGER
);

CREATE TABLE IF NOT EXISTS predictions (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	customer_id TEXT,
	features    TEXT,
	prediction  INTEGER,
	probability REAL,
	timestamp   DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS logs (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	query     TEXT,
	response  TEXT,
	timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS chats (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	title      TEXT NOT NULL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS messages (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	chat_id    INTEGER NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
	content    TEXT NOT NULL,
	role       TEXT NOT NULL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_predictions_timestamp ON predictions(timestamp);
CREATE INDEX IF NOT EXISTS idx_logs_timestamp ON logs(timestamp);
CREATE INDEX IF NOT EXISTS idx_messages_chat_id ON messages(chat_id);
`

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetCustomer(ctx context.Context, customerID string) (*model.Customer, error) {
	id, err := parseCustomerID(customerID)
	if err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+customerSelect+` FROM customers WHERE CustomerId = ?`, id)
	c, err := scanCustomer(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get customer %s", customerID)
	}
	return c, nil
}

func (s *SQLiteStore) ImportCustomers(ctx context.Context, customers []model.Customer) (int64, error) {
	if len(customers) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: import begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO customers (`+customerSelect+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare import")
	}
	defer stmt.Close()

	for _, c := range customers {
		args, err := customerRow(c)
		if err != nil {
			return 0, err
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, eris.Wrapf(err, "sqlite: import customer %s", c.CustomerID)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: import commit")
	}
	return int64(len(customers)), nil
}

func (s *SQLiteStore) CountCustomers(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM customers`).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count customers")
}

// Query runs an arbitrary statement and returns every row. []byte values
// are returned as strings.
func (s *SQLiteStore) Query(ctx context.Context, statement string) (*model.Table, error) {
	rows, err := s.db.QueryContext(ctx, statement)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query")
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query columns")
	}

	t := &model.Table{Columns: cols}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, eris.Wrap(err, "sqlite: query scan")
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		t.Rows = append(t.Rows, vals)
	}
	return t, eris.Wrap(rows.Err(), "sqlite: query iterate")
}

func (s *SQLiteStore) InsertPrediction(ctx context.Context, rec model.PredictionRecord) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO predictions (customer_id, features, prediction, probability, timestamp) VALUES (?, ?, ?, ?, ?)`,
		rec.CustomerID, rec.Features, rec.Prediction, rec.Probability, rec.Timestamp,
	)
	return eris.Wrap(err, "sqlite: insert prediction")
}

func (s *SQLiteStore) InsertInteraction(ctx context.Context, entry model.Interaction) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO logs (query, response, timestamp) VALUES (?, ?, ?)`,
		entry.Query, entry.Response, entry.Timestamp,
	)
	return eris.Wrap(err, "sqlite: insert log")
}

func (s *SQLiteStore) ActivitySince(ctx context.Context, since time.Time) (*model.ActivityStats, error) {
	var st model.ActivityStats
	since = since.UTC()
	err := s.db.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(*) FROM customers),
		(SELECT COUNT(*) FROM predictions WHERE timestamp >= ?),
		(SELECT COUNT(*) FROM predictions WHERE timestamp >= ? AND prediction = 1),
		(SELECT COALESCE(AVG(probability), 0) FROM predictions WHERE timestamp >= ?),
		(SELECT COUNT(*) FROM logs WHERE timestamp >= ?)`,
		since, since, since, since,
	).Scan(&st.Customers, &st.Predictions, &st.PredictedChurn, &st.MeanProbability, &st.Interactions)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: activity since")
	}
	return &st, nil
}

func (s *SQLiteStore) CreateChat(ctx context.Context, title string) (*model.Chat, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO chats (title, created_at) VALUES (?, ?)`, title, now)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert chat")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: chat id")
	}
	return &model.Chat{ID: id, Title: title, CreatedAt: now}, nil
}

func (s *SQLiteStore) GetChat(ctx context.Context, chatID int64) (*model.Chat, error) {
	var c model.Chat
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, created_at FROM chats WHERE id = ?`, chatID,
	).Scan(&c.ID, &c.Title, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get chat %d", chatID)
	}
	return &c, nil
}

func (s *SQLiteStore) ListChats(ctx context.Context) ([]model.Chat, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, created_at FROM chats ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list chats")
	}
	defer rows.Close()

	var chats []model.Chat
	for rows.Next() {
		var c model.Chat
		if err := rows.Scan(&c.ID, &c.Title, &c.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan chat")
		}
		chats = append(chats, c)
	}
	return chats, eris.Wrap(rows.Err(), "sqlite: list chats iterate")
}

func (s *SQLiteStore) UpdateChatTitle(ctx context.Context, chatID int64, title string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE chats SET title = ? WHERE id = ?`, title, chatID)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update chat title %d", chatID)
	}
	return checkRowsAffected(res, "chat", chatID)
}

func (s *SQLiteStore) DeleteChat(ctx context.Context, chatID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: delete chat begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE chat_id = ?`, chatID); err != nil {
		return eris.Wrapf(err, "sqlite: delete messages of chat %d", chatID)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM chats WHERE id = ?`, chatID)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete chat %d", chatID)
	}
	if err := checkRowsAffected(res, "chat", chatID); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: delete chat commit")
}

func (s *SQLiteStore) DeleteAllChats(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: delete all chats begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages`); err != nil {
		return eris.Wrap(err, "sqlite: delete all messages")
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chats`); err != nil {
		return eris.Wrap(err, "sqlite: delete all chats")
	}
	return eris.Wrap(tx.Commit(), "sqlite: delete all chats commit")
}

func (s *SQLiteStore) CreateMessage(ctx context.Context, chatID int64, role model.Role, content string) (*model.Message, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (chat_id, content, role, created_at) VALUES (?, ?, ?, ?)`,
		chatID, content, string(role), now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert message for chat %d", chatID)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: message id")
	}
	return &model.Message{ID: id, ChatID: chatID, Content: content, Role: role, CreatedAt: now}, nil
}

func (s *SQLiteStore) ListMessages(ctx context.Context, chatID int64) ([]model.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, chat_id, content, role, created_at FROM messages WHERE chat_id = ? ORDER BY id`, chatID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list messages for chat %d", chatID)
	}
	defer rows.Close()

	var msgs []model.Message
	for rows.Next() {
		var m model.Message
		var role string
		if err := rows.Scan(&m.ID, &m.ChatID, &m.Content, &role, &m.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan message")
		}
		m.Role = model.Role(role)
		msgs = append(msgs, m)
	}
	return msgs, eris.Wrap(rows.Err(), "sqlite: list messages iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %d", entity, id)
	}
	return nil
}
