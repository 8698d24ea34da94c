package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/mahmoud0nasser/Agentic-Banking-Churn-Chatbot/internal/model"
)

// ErrNotFound is returned by mutations that target a missing row.
var ErrNotFound = eris.New("store: not found")

// Store defines the persistence interface for the churn chat service.
type Store interface {
	// Customers
	GetCustomer(ctx context.Context, customerID string) (*model.Customer, error)
	ImportCustomers(ctx context.Context, customers []model.Customer) (int64, error)
	CountCustomers(ctx context.Context) (int, error)

	// Analytics
	Query(ctx context.Context, statement string) (*model.Table, error)

	// Audit
	InsertPrediction(ctx context.Context, rec model.PredictionRecord) error
	InsertInteraction(ctx context.Context, entry model.Interaction) error
	ActivitySince(ctx context.Context, since time.Time) (*model.ActivityStats, error)

	// Chats
	CreateChat(ctx context.Context, title string) (*model.Chat, error)
	GetChat(ctx context.Context, chatID int64) (*model.Chat, error)
	ListChats(ctx context.Context) ([]model.Chat, error)
	UpdateChatTitle(ctx context.Context, chatID int64, title string) error
	DeleteChat(ctx context.Context, chatID int64) error
	DeleteAllChats(ctx context.Context) error
	CreateMessage(ctx context.Context, chatID int64, role model.Role, content string) (*model.Message, error)
	ListMessages(ctx context.Context, chatID int64) ([]model.Message, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}
