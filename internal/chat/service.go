// Package chat persists conversations and exposes the churn router over
// HTTP.
package chat

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/mahmoud0nasser/Agentic-Banking-Churn-Chatbot/internal/model"
	"github.com/mahmoud0nasser/Agentic-Banking-Churn-Chatbot/internal/store"
)

// titleRunes is how much of a message or response becomes a chat title.
const titleRunes = 30

// ErrChatNotFound is returned when a chat id does not exist.
var ErrChatNotFound = eris.New("chat: not found")

// Router answers a query given the conversation so far.
type Router interface {
	Route(ctx context.Context, query string, history []model.Turn) string
}

// Store is the subset of store.Store the service needs.
type Store interface {
	CreateChat(ctx context.Context, title string) (*model.Chat, error)
	GetChat(ctx context.Context, chatID int64) (*model.Chat, error)
	ListChats(ctx context.Context) ([]model.Chat, error)
	UpdateChatTitle(ctx context.Context, chatID int64, title string) error
	DeleteChat(ctx context.Context, chatID int64) error
	DeleteAllChats(ctx context.Context) error
	CreateMessage(ctx context.Context, chatID int64, role model.Role, content string) (*model.Message, error)
	ListMessages(ctx context.Context, chatID int64) ([]model.Message, error)
}

// Service stores chats and their messages around calls to the router.
type Service struct {
	store  Store
	router Router
}

// NewService creates a chat service.
func NewService(st Store, router Router) *Service {
	return &Service{store: st, router: router}
}

// Send appends message to chat chatID, routes it with the chat's history and
// stores the answer. A zero chatID starts a new chat. Returns the answer and
// the chat it was stored in.
func (s *Service) Send(ctx context.Context, chatID int64, message string) (string, int64, error) {
	log := zap.L().With(zap.Int64("chat_id", chatID))

	if chatID == 0 {
		c, err := s.store.CreateChat(ctx, titleFrom(message))
		if err != nil {
			return "", 0, eris.Wrap(err, "chat: create")
		}
		chatID = c.ID
		log = zap.L().With(zap.Int64("chat_id", chatID))
		log.Debug("chat: created")
	} else {
		c, err := s.store.GetChat(ctx, chatID)
		if err != nil {
			return "", 0, eris.Wrapf(err, "chat: get %d", chatID)
		}
		if c == nil {
			return "", 0, eris.Wrapf(ErrChatNotFound, "chat %d", chatID)
		}
	}

	if _, err := s.store.CreateMessage(ctx, chatID, model.RoleUser, message); err != nil {
		return "", 0, eris.Wrap(err, "chat: save user message")
	}

	msgs, err := s.store.ListMessages(ctx, chatID)
	if err != nil {
		return "", 0, eris.Wrap(err, "chat: load history")
	}

	response := s.router.Route(ctx, message, model.Turns(msgs))

	if _, err := s.store.CreateMessage(ctx, chatID, model.RoleAssistant, response); err != nil {
		return "", 0, eris.Wrap(err, "chat: save assistant message")
	}

	// Chats still carrying the placeholder title are renamed after the first
	// answer. Messages short enough to be their own title keep it.
	c, err := s.store.GetChat(ctx, chatID)
	if err != nil {
		return "", 0, eris.Wrapf(err, "chat: get %d", chatID)
	}
	if c != nil && c.Title == prefix(message)+"..." {
		if err := s.store.UpdateChatTitle(ctx, chatID, titleFrom(response)); err != nil {
			return "", 0, eris.Wrap(err, "chat: rename")
		}
	}

	log.Info("chat: message answered", zap.Int("history", len(msgs)))
	return response, chatID, nil
}

// List returns every chat, newest first.
func (s *Service) List(ctx context.Context) ([]model.Chat, error) {
	chats, err := s.store.ListChats(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "chat: list")
	}
	if chats == nil {
		chats = []model.Chat{}
	}
	return chats, nil
}

// Get returns a chat with its messages in order.
func (s *Service) Get(ctx context.Context, chatID int64) (*model.ChatWithMessages, error) {
	c, err := s.store.GetChat(ctx, chatID)
	if err != nil {
		return nil, eris.Wrapf(err, "chat: get %d", chatID)
	}
	if c == nil {
		return nil, eris.Wrapf(ErrChatNotFound, "chat %d", chatID)
	}
	msgs, err := s.store.ListMessages(ctx, chatID)
	if err != nil {
		return nil, eris.Wrapf(err, "chat: messages of %d", chatID)
	}
	if msgs == nil {
		msgs = []model.Message{}
	}
	return &model.ChatWithMessages{Chat: *c, Messages: msgs}, nil
}

// Delete removes a chat and its messages.
func (s *Service) Delete(ctx context.Context, chatID int64) error {
	err := s.store.DeleteChat(ctx, chatID)
	if eris.Is(err, store.ErrNotFound) {
		return eris.Wrapf(ErrChatNotFound, "chat %d", chatID)
	}
	return eris.Wrapf(err, "chat: delete %d", chatID)
}

// DeleteAll removes every chat and message.
func (s *Service) DeleteAll(ctx context.Context) error {
	return eris.Wrap(s.store.DeleteAllChats(ctx), "chat: delete all")
}

func prefix(s string) string {
	r := []rune(s)
	if len(r) > titleRunes {
		r = r[:titleRunes]
	}
	return string(r)
}

func titleFrom(s string) string {
	if len([]rune(s)) > titleRunes {
		return prefix(s) + "..."
	}
	return s
}
