package orders

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"gemmy/internal/models"
	"gemmy/internal/store"
)

const MaxMessageLength = 4000

// AppendMessage adds a message to the order's thread. The sender is taken
// from the actor.
func (s *Service) AppendMessage(ctx context.Context, actor Actor, token, text string) (models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Message{}, fmt.Errorf("%w: message text is required", ErrInvalid)
	}
	if utf8.RuneCountInString(text) > MaxMessageLength {
		return models.Message{}, fmt.Errorf("%w: message longer than %d characters", ErrInvalid, MaxMessageLength)
	}

	now := s.now()
	msg := models.Message{Sender: actor.Role(), Text: text, At: isoMillis(now)}
	if err := s.Mutate(ctx, actor, token, store.Mutation{PushMessage: &msg, At: now}); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// Messages returns one page of the thread in insertion order.
func (s *Service) Messages(ctx context.Context, token string, page, limit int64) (Page[models.Message], error) {
	p, err := s.load(ctx, token)
	if err != nil {
		return Page[models.Message]{}, err
	}
	return Paginate(p.Messages, page, limit), nil
}
