package notify

import (
	"context"

	"github.com/brightcare/dental-booking-bot/pkg/logging"
)

// Sender delivers a plain text message to a chat.
type Sender interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

// Service fans operational notices out to the clinic's staff chats. Delivery
// is best effort; a failed chat never blocks whatever triggered the notice.
type Service struct {
	sender  Sender
	chatIDs []int64
	logger  *logging.Logger
}

// NewService creates a staff notifier for the given admin chats.
func NewService(sender Sender, chatIDs []int64, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{sender: sender, chatIDs: chatIDs, logger: logger}
}

// Notify sends the text to every staff chat.
func (s *Service) Notify(ctx context.Context, text string) {
	if s.sender == nil || len(s.chatIDs) == 0 {
		return
	}
	for _, chatID := range s.chatIDs {
		if err := s.sender.SendText(ctx, chatID, text); err != nil {
			s.logger.Error("notify: staff message failed", "chat_id", chatID, "error", err)
		}
	}
}
