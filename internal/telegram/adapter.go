package telegram

import (
	"context"
	"fmt"

	"github.com/brightcare/dental-booking-bot/internal/booking"
)

// Adapter bridges the transport-neutral booking interfaces onto the bot API
// client. It is the only place chat keyboards get translated to Telegram's
// inline-keyboard shape.
type Adapter struct {
	client *Client
}

// NewAdapter wraps a bot API client.
func NewAdapter(client *Client) *Adapter {
	if client == nil {
		panic("telegram: client cannot be nil")
	}
	return &Adapter{client: client}
}

func toReplyMarkup(kb booking.Keyboard) *InlineKeyboardMarkup {
	if len(kb) == 0 {
		return nil
	}
	rows := make([][]InlineKeyboardButton, 0, len(kb))
	for _, row := range kb {
		buttons := make([]InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, InlineKeyboardButton{
				Text:         b.Text,
				CallbackData: b.Action,
				URL:          b.URL,
			})
		}
		rows = append(rows, buttons)
	}
	return &InlineKeyboardMarkup{InlineKeyboard: rows}
}

// SendMessage delivers a message with an optional keyboard.
func (a *Adapter) SendMessage(ctx context.Context, chatID int64, text string, kb booking.Keyboard) (int, error) {
	return a.client.SendMessage(ctx, SendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ReplyMarkup: toReplyMarkup(kb),
	})
}

// SendText delivers a plain message, discarding the message id.
func (a *Adapter) SendText(ctx context.Context, chatID int64, text string) error {
	_, err := a.SendMessage(ctx, chatID, text, nil)
	return err
}

// EditMessage rewrites an earlier message. Editing to identical content is
// treated as success: redelivered webhooks hit this constantly.
func (a *Adapter) EditMessage(ctx context.Context, chatID int64, messageID int, text string) error {
	err := a.client.EditMessageText(ctx, chatID, messageID, text, "")
	if IsMessageNotModified(err) {
		return nil
	}
	return err
}

// SendDocument delivers a file attachment.
func (a *Adapter) SendDocument(ctx context.Context, chatID int64, filename string, data []byte, caption string) error {
	return a.client.SendDocument(ctx, chatID, filename, data, caption)
}

// Alert pops a modal notice on a button tap.
func (a *Adapter) Alert(ctx context.Context, callbackID, text string) error {
	return a.client.AnswerCallbackQuery(ctx, callbackID, text, true)
}

// Ack silently closes a button tap's loading state.
func (a *Adapter) Ack(ctx context.Context, callbackID string) error {
	return a.client.AnswerCallbackQuery(ctx, callbackID, "", false)
}

// FetchFile downloads an uploaded file's bytes.
func (a *Adapter) FetchFile(ctx context.Context, fileID string) ([]byte, error) {
	f, err := a.client.GetFile(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("telegram: resolve file: %w", err)
	}
	return a.client.DownloadFile(ctx, f)
}
