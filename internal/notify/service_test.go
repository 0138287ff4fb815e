package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/brightcare/dental-booking-bot/pkg/logging"
)

type fakeSender struct {
	sent    map[int64]string
	failFor int64
}

func (f *fakeSender) SendText(_ context.Context, chatID int64, text string) error {
	if chatID == f.failFor {
		return errors.New("blocked")
	}
	if f.sent == nil {
		f.sent = make(map[int64]string)
	}
	f.sent[chatID] = text
	return nil
}

func TestNotify_FansOutToAllChats(t *testing.T) {
	sender := &fakeSender{}
	svc := NewService(sender, []int64{100, 200}, logging.New("error"))

	svc.Notify(context.Background(), "New booking APT1")

	assert.Equal(t, "New booking APT1", sender.sent[100])
	assert.Equal(t, "New booking APT1", sender.sent[200])
}

func TestNotify_FailedChatDoesNotBlockOthers(t *testing.T) {
	sender := &fakeSender{failFor: 100}
	svc := NewService(sender, []int64{100, 200}, logging.New("error"))

	svc.Notify(context.Background(), "note")

	assert.NotContains(t, sender.sent, int64(100))
	assert.Equal(t, "note", sender.sent[200])
}

func TestNotify_NoChatsConfiguredIsNoop(t *testing.T) {
	svc := NewService(nil, nil, logging.New("error"))
	svc.Notify(context.Background(), "note") // must not panic
}
