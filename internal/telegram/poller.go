package telegram

import (
	"context"
	"strings"
	"time"

	"github.com/brightcare/dental-booking-bot/pkg/logging"
)

// Dialogue is the conversation engine the poller feeds updates into.
type Dialogue interface {
	StartSession(ctx context.Context, chatID int64, firstName string) error
	EndSession(ctx context.Context, chatID int64) error
	HandleText(ctx context.Context, chatID int64, text string) error
	HandleAction(ctx context.Context, chatID int64, callbackID, data string) error
	HandleUpload(ctx context.Context, chatID int64, fileID, fileName string) error
	OfferCancellation(ctx context.Context, chatID int64) error
	TodaySummary(ctx context.Context, chatID int64) error
	Stats(ctx context.Context, chatID int64) error
}

// Transcriber turns a voice note into text.
type Transcriber interface {
	TranscribeAudio(ctx context.Context, audio []byte, mimeType string) (string, error)
}

const helpText = `Here's what I can do:

/start - start over
/cancel - cancel an appointment
/end - end the current session
/help - show this message
/about - about the clinic

To book an appointment, just type "Book" or describe what's troubling you.`

const aboutText = `BrightCare Dental Clinic

We provide general dentistry, orthodontics, endodontics and pediatric dental care. Book a consultation right here in the chat. The consultation fee can be paid online or at the clinic.`

// Poller long-polls the bot API and routes each update into the dialogue
// engine. Updates are processed in order; a failed turn is logged and the
// poll loop moves on.
type Poller struct {
	client      *Client
	adapter     *Adapter
	dialogue    Dialogue
	transcriber Transcriber
	admins      map[int64]bool
	logger      *logging.Logger
	pollTimeout int
}

// PollerConfig wires the update poller.
type PollerConfig struct {
	Client       *Client
	Dialogue     Dialogue
	Transcriber  Transcriber
	AdminChatIDs []int64
	Logger       *logging.Logger
	// PollTimeoutSeconds is the long-poll hold time passed to getUpdates.
	PollTimeoutSeconds int
}

// NewPoller creates an update poller.
func NewPoller(cfg PollerConfig) *Poller {
	if cfg.Client == nil {
		panic("telegram: client required")
	}
	if cfg.Dialogue == nil {
		panic("telegram: dialogue required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	timeout := cfg.PollTimeoutSeconds
	if timeout <= 0 {
		timeout = 30
	}
	admins := make(map[int64]bool, len(cfg.AdminChatIDs))
	for _, id := range cfg.AdminChatIDs {
		admins[id] = true
	}
	return &Poller{
		client:      cfg.Client,
		adapter:     NewAdapter(cfg.Client),
		dialogue:    cfg.Dialogue,
		transcriber: cfg.Transcriber,
		admins:      admins,
		logger:      logger,
		pollTimeout: timeout,
	}
}

// Run polls for updates until the context is cancelled.
func (p *Poller) Run(ctx context.Context) {
	p.logger.Info("telegram: poller started", "timeout_seconds", p.pollTimeout)
	var offset int64
	for {
		if ctx.Err() != nil {
			p.logger.Info("telegram: poller stopped")
			return
		}
		updates, err := p.client.GetUpdates(ctx, offset, p.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				p.logger.Info("telegram: poller stopped")
				return
			}
			p.logger.Error("telegram: poll failed", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(3 * time.Second):
			}
			continue
		}
		for i := range updates {
			update := &updates[i]
			offset = update.UpdateID + 1
			p.dispatch(ctx, update)
		}
	}
}

func (p *Poller) dispatch(ctx context.Context, update *Update) {
	switch {
	case update.CallbackQuery != nil:
		cb := update.CallbackQuery
		if cb.Message == nil {
			p.logger.Warn("telegram: callback without message", "callback_id", cb.ID)
			return
		}
		if err := p.dialogue.HandleAction(ctx, cb.Message.Chat.ID, cb.ID, cb.Data); err != nil {
			p.logger.Error("telegram: action turn failed", "chat_id", cb.Message.Chat.ID, "error", err)
		}
	case update.Message != nil:
		p.dispatchMessage(ctx, update.Message)
	}
}

func (p *Poller) dispatchMessage(ctx context.Context, msg *Message) {
	chatID := msg.Chat.ID

	if strings.HasPrefix(msg.Text, "/") {
		p.dispatchCommand(ctx, msg)
		return
	}
	if msg.Voice != nil {
		p.dispatchVoice(ctx, chatID, msg.Voice)
		return
	}
	if upload, ok := ResolveUpload(msg); ok {
		if err := p.dialogue.HandleUpload(ctx, chatID, upload.FileID, upload.FileName); err != nil {
			p.logger.Error("telegram: upload turn failed", "chat_id", chatID, "error", err)
		}
		return
	}
	if msg.Text == "" {
		return
	}
	if err := p.dialogue.HandleText(ctx, chatID, msg.Text); err != nil {
		p.logger.Error("telegram: text turn failed", "chat_id", chatID, "error", err)
	}
}

// command extracts the command name, dropping the @botname suffix groups add.
func command(text string) string {
	cmd := strings.Fields(text)[0]
	if at := strings.Index(cmd, "@"); at > 0 {
		cmd = cmd[:at]
	}
	return cmd
}

func (p *Poller) dispatchCommand(ctx context.Context, msg *Message) {
	chatID := msg.Chat.ID
	var err error
	switch command(msg.Text) {
	case "/start":
		firstName := ""
		if msg.From != nil {
			firstName = msg.From.FirstName
		}
		err = p.dialogue.StartSession(ctx, chatID, firstName)
	case "/end":
		err = p.dialogue.EndSession(ctx, chatID)
	case "/cancel":
		err = p.dialogue.OfferCancellation(ctx, chatID)
	case "/help":
		err = p.adapter.SendText(ctx, chatID, helpText)
	case "/about":
		err = p.adapter.SendText(ctx, chatID, aboutText)
	case "/today":
		if !p.admins[chatID] {
			err = p.adapter.SendText(ctx, chatID, "That command is reserved for clinic staff.")
			break
		}
		err = p.dialogue.TodaySummary(ctx, chatID)
	case "/stats":
		if !p.admins[chatID] {
			err = p.adapter.SendText(ctx, chatID, "That command is reserved for clinic staff.")
			break
		}
		err = p.dialogue.Stats(ctx, chatID)
	default:
		err = p.adapter.SendText(ctx, chatID, "I don't know that command. Try /help.")
	}
	if err != nil {
		p.logger.Error("telegram: command failed", "chat_id", chatID, "command", command(msg.Text), "error", err)
	}
}

func (p *Poller) dispatchVoice(ctx context.Context, chatID int64, voice *Voice) {
	if p.transcriber == nil {
		_ = p.adapter.SendText(ctx, chatID, "Sorry, I can't process voice notes right now. Please type your message.")
		return
	}
	audio, err := p.adapter.FetchFile(ctx, voice.FileID)
	if err != nil {
		p.logger.Error("telegram: voice download failed", "chat_id", chatID, "error", err)
		_ = p.adapter.SendText(ctx, chatID, "Sorry, I couldn't process that voice note. Please type your message.")
		return
	}
	text, err := p.transcriber.TranscribeAudio(ctx, audio, voice.MimeType)
	if err != nil || strings.TrimSpace(text) == "" {
		p.logger.Error("telegram: transcription failed", "chat_id", chatID, "error", err)
		_ = p.adapter.SendText(ctx, chatID, "Sorry, I couldn't understand that voice note. Please type your message.")
		return
	}
	if err := p.dialogue.HandleText(ctx, chatID, text); err != nil {
		p.logger.Error("telegram: voice turn failed", "chat_id", chatID, "error", err)
	}
}
