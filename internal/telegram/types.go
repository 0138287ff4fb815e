package telegram

// Update mirrors the Telegram update payload that wraps incoming messages
// and button actions.
type Update struct {
	UpdateID      int64          `json:"update_id"`
	Message       *Message       `json:"message"`
	CallbackQuery *CallbackQuery `json:"callback_query"`
}

// Message captures the relevant parts of a Telegram chat message.
type Message struct {
	MessageID int         `json:"message_id"`
	From      *User       `json:"from"`
	Chat      Chat        `json:"chat"`
	Date      int64       `json:"date"`
	Text      string      `json:"text"`
	Voice     *Voice      `json:"voice"`
	Document  *Document   `json:"document"`
	Photo     []PhotoSize `json:"photo"`
}

// CallbackQuery is an inline keyboard button press.
type CallbackQuery struct {
	ID      string   `json:"id"`
	From    *User    `json:"from"`
	Message *Message `json:"message"`
	Data    string   `json:"data"`
}

// User represents the Telegram account that sent a message.
type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	Username  string `json:"username"`
}

// Chat identifies the conversation a message belongs to.
type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

// Voice is an inbound voice note.
type Voice struct {
	FileID   string `json:"file_id"`
	Duration int    `json:"duration"`
	MimeType string `json:"mime_type"`
}

// Document is an inbound file attachment.
type Document struct {
	FileID   string `json:"file_id"`
	FileName string `json:"file_name"`
	MimeType string `json:"mime_type"`
}

// PhotoSize captures one photo variant Telegram sends with a message.
type PhotoSize struct {
	FileID   string `json:"file_id"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	FileSize int    `json:"file_size"`
}

// File is the metadata returned by getFile, used to build download URLs.
type File struct {
	FileID   string `json:"file_id"`
	FilePath string `json:"file_path"`
}

// InlineKeyboardMarkup is the reply_markup payload for button grids.
type InlineKeyboardMarkup struct {
	InlineKeyboard [][]InlineKeyboardButton `json:"inline_keyboard"`
}

// InlineKeyboardButton is a single button; exactly one of CallbackData or URL
// should be set.
type InlineKeyboardButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data,omitempty"`
	URL          string `json:"url,omitempty"`
}

// UploadKind discriminates the variants of an inbound file upload.
type UploadKind int

const (
	// UploadDocument is a file attachment with a filename.
	UploadDocument UploadKind = iota
	// UploadPhoto is an inline photo; Telegram sends several resolutions and
	// only the largest is kept.
	UploadPhoto
)

// Upload is the tagged variant for inbound report uploads, resolved once at
// the transport boundary so the rest of the system never inspects raw
// message shapes.
type Upload struct {
	Kind     UploadKind
	FileID   string
	FileName string
}

// ResolveUpload extracts the upload payload from a message, preferring the
// document shape and falling back to the highest-resolution photo.
func ResolveUpload(msg *Message) (Upload, bool) {
	if msg == nil {
		return Upload{}, false
	}
	if msg.Document != nil && msg.Document.FileID != "" {
		name := msg.Document.FileName
		if name == "" {
			name = "Report.pdf"
		}
		return Upload{Kind: UploadDocument, FileID: msg.Document.FileID, FileName: name}, true
	}
	if len(msg.Photo) > 0 {
		best := msg.Photo[len(msg.Photo)-1]
		if best.FileID == "" {
			return Upload{}, false
		}
		return Upload{Kind: UploadPhoto, FileID: best.FileID}, true
	}
	return Upload{}, false
}
