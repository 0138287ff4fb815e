package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL, Token: "test-token"})
}

func TestSendMessage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bottest-token/sendMessage", r.URL.Path)
		var params SendMessageParams
		require.NoError(t, json.NewDecoder(r.Body).Decode(&params))
		assert.Equal(t, int64(42), params.ChatID)
		assert.Equal(t, "hello", params.Text)
		fmt.Fprint(w, `{"ok":true,"result":{"message_id":99}}`)
	})

	msgID, err := client.SendMessage(context.Background(), SendMessageParams{ChatID: 42, Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, 99, msgID)
}

func TestSendMessage_APIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"ok":false,"error_code":403,"description":"bot was blocked by the user"}`)
	})

	_, err := client.SendMessage(context.Background(), SendMessageParams{ChatID: 1, Text: "x"})
	require.Error(t, err)
	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, 403, apiErr.Code)
}

func TestIsMessageNotModified(t *testing.T) {
	err := &APIError{Code: 400, Description: "Bad Request: message is not modified"}
	assert.True(t, IsMessageNotModified(err))
	assert.False(t, IsMessageNotModified(&APIError{Code: 400, Description: "chat not found"}))
	assert.False(t, IsMessageNotModified(fmt.Errorf("network down")))
}

func TestSendDocument(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bottest-token/sendDocument", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "7", r.FormValue("chat_id"))
		assert.Equal(t, "your invoice", r.FormValue("caption"))
		file, header, err := r.FormFile("document")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "Invoice_APT1.pdf", header.Filename)
		fmt.Fprint(w, `{"ok":true,"result":{"message_id":5}}`)
	})

	err := client.SendDocument(context.Background(), 7, "Invoice_APT1.pdf", []byte("%PDF-1.4"), "your invoice")
	require.NoError(t, err)
}

func TestGetUpdates(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, float64(100), payload["offset"])
		fmt.Fprint(w, `{"ok":true,"result":[{"update_id":101,"message":{"message_id":1,"chat":{"id":9},"text":"book"}}]}`)
	})

	updates, err := client.GetUpdates(context.Background(), 100, 30)
	require.NoError(t, err)
	require.Len(t, updates, 1)
	assert.Equal(t, int64(101), updates[0].UpdateID)
	assert.Equal(t, "book", updates[0].Message.Text)
}

func TestDownloadFile(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/file/") {
			assert.Equal(t, "/file/bottest-token/documents/report.pdf", r.URL.Path)
			w.Write([]byte("%PDF-1.4 data"))
			return
		}
		fmt.Fprint(w, `{"ok":true,"result":{"file_id":"f1","file_path":"documents/report.pdf"}}`)
	})

	f, err := client.GetFile(context.Background(), "f1")
	require.NoError(t, err)
	data, err := client.DownloadFile(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 data", string(data))
}

func TestResolveUpload(t *testing.T) {
	doc := &Message{Document: &Document{FileID: "d1", FileName: "xray.pdf"}}
	up, ok := ResolveUpload(doc)
	require.True(t, ok)
	assert.Equal(t, Upload{Kind: UploadDocument, FileID: "d1", FileName: "xray.pdf"}, up)

	photo := &Message{Photo: []PhotoSize{{FileID: "small"}, {FileID: "large"}}}
	up, ok = ResolveUpload(photo)
	require.True(t, ok)
	assert.Equal(t, UploadPhoto, up.Kind)
	assert.Equal(t, "large", up.FileID, "highest resolution wins")

	_, ok = ResolveUpload(&Message{Text: "hello"})
	assert.False(t, ok)
	_, ok = ResolveUpload(nil)
	assert.False(t, ok)
}
