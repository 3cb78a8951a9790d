package telegram

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGetUpdates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/botTOKEN/getUpdates" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req getUpdatesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		if req.Offset != 7 || req.Timeout != 0 {
			t.Errorf("unexpected request %+v", req)
		}
		io.WriteString(w, `{"ok":true,"result":[{"update_id":7,"message":{"message_id":1,"date":1700000000,
			"text":"hello","from":{"id":42,"first_name":"Ann","username":"ann"},
			"chat":{"id":-100,"type":"supergroup","title":"Friends"}}}]}`)
	}))
	defer srv.Close()

	bot := NewBot("TOKEN", srv.URL)
	updates, err := bot.GetUpdates(context.Background(), 7, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(updates) != 1 {
		t.Fatalf("got %d updates, want 1", len(updates))
	}
	msg := updates[0].Message
	if msg.From.Username != "ann" || msg.Chat.Title != "Friends" || msg.Text != "hello" {
		t.Fatalf("unexpected message %+v", msg)
	}
	if !msg.Chat.IsGroup() {
		t.Fatal("supergroup should be a group")
	}
	if msg.Time().Unix() != 1700000000 {
		t.Fatalf("time: got %v", msg.Time())
	}
}

func TestSendMessageTo(t *testing.T) {
	var got sendMessageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		io.WriteString(w, `{"ok":true,"result":{}}`)
	}))
	defer srv.Close()

	if err := NewBot("T", srv.URL).SendMessageTo(context.Background(), -5, "hi"); err != nil {
		t.Fatal(err)
	}
	if got.ChatID != -5 || got.Text != "hi" {
		t.Fatalf("unexpected request %+v", got)
	}
}

func TestAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/getMe") {
			io.WriteString(w, `{"ok":false,"description":"Unauthorized"}`)
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"ok":false}`)
	}))
	defer srv.Close()

	bot := NewBot("T", srv.URL)
	if _, err := bot.GetMe(context.Background()); err == nil || !strings.Contains(err.Error(), "Unauthorized") {
		t.Fatalf("expected Unauthorized error, got %v", err)
	}
	if err := bot.SendMessageTo(context.Background(), 1, "x"); err == nil || !strings.Contains(err.Error(), "status 400") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestChatIsGroup(t *testing.T) {
	cases := []struct {
		chat Chat
		want bool
	}{
		{Chat{ID: -1, Type: "group"}, true},
		{Chat{ID: -1, Type: "supergroup"}, true},
		{Chat{ID: 5, Type: "private"}, false},
		{Chat{ID: -1, Type: "channel"}, false},
		{Chat{ID: -1}, true},
		{Chat{ID: 1}, false},
	}
	for _, c := range cases {
		if got := c.chat.IsGroup(); got != c.want {
			t.Errorf("%+v: got %v, want %v", c.chat, got, c.want)
		}
	}
}
