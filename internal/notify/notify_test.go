package notify_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/garnizeh/talentmail/internal/config"
	"github.com/garnizeh/talentmail/internal/notify"
)

type botServer struct {
	mu    sync.Mutex
	texts []string
	chats []string
}

func (b *botServer) handler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.HasSuffix(r.URL.Path, "/getMe"):
		_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"talentmail","username":"talentmail_bot"}}`))
	case strings.HasSuffix(r.URL.Path, "/sendMessage"):
		_ = r.ParseForm()
		b.mu.Lock()
		b.texts = append(b.texts, r.Form.Get("text"))
		b.chats = append(b.chats, r.Form.Get("chat_id"))
		b.mu.Unlock()
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":42,"type":"private"}}}`))
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":404,"description":"Not Found"}`))
	}
}

func TestTelegram_Notify(t *testing.T) {
	b := &botServer{}
	srv := httptest.NewServer(http.HandlerFunc(b.handler))
	defer srv.Close()

	tg, err := notify.NewTelegram(config.TelegramConfig{Token: "abc", ChatID: 42}, srv.URL+"/bot%s/%s", srv.Client())
	if err != nil {
		t.Fatalf("NewTelegram: %v", err)
	}
	if err := tg.Notify(context.Background(), "A-List sent to 3 recipients"); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.texts) != 1 || b.texts[0] != "talentmail: A-List sent to 3 recipients" {
		t.Fatalf("unexpected texts: %v", b.texts)
	}
	if b.chats[0] != "42" {
		t.Fatalf("unexpected chat id: %v", b.chats)
	}
}

func TestTelegram_CancelledContext(t *testing.T) {
	b := &botServer{}
	srv := httptest.NewServer(http.HandlerFunc(b.handler))
	defer srv.Close()

	tg, err := notify.NewTelegram(config.TelegramConfig{Token: "abc", ChatID: 42}, srv.URL+"/bot%s/%s", srv.Client())
	if err != nil {
		t.Fatalf("NewTelegram: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := tg.Notify(ctx, "x"); err == nil {
		t.Fatalf("expected context error")
	}
}

func TestNew_UnconfiguredIsNop(t *testing.T) {
	n := notify.New(config.TelegramConfig{}, nil, nil)
	if _, ok := n.(notify.Nop); !ok {
		t.Fatalf("expected Nop, got %T", n)
	}
	if err := n.Notify(context.Background(), "ignored"); err != nil {
		t.Fatalf("Nop returned error: %v", err)
	}
}
