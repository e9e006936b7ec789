package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestTelegram_SendsHTMLMessage(t *testing.T) {
	var gotPath string
	var payload telegramPayload
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&payload)
		w.WriteHeader(200)
	}))
	defer ts.Close()

	tg := NewTelegram("token123")
	tg.BaseURL = ts.URL
	if err := tg.Send(context.Background(), "chat-42", "Failover: web", "details"); err != nil {
		t.Fatalf("send err: %v", err)
	}

	if gotPath != "/bottoken123/sendMessage" {
		t.Fatalf("path = %s", gotPath)
	}
	if payload.ChatID != "chat-42" || payload.ParseMode != "HTML" {
		t.Fatalf("payload = %+v", payload)
	}
	if !strings.HasPrefix(payload.Text, "<b>Failover: web</b>\n") {
		t.Fatalf("text = %q", payload.Text)
	}
}

func TestTelegram_Non2xx(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(500)
	}))
	defer ts.Close()

	tg := NewTelegram("token123")
	tg.BaseURL = ts.URL
	if err := tg.Send(context.Background(), "chat-42", "x", "y"); err == nil {
		t.Fatal("expected error on non-2xx")
	}
}

func TestTelegram_DisabledWithoutToken(t *testing.T) {
	if tg := NewTelegram(""); tg != nil {
		t.Fatal("want nil client without a token")
	}
}
