package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/craftsy/internal/identity"
	"github.com/hitoshi/craftsy/internal/model"
	"github.com/hitoshi/craftsy/internal/notify"
	"github.com/hitoshi/craftsy/internal/session"
)

// newSessionStreamHandler はセッションHubとそれを購読するGateを組み立てた
// StreamHandlerを生成する。
func newSessionStreamHandler(t *testing.T, hub *identity.Hub) *StreamHandler {
	t.Helper()
	gate := session.NewGate(hub)
	t.Cleanup(gate.Close)
	return NewStreamHandler(notify.NewHub(discardLogger()), hub, gate)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// parseSSEEvents はSSEレスポンスボディからdata行のJSONペイロードを取り出す。
func parseSSEEvents(t *testing.T, body string) []string {
	t.Helper()
	var payloads []string
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(line, "data: ") {
			payloads = append(payloads, strings.TrimPrefix(line, "data: "))
		}
	}
	return payloads
}

// TestNotificationStream_DeliversEvents は通知イベントがSSEで配信されることを検証する。
func TestNotificationStream_DeliversEvents(t *testing.T) {
	hub := notify.NewHub(discardLogger())
	identityHub := identity.NewHub()
	gate := session.NewGate(identityHub)
	t.Cleanup(gate.Close)
	h := NewStreamHandler(hub, identityHub, gate)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/notifications/stream", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		h.Notifications(w, req)
		close(done)
	}()

	// 購読が確立するまで待つ
	time.Sleep(20 * time.Millisecond)

	token := hub.Begin("商品を出品しています...")
	hub.Success(token, "出品が完了しました。")

	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done

	resp := w.Result()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want %q", ct, "text/event-stream")
	}

	payloads := parseSSEEvents(t, w.Body.String())
	if len(payloads) != 2 {
		t.Fatalf("events = %d, want 2\nbody: %s", len(payloads), w.Body.String())
	}

	var first, second notify.Event
	if err := json.Unmarshal([]byte(payloads[0]), &first); err != nil {
		t.Fatalf("failed to decode first event: %v", err)
	}
	if err := json.Unmarshal([]byte(payloads[1]), &second); err != nil {
		t.Fatalf("failed to decode second event: %v", err)
	}

	if first.Phase != notify.PhasePending {
		t.Errorf("first phase = %q, want %q", first.Phase, notify.PhasePending)
	}
	if second.Phase != notify.PhaseSuccess {
		t.Errorf("second phase = %q, want %q", second.Phase, notify.PhaseSuccess)
	}
	if first.Token != second.Token {
		t.Errorf("tokens differ: %q vs %q", first.Token, second.Token)
	}
}

// TestSessionStream_DeliversSnapshots はセッション変化がSSEで配信されることを検証する。
func TestSessionStream_DeliversSnapshots(t *testing.T) {
	hub := identity.NewHub()
	h := newSessionStreamHandler(t, hub)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/auth/session/stream", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		h.Sessions(w, req)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)

	hub.Publish(model.AuthenticatedSession(&model.Account{
		ID:    "account-1",
		Email: "buyer@example.com",
	}))
	hub.Publish(model.UnauthenticatedSession())

	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done

	payloads := parseSSEEvents(t, w.Body.String())
	if len(payloads) < 2 {
		t.Fatalf("events = %d, want >= 2\nbody: %s", len(payloads), w.Body.String())
	}

	var authed, signedOut sessionSnapshotEvent
	if err := json.Unmarshal([]byte(payloads[len(payloads)-2]), &authed); err != nil {
		t.Fatalf("failed to decode event: %v", err)
	}
	if err := json.Unmarshal([]byte(payloads[len(payloads)-1]), &signedOut); err != nil {
		t.Fatalf("failed to decode event: %v", err)
	}

	if authed.State != string(model.SessionAuthenticated) {
		t.Errorf("state = %q, want %q", authed.State, model.SessionAuthenticated)
	}
	if authed.Account == nil || authed.Account.Email != "buyer@example.com" {
		t.Errorf("unexpected account: %+v", authed.Account)
	}
	if signedOut.State != string(model.SessionUnauthenticated) {
		t.Errorf("state = %q, want %q", signedOut.State, model.SessionUnauthenticated)
	}
	if signedOut.Account != nil {
		t.Errorf("account should be omitted after sign-out, got %+v", signedOut.Account)
	}
}

// TestSessionStream_InitialSnapshot は接続直後に最新スナップショットが
// 1件配信されることを検証する。遅れて接続したクライアントは次の変化を
// 待たずに現在の認証状態を受け取る。
func TestSessionStream_InitialSnapshot(t *testing.T) {
	hub := identity.NewHub()
	h := newSessionStreamHandler(t, hub)

	hub.Publish(model.AuthenticatedSession(&model.Account{
		ID:    "account-1",
		Email: "buyer@example.com",
	}))

	// Gateの購読ゴルーチンがスナップショットを取り込むまで待つ
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/auth/session/stream", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		h.Sessions(w, req)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done

	payloads := parseSSEEvents(t, w.Body.String())
	if len(payloads) != 1 {
		t.Fatalf("events = %d, want 1\nbody: %s", len(payloads), w.Body.String())
	}

	var initial sessionSnapshotEvent
	if err := json.Unmarshal([]byte(payloads[0]), &initial); err != nil {
		t.Fatalf("failed to decode initial event: %v", err)
	}
	if initial.State != string(model.SessionAuthenticated) {
		t.Errorf("state = %q, want %q", initial.State, model.SessionAuthenticated)
	}
	if initial.Account == nil || initial.Account.Email != "buyer@example.com" {
		t.Errorf("unexpected account: %+v", initial.Account)
	}
}

// TestSessionStream_ClosesOnContextDone はクライアント切断でハンドラーが終了することを検証する。
func TestSessionStream_ClosesOnContextDone(t *testing.T) {
	hub := identity.NewHub()
	h := newSessionStreamHandler(t, hub)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/auth/session/stream", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		h.Sessions(w, req)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler did not return after context cancellation")
	}
}
