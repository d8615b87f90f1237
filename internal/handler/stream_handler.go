package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/hitoshi/craftsy/internal/identity"
	"github.com/hitoshi/craftsy/internal/model"
	"github.com/hitoshi/craftsy/internal/notify"
)

// NotificationSubscriber は通知イベント購読のインターフェース。
// notify.Hubの部分集合として定義する。
type NotificationSubscriber interface {
	Subscribe() *notify.Subscription
}

// SessionSubscriber はセッションスナップショット購読のインターフェース。
// identity.Hubの部分集合として定義する。
type SessionSubscriber interface {
	Subscribe() *identity.Subscription
}

// SessionViewer は最新セッションスナップショットの参照インターフェース。
// session.Gateの部分集合として定義する。
type SessionViewer interface {
	Current() model.Session
}

// StreamHandler はServer-Sent Eventsによるプッシュ配信のHTTPハンドラー。
type StreamHandler struct {
	notifications NotificationSubscriber
	sessions      SessionSubscriber
	viewer        SessionViewer
}

// NewStreamHandler はStreamHandlerを生成する。
func NewStreamHandler(notifications NotificationSubscriber, sessions SessionSubscriber, viewer SessionViewer) *StreamHandler {
	return &StreamHandler{
		notifications: notifications,
		sessions:      sessions,
		viewer:        viewer,
	}
}

// sessionSnapshotEvent はセッションスナップショットのSSEペイロード。
type sessionSnapshotEvent struct {
	State   string           `json:"state"`
	Account *accountResponse `json:"account,omitempty"`
}

// Notifications は通知イベントをSSEで配信する。
// 同一トークンのイベントはクライアント側で1つのインジケーターを更新する。
// GET /api/notifications/stream
func (h *StreamHandler) Notifications(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	sub := h.notifications.Subscribe()
	defer sub.Close()

	setSSEHeaders(w)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-sub.C:
			if !ok {
				return
			}
			if err := writeSSEEvent(w, event); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// Sessions はセッションスナップショットをSSEで配信する。
// 購読時に最新スナップショットが1件配信され、以後の変化が続く。
// GET /auth/session/stream
func (h *StreamHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	sub := h.sessions.Subscribe()
	defer sub.Close()

	setSSEHeaders(w)

	// 購読確立後に最新スナップショットを1件配信する。
	// 遅れて接続したクライアントも次の変化を待たずに現在状態を描画できる。
	if err := writeSSEEvent(w, toSessionSnapshotEvent(h.viewer.Current())); err != nil {
		return
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case snapshot, ok := <-sub.C:
			if !ok {
				return
			}
			if err := writeSSEEvent(w, toSessionSnapshotEvent(snapshot)); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// toSessionSnapshotEvent はmodel.SessionからSSEペイロードに変換する。
func toSessionSnapshotEvent(s model.Session) sessionSnapshotEvent {
	event := sessionSnapshotEvent{State: string(s.State)}
	if s.State == model.SessionAuthenticated && s.Account != nil {
		resp := toAccountResponse(*s.Account)
		event.Account = &resp
	}
	return event
}

// setSSEHeaders はSSEレスポンスのヘッダーを設定する。
func setSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
}

// writeSSEEvent はペイロードをJSONエンコードして1件のSSEイベントとして書き込む。
func writeSSEEvent(w http.ResponseWriter, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}
