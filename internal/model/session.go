// Package model はドメインモデルを定義する。
package model

import "time"

// SessionState はセッションの3状態を表す。
type SessionState string

const (
	// SessionPending はIDプロバイダーからの最初のイベントを待っている状態。
	// この状態では許可もリダイレクトも行わない。
	SessionPending SessionState = "pending"
	// SessionUnauthenticated は未認証状態。エラーではなく通常の状態として扱う。
	SessionUnauthenticated SessionState = "unauthenticated"
	// SessionAuthenticated は認証済み状態。Accountを伴う。
	SessionAuthenticated SessionState = "authenticated"
)

// Account はIDプロバイダーが保持するユーザー情報のスナップショットを表す。
type Account struct {
	ID            string
	Email         string
	DisplayName   string
	PhotoURL      string
	EmailVerified bool
}

// Session はクライアントから見た現在の認証状態を表す。
// IDプロバイダーのストリームイベントごとに新しいスナップショットが生成され、
// スナップショット自体は変更されない。
type Session struct {
	State   SessionState
	Account *Account
}

// PendingSession は初回イベント未到達のセッションを返す。
func PendingSession() Session {
	return Session{State: SessionPending}
}

// UnauthenticatedSession は未認証のセッションを返す。
func UnauthenticatedSession() Session {
	return Session{State: SessionUnauthenticated}
}

// AuthenticatedSession は認証済みのセッションを返す。
func AuthenticatedSession(account *Account) Session {
	return Session{State: SessionAuthenticated, Account: account}
}

// Email は認証済みセッションのメールアドレスを返す。未認証の場合は空文字。
func (s Session) Email() string {
	if s.State != SessionAuthenticated || s.Account == nil {
		return ""
	}
	return s.Account.Email
}

// SessionRecord はゲートウェイが発行したセッションを表す。
// Cookieで参照され、有効期限が切れると無効になる。
type SessionRecord struct {
	ID        string
	Account   Account
	ExpiresAt time.Time
	CreatedAt time.Time
}
