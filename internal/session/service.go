package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/craftsy/internal/backend"
	"github.com/hitoshi/craftsy/internal/identity"
	"github.com/hitoshi/craftsy/internal/model"
)

const (
	// minPasswordLength はパスワードの最小文字数。
	minPasswordLength = 6
	// minDisplayNameLength は新規登録時の氏名の最小文字数。
	minDisplayNameLength = 5
)

// UserSyncer はサインイン成功時のユーザープロフィール同期インターフェース。
// backend.Clientの部分集合として定義する。
type UserSyncer interface {
	SyncUser(ctx context.Context, profile *backend.UserProfile) error
}

// Service はサインイン・サインアウトのビジネスロジックを提供する。
// セッションの発行と破棄を行い、変化をHubへ発行する。
type Service struct {
	provider identity.Provider
	store    *Store
	hub      *identity.Hub
	syncer   UserSyncer
	logger   *slog.Logger
}

// NewService はServiceを生成する。
func NewService(provider identity.Provider, store *Store, hub *identity.Hub, syncer UserSyncer, logger *slog.Logger) *Service {
	return &Service{
		provider: provider,
		store:    store,
		hub:      hub,
		syncer:   syncer,
		logger:   logger,
	}
}

// RegisterInput は新規登録フォームからの入力を表す。
// PhotoURLは画像アップロードAPIで取得済みのアバターURL（任意）。
type RegisterInput struct {
	Email       string
	Password    string
	DisplayName string
	PhotoURL    string
}

// Register は新規アカウントを作成し、確認メールを送信する。
//
// セッションは発行しない: パスワードサインインはメール確認が済むまで
// 成立しないため、登録直後もサインアウト状態のままとする。
// Hubへのセッション発行も行わない。
//
// 処理の流れ:
//  1. 入力のローカル検証（ネットワーク呼び出し前）
//  2. プロバイダーでのアカウント作成
//  3. 表示名・アバターURLのプロフィール設定
//  4. 確認メールの送信
//  5. バックエンドへのプロフィール同期（ベストエフォート）
func (s *Service) Register(ctx context.Context, input RegisterInput) (*model.Account, error) {
	// 1. ローカル検証
	if len([]rune(strings.TrimSpace(input.DisplayName))) < minDisplayNameLength {
		return nil, model.NewValidationError(fmt.Sprintf("氏名は%d文字以上で入力してください", minDisplayNameLength))
	}
	if err := validateCredentials(input.Email, input.Password); err != nil {
		return nil, err
	}

	// 2. アカウント作成
	result, err := s.provider.SignUp(ctx, input.Email, input.Password)
	if err != nil {
		return nil, err
	}

	// 3. プロフィール設定
	if err := s.provider.UpdateProfile(ctx, result.IDToken, input.DisplayName, input.PhotoURL); err != nil {
		return nil, err
	}

	// 4. 確認メール送信
	if err := s.provider.SendVerificationEmail(ctx, result.IDToken); err != nil {
		return nil, err
	}

	// 5. プロフィール同期はベストエフォート。失敗しても登録は成立させる。
	if err := s.syncer.SyncUser(ctx, &backend.UserProfile{
		Email: result.Account.Email,
		Name:  input.DisplayName,
		Image: input.PhotoURL,
	}); err != nil {
		s.logger.Error("user profile sync failed",
			slog.String("email", result.Account.Email),
			slog.String("error", err.Error()),
		)
	}

	account := result.Account
	account.DisplayName = input.DisplayName
	account.PhotoURL = input.PhotoURL

	s.logger.Info("user registered",
		slog.String("user_id", account.ID),
		slog.String("email", account.Email),
	)
	return &account, nil
}

// SignInWithPassword はメール+パスワードでサインインし、セッションを発行する。
//
// メール未確認のアカウントは利用不可として扱う: プロバイダー側のサインインは
// 成立していても、セッションを発行せず（強制サインアウトに相当）、
// VERIFICATION_REQUIREDを返す。認証済みとして入場可能な状態には決して到達しない。
func (s *Service) SignInWithPassword(ctx context.Context, email, password string) (*model.SessionRecord, error) {
	// 入力検証はネットワーク呼び出し前に行う
	if err := validateCredentials(email, password); err != nil {
		return nil, err
	}

	result, err := s.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}

	if !result.Account.EmailVerified {
		s.logger.Info("unverified sign-in reverted",
			slog.String("email", result.Account.Email),
		)
		return nil, model.NewVerificationRequiredError()
	}

	return s.establish(ctx, result.Account)
}

// SignInWithIDToken はOAuthポップアップ結果のIDトークンでサインインし、
// セッションを発行する。メール確認の強制はパスワードサインインのみで
// 行われるという観測挙動をそのまま踏襲する。
func (s *Service) SignInWithIDToken(ctx context.Context, idToken string) (*model.SessionRecord, error) {
	if strings.TrimSpace(idToken) == "" {
		return nil, model.NewValidationError("IDトークンが空です")
	}

	result, err := s.provider.SignInWithIDToken(ctx, idToken)
	if err != nil {
		return nil, err
	}

	return s.establish(ctx, result.Account)
}

// SignOut はセッションを破棄し、未認証状態をHubへ発行する。
func (s *Service) SignOut(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	s.store.Delete(sessionID)
	s.hub.Publish(model.UnauthenticatedSession())

	s.logger.Info("user signed out", slog.String("session_id", sessionID))
	return nil
}

// RequestVerificationEmail は確認メールを再送する。
// プロバイダーへのサインインでIDトークンを取得し、確認メール送信に使う。
// セッションは発行しない。
func (s *Service) RequestVerificationEmail(ctx context.Context, email, password string) error {
	if err := validateCredentials(email, password); err != nil {
		return err
	}

	result, err := s.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		return err
	}

	return s.provider.SendVerificationEmail(ctx, result.IDToken)
}

// RequestPasswordReset はパスワードリセットメールを送信する。
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	if strings.TrimSpace(email) == "" {
		return model.NewValidationError("メールアドレスが空です")
	}
	return s.provider.SendPasswordResetEmail(ctx, email)
}

// establish はセッションを発行し、プロフィール同期とHub発行を行う。
func (s *Service) establish(ctx context.Context, account model.Account) (*model.SessionRecord, error) {
	record, err := s.store.Create(account)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	// プロフィール同期はベストエフォート。失敗してもサインインは成立させる。
	name := account.DisplayName
	if name == "" {
		if at := strings.Index(account.Email, "@"); at > 0 {
			name = account.Email[:at]
		}
	}
	if err := s.syncer.SyncUser(ctx, &backend.UserProfile{
		Email: account.Email,
		Name:  name,
		Image: account.PhotoURL,
	}); err != nil {
		s.logger.Error("user profile sync failed",
			slog.String("email", account.Email),
			slog.String("error", err.Error()),
		)
	}

	s.hub.Publish(model.AuthenticatedSession(&account))

	s.logger.Info("user signed in",
		slog.String("user_id", account.ID),
		slog.String("email", account.Email),
	)
	return record, nil
}

// validateCredentials はサインイン入力のローカル検証を行う。
func validateCredentials(email, password string) error {
	if strings.TrimSpace(email) == "" {
		return model.NewValidationError("メールアドレスが空です")
	}
	if len(password) < minPasswordLength {
		return model.NewValidationError(fmt.Sprintf("パスワードは%d文字以上で指定してください", minPasswordLength))
	}
	return nil
}
