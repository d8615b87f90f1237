// Package order は注文のワークフローを提供する。
//
// 注文はセッションに紐づく変更操作であり、発注・一覧・削除を扱う。
// 削除は確認ステップを経た場合のみリモート呼び出しを行う二段階方式で、
// 成功時はキャッシュ済みの一覧を再取得なしでその場で更新する。
package order

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/craftsy/internal/backend"
	"github.com/hitoshi/craftsy/internal/model"
	"github.com/hitoshi/craftsy/internal/notify"
)

// OrderClient はワークフローが利用するリモート注文ストア操作の最小インターフェース。
type OrderClient interface {
	ListOrders(ctx context.Context, email string) ([]model.Order, error)
	PlaceOrder(ctx context.Context, order *model.Order) (*backend.PlaceOrderResult, error)
	DeleteOrder(ctx context.Context, orderID, email string) error
}

// Workflow は注文操作を調停する。
//
// 注文一覧はメールアドレス単位でメモリにキャッシュし、
// セッションのメールアドレスが変わったときのみ再取得する。
// 削除の状態遷移: 待機 -> 確認待ち（RequestDelete） -> 削除中（ConfirmDelete）
// -> 成功で一覧から除去、失敗で待機に戻る（一覧は変更しない）。
// Cancelは確認待ちマーカーを消すだけで、一覧には触れない。
type Workflow struct {
	client   OrderClient
	notifier notify.Notifier
	logger   *slog.Logger
	now      func() time.Time

	mu          sync.Mutex
	cachedEmail string
	cached      []model.Order
	loaded      bool
	// pending は注文IDから削除確定に必要なトークンへのマップ。
	// 一致しない確定要求は拒否する。
	pending map[string]string
	// deleteTokens は注文IDから通知インジケーターのトークンへのマップ。
	// 失敗した削除の再試行が同一インジケーターを更新し続けるため、
	// 失敗後も保持し、成功時に消す。
	deleteTokens map[string]string
}

// NewWorkflow はWorkflowの新しいインスタンスを生成する。
func NewWorkflow(client OrderClient, notifier notify.Notifier, logger *slog.Logger) *Workflow {
	return &Workflow{
		client:       client,
		notifier:     notifier,
		logger:       logger,
		now:          time.Now,
		pending:      make(map[string]string),
		deleteTokens: make(map[string]string),
	}
}

// Place は商品を注文する。
//
// 処理の流れ:
//  1. セッション検査（未認証はリダイレクトシグナルとなるエラーを返し、リモート書き込みなし）
//  2. 注文時点の商品フィールドのスナップショットを作成する
//     （以後の商品変更は既存注文に影響しない）
//  3. リモート注文ストアへ書き込み、成功時のみキャッシュ済み一覧へ追加する
//
// 失敗時はキャッシュを変更せず、サーバーのメッセージを通知で表面化する。
func (w *Workflow) Place(ctx context.Context, session model.Session, product *model.Product) (*model.Order, error) {
	// 1. セッション検査
	if session.State != model.SessionAuthenticated {
		return nil, model.NewSessionRequiredError()
	}

	token := w.notifier.Begin("注文を処理しています...")

	// 2. スナップショット作成
	order := model.NewOrderSnapshot(product, session.Email(), w.now().UTC())

	// 3. リモート書き込み
	result, err := w.client.PlaceOrder(ctx, order)
	if err != nil {
		w.notifier.Error(token, userMessage(err))
		return nil, err
	}
	order.ID = result.ID

	// 成功した注文のみキャッシュ済み一覧へ反映する
	w.mu.Lock()
	if w.loaded && w.cachedEmail == order.BuyerEmail {
		w.cached = append(w.cached, *order)
	}
	w.mu.Unlock()

	w.logger.Info("注文を作成",
		slog.String("order_id", order.ID),
		slog.String("product_id", order.ProductID),
		slog.String("email", order.BuyerEmail))
	w.notifier.Success(token, "注文が完了しました。")

	return order, nil
}

// List はセッションのメールアドレスに紐づく注文一覧を返す。
//
// 一覧はメモリにキャッシュされ、同じメールアドレスの間は再取得しない。
// セッションのメールアドレスが変わった場合（別ユーザーのサインイン）は
// キャッシュを破棄して再取得する。
func (w *Workflow) List(ctx context.Context, session model.Session) ([]model.Order, error) {
	if session.State != model.SessionAuthenticated {
		return nil, model.NewSessionRequiredError()
	}
	email := session.Email()

	w.mu.Lock()
	if w.loaded && w.cachedEmail == email {
		orders := make([]model.Order, len(w.cached))
		copy(orders, w.cached)
		w.mu.Unlock()
		return orders, nil
	}
	w.mu.Unlock()

	orders, err := w.client.ListOrders(ctx, email)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	w.cachedEmail = email
	w.cached = orders
	w.loaded = true
	// メールアドレスが変わった場合、前のユーザーの確認待ちマーカーは無効
	w.pending = make(map[string]string)
	w.deleteTokens = make(map[string]string)
	w.mu.Unlock()

	result := make([]model.Order, len(orders))
	copy(result, orders)
	return result, nil
}

// RequestDelete は注文削除の確認ステップを開始する。
//
// 返されたトークンをConfirmDeleteに添えた場合のみリモート削除が実行される。
// この段階ではリモート呼び出しを一切行わない。
// 対象注文がキャッシュ済み一覧に存在しない場合はORDER_NOT_FOUNDを返す。
func (w *Workflow) RequestDelete(session model.Session, orderID string) (string, error) {
	if session.State != model.SessionAuthenticated {
		return "", model.NewSessionRequiredError()
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.containsLocked(orderID) {
		return "", model.NewOrderNotFoundError(orderID)
	}

	// 既に確認待ちの場合は新しいトークンで置き換える
	confirmToken := uuid.New().String()
	w.pending[orderID] = confirmToken

	return confirmToken, nil
}

// CancelDelete は確認待ちの削除要求を取り消す。
// マーカーを消すだけで、注文にもリモートストアにも影響しない。
// 確認待ちでない注文に対して呼んでも何もしない。
func (w *Workflow) CancelDelete(orderID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.pending, orderID)
}

// ConfirmDelete は確認済みの削除を実行する。
//
// RequestDeleteで発行されたトークンが一致する場合のみリモート削除を行う。
// 確認ステップを経ていない削除要求はCONFIRM_REQUIREDで拒否され、
// リモート呼び出しは一切発生しない。
//
// 成功時: キャッシュ済み一覧からその場で除去する（再取得なし）。
// 失敗時: 一覧は変更されず、サーバーのメッセージが通知で表面化する。
// 同じ注文への削除の再試行は同一の通知インジケーターを更新する。
func (w *Workflow) ConfirmDelete(ctx context.Context, session model.Session, orderID, confirmToken string) error {
	if session.State != model.SessionAuthenticated {
		return model.NewSessionRequiredError()
	}

	// 1. 確認トークンの照合（不一致はリモート呼び出しなし）
	w.mu.Lock()
	expected, ok := w.pending[orderID]
	if !ok || expected != confirmToken {
		w.mu.Unlock()
		return model.NewConfirmRequiredError()
	}

	// 2. 通知インジケーターの開始（再試行は既存インジケーターを再利用）
	notifyToken, ok := w.deleteTokens[orderID]
	if !ok {
		notifyToken = w.notifier.Begin("注文を削除しています...")
		w.deleteTokens[orderID] = notifyToken
	} else {
		w.notifier.Pending(notifyToken, "注文を削除しています...")
	}
	w.mu.Unlock()

	// 3. リモート削除
	if err := w.client.DeleteOrder(ctx, orderID, session.Email()); err != nil {
		// 失敗: 一覧は変更しない。確認マーカーを消して待機状態に戻す。
		// 通知トークンは再試行のために保持する。
		w.mu.Lock()
		delete(w.pending, orderID)
		w.mu.Unlock()
		w.notifier.Error(notifyToken, userMessage(err))
		return err
	}

	// 4. 成功: キャッシュ済み一覧からその場で除去する
	w.mu.Lock()
	for i := range w.cached {
		if w.cached[i].ID == orderID {
			w.cached = append(w.cached[:i], w.cached[i+1:]...)
			break
		}
	}
	delete(w.pending, orderID)
	delete(w.deleteTokens, orderID)
	w.mu.Unlock()

	w.logger.Info("注文を削除",
		slog.String("order_id", orderID),
		slog.String("email", session.Email()))
	w.notifier.Success(notifyToken, "注文を削除しました。")

	return nil
}

// containsLocked はキャッシュ済み一覧に注文が存在するか調べる。
// 呼び出し元がw.muを保持していること。
func (w *Workflow) containsLocked(orderID string) bool {
	for i := range w.cached {
		if w.cached[i].ID == orderID {
			return true
		}
	}
	return false
}

// userMessage はエラーからUI表示用メッセージを取り出す。
func userMessage(err error) string {
	if apiErr, ok := err.(*model.APIError); ok {
		return apiErr.Message
	}
	return model.NewUpstreamError("").Message
}
