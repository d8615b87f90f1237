// Package session はセッションの発行・検証とルート入場ポリシーを提供する。
package session

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/hitoshi/craftsy/internal/model"
)

// Store はゲートウェイが発行したセッションを保持する。
// リモートバックエンドは不透明なコラボレーターでありセッションを持たないため、
// セッションはプロセス内メモリで管理する。
type Store struct {
	mu      sync.Mutex
	records map[string]*model.SessionRecord
	maxAge  time.Duration
	now     func() time.Time // テストで時刻を差し替えるためのフック
}

// NewStore はStoreの新しいインスタンスを生成する。
func NewStore(maxAge time.Duration) *Store {
	return &Store{
		records: make(map[string]*model.SessionRecord),
		maxAge:  maxAge,
		now:     time.Now,
	}
}

// Create はアカウントに対する新しいセッションを発行する。
func (s *Store) Create(account model.Account) (*model.SessionRecord, error) {
	id, err := generateSessionID()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record := &model.SessionRecord{
		ID:        id,
		Account:   account,
		ExpiresAt: s.now().Add(s.maxAge),
		CreatedAt: s.now(),
	}
	s.records[id] = record
	return record, nil
}

// Find はセッションIDからセッションを検索する。
// 存在しない、または期限切れの場合はnilを返す（エラーではない）。
func (s *Store) Find(id string) *model.SessionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[id]
	if !ok {
		return nil
	}
	if s.now().After(record.ExpiresAt) {
		delete(s.records, id)
		return nil
	}
	return record
}

// Count は保持中のセッション数を返す（期限切れ分を含む）。
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Delete はセッションを破棄する。存在しないIDは無視する。
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
