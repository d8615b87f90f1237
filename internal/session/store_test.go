package session

import (
	"testing"
	"time"

	"github.com/hitoshi/craftsy/internal/model"
)

func TestStore_CreateAndFind(t *testing.T) {
	store := NewStore(time.Hour)

	record, err := store.Create(model.Account{ID: "u1", Email: "buyer@example.com", EmailVerified: true})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if record.ID == "" {
		t.Fatal("セッションIDが空")
	}

	found := store.Find(record.ID)
	if found == nil {
		t.Fatal("発行直後のセッションが見つからない")
	}
	if found.Account.Email != "buyer@example.com" {
		t.Errorf("Email = %q, want buyer@example.com", found.Account.Email)
	}
}

func TestStore_Find_UnknownID_ReturnsNil(t *testing.T) {
	store := NewStore(time.Hour)

	if found := store.Find("no-such-session"); found != nil {
		t.Errorf("found = %+v, want nil", found)
	}
}

func TestStore_Find_Expired_ReturnsNil(t *testing.T) {
	store := NewStore(time.Hour)

	record, err := store.Create(model.Account{ID: "u1", Email: "buyer@example.com"})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	// 時刻を有効期限の先へ進める
	store.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	if found := store.Find(record.ID); found != nil {
		t.Errorf("期限切れセッションが返された: %+v", found)
	}
}

func TestStore_Delete(t *testing.T) {
	store := NewStore(time.Hour)

	record, err := store.Create(model.Account{ID: "u1", Email: "buyer@example.com"})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	store.Delete(record.ID)

	if found := store.Find(record.ID); found != nil {
		t.Errorf("削除済みセッションが返された: %+v", found)
	}

	// 存在しないIDの削除は無視される
	store.Delete("no-such-session")
}

func TestStore_GeneratedIDsAreUnique(t *testing.T) {
	store := NewStore(time.Hour)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		record, err := store.Create(model.Account{ID: "u1", Email: "buyer@example.com"})
		if err != nil {
			t.Fatalf("Create returned error: %v", err)
		}
		if seen[record.ID] {
			t.Fatalf("セッションIDが重複した: %s", record.ID)
		}
		seen[record.ID] = true
	}
}
