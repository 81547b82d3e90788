package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/FazalZamanKhan/SociallyMobileApp-Backend/internal/apperr"
	"github.com/FazalZamanKhan/SociallyMobileApp-Backend/internal/paging"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type sequenceIDs struct {
	next int
}

func (s *sequenceIDs) NewID() (string, error) {
	s.next++
	return fmt.Sprintf("device-%d", s.next), nil
}

func openTestDatabase(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "notifications.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&Record{}, &DeviceEndpoint{}); err != nil {
		t.Fatalf("failed to migrate notification schema: %v", err)
	}
	return db
}

func newTestService(t *testing.T) (*Service, *time.Time) {
	t.Helper()
	now := time.Unix(1700000000, 0).UTC()
	service, err := NewService(ServiceConfig{
		Database:   openTestDatabase(t),
		Clock:      func() time.Time { return now },
		IDProvider: &sequenceIDs{},
	})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return service, &now
}

func TestRecordPersistsPayload(t *testing.T) {
	service, _ := newTestService(t)
	record, err := service.Record(context.Background(), Notice{
		UserID:  "bob",
		Type:    TypeMessage,
		Title:   "New Message",
		Body:    "alice: hi",
		Payload: map[string]any{"message_id": 7, "sender_id": "alice"},
	})
	if err != nil {
		t.Fatalf("record failed: %v", err)
	}
	if record.ID == 0 || record.CreatedAtSeconds != 1700000000 {
		t.Fatalf("unexpected record %#v", record)
	}
	var payload map[string]any
	if err := json.Unmarshal(record.Payload, &payload); err != nil {
		t.Fatalf("payload is not json: %v", err)
	}
	if payload["sender_id"] != "alice" {
		t.Fatalf("unexpected payload %v", payload)
	}
}

func TestRecordRejectsUnknownType(t *testing.T) {
	service, _ := newTestService(t)
	_, err := service.Record(context.Background(), Notice{UserID: "bob", Type: "poke"})
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestMarkReadOnlyTouchesOwnUnreadNotifications(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()
	own, _ := service.Record(ctx, Notice{UserID: "bob", Type: TypeLike, Title: "t", Body: "b"})
	other, _ := service.Record(ctx, Notice{UserID: "carol", Type: TypeLike, Title: "t", Body: "b"})

	result, err := service.MarkRead(ctx, "bob", []int64{own.ID, other.ID, 999}, false)
	if err != nil {
		t.Fatalf("mark read failed: %v", err)
	}
	if result.Count != 1 || len(result.IDs) != 1 || result.IDs[0] != own.ID {
		t.Fatalf("unexpected result %#v", result)
	}

	again, err := service.MarkRead(ctx, "bob", []int64{own.ID}, false)
	if err != nil {
		t.Fatalf("second mark read failed: %v", err)
	}
	if again.Count != 0 {
		t.Fatalf("expected idempotent mark read, got %#v", again)
	}

	if _, err := service.MarkRead(ctx, "bob", nil, false); !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("expected validation error without ids, got %v", err)
	}
}

func TestMarkReadReportsOnlyRowsItChanged(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()
	var ids []int64
	for index := 0; index < 6; index++ {
		record, err := service.Record(ctx, Notice{UserID: "bob", Type: TypeLike, Title: "t", Body: "b"})
		if err != nil {
			t.Fatalf("record failed: %v", err)
		}
		ids = append(ids, record.ID)
	}

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results []MarkReadResult
		callErr error
	)
	for caller := 0; caller < 4; caller++ {
		markAll := caller%2 == 0
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := service.MarkRead(ctx, "bob", ids, markAll)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				callErr = err
				return
			}
			results = append(results, result)
		}()
	}
	wg.Wait()
	if callErr != nil {
		t.Fatalf("mark read failed: %v", callErr)
	}

	seen := make(map[int64]bool)
	var total int64
	for _, result := range results {
		if result.Count != int64(len(result.IDs)) {
			t.Fatalf("count %d disagrees with ids %v", result.Count, result.IDs)
		}
		for _, id := range result.IDs {
			if seen[id] {
				t.Fatalf("notification %d reported by two callers", id)
			}
			seen[id] = true
		}
		total += result.Count
	}
	if total != int64(len(ids)) {
		t.Fatalf("expected %d marked overall, got %d", len(ids), total)
	}

	again, err := service.MarkRead(ctx, "bob", ids, false)
	if err != nil {
		t.Fatalf("repeat mark read failed: %v", err)
	}
	if again.Count != 0 || len(again.IDs) != 0 {
		t.Fatalf("expected nothing left to mark, got %#v", again)
	}
}

func TestMarkAllAndListUnread(t *testing.T) {
	service, now := newTestService(t)
	ctx := context.Background()
	for index := 0; index < 3; index++ {
		*now = now.Add(time.Second)
		if _, err := service.Record(ctx, Notice{UserID: "bob", Type: TypeComment, Title: "t", Body: "b"}); err != nil {
			t.Fatalf("record failed: %v", err)
		}
	}

	listed, err := service.List(ctx, "bob", paging.NewRequest(1, 2), true)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if listed.UnreadCount != 3 || listed.Page.TotalItems != 3 || len(listed.Page.Items) != 2 || !listed.Page.HasNext {
		t.Fatalf("unexpected listing %#v", listed)
	}
	if listed.Page.Items[0].CreatedAtSeconds < listed.Page.Items[1].CreatedAtSeconds {
		t.Fatalf("expected newest first")
	}

	result, err := service.MarkRead(ctx, "bob", nil, true)
	if err != nil {
		t.Fatalf("mark all failed: %v", err)
	}
	if result.Count != 3 {
		t.Fatalf("expected 3 marked, got %d", result.Count)
	}

	listed, err = service.List(ctx, "bob", paging.NewRequest(1, 20), true)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if listed.UnreadCount != 0 || len(listed.Page.Items) != 0 {
		t.Fatalf("expected nothing unread, got %#v", listed)
	}
}

func TestRegisterDeviceUpsertsByToken(t *testing.T) {
	service, now := newTestService(t)
	ctx := context.Background()

	first, err := service.RegisterDevice(ctx, "bob", "token-1", "ios")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if first.DeviceKind != DeviceIOS || !first.Active {
		t.Fatalf("unexpected endpoint %#v", first)
	}

	if err := service.DeactivateDevice(ctx, "bob", "token-1"); err != nil {
		t.Fatalf("deactivate failed: %v", err)
	}
	endpoints, err := service.ActiveEndpoints(ctx, "bob")
	if err != nil || len(endpoints) != 0 {
		t.Fatalf("expected no active endpoints, got %v (%v)", endpoints, err)
	}

	*now = now.Add(time.Minute)
	second, err := service.RegisterDevice(ctx, "bob", "token-1", "windows-phone")
	if err != nil {
		t.Fatalf("re-register failed: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected upsert to keep id %s, got %s", first.ID, second.ID)
	}
	if second.DeviceKind != DeviceAndroid || !second.Active || second.UpdatedAtSeconds != now.Unix() {
		t.Fatalf("unexpected endpoint after upsert %#v", second)
	}

	if err := service.DeactivateDevice(ctx, "bob", "missing"); !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := service.RegisterDevice(ctx, "bob", " ", "ios"); !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
