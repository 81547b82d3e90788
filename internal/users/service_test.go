package users

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/FazalZamanKhan/SociallyMobileApp-Backend/internal/apperr"
	"github.com/FazalZamanKhan/SociallyMobileApp-Backend/internal/presence"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type stubPresence struct {
	touched  map[string]bool
	statuses map[string]presence.Status
}

func (p *stubPresence) Touch(_ context.Context, userID string, online bool, _ time.Time) error {
	if p.touched == nil {
		p.touched = map[string]bool{}
	}
	p.touched[userID] = online
	return nil
}

func (p *stubPresence) Lookup(_ context.Context, userIDs []string) (map[string]presence.Status, error) {
	result := map[string]presence.Status{}
	for _, id := range userIDs {
		if status, ok := p.statuses[id]; ok {
			result[id] = status
		}
	}
	return result, nil
}

func newTestService(t *testing.T, store PresenceStore) *Service {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "users.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&User{}); err != nil {
		t.Fatalf("failed to migrate user schema: %v", err)
	}
	service, err := NewService(ServiceConfig{
		Database: db,
		Clock: func() time.Time {
			return time.Unix(1700000000, 0)
		},
		Presence: store,
	})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return service
}

func TestUpsertAndExists(t *testing.T) {
	service := newTestService(t, nil)
	ctx := context.Background()

	exists, err := service.Exists(ctx, "user-1")
	if err != nil {
		t.Fatalf("exists failed: %v", err)
	}
	if exists {
		t.Fatalf("expected unknown user")
	}

	if err := service.Upsert(ctx, Profile{ID: "user-1", Username: "alice"}); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if err := service.Upsert(ctx, Profile{ID: "user-1", Username: "alice2", AvatarURL: "a.png"}); err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}

	exists, err = service.Exists(ctx, "user-1")
	if err != nil || !exists {
		t.Fatalf("expected user to exist, err=%v", err)
	}

	profile, err := service.Profile(ctx, "user-1")
	if err != nil {
		t.Fatalf("profile failed: %v", err)
	}
	if profile.Username != "alice2" || profile.AvatarURL != "a.png" {
		t.Fatalf("expected refreshed profile, got %#v", profile)
	}
}

func TestUpsertRejectsMissingUsername(t *testing.T) {
	service := newTestService(t, nil)
	err := service.Upsert(context.Background(), Profile{ID: "user-1"})
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestProfileNotFound(t *testing.T) {
	service := newTestService(t, nil)
	_, err := service.Profile(context.Background(), "ghost")
	if !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateStatusStampsLastSeenAndTouchesPresence(t *testing.T) {
	store := &stubPresence{}
	service := newTestService(t, store)
	ctx := context.Background()
	if err := service.Upsert(ctx, Profile{ID: "user-1", Username: "alice"}); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	summary, err := service.UpdateStatus(ctx, "user-1", true)
	if err != nil {
		t.Fatalf("update status failed: %v", err)
	}
	if !summary.IsOnline {
		t.Fatalf("expected online flag")
	}
	if summary.LastSeenAtSeconds != 1700000000 {
		t.Fatalf("unexpected last seen %d", summary.LastSeenAtSeconds)
	}
	if online, ok := store.touched["user-1"]; !ok || !online {
		t.Fatalf("expected presence to be touched")
	}

	if _, err := service.UpdateStatus(ctx, "ghost", true); !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("expected not found for unknown user, got %v", err)
	}
}

func TestSummariesOverlayPresence(t *testing.T) {
	store := &stubPresence{statuses: map[string]presence.Status{
		"user-2": {Online: true, LastSeenAtSeconds: 1800000000},
	}}
	service := newTestService(t, store)
	ctx := context.Background()
	for _, profile := range []Profile{{ID: "user-1", Username: "alice"}, {ID: "user-2", Username: "bob"}} {
		if err := service.Upsert(ctx, profile); err != nil {
			t.Fatalf("upsert failed: %v", err)
		}
	}

	summaries, err := service.Summaries(ctx, []string{"user-1", "user-2", "ghost"})
	if err != nil {
		t.Fatalf("summaries failed: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(summaries))
	}
	if summaries["user-1"].IsOnline {
		t.Fatalf("user-1 should be offline")
	}
	if !summaries["user-2"].IsOnline || summaries["user-2"].LastSeenAtSeconds != 1800000000 {
		t.Fatalf("expected presence overlay for user-2, got %#v", summaries["user-2"])
	}
}
