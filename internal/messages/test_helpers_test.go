package messages

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/FazalZamanKhan/SociallyMobileApp-Backend/internal/notifications"
	"github.com/FazalZamanKhan/SociallyMobileApp-Backend/internal/users"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

var testEpoch = time.Unix(1700000000, 0).UTC()

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(step time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(step)
	c.mu.Unlock()
}

type collectingNotifier struct {
	mu      sync.Mutex
	notices []notifications.Notice
}

func (n *collectingNotifier) Notify(_ context.Context, notice notifications.Notice) {
	n.mu.Lock()
	n.notices = append(n.notices, notice)
	n.mu.Unlock()
}

type recordingReleaser struct {
	released []string
	err      error
}

func (r *recordingReleaser) Release(_ context.Context, mediaRef string) error {
	r.released = append(r.released, mediaRef)
	return r.err
}

type testHarness struct {
	db       *gorm.DB
	clock    *manualClock
	notifier *collectingNotifier
	releaser *recordingReleaser
	service  *Service
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "messages.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&users.User{}, &Message{}, &ScreenshotAlert{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}

	clock := &manualClock{now: testEpoch}
	directory, err := users.NewService(users.ServiceConfig{Database: db, Clock: clock.Now})
	if err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}
	for _, profile := range []users.Profile{
		{ID: "alice", Username: "alice"},
		{ID: "bob", Username: "bob"},
		{ID: "carol", Username: "carol"},
	} {
		if err := directory.Upsert(context.Background(), profile); err != nil {
			t.Fatalf("failed to seed user %s: %v", profile.ID, err)
		}
	}

	notifier := &collectingNotifier{}
	releaser := &recordingReleaser{}
	service, err := NewService(ServiceConfig{
		Database:  db,
		Clock:     clock.Now,
		Directory: directory,
		Media:     releaser,
		Notifier:  notifier,
	})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return &testHarness{db: db, clock: clock, notifier: notifier, releaser: releaser, service: service}
}

func (h *testHarness) send(t *testing.T, input SendInput) Message {
	t.Helper()
	message, err := h.service.Send(context.Background(), input)
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	return message
}

func (h *testHarness) reload(t *testing.T, id int64) Message {
	t.Helper()
	var message Message
	if err := h.db.Where("id = ?", id).Take(&message).Error; err != nil {
		t.Fatalf("failed to reload message %d: %v", id, err)
	}
	return message
}

var errReleaseFailed = errors.New("release failed")
