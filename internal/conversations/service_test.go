package conversations

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/FazalZamanKhan/SociallyMobileApp-Backend/internal/messages"
	"github.com/FazalZamanKhan/SociallyMobileApp-Backend/internal/paging"
	"github.com/FazalZamanKhan/SociallyMobileApp-Backend/internal/users"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type fixture struct {
	now      time.Time
	messages *messages.Service
	service  *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "conversations.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&users.User{}, &messages.Message{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}

	f := &fixture{now: time.Unix(1700000000, 0).UTC()}
	clock := func() time.Time { return f.now }

	directory, err := users.NewService(users.ServiceConfig{Database: db, Clock: clock})
	if err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}
	for _, id := range []string{"viewer", "anna", "ben", "cara"} {
		if err := directory.Upsert(context.Background(), users.Profile{ID: id, Username: id + "_name"}); err != nil {
			t.Fatalf("failed to seed %s: %v", id, err)
		}
	}
	f.messages, err = messages.NewService(messages.ServiceConfig{Database: db, Clock: clock, Directory: directory})
	if err != nil {
		t.Fatalf("failed to create message store: %v", err)
	}
	f.service, err = NewService(ServiceConfig{Database: db, Clock: clock, Directory: directory})
	if err != nil {
		t.Fatalf("failed to create aggregator: %v", err)
	}
	return f
}

func (f *fixture) send(t *testing.T, sender, receiver, content string) messages.Message {
	t.Helper()
	message, err := f.messages.Send(context.Background(), messages.SendInput{SenderID: sender, ReceiverID: receiver, Content: content})
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	return message
}

func (f *fixture) list(t *testing.T, page, size int) paging.Page[Conversation] {
	t.Helper()
	result, err := f.service.ListConversations(context.Background(), "viewer", paging.NewRequest(page, size))
	if err != nil {
		t.Fatalf("list conversations failed: %v", err)
	}
	return result
}

func TestLatestMessageSkipsDeleted(t *testing.T) {
	f := newFixture(t)
	f.send(t, "anna", "viewer", "first")
	f.now = f.now.Add(time.Second)
	second := f.send(t, "viewer", "anna", "second")
	f.now = f.now.Add(time.Second)
	third := f.send(t, "anna", "viewer", "third")

	if err := f.messages.Delete(context.Background(), third.ID, "anna", true); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	result := f.list(t, 1, 20)
	if len(result.Items) != 1 {
		t.Fatalf("expected one conversation, got %d", len(result.Items))
	}
	conversation := result.Items[0]
	if conversation.LastMessage.ID != second.ID || !conversation.IsLastMessageMine {
		t.Fatalf("expected second message as latest, got %#v", conversation.LastMessage)
	}
	if conversation.Counterpart.ID != "anna" || conversation.Counterpart.Username != "anna_name" {
		t.Fatalf("unexpected counterpart %#v", conversation.Counterpart)
	}
}

func TestUnreadCountTracksReads(t *testing.T) {
	f := newFixture(t)
	first := f.send(t, "ben", "viewer", "one")
	f.send(t, "ben", "viewer", "two")
	f.send(t, "ben", "viewer", "three")
	f.send(t, "viewer", "ben", "mine")

	if _, err := f.messages.MarkRead(context.Background(), []int64{first.ID}, "viewer"); err != nil {
		t.Fatalf("mark read failed: %v", err)
	}

	result := f.list(t, 1, 20)
	if len(result.Items) != 1 || result.Items[0].UnreadCount != 2 {
		t.Fatalf("expected unread count 2, got %#v", result.Items)
	}
}

func TestOrderingTieBreakAndPagination(t *testing.T) {
	f := newFixture(t)
	f.send(t, "anna", "viewer", "old")
	f.now = f.now.Add(time.Minute)
	f.send(t, "ben", "viewer", "same second, lower id")
	latest := f.send(t, "ben", "viewer", "same second, higher id")
	f.send(t, "viewer", "cara", "also same second")

	result := f.list(t, 1, 2)
	if result.TotalItems != 3 || result.TotalPages != 2 || !result.HasNext {
		t.Fatalf("unexpected metadata %#v", result)
	}
	if len(result.Items) != 2 {
		t.Fatalf("expected two conversations on page one, got %d", len(result.Items))
	}
	if result.Items[0].Counterpart.ID != "cara" || result.Items[1].Counterpart.ID != "ben" {
		t.Fatalf("unexpected order %s, %s", result.Items[0].Counterpart.ID, result.Items[1].Counterpart.ID)
	}
	if result.Items[1].LastMessage.ID != latest.ID {
		t.Fatalf("expected tie broken by id, got %d", result.Items[1].LastMessage.ID)
	}

	second := f.list(t, 2, 2)
	if len(second.Items) != 1 || second.Items[0].Counterpart.ID != "anna" || second.HasNext || !second.HasPrev {
		t.Fatalf("unexpected second page %#v", second)
	}
}

func TestExpiredMessagesDropConversation(t *testing.T) {
	f := newFixture(t)
	vanish, err := f.messages.Send(context.Background(), messages.SendInput{SenderID: "anna", ReceiverID: "viewer", Content: "poof", Kind: "vanish"})
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	result := f.list(t, 1, 20)
	if len(result.Items) != 1 || result.Items[0].Preview != "🔥 poof" {
		t.Fatalf("expected vanish preview, got %#v", result.Items)
	}

	if _, err := f.messages.MarkRead(context.Background(), []int64{vanish.ID}, "viewer"); err != nil {
		t.Fatalf("mark read failed: %v", err)
	}
	f.now = f.now.Add(time.Hour)
	result = f.list(t, 1, 20)
	if len(result.Items) != 0 || result.TotalItems != 0 {
		t.Fatalf("expected expired conversation to disappear, got %#v", result)
	}
}

func TestPreview(t *testing.T) {
	ref := "chat/a.png"
	testCases := []struct {
		message  messages.Message
		expected string
	}{
		{message: messages.Message{Content: "hi", MediaKind: messages.MediaText, Kind: messages.KindNormal}, expected: "hi"},
		{message: messages.Message{MediaRef: &ref, MediaKind: messages.MediaImage, Kind: messages.KindNormal}, expected: "📎 Image"},
		{message: messages.Message{MediaRef: &ref, MediaKind: messages.MediaVideo, Kind: messages.KindVanish}, expected: "🔥 📎 Video"},
		{message: messages.Message{Content: "psst", MediaKind: messages.MediaText, Kind: messages.KindVanish}, expected: "🔥 psst"},
	}
	for _, testCase := range testCases {
		if got := Preview(testCase.message); got != testCase.expected {
			t.Fatalf("expected %q, got %q", testCase.expected, got)
		}
	}
}
