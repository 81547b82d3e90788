package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/FazalZamanKhan/SociallyMobileApp-Backend/internal/auth"
	"github.com/FazalZamanKhan/SociallyMobileApp-Backend/internal/conversations"
	"github.com/FazalZamanKhan/SociallyMobileApp-Backend/internal/database"
	"github.com/FazalZamanKhan/SociallyMobileApp-Backend/internal/messages"
	"github.com/FazalZamanKhan/SociallyMobileApp-Backend/internal/notifications"
	"github.com/FazalZamanKhan/SociallyMobileApp-Backend/internal/reconcile"
	"github.com/FazalZamanKhan/SociallyMobileApp-Backend/internal/social"
	"github.com/FazalZamanKhan/SociallyMobileApp-Backend/internal/users"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testServer struct {
	db         *gorm.DB
	clock      *testClock
	issuer     *auth.TokenIssuer
	messages   *messages.Service
	dispatcher *notifications.Dispatcher
	hub        *notifications.Hub
	handler    http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.Open(database.Config{Driver: database.DriverSQLite, Path: filepath.Join(t.TempDir(), "server.db")}, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	clock := &testClock{now: time.Unix(1700000000, 0).UTC()}

	directory, err := users.NewService(users.ServiceConfig{Database: db, Clock: clock.Now})
	if err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}
	for _, profile := range []users.Profile{{ID: "alice", Username: "alice"}, {ID: "bob", Username: "bob"}} {
		if err := directory.Upsert(context.Background(), profile); err != nil {
			t.Fatalf("failed to seed user: %v", err)
		}
	}

	ledger, err := notifications.NewService(notifications.ServiceConfig{Database: db, Clock: clock.Now})
	if err != nil {
		t.Fatalf("failed to create ledger: %v", err)
	}
	hub := notifications.NewHub()
	dispatcher, err := notifications.NewDispatcher(notifications.DispatcherConfig{Endpoints: ledger, Hub: hub})
	if err != nil {
		t.Fatalf("failed to create dispatcher: %v", err)
	}
	center := notifications.NewCenter(ledger, dispatcher, zap.NewNop())

	messageService, err := messages.NewService(messages.ServiceConfig{Database: db, Clock: clock.Now, Directory: directory, Notifier: center})
	if err != nil {
		t.Fatalf("failed to create messages: %v", err)
	}
	conversationService, err := conversations.NewService(conversations.ServiceConfig{Database: db, Clock: clock.Now, Directory: directory})
	if err != nil {
		t.Fatalf("failed to create conversations: %v", err)
	}
	socialService, err := social.NewService(social.ServiceConfig{Database: db, Clock: clock.Now, Directory: directory, Notifier: center})
	if err != nil {
		t.Fatalf("failed to create social: %v", err)
	}
	reconciler, err := reconcile.NewReconciler(reconcile.Config{Database: db, Messages: messageService, Social: socialService, Notifier: center})
	if err != nil {
		t.Fatalf("failed to create reconciler: %v", err)
	}

	issuer, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte("test-signing-secret"),
		Issuer:        "socially-auth",
		Audience:      "socially-api",
		TokenTTL:      time.Hour,
	})
	if err != nil {
		t.Fatalf("failed to create issuer: %v", err)
	}

	handler, err := NewHTTPHandler(Dependencies{
		Tokens:            issuer,
		Messages:          messageService,
		Conversations:     conversationService,
		Notifications:     ledger,
		Hub:               hub,
		Reconciler:        reconciler,
		Users:             directory,
		HeartbeatInterval: time.Hour,
	})
	if err != nil {
		t.Fatalf("failed to construct handler: %v", err)
	}
	t.Cleanup(dispatcher.Close)

	return &testServer{
		db:         db,
		clock:      clock,
		issuer:     issuer,
		messages:   messageService,
		dispatcher: dispatcher,
		hub:        hub,
		handler:    handler,
	}
}

func (s *testServer) token(t *testing.T, userID string) string {
	t.Helper()
	token, _, err := s.issuer.IssueToken(context.Background(), userID)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	return token
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Kind    string          `json:"kind"`
	Code    string          `json:"code"`
}

func (s *testServer) do(t *testing.T, method, path, userID string, body any) (int, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	request := httptest.NewRequest(method, path, reader)
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		request.Header.Set("Authorization", "Bearer "+s.token(t, userID))
	}
	recorder := httptest.NewRecorder()
	s.handler.ServeHTTP(recorder, request)

	var decoded envelope
	if recorder.Body.Len() > 0 {
		if err := json.Unmarshal(recorder.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("failed to decode response %q: %v", recorder.Body.String(), err)
		}
	}
	return recorder.Code, decoded
}

func decodeData[T any](t *testing.T, response envelope) T {
	t.Helper()
	var value T
	if err := json.Unmarshal(response.Data, &value); err != nil {
		t.Fatalf("failed to decode data %s: %v", response.Data, err)
	}
	return value
}
