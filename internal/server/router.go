// Package server exposes the messaging core over HTTP.
package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/FazalZamanKhan/SociallyMobileApp-Backend/internal/conversations"
	"github.com/FazalZamanKhan/SociallyMobileApp-Backend/internal/logging"
	"github.com/FazalZamanKhan/SociallyMobileApp-Backend/internal/messages"
	"github.com/FazalZamanKhan/SociallyMobileApp-Backend/internal/notifications"
	"github.com/FazalZamanKhan/SociallyMobileApp-Backend/internal/reconcile"
	"github.com/FazalZamanKhan/SociallyMobileApp-Backend/internal/users"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const (
	userIDContextKey     = "socially_user_id"
	accessTokenQueryName = "access_token"
)

var (
	errMissingTokenManager  = errors.New("token manager dependency required")
	errMissingMessages      = errors.New("messages service dependency required")
	errMissingConversations = errors.New("conversations service dependency required")
	errMissingNotifications = errors.New("notifications service dependency required")
	errMissingHub           = errors.New("notification hub dependency required")
	errMissingReconciler    = errors.New("reconciler dependency required")
	errMissingUsers         = errors.New("users service dependency required")
	errInvalidAuthorization = errors.New("authorization header missing or invalid")
)

// TokenValidator resolves a bearer token to the caller's user id.
type TokenValidator interface {
	ValidateToken(token string) (string, error)
}

// Dependencies lists the collaborators served by the HTTP surface.
type Dependencies struct {
	Tokens        TokenValidator
	Messages      *messages.Service
	Conversations *conversations.Service
	Notifications *notifications.Service
	Hub           *notifications.Hub
	Reconciler    *reconcile.Reconciler
	Users         *users.Service
	// Middleware runs on every request ahead of authentication.
	Middleware        []gin.HandlerFunc
	HeartbeatInterval time.Duration
	Logger            *zap.Logger
}

// NewHTTPHandler wires the routes.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	switch {
	case deps.Tokens == nil:
		return nil, errMissingTokenManager
	case deps.Messages == nil:
		return nil, errMissingMessages
	case deps.Conversations == nil:
		return nil, errMissingConversations
	case deps.Notifications == nil:
		return nil, errMissingNotifications
	case deps.Hub == nil:
		return nil, errMissingHub
	case deps.Reconciler == nil:
		return nil, errMissingReconciler
	case deps.Users == nil:
		return nil, errMissingUsers
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	heartbeat := deps.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeatInterval
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logging.AccessLog(logger))
	router.Use(corsMiddleware())
	for _, middleware := range deps.Middleware {
		router.Use(middleware)
	}

	handler := &httpHandler{
		tokens:        deps.Tokens,
		messages:      deps.Messages,
		conversations: deps.Conversations,
		notifications: deps.Notifications,
		hub:           deps.Hub,
		reconciler:    deps.Reconciler,
		users:         deps.Users,
		heartbeat:     heartbeat,
		logger:        logger,
	}

	router.GET("/healthz", handler.handleHealth)

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)

	protected.POST("/messages", handler.handleSendMessage)
	protected.GET("/messages", handler.handleListMessages)
	protected.POST("/messages/read", handler.handleMarkMessagesRead)
	protected.POST("/messages/screenshot", handler.handleScreenshot)
	protected.GET("/messages/:id", handler.handleGetMessage)
	protected.PUT("/messages/:id", handler.handleEditMessage)
	protected.DELETE("/messages/:id", handler.handleDeleteMessage)

	protected.GET("/conversations", handler.handleListConversations)

	protected.GET("/notifications", handler.handleListNotifications)
	protected.POST("/notifications/read", handler.handleMarkNotificationsRead)
	protected.GET("/notifications/stream", handler.handleNotificationStream)

	protected.POST("/devices", handler.handleRegisterDevice)
	protected.DELETE("/devices", handler.handleDeactivateDevice)

	protected.POST("/sync/offline", handler.handleSyncOffline)
	protected.POST("/users/status", handler.handleUpdateStatus)

	return router, nil
}

func corsMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Authorization", "Content-Type", logging.RequestIDHeader},
		ExposeHeaders: []string{logging.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	})
}

type httpHandler struct {
	tokens        TokenValidator
	messages      *messages.Service
	conversations *conversations.Service
	notifications *notifications.Service
	hub           *notifications.Hub
	reconciler    *reconcile.Reconciler
	users         *users.Service
	heartbeat     time.Duration
	logger        *zap.Logger
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// authorizeRequest accepts a bearer header or, for event streams that cannot
// set headers, an access_token query parameter.
func (h *httpHandler) authorizeRequest(c *gin.Context) {
	token, ok := bearerToken(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorEnvelope{Error: errInvalidAuthorization.Error(), Kind: "unauthorized", Code: "auth.bearer.missing"})
		return
	}
	subject, err := h.tokens.ValidateToken(token)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			h.logger.Info("token validation failed", zap.Error(err))
		} else {
			h.logger.Warn("token validation failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorEnvelope{Error: "unauthorized", Kind: "unauthorized", Code: "auth.bearer.invalid"})
		return
	}
	c.Set(userIDContextKey, subject)
	c.Next()
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		return token, token != ""
	}
	if header != "" {
		return "", false
	}
	token := strings.TrimSpace(c.Query(accessTokenQueryName))
	return token, token != ""
}

func callerID(c *gin.Context) string {
	return c.GetString(userIDContextKey)
}
