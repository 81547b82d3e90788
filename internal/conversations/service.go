// Package conversations derives the inbox view from the message ledger.
package conversations

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/FazalZamanKhan/SociallyMobileApp-Backend/internal/apperr"
	"github.com/FazalZamanKhan/SociallyMobileApp-Backend/internal/messages"
	"github.com/FazalZamanKhan/SociallyMobileApp-Backend/internal/paging"
	"github.com/FazalZamanKhan/SociallyMobileApp-Backend/internal/users"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const opListConversations = "conversations.list"

// visibleRows selects every live message of the viewer tagged with the
// counterpart it belongs to.
const visibleRows = `
WITH visible AS (
	SELECT m.*,
		CASE WHEN m.sender_id = @viewer THEN m.receiver_id ELSE m.sender_id END AS counterpart_id
	FROM messages m
	WHERE (m.sender_id = @viewer OR m.receiver_id = @viewer)
		AND m.is_deleted = @deleted
		AND (m.expires_at_s IS NULL OR m.expires_at_s > @now)
)`

const latestPerCounterpart = visibleRows + `,
ranked AS (
	SELECT visible.*,
		ROW_NUMBER() OVER (PARTITION BY counterpart_id ORDER BY created_at_s DESC, id DESC) AS position
	FROM visible
)
SELECT ranked.*,
	(SELECT COUNT(*) FROM visible unread
		WHERE unread.counterpart_id = ranked.counterpart_id
			AND unread.sender_id = ranked.counterpart_id
			AND unread.is_read = @read) AS unread_count
FROM ranked
WHERE position = 1
ORDER BY created_at_s DESC, id DESC
LIMIT @limit OFFSET @offset`

const countCounterparts = visibleRows + `
SELECT COUNT(DISTINCT counterpart_id) FROM visible`

var (
	errMissingDatabase  = errors.New("conversations: database handle is required")
	errMissingDirectory = errors.New("conversations: user directory is required")
)

// Directory resolves counterpart display summaries.
type Directory interface {
	Summaries(ctx context.Context, userIDs []string) (map[string]users.Summary, error)
}

// ServiceConfig describes the dependencies of the aggregator.
type ServiceConfig struct {
	Database  *gorm.DB
	Clock     func() time.Time
	Directory Directory
	Logger    *zap.Logger
}

// Service lists conversations.
type Service struct {
	db        *gorm.DB
	clock     func() time.Time
	directory Directory
	logger    *zap.Logger
}

// Conversation pairs the viewer with one counterpart.
type Conversation struct {
	Counterpart       users.Summary    `json:"user"`
	LastMessage       messages.Message `json:"last_message"`
	Preview           string           `json:"last_message_preview"`
	IsLastMessageMine bool             `json:"is_last_message_mine"`
	UnreadCount       int64            `json:"unread_count"`
}

type conversationRow struct {
	messages.Message `gorm:"embedded"`
	CounterpartID    string `gorm:"column:counterpart_id"`
	UnreadCount      int64  `gorm:"column:unread_count"`
}

// NewService validates the configuration.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	if cfg.Directory == nil {
		return nil, errMissingDirectory
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: cfg.Database, clock: clock, directory: cfg.Directory, logger: logger}, nil
}

// ListConversations returns the viewer's conversations, most recently active
// first. The latest message and unread count are computed live so deleted or
// expired messages never surface.
func (s *Service) ListConversations(ctx context.Context, viewerID string, request paging.Request) (paging.Page[Conversation], error) {
	now := s.clock().UTC().Unix()
	args := map[string]any{
		"viewer":  viewerID,
		"deleted": false,
		"read":    false,
		"now":     now,
		"limit":   request.PageSize,
		"offset":  request.Offset(),
	}

	var total int64
	if err := s.db.WithContext(ctx).Raw(countCounterparts, args).Scan(&total).Error; err != nil {
		return paging.Page[Conversation]{}, s.logError("count_failed", err)
	}

	var rows []conversationRow
	if err := s.db.WithContext(ctx).Raw(latestPerCounterpart, args).Scan(&rows).Error; err != nil {
		return paging.Page[Conversation]{}, s.logError("query_failed", err)
	}

	counterpartIDs := make([]string, 0, len(rows))
	for _, row := range rows {
		counterpartIDs = append(counterpartIDs, row.CounterpartID)
	}
	summaries, err := s.directory.Summaries(ctx, counterpartIDs)
	if err != nil {
		return paging.Page[Conversation]{}, s.logError("directory_failed", err)
	}

	conversations := make([]Conversation, 0, len(rows))
	for _, row := range rows {
		summary, ok := summaries[row.CounterpartID]
		if !ok {
			summary = users.Summary{ID: row.CounterpartID}
		}
		conversations = append(conversations, Conversation{
			Counterpart:       summary,
			LastMessage:       row.Message,
			Preview:           Preview(row.Message),
			IsLastMessageMine: row.SenderID == viewerID,
			UnreadCount:       row.UnreadCount,
		})
	}
	return paging.NewPage(conversations, total, request), nil
}

// Preview renders the one-line inbox text of a message.
func Preview(message messages.Message) string {
	text := message.Content
	if text == "" && message.MediaKind != messages.MediaText && message.MediaKind != "" {
		kind := string(message.MediaKind)
		text = "📎 " + strings.ToUpper(kind[:1]) + kind[1:]
	}
	if message.Kind == messages.KindVanish {
		text = "🔥 " + text
	}
	return text
}

func (s *Service) logError(reason string, err error) error {
	s.logger.Error("conversation listing failed",
		zap.String("operation", opListConversations),
		zap.String("reason", reason),
		zap.Error(err),
	)
	return apperr.Internal(opListConversations+"."+reason, err)
}
