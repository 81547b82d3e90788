package messages

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/FazalZamanKhan/SociallyMobileApp-Backend/internal/apperr"
	"github.com/FazalZamanKhan/SociallyMobileApp-Backend/internal/media"
	"github.com/FazalZamanKhan/SociallyMobileApp-Backend/internal/notifications"
	"github.com/FazalZamanKhan/SociallyMobileApp-Backend/internal/paging"
	"github.com/FazalZamanKhan/SociallyMobileApp-Backend/internal/users"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	DefaultEditWindow    = 5 * time.Minute
	DefaultVanishTTL     = 30 * 24 * time.Hour
	DefaultVanishReadTTL = time.Hour

	opSend             = "messages.send"
	opGet              = "messages.get"
	opEdit             = "messages.edit"
	opDelete           = "messages.delete"
	opMarkRead         = "messages.mark_read"
	opListBetween      = "messages.list_between"
	opReportScreenshot = "messages.report_screenshot"
	opPurge            = "messages.purge"
)

var (
	errMissingDatabase  = errors.New("messages: database handle is required")
	errMissingDirectory = errors.New("messages: user directory is required")
)

// Directory is the slice of the user directory the message store relies on.
type Directory interface {
	Exists(ctx context.Context, userID string) (bool, error)
	Summaries(ctx context.Context, userIDs []string) (map[string]users.Summary, error)
}

// ServiceConfig describes the dependencies of the message store.
type ServiceConfig struct {
	Database      *gorm.DB
	Clock         func() time.Time
	Directory     Directory
	Media         media.Releaser
	Notifier      notifications.Notifier
	Eraser        Eraser
	EditWindow    time.Duration
	VanishTTL     time.Duration
	VanishReadTTL time.Duration
	Logger        *zap.Logger
}

// Service implements the message ledger operations.
type Service struct {
	db            *gorm.DB
	clock         func() time.Time
	directory     Directory
	media         media.Releaser
	notifier      notifications.Notifier
	eraser        Eraser
	editWindow    time.Duration
	vanishTTL     time.Duration
	vanishReadTTL time.Duration
	logger        *zap.Logger
}

// SendInput carries the fields of a new message.
type SendInput struct {
	SenderID   string
	ReceiverID string
	Content    string
	MediaRef   string
	MediaKind  string
	Kind       string
	// SuppressNotification skips the message notification to the receiver.
	SuppressNotification bool
}

// NewService validates the configuration and applies defaults.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	if cfg.Directory == nil {
		return nil, errMissingDirectory
	}
	service := &Service{
		db:            cfg.Database,
		clock:         cfg.Clock,
		directory:     cfg.Directory,
		media:         cfg.Media,
		notifier:      cfg.Notifier,
		eraser:        cfg.Eraser,
		editWindow:    cfg.EditWindow,
		vanishTTL:     cfg.VanishTTL,
		vanishReadTTL: cfg.VanishReadTTL,
		logger:        cfg.Logger,
	}
	if service.clock == nil {
		service.clock = time.Now
	}
	if service.media == nil {
		service.media = media.NopReleaser{}
	}
	if service.notifier == nil {
		service.notifier = notifications.NopNotifier{}
	}
	if service.eraser == nil {
		service.eraser = GlobalEraser{}
	}
	if service.editWindow <= 0 {
		service.editWindow = DefaultEditWindow
	}
	if service.vanishTTL <= 0 {
		service.vanishTTL = DefaultVanishTTL
	}
	if service.vanishReadTTL <= 0 {
		service.vanishReadTTL = DefaultVanishReadTTL
	}
	if service.logger == nil {
		service.logger = zap.NewNop()
	}
	return service, nil
}

// txDirectory is implemented by directories that can join a transaction.
type txDirectory interface {
	Bind(tx *gorm.DB) *users.Service
}

// Bind returns a copy of the service that reads and writes through tx and
// raises notices on notifier, so callers can scope a unit of work to one
// transaction.
func (s *Service) Bind(tx *gorm.DB, notifier notifications.Notifier) *Service {
	bound := *s
	bound.db = tx
	if directory, ok := s.directory.(txDirectory); ok {
		bound.directory = directory.Bind(tx)
	}
	if notifier != nil {
		bound.notifier = notifier
	}
	return &bound
}

// Send stores a new message and notifies the receiver.
func (s *Service) Send(ctx context.Context, input SendInput) (Message, error) {
	senderID := strings.TrimSpace(input.SenderID)
	receiverID := strings.TrimSpace(input.ReceiverID)
	content := strings.TrimSpace(input.Content)
	mediaRef := strings.TrimSpace(input.MediaRef)

	switch {
	case receiverID == "":
		return Message{}, apperr.Validation(opSend+".missing_receiver", "receiver_id is required")
	case receiverID == senderID:
		return Message{}, apperr.Validation(opSend+".self_message", "cannot send a message to yourself")
	case content == "" && mediaRef == "":
		return Message{}, apperr.Validation(opSend+".empty_message", "message must have content or media")
	case content != "" && mediaRef != "":
		return Message{}, apperr.Validation(opSend+".content_and_media", "message must have either content or media, not both")
	}

	exists, err := s.directory.Exists(ctx, receiverID)
	if err != nil {
		return Message{}, s.logError(opSend, "directory_failed", apperr.Internal(opSend+".directory_failed", err))
	}
	if !exists {
		return Message{}, apperr.NotFound(opSend+".receiver_not_found", "receiver not found")
	}

	now := s.clock().UTC()
	message := Message{
		SenderID:         senderID,
		ReceiverID:       receiverID,
		Content:          content,
		MediaKind:        resolveMediaKind(input.MediaKind, mediaRef != ""),
		Kind:             ParseKind(input.Kind),
		CreatedAtSeconds: now.Unix(),
	}
	if mediaRef != "" {
		message.MediaRef = &mediaRef
	}
	if message.Kind == KindVanish {
		expiresAt := now.Add(s.vanishTTL).Unix()
		message.ExpiresAtSeconds = &expiresAt
	}

	if err := s.db.WithContext(ctx).Create(&message).Error; err != nil {
		return Message{}, s.logError(opSend, "insert_failed", apperr.Internal(opSend+".insert_failed", err))
	}

	if !input.SuppressNotification {
		s.notifier.Notify(ctx, s.messageNotice(ctx, message))
	}
	return message, nil
}

// Get returns a visible message to one of its participants.
func (s *Service) Get(ctx context.Context, messageID int64, viewerID string) (Message, error) {
	message, err := s.loadVisible(ctx, opGet, messageID)
	if err != nil {
		return Message{}, err
	}
	if message.SenderID != viewerID && message.ReceiverID != viewerID {
		return Message{}, apperr.NotFound(opGet+".not_found", "message not found")
	}
	return message, nil
}

// Edit replaces the text of a sender's own text message within the edit window.
func (s *Service) Edit(ctx context.Context, messageID int64, editorID, newContent string) (Message, error) {
	content := strings.TrimSpace(newContent)
	if content == "" {
		return Message{}, apperr.Validation(opEdit+".empty_content", "content is required")
	}

	message, err := s.loadVisible(ctx, opEdit, messageID)
	if err != nil {
		return Message{}, err
	}
	now := s.clock().UTC()
	switch {
	case message.SenderID != editorID:
		return Message{}, apperr.Forbidden(opEdit+".not_sender", "you can only edit your own messages")
	case message.HasMedia():
		return Message{}, apperr.Conflict(opEdit+".media_present", "cannot edit media messages")
	case s.outsideWindow(message, now):
		return Message{}, apperr.ExpiredWindow(opEdit+".window_elapsed", fmt.Sprintf("messages can only be edited within %s of sending", s.editWindow))
	}

	editedAt := now.Unix()
	update := s.db.WithContext(ctx).Model(&Message{}).
		Where("id = ? AND is_deleted = ?", messageID, false).
		Where("expires_at_s IS NULL OR expires_at_s > ?", editedAt).
		Updates(map[string]any{
			"content":     content,
			"is_edited":   true,
			"edited_at_s": editedAt,
		})
	if update.Error != nil {
		return Message{}, s.logError(opEdit, "update_failed", apperr.Internal(opEdit+".update_failed", update.Error))
	}
	if update.RowsAffected == 0 {
		return Message{}, apperr.NotFound(opEdit+".not_found", "message not found")
	}

	message.Content = content
	message.IsEdited = true
	message.EditedAtSeconds = &editedAt
	return message, nil
}

// Delete removes a sender's message. Deleting for everyone is only allowed
// within the edit window. Attached media is released after the row changes.
func (s *Service) Delete(ctx context.Context, messageID int64, requesterID string, forEveryone bool) error {
	message, err := s.loadVisible(ctx, opDelete, messageID)
	if err != nil {
		return err
	}
	now := s.clock().UTC()
	if message.SenderID != requesterID {
		return apperr.Forbidden(opDelete+".not_sender", "you can only delete your own messages")
	}
	if forEveryone && s.outsideWindow(message, now) {
		return apperr.ExpiredWindow(opDelete+".window_elapsed", fmt.Sprintf("messages can only be deleted for everyone within %s of sending", s.editWindow))
	}

	erased, err := s.eraser.Erase(ctx, s.db, message, requesterID, now.Unix())
	if err != nil {
		return s.logError(opDelete, "update_failed", apperr.Internal(opDelete+".update_failed", err))
	}
	if !erased {
		return apperr.NotFound(opDelete+".not_found", "message not found")
	}

	if message.HasMedia() {
		if err := s.media.Release(ctx, *message.MediaRef); err != nil {
			s.logger.Warn("media release failed",
				zap.String("operation", opDelete),
				zap.Int64("message_id", message.ID),
				zap.Error(err),
			)
		}
	}
	return nil
}

// MarkRead flags the reader's messages as read and returns the ids that
// changed. Ids that are foreign, already read, deleted or expired are ignored.
// Vanish messages get their expiry pulled in to now plus the read TTL, never pushed out.
func (s *Service) MarkRead(ctx context.Context, messageIDs []int64, readerID string) ([]int64, error) {
	updated := make([]int64, 0, len(messageIDs))
	seen := make(map[int64]struct{}, len(messageIDs))
	now := s.clock().UTC()
	readAt := now.Unix()
	expiresAt := now.Add(s.vanishReadTTL).Unix()

	for _, messageID := range messageIDs {
		if _, duplicate := seen[messageID]; duplicate {
			continue
		}
		seen[messageID] = struct{}{}

		changed := false
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			read := tx.Model(&Message{}).
				Where("id = ? AND receiver_id = ? AND is_read = ? AND is_deleted = ?", messageID, readerID, false, false).
				Where("expires_at_s IS NULL OR expires_at_s > ?", readAt).
				Updates(map[string]any{"is_read": true, "read_at_s": readAt})
			if read.Error != nil {
				return read.Error
			}
			if read.RowsAffected == 0 {
				return nil
			}
			changed = true
			return tx.Model(&Message{}).
				Where("id = ? AND kind = ? AND expires_at_s > ?", messageID, KindVanish, expiresAt).
				Update("expires_at_s", expiresAt).Error
		})
		if err != nil {
			return nil, s.logError(opMarkRead, "update_failed", apperr.Internal(opMarkRead+".update_failed", err))
		}
		if changed {
			updated = append(updated, messageID)
		}
	}
	return updated, nil
}

// ListBetween returns one page of the visible conversation between viewer and
// other. Pages run newest first; items within a page are oldest first. Every
// unread message addressed to viewer in the page is marked read and returned
// in its post-read state.
func (s *Service) ListBetween(ctx context.Context, viewerID, otherID string, request paging.Request) (paging.Page[Message], error) {
	otherID = strings.TrimSpace(otherID)
	if otherID == "" {
		return paging.Page[Message]{}, apperr.Validation(opListBetween+".missing_other", "other_user_id is required")
	}
	exists, err := s.directory.Exists(ctx, otherID)
	if err != nil {
		return paging.Page[Message]{}, s.logError(opListBetween, "directory_failed", apperr.Internal(opListBetween+".directory_failed", err))
	}
	if !exists {
		return paging.Page[Message]{}, apperr.NotFound(opListBetween+".user_not_found", "user not found")
	}

	now := s.clock().UTC().Unix()
	visible := func() *gorm.DB {
		return s.db.WithContext(ctx).Model(&Message{}).
			Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", viewerID, otherID, otherID, viewerID).
			Where("is_deleted = ?", false).
			Where("expires_at_s IS NULL OR expires_at_s > ?", now)
	}

	var total int64
	if err := visible().Count(&total).Error; err != nil {
		return paging.Page[Message]{}, s.logError(opListBetween, "count_failed", apperr.Internal(opListBetween+".count_failed", err))
	}
	var items []Message
	err = visible().
		Order("created_at_s DESC, id DESC").
		Offset(request.Offset()).
		Limit(request.PageSize).
		Find(&items).Error
	if err != nil {
		return paging.Page[Message]{}, s.logError(opListBetween, "query_failed", apperr.Internal(opListBetween+".query_failed", err))
	}

	unread := make([]int64, 0)
	for _, item := range items {
		if item.ReceiverID == viewerID && !item.IsRead {
			unread = append(unread, item.ID)
		}
	}
	if len(unread) > 0 {
		marked, err := s.MarkRead(ctx, unread, viewerID)
		if err != nil {
			return paging.Page[Message]{}, err
		}
		if err := s.refresh(ctx, items, marked); err != nil {
			return paging.Page[Message]{}, s.logError(opListBetween, "refresh_failed", apperr.Internal(opListBetween+".refresh_failed", err))
		}
	}

	for left, right := 0, len(items)-1; left < right; left, right = left+1, right-1 {
		items[left], items[right] = items[right], items[left]
	}
	return paging.NewPage(items, total, request), nil
}

// ReportScreenshot records that reporter captured the chat with chatWith and
// alerts the counterpart.
func (s *Service) ReportScreenshot(ctx context.Context, reporterID, chatWithID string) (ScreenshotAlert, error) {
	chatWithID = strings.TrimSpace(chatWithID)
	if chatWithID == "" {
		return ScreenshotAlert{}, apperr.Validation(opReportScreenshot+".missing_user", "chat_with_user_id is required")
	}
	if chatWithID == reporterID {
		return ScreenshotAlert{}, apperr.Validation(opReportScreenshot+".self_chat", "invalid chat user id")
	}
	exists, err := s.directory.Exists(ctx, chatWithID)
	if err != nil {
		return ScreenshotAlert{}, s.logError(opReportScreenshot, "directory_failed", apperr.Internal(opReportScreenshot+".directory_failed", err))
	}
	if !exists {
		return ScreenshotAlert{}, apperr.NotFound(opReportScreenshot+".user_not_found", "user not found")
	}

	first, second := orderedPair(reporterID, chatWithID)
	alert := ScreenshotAlert{
		ChatUser1ID:      first,
		ChatUser2ID:      second,
		ReportedBy:       reporterID,
		CreatedAtSeconds: s.clock().UTC().Unix(),
	}
	if err := s.db.WithContext(ctx).Create(&alert).Error; err != nil {
		return ScreenshotAlert{}, s.logError(opReportScreenshot, "insert_failed", apperr.Internal(opReportScreenshot+".insert_failed", err))
	}

	s.notifier.Notify(ctx, notifications.Notice{
		UserID: chatWithID,
		Type:   notifications.TypeScreenshotAlert,
		Title:  "📸 Screenshot Alert",
		Body:   fmt.Sprintf("%s took a screenshot of your chat", s.displayName(ctx, reporterID)),
		Payload: map[string]any{
			"screenshot_by_user_id": reporterID,
			"chat_user_id":          chatWithID,
		},
	})
	return alert, nil
}

// PurgeExpired deletes messages whose expiry passed before now.
func (s *Service) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("expires_at_s IS NOT NULL AND expires_at_s < ?", now.UTC().Unix()).
		Delete(&Message{})
	if result.Error != nil {
		return 0, s.logError(opPurge, "expired_failed", apperr.Internal(opPurge+".expired_failed", result.Error))
	}
	return result.RowsAffected, nil
}

// PurgeDeleted deletes soft-deleted messages whose deletion predates before.
func (s *Service) PurgeDeleted(ctx context.Context, before time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("is_deleted = ? AND deleted_at_s < ?", true, before.UTC().Unix()).
		Delete(&Message{})
	if result.Error != nil {
		return 0, s.logError(opPurge, "deleted_failed", apperr.Internal(opPurge+".deleted_failed", result.Error))
	}
	return result.RowsAffected, nil
}

func (s *Service) loadVisible(ctx context.Context, operation string, messageID int64) (Message, error) {
	var message Message
	err := s.db.WithContext(ctx).Where("id = ?", messageID).Take(&message).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Message{}, apperr.NotFound(operation+".not_found", "message not found")
	}
	if err != nil {
		return Message{}, s.logError(operation, "query_failed", apperr.Internal(operation+".query_failed", err))
	}
	if !message.VisibleAt(s.clock().UTC().Unix()) {
		return Message{}, apperr.NotFound(operation+".not_found", "message not found")
	}
	return message, nil
}

func (s *Service) outsideWindow(message Message, now time.Time) bool {
	return now.Unix()-message.CreatedAtSeconds > int64(s.editWindow/time.Second)
}

func (s *Service) refresh(ctx context.Context, items []Message, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	var fresh []Message
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&fresh).Error; err != nil {
		return err
	}
	byID := make(map[int64]Message, len(fresh))
	for _, message := range fresh {
		byID[message.ID] = message
	}
	for index, item := range items {
		if message, ok := byID[item.ID]; ok {
			items[index] = message
		}
	}
	return nil
}

func (s *Service) messageNotice(ctx context.Context, message Message) notifications.Notice {
	preview := message.Content
	if preview == "" {
		preview = "Sent you a " + string(message.MediaKind)
	}
	if message.Kind == KindVanish {
		preview = "🔥 " + preview
	}
	return notifications.Notice{
		UserID: message.ReceiverID,
		Type:   notifications.TypeMessage,
		Title:  "New Message",
		Body:   fmt.Sprintf("%s: %s", s.displayName(ctx, message.SenderID), preview),
		Payload: map[string]any{
			"message_id":   message.ID,
			"sender_id":    message.SenderID,
			"message_kind": string(message.Kind),
		},
	}
}

func (s *Service) displayName(ctx context.Context, userID string) string {
	summaries, err := s.directory.Summaries(ctx, []string{userID})
	if err != nil {
		s.logger.Warn("sender lookup failed", zap.String("user_id", userID), zap.Error(err))
		return userID
	}
	if summary, ok := summaries[userID]; ok && summary.Username != "" {
		return summary.Username
	}
	return userID
}

func (s *Service) logError(operation, reason string, err error) error {
	if err == nil {
		return nil
	}
	s.logger.Error("message store operation failed",
		zap.String("operation", operation),
		zap.String("reason", reason),
		zap.Error(err),
	)
	return err
}
