package social

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/FazalZamanKhan/SociallyMobileApp-Backend/internal/apperr"
	"github.com/FazalZamanKhan/SociallyMobileApp-Backend/internal/notifications"
	"github.com/FazalZamanKhan/SociallyMobileApp-Backend/internal/users"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	opCreatePost   = "social.create_post"
	opLikePost     = "social.like_post"
	opCommentPost  = "social.comment_post"
	opFollowUser   = "social.follow_user"
	opUploadStory  = "social.upload_story"
	opPurgeStories = "social.purge_stories"
)

var (
	errMissingDatabase  = errors.New("social: database handle is required")
	errMissingDirectory = errors.New("social: user directory is required")
)

// Directory is the slice of the user directory the social store needs.
type Directory interface {
	Exists(ctx context.Context, userID string) (bool, error)
	Summaries(ctx context.Context, userIDs []string) (map[string]users.Summary, error)
}

type txDirectory interface {
	Bind(tx *gorm.DB) *users.Service
}

// ServiceConfig describes the dependencies of the social store.
type ServiceConfig struct {
	Database  *gorm.DB
	Clock     func() time.Time
	Directory Directory
	Notifier  notifications.Notifier
	Logger    *zap.Logger
}

// Service writes social rows.
type Service struct {
	db        *gorm.DB
	clock     func() time.Time
	directory Directory
	notifier  notifications.Notifier
	logger    *zap.Logger
}

// NewService validates the configuration.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	if cfg.Directory == nil {
		return nil, errMissingDirectory
	}
	service := &Service{
		db:        cfg.Database,
		clock:     cfg.Clock,
		directory: cfg.Directory,
		notifier:  cfg.Notifier,
		logger:    cfg.Logger,
	}
	if service.clock == nil {
		service.clock = time.Now
	}
	if service.notifier == nil {
		service.notifier = notifications.NopNotifier{}
	}
	if service.logger == nil {
		service.logger = zap.NewNop()
	}
	return service, nil
}

// Bind returns a copy of the service scoped to tx, raising notices on notifier.
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

// CreatePost inserts a post with text, media or both.
func (s *Service) CreatePost(ctx context.Context, userID, content, mediaRef, mediaKind string) (Post, error) {
	content = strings.TrimSpace(content)
	mediaRef = strings.TrimSpace(mediaRef)
	mediaKind = strings.ToLower(strings.TrimSpace(mediaKind))
	if content == "" && mediaRef == "" {
		return Post{}, apperr.Validation(opCreatePost+".empty_post", "post must have content or media")
	}
	if mediaKind != "" && mediaKind != "image" && mediaKind != "video" && mediaKind != "audio" {
		return Post{}, apperr.Validation(opCreatePost+".invalid_media_kind", "invalid media type")
	}
	if mediaRef == "" {
		mediaKind = ""
	}
	post := Post{
		UserID:           userID,
		Content:          content,
		MediaRef:         mediaRef,
		MediaKind:        mediaKind,
		CreatedAtSeconds: s.clock().UTC().Unix(),
	}
	if err := s.db.WithContext(ctx).Create(&post).Error; err != nil {
		return Post{}, s.logError(opCreatePost, "insert_failed", err)
	}
	return post, nil
}

// LikePost records a like. Liking the same post twice is a conflict; the
// unique index decides, so concurrent likes cannot both succeed.
func (s *Service) LikePost(ctx context.Context, userID string, postID int64) (PostLike, error) {
	post, err := s.loadPost(ctx, opLikePost, postID)
	if err != nil {
		return PostLike{}, err
	}
	like := PostLike{PostID: postID, UserID: userID, CreatedAtSeconds: s.clock().UTC().Unix()}
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&like)
	if result.Error != nil {
		return PostLike{}, s.logError(opLikePost, "insert_failed", result.Error)
	}
	if result.RowsAffected == 0 {
		return PostLike{}, apperr.Conflict(opLikePost+".already_liked", "post already liked")
	}
	if post.UserID != userID {
		s.notifier.Notify(ctx, notifications.Notice{
			UserID:  post.UserID,
			Type:    notifications.TypeLike,
			Title:   "New Like",
			Body:    fmt.Sprintf("%s liked your post", s.displayName(ctx, userID)),
			Payload: map[string]any{"post_id": postID, "user_id": userID},
		})
	}
	return like, nil
}

// CommentPost adds a comment and notifies the post owner.
func (s *Service) CommentPost(ctx context.Context, userID string, postID int64, content string) (PostComment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return PostComment{}, apperr.Validation(opCommentPost+".empty_content", "content is required")
	}
	post, err := s.loadPost(ctx, opCommentPost, postID)
	if err != nil {
		return PostComment{}, err
	}
	comment := PostComment{PostID: postID, UserID: userID, Content: content, CreatedAtSeconds: s.clock().UTC().Unix()}
	if err := s.db.WithContext(ctx).Create(&comment).Error; err != nil {
		return PostComment{}, s.logError(opCommentPost, "insert_failed", err)
	}
	if post.UserID != userID {
		s.notifier.Notify(ctx, notifications.Notice{
			UserID:  post.UserID,
			Type:    notifications.TypeComment,
			Title:   "New Comment",
			Body:    fmt.Sprintf("%s commented on your post", s.displayName(ctx, userID)),
			Payload: map[string]any{"post_id": postID, "comment_id": comment.ID, "user_id": userID},
		})
	}
	return comment, nil
}

// FollowUser opens a pending follow request towards targetID.
func (s *Service) FollowUser(ctx context.Context, userID, targetID string) (FollowRequest, error) {
	targetID = strings.TrimSpace(targetID)
	if targetID == "" {
		return FollowRequest{}, apperr.Validation(opFollowUser+".missing_user", "user_id is required")
	}
	if targetID == userID {
		return FollowRequest{}, apperr.Validation(opFollowUser+".self_follow", "cannot follow yourself")
	}
	exists, err := s.directory.Exists(ctx, targetID)
	if err != nil {
		return FollowRequest{}, s.logError(opFollowUser, "directory_failed", err)
	}
	if !exists {
		return FollowRequest{}, apperr.NotFound(opFollowUser+".user_not_found", "user not found")
	}
	request := FollowRequest{
		SenderID:         userID,
		ReceiverID:       targetID,
		Status:           FollowStatusPending,
		CreatedAtSeconds: s.clock().UTC().Unix(),
	}
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&request)
	if result.Error != nil {
		return FollowRequest{}, s.logError(opFollowUser, "insert_failed", result.Error)
	}
	if result.RowsAffected == 0 {
		return FollowRequest{}, apperr.Conflict(opFollowUser+".already_requested", "already following or request exists")
	}
	s.notifier.Notify(ctx, notifications.Notice{
		UserID:  targetID,
		Type:    notifications.TypeFollowRequest,
		Title:   "New Follow Request",
		Body:    fmt.Sprintf("%s wants to follow you", s.displayName(ctx, userID)),
		Payload: map[string]any{"user_id": userID},
	})
	return request, nil
}

// UploadStory stores a story that expires a day after upload.
func (s *Service) UploadStory(ctx context.Context, userID, mediaRef, mediaKind, caption string) (Story, error) {
	mediaRef = strings.TrimSpace(mediaRef)
	mediaKind = strings.ToLower(strings.TrimSpace(mediaKind))
	if mediaRef == "" || mediaKind == "" {
		return Story{}, apperr.Validation(opUploadStory+".missing_media", "media_url and media_type are required")
	}
	if mediaKind != "image" && mediaKind != "video" {
		return Story{}, apperr.Validation(opUploadStory+".invalid_media_kind", "story media must be image or video")
	}
	now := s.clock().UTC().Unix()
	story := Story{
		UserID:           userID,
		MediaRef:         mediaRef,
		MediaKind:        mediaKind,
		Caption:          strings.TrimSpace(caption),
		ExpiresAtSeconds: now + StoryTTLSeconds,
		CreatedAtSeconds: now,
	}
	if err := s.db.WithContext(ctx).Create(&story).Error; err != nil {
		return Story{}, s.logError(opUploadStory, "insert_failed", err)
	}
	return story, nil
}

// PurgeExpiredStories deletes stories whose expiry passed before now.
func (s *Service) PurgeExpiredStories(ctx context.Context, now time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Where("expires_at_s < ?", now.UTC().Unix()).Delete(&Story{})
	if result.Error != nil {
		return 0, s.logError(opPurgeStories, "delete_failed", result.Error)
	}
	return result.RowsAffected, nil
}

func (s *Service) loadPost(ctx context.Context, operation string, postID int64) (Post, error) {
	if postID <= 0 {
		return Post{}, apperr.Validation(operation+".missing_post", "post_id is required")
	}
	var post Post
	err := s.db.WithContext(ctx).Where("id = ?", postID).Take(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Post{}, apperr.NotFound(operation+".post_not_found", "post not found")
	}
	if err != nil {
		return Post{}, s.logError(operation, "query_failed", err)
	}
	return post, nil
}

func (s *Service) displayName(ctx context.Context, userID string) string {
	summaries, err := s.directory.Summaries(ctx, []string{userID})
	if err != nil {
		return userID
	}
	if summary, ok := summaries[userID]; ok && summary.Username != "" {
		return summary.Username
	}
	return userID
}

func (s *Service) logError(operation, reason string, err error) error {
	s.logger.Error("social operation failed",
		zap.String("operation", operation),
		zap.String("reason", reason),
		zap.Error(err),
	)
	return apperr.Internal(operation+"."+reason, err)
}
