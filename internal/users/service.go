package users

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/FazalZamanKhan/SociallyMobileApp-Backend/internal/apperr"
	"github.com/FazalZamanKhan/SociallyMobileApp-Backend/internal/presence"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	opUpsert       = "users.upsert"
	opProfile      = "users.profile"
	opSummaries    = "users.summaries"
	opUpdateStatus = "users.update_status"
)

// PresenceStore overlays live presence on top of the stored directory fields.
type PresenceStore interface {
	Touch(ctx context.Context, userID string, online bool, at time.Time) error
	Lookup(ctx context.Context, userIDs []string) (map[string]presence.Status, error)
}

// ServiceConfig describes the dependencies required for directory lookups.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Presence PresenceStore
	Logger   *zap.Logger
}

// Service answers existence and profile questions about users.
type Service struct {
	db       *gorm.DB
	now      func() time.Time
	presence PresenceStore
	logger   *zap.Logger
	known    *sync.Map
}

// NewService constructs the directory service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("users: database connection required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:       cfg.Database,
		now:      clock,
		presence: cfg.Presence,
		logger:   logger,
		known:    &sync.Map{},
	}, nil
}

// Bind returns a copy of the service that reads and writes through tx.
func (s *Service) Bind(tx *gorm.DB) *Service {
	bound := *s
	bound.db = tx
	return &bound
}

// Upsert creates or refreshes a directory row.
func (s *Service) Upsert(ctx context.Context, profile Profile) error {
	id := normalize(profile.ID)
	username := normalize(profile.Username)
	if id == "" || username == "" {
		return apperr.Validation(opUpsert+".invalid_profile", "user id and username are required")
	}
	row := User{
		ID:               id,
		Username:         username,
		AvatarURL:        normalize(profile.AvatarURL),
		CreatedAtSeconds: s.now().UTC().Unix(),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "avatar_url"}),
	}).Create(&row).Error
	if err != nil {
		return apperr.Internal(opUpsert+".write_failed", err)
	}
	s.known.Store(id, struct{}{})
	return nil
}

// Exists reports whether the user is registered. Positive answers are cached;
// accounts are never removed by this core.
func (s *Service) Exists(ctx context.Context, userID string) (bool, error) {
	userID = normalize(userID)
	if userID == "" {
		return false, nil
	}
	if _, ok := s.known.Load(userID); ok {
		return true, nil
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
		return false, apperr.Internal("users.exists.query_failed", err)
	}
	if count > 0 {
		s.known.Store(userID, struct{}{})
	}
	return count > 0, nil
}

// Profile returns the summary of a single user.
func (s *Service) Profile(ctx context.Context, userID string) (Summary, error) {
	var user User
	err := s.db.WithContext(ctx).Where("id = ?", normalize(userID)).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Summary{}, apperr.NotFound(opProfile+".not_found", "user not found")
	}
	if err != nil {
		return Summary{}, apperr.Internal(opProfile+".query_failed", err)
	}
	summaries := map[string]Summary{user.ID: summaryOf(user)}
	s.overlayPresence(ctx, summaries)
	return summaries[user.ID], nil
}

// Summaries returns display summaries keyed by id; unknown ids are omitted.
func (s *Service) Summaries(ctx context.Context, userIDs []string) (map[string]Summary, error) {
	result := make(map[string]Summary, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}
	var rows []User
	if err := s.db.WithContext(ctx).Where("id IN ?", userIDs).Find(&rows).Error; err != nil {
		return nil, apperr.Internal(opSummaries+".query_failed", err)
	}
	for _, row := range rows {
		result[row.ID] = summaryOf(row)
	}
	s.overlayPresence(ctx, result)
	return result, nil
}

// UpdateStatus flips the online flag and stamps last-seen.
func (s *Service) UpdateStatus(ctx context.Context, userID string, online bool) (Summary, error) {
	now := s.now().UTC()
	update := s.db.WithContext(ctx).Model(&User{}).
		Where("id = ?", normalize(userID)).
		Updates(map[string]interface{}{"is_online": online, "last_seen_at_s": now.Unix()})
	if update.Error != nil {
		return Summary{}, apperr.Internal(opUpdateStatus+".write_failed", update.Error)
	}
	if update.RowsAffected == 0 {
		return Summary{}, apperr.NotFound(opUpdateStatus+".not_found", "user not found")
	}
	if s.presence != nil {
		if err := s.presence.Touch(ctx, normalize(userID), online, now); err != nil {
			s.logger.Warn("presence touch failed", zap.String("user_id", userID), zap.Error(err))
		}
	}
	return s.Profile(ctx, userID)
}

func (s *Service) overlayPresence(ctx context.Context, summaries map[string]Summary) {
	if s.presence == nil || len(summaries) == 0 {
		return
	}
	ids := make([]string, 0, len(summaries))
	for id := range summaries {
		ids = append(ids, id)
	}
	statuses, err := s.presence.Lookup(ctx, ids)
	if err != nil {
		s.logger.Warn("presence lookup failed", zap.Error(err))
		return
	}
	for id, status := range statuses {
		summary := summaries[id]
		summary.IsOnline = status.Online
		if status.LastSeenAtSeconds > summary.LastSeenAtSeconds {
			summary.LastSeenAtSeconds = status.LastSeenAtSeconds
		}
		summaries[id] = summary
	}
}
