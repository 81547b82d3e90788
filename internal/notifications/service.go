package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/FazalZamanKhan/SociallyMobileApp-Backend/internal/apperr"
	"github.com/FazalZamanKhan/SociallyMobileApp-Backend/internal/paging"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	opRecord           = "notifications.record"
	opMarkRead         = "notifications.mark_read"
	opList             = "notifications.list"
	opRegisterDevice   = "notifications.register_device"
	opDeactivateDevice = "notifications.deactivate_device"
	opActiveEndpoints  = "notifications.active_endpoints"
)

var errMissingDatabase = errors.New("notifications: database handle is required")

// IDProvider issues identifiers for device endpoints.
type IDProvider interface {
	NewID() (string, error)
}

type uuidProvider struct{}

// NewUUIDProvider constructs an IDProvider that issues UUIDv7 identifiers.
func NewUUIDProvider() IDProvider {
	return uuidProvider{}
}

func (uuidProvider) NewID() (string, error) {
	value, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return value.String(), nil
}

// ServiceConfig describes the dependencies of the notification ledger.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// Service is the notification ledger and device registry.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
}

// MarkReadResult lists the notifications flipped to read by a call.
type MarkReadResult struct {
	Count int64   `json:"marked_count"`
	IDs   []int64 `json:"notification_ids"`
}

// ListResult is a page of notifications plus the caller's unread total.
type ListResult struct {
	Page        paging.Page[Record] `json:"page"`
	UnreadCount int64               `json:"unread_count"`
}

// NewService validates the configuration and constructs the ledger.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	idProvider := cfg.IDProvider
	if idProvider == nil {
		idProvider = NewUUIDProvider()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: cfg.Database, clock: clock, idProvider: idProvider, logger: logger}, nil
}

// Record persists a notification for the addressed user.
func (s *Service) Record(ctx context.Context, notice Notice) (Record, error) {
	if strings.TrimSpace(notice.UserID) == "" {
		return Record{}, apperr.Validation(opRecord+".missing_user", "notification recipient is required")
	}
	if !notice.Type.Valid() {
		return Record{}, apperr.Validation(opRecord+".invalid_type", fmt.Sprintf("unknown notification type %q", notice.Type))
	}
	payload := notice.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return Record{}, s.logError(opRecord, "encode_payload", apperr.Internal(opRecord+".encode_payload", err))
	}
	record := Record{
		UserID:           notice.UserID,
		Type:             notice.Type,
		Title:            notice.Title,
		Body:             notice.Body,
		Payload:          datatypes.JSON(encoded),
		CreatedAtSeconds: s.clock().UTC().Unix(),
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return Record{}, s.logError(opRecord, "insert_failed", apperr.Internal(opRecord+".insert_failed", err))
	}
	return record, nil
}

// MarkRead flips the caller's unread notifications to read. Ids that are not
// owned by the caller or already read are ignored.
func (s *Service) MarkRead(ctx context.Context, userID string, ids []int64, markAll bool) (MarkReadResult, error) {
	if !markAll && len(ids) == 0 {
		return MarkReadResult{}, apperr.Validation(opMarkRead+".missing_ids", "notification_ids or mark_all is required")
	}
	result := MarkReadResult{IDs: []int64{}}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx.Model(&Record{}).Where("user_id = ? AND is_read = ?", userID, false)
		if !markAll {
			query = query.Where("id IN ?", ids)
		}
		var matched []int64
		if err := query.Order("id ASC").Pluck("id", &matched).Error; err != nil {
			return err
		}
		if len(matched) == 0 {
			return nil
		}
		for _, id := range matched {
			update := tx.Model(&Record{}).Where("id = ? AND user_id = ? AND is_read = ?", id, userID, false).Update("is_read", true)
			if update.Error != nil {
				return update.Error
			}
			if update.RowsAffected == 1 {
				result.IDs = append(result.IDs, id)
			}
		}
		result.Count = int64(len(result.IDs))
		return nil
	})
	if err != nil {
		return MarkReadResult{}, s.logError(opMarkRead, "update_failed", apperr.Internal(opMarkRead+".update_failed", err))
	}
	return result, nil
}

// List returns the caller's notifications newest first.
func (s *Service) List(ctx context.Context, userID string, request paging.Request, unreadOnly bool) (ListResult, error) {
	base := func() *gorm.DB {
		query := s.db.WithContext(ctx).Model(&Record{}).Where("user_id = ?", userID)
		if unreadOnly {
			query = query.Where("is_read = ?", false)
		}
		return query
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return ListResult{}, s.logError(opList, "count_failed", apperr.Internal(opList+".count_failed", err))
	}
	var records []Record
	if err := base().Order("created_at_s DESC, id DESC").Offset(request.Offset()).Limit(request.PageSize).Find(&records).Error; err != nil {
		return ListResult{}, s.logError(opList, "query_failed", apperr.Internal(opList+".query_failed", err))
	}
	var unread int64
	if err := s.db.WithContext(ctx).Model(&Record{}).Where("user_id = ? AND is_read = ?", userID, false).Count(&unread).Error; err != nil {
		return ListResult{}, s.logError(opList, "unread_failed", apperr.Internal(opList+".unread_failed", err))
	}
	return ListResult{Page: paging.NewPage(records, total, request), UnreadCount: unread}, nil
}

// RegisterDevice upserts a push endpoint for the caller and marks it active.
func (s *Service) RegisterDevice(ctx context.Context, userID, token, deviceKind string) (DeviceEndpoint, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return DeviceEndpoint{}, apperr.Validation(opRegisterDevice+".missing_token", "fcm_token is required")
	}
	id, err := s.idProvider.NewID()
	if err != nil {
		return DeviceEndpoint{}, s.logError(opRegisterDevice, "id_failed", apperr.Internal(opRegisterDevice+".id_failed", err))
	}
	now := s.clock().UTC().Unix()
	endpoint := DeviceEndpoint{
		ID:               id,
		UserID:           userID,
		Token:            token,
		DeviceKind:       ParseDeviceKind(deviceKind),
		Active:           true,
		CreatedAtSeconds: now,
		UpdatedAtSeconds: now,
	}
	db := s.db.WithContext(ctx)
	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "token"}},
		DoUpdates: clause.AssignmentColumns([]string{"device_kind", "active", "updated_at_s"}),
	}).Create(&endpoint).Error
	if err != nil {
		return DeviceEndpoint{}, s.logError(opRegisterDevice, "upsert_failed", apperr.Internal(opRegisterDevice+".upsert_failed", err))
	}
	var stored DeviceEndpoint
	if err := db.Where("user_id = ? AND token = ?", userID, token).Take(&stored).Error; err != nil {
		return DeviceEndpoint{}, s.logError(opRegisterDevice, "reload_failed", apperr.Internal(opRegisterDevice+".reload_failed", err))
	}
	return stored, nil
}

// DeactivateDevice stops pushes to the caller's endpoint with the given token.
func (s *Service) DeactivateDevice(ctx context.Context, userID, token string) error {
	update := s.db.WithContext(ctx).Model(&DeviceEndpoint{}).
		Where("user_id = ? AND token = ?", userID, strings.TrimSpace(token)).
		Updates(map[string]any{"active": false, "updated_at_s": s.clock().UTC().Unix()})
	if update.Error != nil {
		return s.logError(opDeactivateDevice, "update_failed", apperr.Internal(opDeactivateDevice+".update_failed", update.Error))
	}
	if update.RowsAffected == 0 {
		return apperr.NotFound(opDeactivateDevice+".not_found", "device not registered")
	}
	return nil
}

// ActiveEndpoints lists the endpoints a notification for userID fans out to.
func (s *Service) ActiveEndpoints(ctx context.Context, userID string) ([]DeviceEndpoint, error) {
	var endpoints []DeviceEndpoint
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND active = ?", userID, true).
		Order("created_at_s ASC").
		Find(&endpoints).Error
	if err != nil {
		return nil, s.logError(opActiveEndpoints, "query_failed", apperr.Internal(opActiveEndpoints+".query_failed", err))
	}
	return endpoints, nil
}

func (s *Service) logError(operation, reason string, err error) error {
	if err == nil {
		return nil
	}
	s.logger.Error("notification ledger operation failed",
		zap.String("operation", operation),
		zap.String("reason", reason),
		zap.Error(err),
	)
	return err
}
