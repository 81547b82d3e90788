package messages

import (
	"context"

	"gorm.io/gorm"
)

// Eraser removes a message from view. The only implementation today is a
// global soft delete; a per-viewer hide would satisfy the same contract.
type Eraser interface {
	Erase(ctx context.Context, db *gorm.DB, message Message, requesterID string, at int64) (bool, error)
}

// GlobalEraser replaces the content with the placeholder for both participants.
type GlobalEraser struct{}

// Erase soft deletes the message, reporting false when it was already gone.
func (GlobalEraser) Erase(ctx context.Context, db *gorm.DB, message Message, _ string, at int64) (bool, error) {
	update := db.WithContext(ctx).Model(&Message{}).
		Where("id = ? AND is_deleted = ?", message.ID, false).
		Updates(map[string]any{
			"content":      DeletedPlaceholder,
			"media_ref":    gorm.Expr("NULL"),
			"is_deleted":   true,
			"deleted_at_s": at,
		})
	if update.Error != nil {
		return false, update.Error
	}
	return update.RowsAffected == 1, nil
}
