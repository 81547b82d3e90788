// Package messages stores direct messages between users and enforces their
// edit, delete, read and vanish rules.
package messages

import "strings"

// DeletedPlaceholder replaces the content of a message deleted for everyone.
const DeletedPlaceholder = "[Message deleted]"

// Kind distinguishes persistent messages from vanishing ones.
type Kind string

const (
	KindNormal Kind = "normal"
	KindVanish Kind = "vanish"
)

// ParseKind coerces unknown kinds to normal.
func ParseKind(raw string) Kind {
	if Kind(strings.ToLower(strings.TrimSpace(raw))) == KindVanish {
		return KindVanish
	}
	return KindNormal
}

// MediaKind describes what a message carries.
type MediaKind string

const (
	MediaText  MediaKind = "text"
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
	MediaAudio MediaKind = "audio"
	MediaFile  MediaKind = "file"
)

// resolveMediaKind returns text for text-only messages. Attachments with a
// missing or unknown kind are treated as generic files.
func resolveMediaKind(raw string, hasMedia bool) MediaKind {
	if !hasMedia {
		return MediaText
	}
	switch kind := MediaKind(strings.ToLower(strings.TrimSpace(raw))); kind {
	case MediaImage, MediaVideo, MediaAudio, MediaFile:
		return kind
	default:
		return MediaFile
	}
}

// Message is a row of the message ledger. Timestamps are unix seconds.
type Message struct {
	ID               int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	SenderID         string    `gorm:"column:sender_id;size:190;not null;index:idx_messages_pair,priority:1" json:"sender_id"`
	ReceiverID       string    `gorm:"column:receiver_id;size:190;not null;index:idx_messages_pair,priority:2;index:idx_messages_receiver_unread,priority:1" json:"receiver_id"`
	Content          string    `gorm:"column:content;type:text;not null" json:"content"`
	MediaRef         *string   `gorm:"column:media_ref;size:1024" json:"media_ref"`
	MediaKind        MediaKind `gorm:"column:media_kind;size:16;not null" json:"media_kind"`
	Kind             Kind      `gorm:"column:kind;size:16;not null" json:"kind"`
	IsEdited         bool      `gorm:"column:is_edited;not null;default:false" json:"is_edited"`
	EditedAtSeconds  *int64    `gorm:"column:edited_at_s" json:"edited_at_s"`
	IsRead           bool      `gorm:"column:is_read;not null;default:false;index:idx_messages_receiver_unread,priority:2" json:"is_read"`
	ReadAtSeconds    *int64    `gorm:"column:read_at_s" json:"read_at_s"`
	IsDeleted        bool      `gorm:"column:is_deleted;not null;default:false" json:"is_deleted"`
	DeletedAtSeconds *int64    `gorm:"column:deleted_at_s" json:"deleted_at_s"`
	ExpiresAtSeconds *int64    `gorm:"column:expires_at_s;index" json:"expires_at_s"`
	CreatedAtSeconds int64     `gorm:"column:created_at_s;not null;index" json:"created_at_s"`
}

// TableName exposes the table backing the message ledger.
func (Message) TableName() string {
	return "messages"
}

// HasMedia reports whether the message still references an attachment.
func (m Message) HasMedia() bool {
	return m.MediaRef != nil && *m.MediaRef != ""
}

// VisibleAt reports whether the message is neither deleted nor expired at now.
func (m Message) VisibleAt(now int64) bool {
	if m.IsDeleted {
		return false
	}
	return m.ExpiresAtSeconds == nil || *m.ExpiresAtSeconds > now
}

// ScreenshotAlert records that a participant captured a chat. The pair is
// stored ordered so both directions share one key.
type ScreenshotAlert struct {
	ID               int64  `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ChatUser1ID      string `gorm:"column:chat_user1_id;size:190;not null;index:idx_screenshot_pair,priority:1" json:"chat_user1_id"`
	ChatUser2ID      string `gorm:"column:chat_user2_id;size:190;not null;index:idx_screenshot_pair,priority:2" json:"chat_user2_id"`
	ReportedBy       string `gorm:"column:reported_by;size:190;not null" json:"reported_by"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null" json:"created_at_s"`
}

// TableName exposes the table backing screenshot alerts.
func (ScreenshotAlert) TableName() string {
	return "screenshot_alerts"
}

func orderedPair(first, second string) (string, string) {
	if first <= second {
		return first, second
	}
	return second, first
}
