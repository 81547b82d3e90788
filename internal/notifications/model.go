// Package notifications records per-user notifications and fans them out to
// registered devices and live streams.
package notifications

import (
	"gorm.io/datatypes"
)

// Type enumerates the notification categories.
type Type string

const (
	TypeMessage         Type = "message"
	TypeLike            Type = "like"
	TypeComment         Type = "comment"
	TypeFollowRequest   Type = "follow_request"
	TypeFollowAccepted  Type = "follow_accepted"
	TypeCall            Type = "call"
	TypeStoryView       Type = "story_view"
	TypeScreenshotAlert Type = "screenshot_alert"
)

// Valid reports whether the type is one of the known categories.
func (t Type) Valid() bool {
	switch t {
	case TypeMessage, TypeLike, TypeComment, TypeFollowRequest, TypeFollowAccepted,
		TypeCall, TypeStoryView, TypeScreenshotAlert:
		return true
	default:
		return false
	}
}

// DeviceKind is the push platform of an endpoint.
type DeviceKind string

const (
	DeviceAndroid DeviceKind = "android"
	DeviceIOS     DeviceKind = "ios"
)

// ParseDeviceKind coerces unknown platforms to android.
func ParseDeviceKind(raw string) DeviceKind {
	if DeviceKind(raw) == DeviceIOS {
		return DeviceIOS
	}
	return DeviceAndroid
}

// Record is a persisted notification.
type Record struct {
	ID               int64          `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	UserID           string         `gorm:"column:user_id;size:190;not null;index:idx_notifications_user_created,priority:1" json:"user_id"`
	Type             Type           `gorm:"column:type;size:32;not null" json:"type"`
	Title            string         `gorm:"column:title;size:255;not null" json:"title"`
	Body             string         `gorm:"column:body;type:text;not null" json:"body"`
	Payload          datatypes.JSON `gorm:"column:payload" json:"payload"`
	IsRead           bool           `gorm:"column:is_read;not null;default:false" json:"is_read"`
	CreatedAtSeconds int64          `gorm:"column:created_at_s;not null;index:idx_notifications_user_created,priority:2" json:"created_at_s"`
}

// TableName exposes the table backing notification records.
func (Record) TableName() string {
	return "notifications"
}

// DeviceEndpoint is a registered push target.
type DeviceEndpoint struct {
	ID               string     `gorm:"column:id;primaryKey;size:64" json:"id"`
	UserID           string     `gorm:"column:user_id;size:190;not null;uniqueIndex:idx_device_endpoints_user_token,priority:1" json:"user_id"`
	Token            string     `gorm:"column:token;size:512;not null;uniqueIndex:idx_device_endpoints_user_token,priority:2" json:"token"`
	DeviceKind       DeviceKind `gorm:"column:device_kind;size:16;not null" json:"device_kind"`
	Active           bool       `gorm:"column:active;not null;default:true" json:"active"`
	CreatedAtSeconds int64      `gorm:"column:created_at_s;not null" json:"created_at_s"`
	UpdatedAtSeconds int64      `gorm:"column:updated_at_s;not null" json:"updated_at_s"`
}

// TableName exposes the table backing device endpoints.
func (DeviceEndpoint) TableName() string {
	return "device_endpoints"
}

// Notice is a notification about to be recorded.
type Notice struct {
	UserID  string
	Type    Type
	Title   string
	Body    string
	Payload map[string]any
}
