package users

import (
	"strings"
)

// User is the directory row for a registered account. Registration itself lives
// outside this service; the row only carries what message display needs.
type User struct {
	ID                string `gorm:"column:id;primaryKey;size:190;not null"`
	Username          string `gorm:"column:username;size:64;not null;uniqueIndex"`
	AvatarURL         string `gorm:"column:avatar_url;size:512;not null;default:''"`
	IsOnline          bool   `gorm:"column:is_online;not null;default:false"`
	LastSeenAtSeconds int64  `gorm:"column:last_seen_at_s;not null;default:0"`
	CreatedAtSeconds  int64  `gorm:"column:created_at_s;not null"`
}

// TableName exposes the table backing the user directory.
func (User) TableName() string {
	return "users"
}

// Profile is the input accepted by Upsert.
type Profile struct {
	ID        string
	Username  string
	AvatarURL string
}

// Summary is the display projection handed to other components.
type Summary struct {
	ID                string `json:"id"`
	Username          string `json:"username"`
	AvatarURL         string `json:"avatar_url"`
	IsOnline          bool   `json:"is_online"`
	LastSeenAtSeconds int64  `json:"last_seen_at_s"`
}

func summaryOf(user User) Summary {
	return Summary{
		ID:                user.ID,
		Username:          user.Username,
		AvatarURL:         user.AvatarURL,
		IsOnline:          user.IsOnline,
		LastSeenAtSeconds: user.LastSeenAtSeconds,
	}
}

// normalize value helper used across service implementation.
func normalize(value string) string {
	return strings.TrimSpace(value)
}
