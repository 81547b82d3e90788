// Package social stores the post, follow and story rows raised by offline actions.
package social

// StoryTTLSeconds is how long a story stays visible.
const StoryTTLSeconds = 24 * 60 * 60

// Post is a feed entry.
type Post struct {
	ID               int64  `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	UserID           string `gorm:"column:user_id;size:190;not null;index" json:"user_id"`
	Content          string `gorm:"column:content;type:text;not null" json:"content"`
	MediaRef         string `gorm:"column:media_ref;size:1024;not null;default:''" json:"media_ref"`
	MediaKind        string `gorm:"column:media_kind;size:16;not null;default:''" json:"media_kind"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null" json:"created_at_s"`
}

// TableName exposes the table backing posts.
func (Post) TableName() string {
	return "posts"
}

// PostLike is unique per post and user.
type PostLike struct {
	ID               int64  `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	PostID           int64  `gorm:"column:post_id;not null;uniqueIndex:idx_post_likes_post_user,priority:1" json:"post_id"`
	UserID           string `gorm:"column:user_id;size:190;not null;uniqueIndex:idx_post_likes_post_user,priority:2" json:"user_id"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null" json:"created_at_s"`
}

func (PostLike) TableName() string {
	return "post_likes"
}

// PostComment is a comment on a post.
type PostComment struct {
	ID               int64  `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	PostID           int64  `gorm:"column:post_id;not null;index" json:"post_id"`
	UserID           string `gorm:"column:user_id;size:190;not null" json:"user_id"`
	Content          string `gorm:"column:content;type:text;not null" json:"content"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null" json:"created_at_s"`
}

func (PostComment) TableName() string {
	return "post_comments"
}

// FollowStatusPending is the state of a freshly created follow request.
const FollowStatusPending = "pending"

// FollowRequest is unique per sender and receiver.
type FollowRequest struct {
	ID               int64  `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	SenderID         string `gorm:"column:sender_id;size:190;not null;uniqueIndex:idx_follow_requests_pair,priority:1" json:"sender_id"`
	ReceiverID       string `gorm:"column:receiver_id;size:190;not null;uniqueIndex:idx_follow_requests_pair,priority:2" json:"receiver_id"`
	Status           string `gorm:"column:status;size:16;not null" json:"status"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null" json:"created_at_s"`
}

func (FollowRequest) TableName() string {
	return "follow_requests"
}

// Story is a media post that expires after a day.
type Story struct {
	ID               int64  `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	UserID           string `gorm:"column:user_id;size:190;not null;index" json:"user_id"`
	MediaRef         string `gorm:"column:media_ref;size:1024;not null" json:"media_ref"`
	MediaKind        string `gorm:"column:media_kind;size:16;not null" json:"media_kind"`
	Caption          string `gorm:"column:caption;type:text;not null" json:"caption"`
	ExpiresAtSeconds int64  `gorm:"column:expires_at_s;not null;index" json:"expires_at_s"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null" json:"created_at_s"`
}

func (Story) TableName() string {
	return "stories"
}
