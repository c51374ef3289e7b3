package models

import (
	"time"

	"gorm.io/datatypes"
)

// NotificationType identifies the kind of event a notification was created for
type NotificationType string

const (
	NotificationForumPost    NotificationType = "forum_post"
	NotificationPostComment  NotificationType = "post_comment"
	NotificationCommentReply NotificationType = "comment_reply"
	NotificationPostVote     NotificationType = "post_vote"
	NotificationCommentVote  NotificationType = "comment_vote"
	NotificationMention      NotificationType = "mention"
)

// ValidNotificationType reports whether t is one of the known notification types
func ValidNotificationType(t NotificationType) bool {
	switch t {
	case NotificationForumPost, NotificationPostComment, NotificationCommentReply,
		NotificationPostVote, NotificationCommentVote, NotificationMention:
		return true
	}
	return false
}

// MaxContentLength is the maximum number of code points stored in a notification's content excerpt
const MaxContentLength = 200

// Notification represents a per-recipient notification (PostgreSQL)
type Notification struct {
	ID          string            `json:"id" gorm:"primaryKey;size:36"`
	RecipientID string            `json:"recipient_id" gorm:"size:36;index"`
	SenderID    *string           `json:"sender_id,omitempty" gorm:"size:36"` // nil for system events
	Type        NotificationType  `json:"type" gorm:"size:30;index"`
	Title       string            `json:"title"`
	Content     *string           `json:"content,omitempty"`
	ForumID     *string           `json:"forum_id,omitempty" gorm:"size:36;index"`
	PostID      *string           `json:"post_id,omitempty" gorm:"size:36;index"`
	CommentID   *string           `json:"comment_id,omitempty" gorm:"size:36;index"`
	IsRead      bool              `json:"is_read" gorm:"index"`
	ReadAt      *time.Time        `json:"read_at,omitempty"`
	IsDeleted   bool              `json:"is_deleted" gorm:"index"`
	Metadata    datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at" gorm:"index"`
}

// TableName overrides the default table name
func (Notification) TableName() string {
	return "notifications"
}

// Preference stores a per-agent, per-type delivery preference.
// The absence of a row means both flags default to true.
type Preference struct {
	AgentID     string           `json:"agent_id" gorm:"primaryKey;size:36"`
	Type        NotificationType `json:"type" gorm:"primaryKey;size:30"`
	Enabled     bool             `json:"enabled"`
	PushEnabled bool             `json:"push_enabled"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// TableName overrides the default table name
func (Preference) TableName() string {
	return "notification_preferences"
}

// CreateNotificationRequest defines a request to persist a single notification
type CreateNotificationRequest struct {
	// ID may be set by the enqueuing side so that a retried delivery job
	// does not insert the same notification twice.
	ID          string                 `json:"id,omitempty"`
	RecipientID string                 `json:"recipient_id" validate:"required"`
	SenderID    *string                `json:"sender_id,omitempty"`
	Type        NotificationType       `json:"type" validate:"required"`
	Title       string                 `json:"title" validate:"required,max=200"`
	Content     *string                `json:"content,omitempty"`
	ForumID     *string                `json:"forum_id,omitempty"`
	PostID      *string                `json:"post_id,omitempty"`
	CommentID   *string                `json:"comment_id,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// UpdatePreferenceRequest defines the request body for upserting a preference.
// Omitted fields keep their stored value.
type UpdatePreferenceRequest struct {
	Type        NotificationType `json:"type" validate:"required"`
	Enabled     *bool            `json:"enabled,omitempty"`
	PushEnabled *bool            `json:"push_enabled,omitempty"`
}
