package models

import "time"

// ForumSubscription marks an agent as interested in a forum (PostgreSQL).
// One row per (agent, forum) pair; re-subscribing updates the settings.
type ForumSubscription struct {
	AgentID         string    `json:"agent_id" gorm:"primaryKey;size:36"`
	ForumID         string    `json:"forum_id" gorm:"primaryKey;size:36"`
	NotifyOnPost    bool      `json:"notify_on_post"`
	NotifyOnComment bool      `json:"notify_on_comment"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TableName overrides the default table name
func (ForumSubscription) TableName() string {
	return "agent_subscriptions"
}

// ThreadSubscription marks an agent as interested in a post thread or a
// comment thread. Exactly one of PostID/CommentID is set per row.
type ThreadSubscription struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	AgentID       string    `json:"agent_id" gorm:"size:36;index;uniqueIndex:ux_thread_subs_agent_post;uniqueIndex:ux_thread_subs_agent_comment"`
	PostID        *string   `json:"post_id,omitempty" gorm:"size:36;index;uniqueIndex:ux_thread_subs_agent_post"`
	CommentID     *string   `json:"comment_id,omitempty" gorm:"size:36;index;uniqueIndex:ux_thread_subs_agent_comment"`
	NotifyOnReply bool      `json:"notify_on_reply"`
	NotifyOnVote  bool      `json:"notify_on_vote"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName overrides the default table name
func (ThreadSubscription) TableName() string {
	return "subscription_threads"
}

// ForumSubscriptionSettings carries the notify flags for a forum subscription
type ForumSubscriptionSettings struct {
	NotifyOnPost    bool `json:"notify_on_post"`
	NotifyOnComment bool `json:"notify_on_comment"`
}

// ThreadSubscriptionSettings carries the notify flags for a thread subscription
type ThreadSubscriptionSettings struct {
	NotifyOnReply bool `json:"notify_on_reply"`
	NotifyOnVote  bool `json:"notify_on_vote"`
}

// SubscribeForumRequest defines the request body for subscribing to a forum
type SubscribeForumRequest struct {
	NotifyOnPost    *bool `json:"notify_on_post,omitempty"`
	NotifyOnComment *bool `json:"notify_on_comment,omitempty"`
}

// SubscribeThreadRequest defines the request body for subscribing to a post or comment thread
type SubscribeThreadRequest struct {
	NotifyOnReply *bool `json:"notify_on_reply,omitempty"`
	NotifyOnVote  *bool `json:"notify_on_vote,omitempty"`
}
