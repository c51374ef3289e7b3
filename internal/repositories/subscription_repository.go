package repositories

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/petertzy/molthub/backend/internal/models"
)

// SubscriptionRepository defines the interface for the subscription registry.
// Subscribe operations are idempotent upserts; unsubscribing an absent row
// yields ErrSubscriptionNotFound so callers can distinguish "never subscribed"
// from "removed".
type SubscriptionRepository interface {
	SubscribeToForum(ctx context.Context, agentID, forumID string, settings models.ForumSubscriptionSettings) (*models.ForumSubscription, error)
	UnsubscribeFromForum(ctx context.Context, agentID, forumID string) error
	GetForumSubscribers(ctx context.Context, forumID string, requireNotifyOnPost bool) ([]string, error)

	SubscribeToPost(ctx context.Context, agentID, postID string, settings models.ThreadSubscriptionSettings) (*models.ThreadSubscription, error)
	UnsubscribeFromPost(ctx context.Context, agentID, postID string) error
	GetPostSubscribers(ctx context.Context, postID string, requireNotifyOnReply bool) ([]string, error)

	SubscribeToComment(ctx context.Context, agentID, commentID string, settings models.ThreadSubscriptionSettings) (*models.ThreadSubscription, error)
	UnsubscribeFromComment(ctx context.Context, agentID, commentID string) error
	GetCommentSubscribers(ctx context.Context, commentID string, requireNotifyOnReply bool) ([]string, error)

	// Auto-subscription on authoring. These never clobber settings an agent
	// chose explicitly; an existing row is left untouched.
	AutoSubscribeToPost(ctx context.Context, agentID, postID string) error
	AutoSubscribeToComment(ctx context.Context, agentID, commentID string) error
}

type postgresSubscriptionRepository struct {
	db *gorm.DB
}

// NewPostgresSubscriptionRepository creates a SubscriptionRepository backed by PostgreSQL
func NewPostgresSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &postgresSubscriptionRepository{db: db}
}

func (r *postgresSubscriptionRepository) SubscribeToForum(ctx context.Context, agentID, forumID string, settings models.ForumSubscriptionSettings) (*models.ForumSubscription, error) {
	subscription := &models.ForumSubscription{
		AgentID:         agentID,
		ForumID:         forumID,
		NotifyOnPost:    settings.NotifyOnPost,
		NotifyOnComment: settings.NotifyOnComment,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "agent_id"}, {Name: "forum_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"notify_on_post", "notify_on_comment", "updated_at"}),
		}).
		Create(subscription).Error
	if err != nil {
		return nil, err
	}
	return subscription, nil
}

func (r *postgresSubscriptionRepository) UnsubscribeFromForum(ctx context.Context, agentID, forumID string) error {
	result := r.db.WithContext(ctx).
		Where("agent_id = ? AND forum_id = ?", agentID, forumID).
		Delete(&models.ForumSubscription{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}

func (r *postgresSubscriptionRepository) GetForumSubscribers(ctx context.Context, forumID string, requireNotifyOnPost bool) ([]string, error) {
	query := r.db.WithContext(ctx).Model(&models.ForumSubscription{}).
		Where("forum_id = ?", forumID)
	if requireNotifyOnPost {
		query = query.Where("notify_on_post = ?", true)
	}

	var agentIDs []string
	err := query.Pluck("agent_id", &agentIDs).Error
	return agentIDs, err
}

func (r *postgresSubscriptionRepository) SubscribeToPost(ctx context.Context, agentID, postID string, settings models.ThreadSubscriptionSettings) (*models.ThreadSubscription, error) {
	subscription := &models.ThreadSubscription{
		AgentID:       agentID,
		PostID:        &postID,
		NotifyOnReply: settings.NotifyOnReply,
		NotifyOnVote:  settings.NotifyOnVote,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "agent_id"}, {Name: "post_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"notify_on_reply", "notify_on_vote", "updated_at"}),
		}).
		Create(subscription).Error
	if err != nil {
		return nil, err
	}
	return subscription, nil
}

func (r *postgresSubscriptionRepository) UnsubscribeFromPost(ctx context.Context, agentID, postID string) error {
	result := r.db.WithContext(ctx).
		Where("agent_id = ? AND post_id = ?", agentID, postID).
		Delete(&models.ThreadSubscription{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}

func (r *postgresSubscriptionRepository) GetPostSubscribers(ctx context.Context, postID string, requireNotifyOnReply bool) ([]string, error) {
	query := r.db.WithContext(ctx).Model(&models.ThreadSubscription{}).
		Where("post_id = ?", postID)
	if requireNotifyOnReply {
		query = query.Where("notify_on_reply = ?", true)
	}

	var agentIDs []string
	err := query.Pluck("agent_id", &agentIDs).Error
	return agentIDs, err
}

func (r *postgresSubscriptionRepository) SubscribeToComment(ctx context.Context, agentID, commentID string, settings models.ThreadSubscriptionSettings) (*models.ThreadSubscription, error) {
	subscription := &models.ThreadSubscription{
		AgentID:       agentID,
		CommentID:     &commentID,
		NotifyOnReply: settings.NotifyOnReply,
		NotifyOnVote:  settings.NotifyOnVote,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "agent_id"}, {Name: "comment_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"notify_on_reply", "notify_on_vote", "updated_at"}),
		}).
		Create(subscription).Error
	if err != nil {
		return nil, err
	}
	return subscription, nil
}

func (r *postgresSubscriptionRepository) UnsubscribeFromComment(ctx context.Context, agentID, commentID string) error {
	result := r.db.WithContext(ctx).
		Where("agent_id = ? AND comment_id = ?", agentID, commentID).
		Delete(&models.ThreadSubscription{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}

func (r *postgresSubscriptionRepository) GetCommentSubscribers(ctx context.Context, commentID string, requireNotifyOnReply bool) ([]string, error) {
	query := r.db.WithContext(ctx).Model(&models.ThreadSubscription{}).
		Where("comment_id = ?", commentID)
	if requireNotifyOnReply {
		query = query.Where("notify_on_reply = ?", true)
	}

	var agentIDs []string
	err := query.Pluck("agent_id", &agentIDs).Error
	return agentIDs, err
}

func (r *postgresSubscriptionRepository) AutoSubscribeToPost(ctx context.Context, agentID, postID string) error {
	subscription := &models.ThreadSubscription{
		AgentID:       agentID,
		PostID:        &postID,
		NotifyOnReply: true,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "agent_id"}, {Name: "post_id"}},
			DoNothing: true,
		}).
		Create(subscription).Error
}

func (r *postgresSubscriptionRepository) AutoSubscribeToComment(ctx context.Context, agentID, commentID string) error {
	subscription := &models.ThreadSubscription{
		AgentID:       agentID,
		CommentID:     &commentID,
		NotifyOnReply: true,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "agent_id"}, {Name: "comment_id"}},
			DoNothing: true,
		}).
		Create(subscription).Error
}
