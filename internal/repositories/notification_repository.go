package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/petertzy/molthub/backend/internal/models"
)

// NotificationFilters narrows a notification listing
type NotificationFilters struct {
	Type   *models.NotificationType
	IsRead *bool
	From   *time.Time
	To     *time.Time
	Page   int
	Limit  int
}

// NotificationRepository defines the interface for notification operations
type NotificationRepository interface {
	CreateNotification(ctx context.Context, req *models.CreateNotificationRequest) (*models.Notification, error)
	GetNotifications(ctx context.Context, agentID string, filters NotificationFilters) ([]models.Notification, int64, error)
	GetUnreadCount(ctx context.Context, agentID string) (int64, error)
	MarkAsRead(ctx context.Context, id, agentID string) error
	MarkAsUnread(ctx context.Context, id, agentID string) error
	MarkAllAsRead(ctx context.Context, agentID string) (int64, error)
	DeleteNotification(ctx context.Context, id, agentID string) error
}

type postgresNotificationRepository struct {
	db *gorm.DB
}

// NewPostgresNotificationRepository creates a NotificationRepository backed by PostgreSQL
func NewPostgresNotificationRepository(db *gorm.DB) NotificationRepository {
	return &postgresNotificationRepository{db: db}
}

// truncateContent limits an excerpt to MaxContentLength code points
func truncateContent(content *string) *string {
	if content == nil {
		return nil
	}
	runes := []rune(*content)
	if len(runes) <= models.MaxContentLength {
		return content
	}
	truncated := string(runes[:models.MaxContentLength])
	return &truncated
}

func (r *postgresNotificationRepository) CreateNotification(ctx context.Context, req *models.CreateNotificationRequest) (*models.Notification, error) {
	if !models.ValidNotificationType(req.Type) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidNotificationType, req.Type)
	}
	if req.ForumID == nil && req.PostID == nil && req.CommentID == nil {
		return nil, ErrMissingResourceRef
	}

	id := req.ID
	if id == "" {
		id = uuid.New().String()
	}

	notification := &models.Notification{
		ID:          id,
		RecipientID: req.RecipientID,
		SenderID:    req.SenderID,
		Type:        req.Type,
		Title:       req.Title,
		Content:     truncateContent(req.Content),
		ForumID:     req.ForumID,
		PostID:      req.PostID,
		CommentID:   req.CommentID,
		Metadata:    req.Metadata,
		CreatedAt:   time.Now().UTC(),
	}

	// Retried delivery jobs reuse the id assigned at enqueue time, so a
	// conflicting insert means the previous attempt already persisted the row.
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(notification)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		existing := &models.Notification{}
		if err := r.db.WithContext(ctx).First(existing, "id = ?", id).Error; err != nil {
			return nil, err
		}
		return existing, nil
	}

	return notification, nil
}

func (r *postgresNotificationRepository) GetNotifications(ctx context.Context, agentID string, filters NotificationFilters) ([]models.Notification, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND is_deleted = ?", agentID, false)

	if filters.Type != nil {
		query = query.Where("type = ?", *filters.Type)
	}
	if filters.IsRead != nil {
		query = query.Where("is_read = ?", *filters.IsRead)
	}
	if filters.From != nil {
		query = query.Where("created_at >= ?", *filters.From)
	}
	if filters.To != nil {
		query = query.Where("created_at <= ?", *filters.To)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := filters.Page
	if page < 1 {
		page = 1
	}
	limit := filters.Limit
	if limit < 1 || limit > 50 {
		limit = 20
	}

	var notifications []models.Notification
	err := query.
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&notifications).Error
	if err != nil {
		return nil, 0, err
	}

	return notifications, total, nil
}

func (r *postgresNotificationRepository) GetUnreadCount(ctx context.Context, agentID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ? AND is_deleted = ?", agentID, false, false).
		Count(&count).Error
	return count, err
}

func (r *postgresNotificationRepository) MarkAsRead(ctx context.Context, id, agentID string) error {
	now := time.Now().UTC()
	result := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND recipient_id = ? AND is_deleted = ?", id, agentID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": &now})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

func (r *postgresNotificationRepository) MarkAsUnread(ctx context.Context, id, agentID string) error {
	result := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND recipient_id = ? AND is_deleted = ?", id, agentID, false).
		Updates(map[string]interface{}{"is_read": false, "read_at": nil})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

func (r *postgresNotificationRepository) MarkAllAsRead(ctx context.Context, agentID string) (int64, error) {
	now := time.Now().UTC()
	result := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ? AND is_deleted = ?", agentID, false, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": &now})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// DeleteNotification soft-deletes a notification. The row is kept for the
// out-of-band retention job; normal flow never hard-deletes.
func (r *postgresNotificationRepository) DeleteNotification(ctx context.Context, id, agentID string) error {
	result := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND recipient_id = ? AND is_deleted = ?", id, agentID, false).
		Update("is_deleted", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}
