package repositories

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/petertzy/molthub/backend/internal/models"
)

// PreferenceRepository defines the interface for notification preference operations
type PreferenceRepository interface {
	GetPreferences(ctx context.Context, agentID string) ([]models.Preference, error)
	UpdatePreference(ctx context.Context, agentID string, req *models.UpdatePreferenceRequest) (*models.Preference, error)
	// IsNotificationEnabled returns true when no preference row exists.
	IsNotificationEnabled(ctx context.Context, agentID string, t models.NotificationType) (bool, error)
	// IsPushEnabled returns true when no preference row exists.
	IsPushEnabled(ctx context.Context, agentID string, t models.NotificationType) (bool, error)
}

type postgresPreferenceRepository struct {
	db *gorm.DB
}

// NewPostgresPreferenceRepository creates a PreferenceRepository backed by PostgreSQL
func NewPostgresPreferenceRepository(db *gorm.DB) PreferenceRepository {
	return &postgresPreferenceRepository{db: db}
}

func (r *postgresPreferenceRepository) GetPreferences(ctx context.Context, agentID string) ([]models.Preference, error) {
	var preferences []models.Preference
	err := r.db.WithContext(ctx).
		Where("agent_id = ?", agentID).
		Order("type").
		Find(&preferences).Error
	return preferences, err
}

func (r *postgresPreferenceRepository) UpdatePreference(ctx context.Context, agentID string, req *models.UpdatePreferenceRequest) (*models.Preference, error) {
	if !models.ValidNotificationType(req.Type) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidNotificationType, req.Type)
	}

	// Start from the stored row, or from the defaults when there is none, so
	// that an omitted field keeps its current value.
	preference := models.Preference{
		AgentID:     agentID,
		Type:        req.Type,
		Enabled:     true,
		PushEnabled: true,
	}
	err := r.db.WithContext(ctx).
		First(&preference, "agent_id = ? AND type = ?", agentID, req.Type).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if req.Enabled != nil {
		preference.Enabled = *req.Enabled
	}
	if req.PushEnabled != nil {
		preference.PushEnabled = *req.PushEnabled
	}

	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "agent_id"}, {Name: "type"}},
			DoUpdates: clause.AssignmentColumns([]string{"enabled", "push_enabled", "updated_at"}),
		}).
		Create(&preference).Error
	if err != nil {
		return nil, err
	}

	return &preference, nil
}

func (r *postgresPreferenceRepository) IsNotificationEnabled(ctx context.Context, agentID string, t models.NotificationType) (bool, error) {
	var preference models.Preference
	err := r.db.WithContext(ctx).
		First(&preference, "agent_id = ? AND type = ?", agentID, t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return preference.Enabled, nil
}

func (r *postgresPreferenceRepository) IsPushEnabled(ctx context.Context, agentID string, t models.NotificationType) (bool, error) {
	var preference models.Preference
	err := r.db.WithContext(ctx).
		First(&preference, "agent_id = ? AND type = ?", agentID, t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return preference.PushEnabled, nil
}
