package postgres

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/meetscribe/pkg/domain/model"
	"github.com/secmon-lab/meetscribe/pkg/domain/types"
	"gorm.io/gorm"
)

type integrationRepository struct {
	db *gorm.DB
}

// hasActiveConflict reports whether another active integration of the same type exists
func hasActiveConflict(tx *gorm.DB, i *model.Integration) (bool, error) {
	if !i.IsActive {
		return false, nil
	}
	var n int64
	err := tx.Model(&integrationRow{}).
		Where("user_id = ? AND type = ? AND is_active = ? AND id <> ?",
			string(i.UserID), string(i.Type), true, string(i.ID)).
		Count(&n).Error
	return n > 0, err
}

func (r *integrationRepository) Create(ctx context.Context, integration *model.Integration) (*model.Integration, error) {
	now := time.Now().UTC()
	created := *integration
	if created.ID == "" {
		created.ID = model.NewIntegrationID()
	}
	created.CreatedAt = now
	created.UpdatedAt = now

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		conflict, err := hasActiveConflict(tx, &created)
		if err != nil {
			return err
		}
		if conflict {
			return goerr.Wrap(model.ErrConflict, "active integration already exists",
				goerr.V("user_id", created.UserID), goerr.V("type", created.Type))
		}
		return tx.Create(newIntegrationRow(&created)).Error
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create integration", goerr.V("id", created.ID))
	}
	return &created, nil
}

func (r *integrationRepository) Get(ctx context.Context, id model.IntegrationID) (*model.Integration, error) {
	var row integrationRow
	if err := r.db.WithContext(ctx).Where("id = ?", string(id)).First(&row).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to get integration", goerr.V("id", id))
	}
	return row.toModel(), nil
}

func (r *integrationRepository) Update(ctx context.Context, integration *model.Integration) (*model.Integration, error) {
	var updated *model.Integration
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing integrationRow
		if err := tx.Where("id = ?", string(integration.ID)).First(&existing).Error; err != nil {
			if isNotFound(err) {
				return nil
			}
			return err
		}

		next := *integration
		next.UserID = model.UserID(existing.UserID)
		next.Type = types.IntegrationType(existing.Type)

		conflict, err := hasActiveConflict(tx, &next)
		if err != nil {
			return err
		}
		if conflict {
			return goerr.Wrap(model.ErrConflict, "active integration already exists",
				goerr.V("user_id", next.UserID), goerr.V("type", next.Type))
		}

		next.LastSyncedAt = existing.LastSyncedAt
		next.LastError = existing.LastError
		next.ErrorCount = existing.ErrorCount
		next.CreatedAt = existing.CreatedAt
		next.UpdatedAt = time.Now().UTC()
		if err := tx.Save(newIntegrationRow(&next)).Error; err != nil {
			return err
		}
		updated = &next
		return nil
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to update integration", goerr.V("id", integration.ID))
	}
	return updated, nil
}

func (r *integrationRepository) Delete(ctx context.Context, id model.IntegrationID) error {
	if err := r.db.WithContext(ctx).Delete(&integrationRow{}, "id = ?", string(id)).Error; err != nil {
		return goerr.Wrap(err, "failed to delete integration", goerr.V("id", id))
	}
	return nil
}

func (r *integrationRepository) ListByUser(ctx context.Context, userID model.UserID) ([]*model.Integration, error) {
	var rows []*integrationRow
	err := r.db.WithContext(ctx).Where("user_id = ?", string(userID)).
		Order("created_at ASC").Find(&rows).Error
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list integrations", goerr.V("user_id", userID))
	}

	result := make([]*model.Integration, len(rows))
	for i, row := range rows {
		result[i] = row.toModel()
	}
	return result, nil
}

func (r *integrationRepository) GetActiveByType(ctx context.Context, userID model.UserID, integrationType types.IntegrationType) (*model.Integration, error) {
	var row integrationRow
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND type = ? AND is_active = ?", string(userID), string(integrationType), true).
		First(&row).Error
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to get active integration",
			goerr.V("user_id", userID), goerr.V("type", integrationType))
	}
	return row.toModel(), nil
}

func (r *integrationRepository) RecordError(ctx context.Context, id model.IntegrationID, message string) error {
	err := r.db.WithContext(ctx).Model(&integrationRow{}).Where("id = ?", string(id)).
		Updates(map[string]any{
			"error_count": gorm.Expr("error_count + ?", 1),
			"last_error":  message,
			"updated_at":  time.Now().UTC(),
		}).Error
	if err != nil {
		return goerr.Wrap(err, "failed to record integration error", goerr.V("id", id))
	}
	return nil
}

func (r *integrationRepository) MarkSynced(ctx context.Context, id model.IntegrationID, at time.Time) error {
	err := r.db.WithContext(ctx).Model(&integrationRow{}).Where("id = ?", string(id)).
		Updates(map[string]any{
			"last_synced_at": at.UTC(),
			"error_count":    0,
			"last_error":     "",
			"updated_at":     time.Now().UTC(),
		}).Error
	if err != nil {
		return goerr.Wrap(err, "failed to mark integration synced", goerr.V("id", id))
	}
	return nil
}
