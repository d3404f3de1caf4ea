package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/meetscribe/pkg/domain/model"
	"gorm.io/gorm"
)

type userRepository struct {
	db *gorm.DB
}

func newUserRow(u *model.User) *userRow {
	row := &userRow{
		ID:        string(u.ID),
		Email:     u.Email,
		FullName:  u.FullName,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
	if u.Email != "" {
		lower := strings.ToLower(u.Email)
		row.EmailLower = &lower
	}
	return row
}

func (r *userRepository) Create(ctx context.Context, user *model.User) (*model.User, error) {
	now := time.Now().UTC()
	created := *user
	if created.ID == "" {
		created.ID = model.NewUserID()
	}
	created.CreatedAt = now
	created.UpdatedAt = now

	if err := r.db.WithContext(ctx).Create(newUserRow(&created)).Error; err != nil {
		if isDuplicate(err) {
			return nil, goerr.Wrap(model.ErrConflict, "user already exists", goerr.V("id", created.ID))
		}
		return nil, goerr.Wrap(err, "failed to create user", goerr.V("id", created.ID))
	}
	return &created, nil
}

func (r *userRepository) Get(ctx context.Context, id model.UserID) (*model.User, error) {
	var row userRow
	if err := r.db.WithContext(ctx).Where("id = ?", string(id)).First(&row).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to get user", goerr.V("id", id))
	}
	return row.toModel(), nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var row userRow
	err := r.db.WithContext(ctx).Where("email_lower = ?", strings.ToLower(email)).First(&row).Error
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to get user by email")
	}
	return row.toModel(), nil
}

func (r *userRepository) Update(ctx context.Context, user *model.User) (*model.User, error) {
	row := newUserRow(user)
	res := r.db.WithContext(ctx).Model(&userRow{}).Where("id = ?", row.ID).
		Updates(map[string]any{
			"email":       row.Email,
			"email_lower": row.EmailLower,
			"full_name":   row.FullName,
			"is_active":   row.IsActive,
			"updated_at":  time.Now().UTC(),
		})
	if res.Error != nil {
		if isDuplicate(res.Error) {
			return nil, goerr.Wrap(model.ErrConflict, "email already registered", goerr.V("id", user.ID))
		}
		return nil, goerr.Wrap(res.Error, "failed to update user", goerr.V("id", user.ID))
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return r.Get(ctx, user.ID)
}
