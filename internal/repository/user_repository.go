package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"plannerbot/internal/model"
)

// UserRepository handles CRUD for users.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// UpsertFromTelegram finds or creates a user by Telegram id, refreshing profile fields and last activity.
func (r *UserRepository) UpsertFromTelegram(ctx context.Context, telegramID int64, firstName, lastName, username string) (*model.User, error) {
	var user model.User
	db := r.db.WithContext(ctx)
	now := time.Now().UTC()
	err := db.Where("id = ?", telegramID).First(&user).Error
	switch {
	case err == nil:
		updates := map[string]interface{}{
			"first_name":    firstName,
			"last_name":     lastName,
			"username":      username,
			"last_activity": now,
		}
		if err := db.Model(&user).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("update user: %w", err)
		}
		return &user, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		user = model.User{
			ID:           telegramID,
			FirstName:    firstName,
			LastName:     lastName,
			Username:     username,
			LastActivity: now,
		}
		if err := db.Create(&user).Error; err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
		// Pick up column defaults (reminder settings).
		if err := db.First(&user, "id = ?", telegramID).Error; err != nil {
			return nil, fmt.Errorf("reload user: %w", err)
		}
		return &user, nil
	default:
		return nil, fmt.Errorf("find user: %w", err)
	}
}

// Touch refreshes last_activity without changing the profile.
func (r *UserRepository) Touch(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).
		Update("last_activity", time.Now().UTC()).Error
}

func (r *UserRepository) FindByID(ctx context.Context, id int64) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// ListIDs returns every known user id; used as the default broadcast audience.
func (r *UserRepository) ListIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	if err := r.db.WithContext(ctx).Model(&model.User{}).Order("id ASC").Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list user ids: %w", err)
	}
	return ids, nil
}

// List returns a page of users, most recently active first. A non-empty search matches
// username, first or last name as a substring.
func (r *UserRepository) List(ctx context.Context, limit, offset int, search string) ([]model.User, error) {
	query := r.db.WithContext(ctx).Model(&model.User{})
	if search != "" {
		like := "%" + search + "%"
		query = query.Where("username LIKE ? OR first_name LIKE ? OR last_name LIKE ?", like, like, like)
	}
	users := make([]model.User, 0)
	if err := query.Order("last_activity DESC").Order("id DESC").
		Limit(limit).Offset(offset).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// Delete removes the user together with their plans and reminders in one transaction.
// Deleting an unknown id is not an error.
func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).Delete(&model.User{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&model.Plan{}).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ?", id).Delete(&model.Reminder{}).Error
	})
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

// UpdateReminderSettings stores the user's daily reminder time and on/off switch.
func (r *UserRepository) UpdateReminderSettings(ctx context.Context, id int64, reminderTime string, enabled bool) error {
	updates := map[string]interface{}{
		"reminder_time":    reminderTime,
		"reminder_enabled": enabled,
	}
	if err := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("update reminder settings: %w", err)
	}
	return nil
}
