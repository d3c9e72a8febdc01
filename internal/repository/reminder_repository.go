package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"plannerbot/internal/model"
)

// ReminderRepository handles reminder persistence.
type ReminderRepository struct {
	db *gorm.DB
}

func NewReminderRepository(db *gorm.DB) *ReminderRepository {
	return &ReminderRepository{db: db}
}

func (r *ReminderRepository) Create(ctx context.Context, reminder *model.Reminder) error {
	if reminder.RepeatType == "" {
		reminder.RepeatType = model.RepeatNone
	}
	if err := r.db.WithContext(ctx).Create(reminder).Error; err != nil {
		return fmt.Errorf("create reminder: %w", err)
	}
	return nil
}

// ListForUser returns all reminders of one user, latest due first, with linked plan text.
func (r *ReminderRepository) ListForUser(ctx context.Context, userID int64) ([]model.ReminderRow, error) {
	rows := make([]model.ReminderRow, 0)
	err := r.db.WithContext(ctx).Table("reminders AS r").
		Select("r.*, p.plan_text").
		Joins("LEFT JOIN tomorrow_plans p ON r.plan_id = p.id").
		Where("r.user_id = ?", userID).
		Order("r.reminder_date DESC, r.reminder_time DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list user reminders: %w", err)
	}
	return rows, nil
}

// DeleteOwned removes a reminder only if it belongs to userID.
func (r *ReminderRepository) DeleteOwned(ctx context.Context, userID int64, reminderID uint) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", reminderID, userID).Delete(&model.Reminder{})
	if res.Error != nil {
		return false, fmt.Errorf("delete reminder: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// Pending returns unsent reminders due on date at or before clock (HH:MM) for users with reminders on.
func (r *ReminderRepository) Pending(ctx context.Context, date, clock string) ([]model.ReminderRow, error) {
	rows := make([]model.ReminderRow, 0)
	err := r.db.WithContext(ctx).Table("reminders AS r").
		Select("r.*, u.username, u.first_name, p.plan_text").
		Joins("JOIN users u ON r.user_id = u.id").
		Joins("LEFT JOIN tomorrow_plans p ON r.plan_id = p.id").
		Where("r.reminder_date = ? AND r.reminder_time <= ? AND r.sent = ? AND u.reminder_enabled = ?", date, clock, false, true).
		Order("r.reminder_time ASC, r.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("pending reminders: %w", err)
	}
	return rows, nil
}

// MarkSent flags a reminder as delivered.
func (r *ReminderRepository) MarkSent(ctx context.Context, id uint, at time.Time) error {
	err := r.db.WithContext(ctx).Model(&model.Reminder{}).Where("id = ?", id).
		Updates(map[string]interface{}{"sent": true, "sent_at": at}).Error
	if err != nil {
		return fmt.Errorf("mark reminder sent: %w", err)
	}
	return nil
}

// List returns a page of reminders with owner names, newest first.
func (r *ReminderRepository) List(ctx context.Context, limit, offset int) ([]model.ReminderRow, error) {
	rows := make([]model.ReminderRow, 0)
	err := r.db.WithContext(ctx).Table("reminders AS r").
		Select("r.*, u.username, u.first_name").
		Joins("JOIN users u ON r.user_id = u.id").
		Order("r.created_at DESC").Order("r.id DESC").
		Limit(limit).Offset(offset).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	return rows, nil
}

