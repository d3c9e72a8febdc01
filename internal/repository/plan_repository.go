package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"plannerbot/internal/model"
)

// PlanRepository handles CRUD for tomorrow plans.
type PlanRepository struct {
	db *gorm.DB
}

func NewPlanRepository(db *gorm.DB) *PlanRepository {
	return &PlanRepository{db: db}
}

// FindForDate returns the user's plan for the given date, highest priority first.
func (r *PlanRepository) FindForDate(ctx context.Context, userID int64, date string) (*model.Plan, error) {
	var plan model.Plan
	if err := r.db.WithContext(ctx).Where("user_id = ? AND plan_date = ?", userID, date).
		Order("priority DESC, created_at DESC").First(&plan).Error; err != nil {
		return nil, err
	}
	return &plan, nil
}

// SaveForDate updates the user's plan for date or creates it. New plans also get a reminder on the plan
// date at the user's reminder time when the user has reminders enabled. created reports which path ran.
func (r *PlanRepository) SaveForDate(ctx context.Context, userID int64, date string, plan model.Plan) (saved *model.Plan, created bool, err error) {
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.Plan
		res := tx.Where("user_id = ? AND plan_date = ?", userID, date).Limit(1).Find(&existing)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			updates := map[string]interface{}{
				"plan_text": plan.Text,
				"category":  plan.Category,
				"priority":  plan.Priority,
				"notes":     plan.Notes,
			}
			if err := tx.Model(&existing).Updates(updates).Error; err != nil {
				return err
			}
			saved = &existing
			return nil
		}

		plan.ID = 0
		plan.UserID = userID
		plan.PlanDate = date
		if plan.Category == "" {
			plan.Category = model.DefaultCategory
		}
		if plan.Priority == 0 {
			plan.Priority = 1
		}
		if err := tx.Create(&plan).Error; err != nil {
			return err
		}
		saved = &plan
		created = true

		var owner model.User
		ownerRes := tx.Where("id = ?", userID).Limit(1).Find(&owner)
		if ownerRes.Error != nil {
			return ownerRes.Error
		}
		if ownerRes.RowsAffected == 0 || !owner.ReminderEnabled {
			return nil
		}
		reminderTime := owner.ReminderTime
		if reminderTime == "" {
			reminderTime = "07:00"
		}
		planID := plan.ID
		reminder := model.Reminder{
			UserID:       userID,
			PlanID:       &planID,
			ReminderDate: date,
			ReminderTime: reminderTime,
			Message:      fmt.Sprintf("Не забудь виконати свої плани на %s! 📝", date),
			RepeatType:   model.RepeatNone,
		}
		return tx.Create(&reminder).Error
	})
	if err != nil {
		return nil, false, fmt.Errorf("save plan: %w", err)
	}
	return saved, created, nil
}

// History returns the user's latest plans.
func (r *PlanRepository) History(ctx context.Context, userID int64, limit int) ([]model.Plan, error) {
	plans := make([]model.Plan, 0)
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("plan_date DESC, priority DESC, created_at DESC").Limit(limit).Find(&plans).Error; err != nil {
		return nil, fmt.Errorf("plan history: %w", err)
	}
	return plans, nil
}

// MarkCompleted completes a plan owned by userID. ok is false when nothing matched.
func (r *PlanRepository) MarkCompleted(ctx context.Context, userID int64, planID uint, completedAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Plan{}).Where("id = ? AND user_id = ?", planID, userID).
		Updates(map[string]interface{}{"completed": true, "completed_at": completedAt})
	if res.Error != nil {
		return false, fmt.Errorf("complete plan: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// DeleteOwned removes a plan only if it belongs to userID.
func (r *PlanRepository) DeleteOwned(ctx context.Context, userID int64, planID uint) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", planID, userID).Delete(&model.Plan{})
	if res.Error != nil {
		return false, fmt.Errorf("delete plan: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// Delete removes a plan by id regardless of owner. Missing ids are not an error.
func (r *PlanRepository) Delete(ctx context.Context, planID uint) error {
	if err := r.db.WithContext(ctx).Where("id = ?", planID).Delete(&model.Plan{}).Error; err != nil {
		return fmt.Errorf("delete plan: %w", err)
	}
	return nil
}

// List returns a page of plans with owner names, newest first, optionally for one user.
func (r *PlanRepository) List(ctx context.Context, limit, offset int, userID *int64) ([]model.PlanRow, error) {
	query := r.db.WithContext(ctx).Table("tomorrow_plans AS p").
		Select("p.*, u.username, u.first_name").
		Joins("JOIN users u ON p.user_id = u.id")
	if userID != nil {
		query = query.Where("p.user_id = ?", *userID)
	}
	rows := make([]model.PlanRow, 0)
	if err := query.Order("p.created_at DESC").Order("p.id DESC").
		Limit(limit).Offset(offset).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	return rows, nil
}

// DailyStats counts created and completed plans per plan date since the given date (inclusive).
func (r *PlanRepository) DailyStats(ctx context.Context, userID int64, since string) ([]model.DayStat, error) {
	stats := make([]model.DayStat, 0)
	err := r.db.WithContext(ctx).Model(&model.Plan{}).
		Select("plan_date AS date, COUNT(*) AS created, SUM(CASE WHEN completed THEN 1 ELSE 0 END) AS completed").
		Where("user_id = ? AND plan_date >= ?", userID, since).
		Group("plan_date").Order("plan_date DESC").
		Scan(&stats).Error
	if err != nil {
		return nil, fmt.Errorf("daily stats: %w", err)
	}
	return stats, nil
}
