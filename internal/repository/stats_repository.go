package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"plannerbot/internal/model"
)

// Totals holds the table-wide counters shown on the admin dashboard.
type Totals struct {
	Users          int64
	Plans          int64
	CompletedPlans int64
	Reminders      int64
}

// TopUser is a user ranked by the number of plans they created.
type TopUser struct {
	ID         int64  `json:"id"`
	Username   string `json:"username"`
	FirstName  string `json:"first_name"`
	PlansCount int64  `json:"plans_count"`
}

// StatsRepository runs aggregate queries over users, plans and reminders.
type StatsRepository struct {
	db *gorm.DB
}

func NewStatsRepository(db *gorm.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

// Totals counts users, plans, completed plans and reminders.
func (r *StatsRepository) Totals(ctx context.Context) (Totals, error) {
	var t Totals
	db := r.db.WithContext(ctx)
	if err := db.Model(&model.User{}).Count(&t.Users).Error; err != nil {
		return t, fmt.Errorf("count users: %w", err)
	}
	if err := db.Model(&model.Plan{}).Count(&t.Plans).Error; err != nil {
		return t, fmt.Errorf("count plans: %w", err)
	}
	if err := db.Model(&model.Plan{}).Where("completed = ?", true).Count(&t.CompletedPlans).Error; err != nil {
		return t, fmt.Errorf("count completed plans: %w", err)
	}
	if err := db.Model(&model.Reminder{}).Count(&t.Reminders).Error; err != nil {
		return t, fmt.Errorf("count reminders: %w", err)
	}
	return t, nil
}

// ActiveUsersSince counts distinct users who created a plan at or after since.
// created_at is written in UTC, so since is converted before comparing.
func (r *StatsRepository) ActiveUsersSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Plan{}).
		Where("created_at >= ?", since.UTC()).
		Distinct("user_id").Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count active users: %w", err)
	}
	return count, nil
}

// TopUsers ranks users by plan count, descending; users without plans count as zero.
func (r *StatsRepository) TopUsers(ctx context.Context, limit int) ([]TopUser, error) {
	top := make([]TopUser, 0)
	err := r.db.WithContext(ctx).Table("users AS u").
		Select("u.id, u.username, u.first_name, COUNT(p.id) AS plans_count").
		Joins("LEFT JOIN tomorrow_plans p ON u.id = p.user_id").
		Group("u.id, u.username, u.first_name").
		Order("plans_count DESC").Order("u.id ASC").
		Limit(limit).
		Scan(&top).Error
	if err != nil {
		return nil, fmt.Errorf("top users: %w", err)
	}
	return top, nil
}
