package model

import "time"

// Repeat kinds for reminders.
const (
	RepeatNone    = "none"
	RepeatDaily   = "daily"
	RepeatWeekly  = "weekly"
	RepeatMonthly = "monthly"
)

// Reminder is a notification due at ReminderDate ReminderTime (local wall clock).
type Reminder struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	UserID       int64      `gorm:"index" json:"user_id"`
	PlanID       *uint      `json:"plan_id"`
	ReminderDate string     `gorm:"index:idx_reminders_date_time;not null" json:"reminder_date"`
	ReminderTime string     `gorm:"index:idx_reminders_date_time;not null" json:"reminder_time"`
	Message      string     `json:"message"`
	RepeatType   string     `gorm:"default:none" json:"repeat_type"`
	Sent         bool       `gorm:"index;default:false" json:"sent"`
	SentAt       *time.Time `json:"sent_at"`
	CreatedAt    time.Time  `gorm:"index" json:"created_at"`
}

// ReminderRow is a reminder joined with its owner and, when linked, the plan text.
type ReminderRow struct {
	Reminder
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	PlanText  string `json:"plan_text,omitempty"`
}
