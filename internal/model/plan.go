package model

import "time"

// DefaultCategory is used for plans created without an explicit category.
const DefaultCategory = "general"

// Plan is a user's to-do list for a given day, usually tomorrow.
type Plan struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	UserID      int64      `gorm:"index" json:"user_id"`
	Text        string     `gorm:"column:plan_text;not null" json:"plan_text"`
	PlanDate    string     `gorm:"index;not null" json:"plan_date"`
	Completed   bool       `gorm:"default:false" json:"completed"`
	CompletedAt *time.Time `json:"completed_at"`
	Priority    int        `gorm:"default:1" json:"priority"`
	Category    string     `gorm:"default:general" json:"category"`
	Notes       string     `json:"notes"`
	CreatedAt   time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (Plan) TableName() string { return "tomorrow_plans" }

// PlanRow is a plan joined with its owner's names, as shown in the admin listing.
type PlanRow struct {
	Plan
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
}

// DayStat aggregates one user's plans for one plan date.
type DayStat struct {
	Date      string `json:"date"`
	Created   int64  `json:"plans_created"`
	Completed int64  `json:"plans_completed"`
}
