package model

import "time"

// User stores Telegram user metadata. ID is the Telegram user id, which is also the private chat id.
type User struct {
	ID              int64     `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Username        string    `json:"username"`
	FirstName       string    `json:"first_name"`
	LastName        string    `json:"last_name"`
	IsAdmin         bool      `gorm:"default:false" json:"is_admin"`
	ReminderTime    string    `gorm:"default:07:00" json:"reminder_time"`
	ReminderEnabled bool      `gorm:"default:true" json:"reminder_enabled"`
	CreatedAt       time.Time `json:"created_at"`
	LastActivity    time.Time `gorm:"index" json:"last_activity"`
}

// DisplayName picks the friendliest available name.
func (u User) DisplayName() string {
	switch {
	case u.FirstName != "":
		return u.FirstName
	case u.Username != "":
		return "@" + u.Username
	default:
		return "друг"
	}
}
