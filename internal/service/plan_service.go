package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"plannerbot/internal/model"
	"plannerbot/internal/repository"
)

// DateLayout is the storage format of plan and reminder dates.
const DateLayout = "2006-01-02"

var (
	ErrEmptyPlan    = errors.New("plan text is required")
	ErrPlanNotFound = errors.New("plan not found")
	ErrBadRepeat    = errors.New("unknown repeat type")
)

// PlanService wraps plan and reminder logic for the bot.
type PlanService struct {
	users     *repository.UserRepository
	plans     *repository.PlanRepository
	reminders *repository.ReminderRepository
	loc       *time.Location
	now       func() time.Time
}

func NewPlanService(users *repository.UserRepository, plans *repository.PlanRepository, reminders *repository.ReminderRepository, loc *time.Location) *PlanService {
	return &PlanService{users: users, plans: plans, reminders: reminders, loc: loc, now: time.Now}
}

func (s *PlanService) today() time.Time {
	n := s.now().In(s.loc)
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, s.loc)
}

// TomorrowDate is the plan date used by the tomorrow-plan menu.
func (s *PlanService) TomorrowDate() string {
	return s.today().AddDate(0, 0, 1).Format(DateLayout)
}

// SaveTomorrow stores text as the user's plan for tomorrow. created is true when a new plan
// was inserted (and a reminder scheduled) rather than the existing one updated.
func (s *PlanService) SaveTomorrow(ctx context.Context, userID int64, text string) (*model.Plan, bool, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, false, ErrEmptyPlan
	}
	return s.plans.SaveForDate(ctx, userID, s.TomorrowDate(), model.Plan{Text: text})
}

// Tomorrow returns tomorrow's plan or ErrPlanNotFound.
func (s *PlanService) Tomorrow(ctx context.Context, userID int64) (*model.Plan, error) {
	plan, err := s.plans.FindForDate(ctx, userID, s.TomorrowDate())
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPlanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find tomorrow plan: %w", err)
	}
	return plan, nil
}

// CompleteTomorrow marks tomorrow's plan done.
func (s *PlanService) CompleteTomorrow(ctx context.Context, userID int64) (*model.Plan, error) {
	plan, err := s.Tomorrow(ctx, userID)
	if err != nil {
		return nil, err
	}
	return plan, s.Complete(ctx, userID, plan.ID)
}

// Due returns today's plan when one exists, otherwise tomorrow's. Reminders fire on the plan date,
// so their buttons act on today's plan.
func (s *PlanService) Due(ctx context.Context, userID int64) (*model.Plan, error) {
	plan, err := s.plans.FindForDate(ctx, userID, s.today().Format(DateLayout))
	if err == nil {
		return plan, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("find today plan: %w", err)
	}
	return s.Tomorrow(ctx, userID)
}

// CompleteDue marks the plan returned by Due done.
func (s *PlanService) CompleteDue(ctx context.Context, userID int64) (*model.Plan, error) {
	plan, err := s.Due(ctx, userID)
	if err != nil {
		return nil, err
	}
	return plan, s.Complete(ctx, userID, plan.ID)
}

func (s *PlanService) Complete(ctx context.Context, userID int64, planID uint) error {
	ok, err := s.plans.MarkCompleted(ctx, userID, planID, s.now().UTC())
	if err != nil {
		return err
	}
	if !ok {
		return ErrPlanNotFound
	}
	return nil
}

func (s *PlanService) Delete(ctx context.Context, userID int64, planID uint) error {
	ok, err := s.plans.DeleteOwned(ctx, userID, planID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPlanNotFound
	}
	return nil
}

func (s *PlanService) History(ctx context.Context, userID int64, limit int) ([]model.Plan, error) {
	return s.plans.History(ctx, userID, limit)
}

// WeekStats returns seven consecutive plan dates ending tomorrow, zero-filled where the user had no plans.
func (s *PlanService) WeekStats(ctx context.Context, userID int64) ([]model.DayStat, error) {
	start := s.today().AddDate(0, 0, -5)
	rows, err := s.plans.DailyStats(ctx, userID, start.Format(DateLayout))
	if err != nil {
		return nil, err
	}
	byDate := make(map[string]model.DayStat, len(rows))
	for _, r := range rows {
		byDate[r.Date] = r
	}
	week := make([]model.DayStat, 0, 7)
	for i := 0; i < 7; i++ {
		date := start.AddDate(0, 0, i).Format(DateLayout)
		stat, ok := byDate[date]
		if !ok {
			stat = model.DayStat{Date: date}
		}
		week = append(week, stat)
	}
	return week, nil
}

// ToggleReminders flips the user's reminder switch and returns the new state.
func (s *PlanService) ToggleReminders(ctx context.Context, userID int64) (bool, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return false, err
	}
	enabled := !user.ReminderEnabled
	if err := s.users.UpdateReminderSettings(ctx, userID, user.ReminderTime, enabled); err != nil {
		return false, err
	}
	return enabled, nil
}

// SetReminderTime stores a new HH:MM reminder time.
func (s *PlanService) SetReminderTime(ctx context.Context, userID int64, clock string) (string, error) {
	normalized, err := NormalizeClock(clock)
	if err != nil {
		return "", err
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if err := s.users.UpdateReminderSettings(ctx, userID, normalized, user.ReminderEnabled); err != nil {
		return "", err
	}
	return normalized, nil
}

// CustomReminder describes a reminder created from the bot menu.
type CustomReminder struct {
	DaysAhead int
	Clock     string
	Message   string
	Repeat    string
}

// CreateReminder schedules a custom reminder DaysAhead days from today.
func (s *PlanService) CreateReminder(ctx context.Context, userID int64, in CustomReminder) (*model.Reminder, error) {
	clock, err := NormalizeClock(in.Clock)
	if err != nil {
		return nil, err
	}
	switch in.Repeat {
	case "":
		in.Repeat = model.RepeatNone
	case model.RepeatNone, model.RepeatDaily, model.RepeatWeekly, model.RepeatMonthly:
	default:
		return nil, ErrBadRepeat
	}
	msg := strings.TrimSpace(in.Message)
	if msg == "" {
		msg = "Нагадування"
	}
	if in.DaysAhead < 0 {
		in.DaysAhead = 0
	}
	r := model.Reminder{
		UserID:       userID,
		ReminderDate: s.today().AddDate(0, 0, in.DaysAhead).Format(DateLayout),
		ReminderTime: clock,
		Message:      msg,
		RepeatType:   in.Repeat,
	}
	if err := s.reminders.Create(ctx, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *PlanService) Reminders(ctx context.Context, userID int64) ([]model.ReminderRow, error) {
	return s.reminders.ListForUser(ctx, userID)
}

func (s *PlanService) DeleteReminder(ctx context.Context, userID int64, reminderID uint) error {
	ok, err := s.reminders.DeleteOwned(ctx, userID, reminderID)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("reminder not found")
	}
	return nil
}
