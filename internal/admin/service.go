package admin

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"plannerbot/internal/model"
	"plannerbot/internal/repository"
	"plannerbot/internal/telegram"
)

const topUsersLimit = 10

var (
	ErrBotNotConfigured = errors.New("bot token not configured")
	ErrEmptyMessage     = errors.New("message is empty")
)

// Messenger is the outbound side of the Bot API the admin panel needs.
type Messenger interface {
	Configured() bool
	GetMe(ctx context.Context) (telegram.BotInfo, error)
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// Statistics is the dashboard snapshot.
type Statistics struct {
	TotalUsers      int64                `json:"total_users"`
	TotalPlans      int64                `json:"total_plans"`
	CompletedPlans  int64                `json:"completed_plans"`
	CompletionRate  float64              `json:"completion_rate"`
	TotalReminders  int64                `json:"total_reminders"`
	ActiveUsersWeek int64                `json:"active_users_week"`
	TopUsers        []repository.TopUser `json:"top_users"`
}

// BroadcastResult reports how many recipients accepted a broadcast.
type BroadcastResult struct {
	Success bool `json:"success"`
	Sent    int  `json:"sent"`
	Total   int  `json:"total"`
}

// Repositories bundles the stores the admin service reads and mutates.
type Repositories struct {
	Users     *repository.UserRepository
	Plans     *repository.PlanRepository
	Reminders *repository.ReminderRepository
	Stats     *repository.StatsRepository
}

// Options tunes broadcast fan-out.
type Options struct {
	// Concurrency caps in-flight sendMessage calls; values below 1 mean 1.
	Concurrency int
	// Rate caps messages per second across all broadcasts; 0 means unlimited.
	Rate float64
	Now  func() time.Time
}

// Service implements the admin panel operations.
type Service struct {
	repos     Repositories
	messenger Messenger
	cache     *StatsCache
	limiter   *rate.Limiter
	workers   int
	now       func() time.Time
	log       *logrus.Entry
}

func NewService(repos Repositories, messenger Messenger, cache *StatsCache, opts Options, log *logrus.Entry) *Service {
	workers := opts.Concurrency
	if workers < 1 {
		workers = 1
	}
	limit := rate.Inf
	burst := workers
	if opts.Rate > 0 {
		limit = rate.Limit(opts.Rate)
		if b := int(math.Ceil(opts.Rate)); b < burst {
			burst = b
		}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		repos:     repos,
		messenger: messenger,
		cache:     cache,
		limiter:   rate.NewLimiter(limit, burst),
		workers:   workers,
		now:       now,
		log:       log,
	}
}

// BotInfo asks the Bot API who we are.
func (s *Service) BotInfo(ctx context.Context) (telegram.BotInfo, error) {
	if s.messenger == nil || !s.messenger.Configured() {
		return telegram.BotInfo{}, ErrBotNotConfigured
	}
	info, err := s.messenger.GetMe(ctx)
	if err != nil {
		return telegram.BotInfo{}, fmt.Errorf("get bot info: %w", err)
	}
	return info, nil
}

// Statistics returns the dashboard counters, served from the cache when fresh.
func (s *Service) Statistics(ctx context.Context) (Statistics, error) {
	now := s.now()
	cached, gen, ok := s.cache.Get(now)
	if ok {
		return cached, nil
	}
	stats, err := s.computeStatistics(ctx, now)
	if err != nil {
		return Statistics{}, err
	}
	s.cache.Set(stats, now, gen)
	return stats, nil
}

// FreshStatistics recomputes the counters from the store, ignoring any cached snapshot.
func (s *Service) FreshStatistics(ctx context.Context) (Statistics, error) {
	now := s.now()
	gen := s.cache.Generation()
	stats, err := s.computeStatistics(ctx, now)
	if err != nil {
		return Statistics{}, err
	}
	s.cache.Set(stats, now, gen)
	return stats, nil
}

// computeStatistics counts a week of activity from local midnight seven days before now.
func (s *Service) computeStatistics(ctx context.Context, now time.Time) (Statistics, error) {
	totals, err := s.repos.Stats.Totals(ctx)
	if err != nil {
		return Statistics{}, err
	}
	weekAgo := now.AddDate(0, 0, -7)
	since := time.Date(weekAgo.Year(), weekAgo.Month(), weekAgo.Day(), 0, 0, 0, 0, now.Location())
	active, err := s.repos.Stats.ActiveUsersSince(ctx, since)
	if err != nil {
		return Statistics{}, err
	}
	top, err := s.repos.Stats.TopUsers(ctx, topUsersLimit)
	if err != nil {
		return Statistics{}, err
	}

	return Statistics{
		TotalUsers:      totals.Users,
		TotalPlans:      totals.Plans,
		CompletedPlans:  totals.CompletedPlans,
		CompletionRate:  completionRate(totals.CompletedPlans, totals.Plans),
		TotalReminders:  totals.Reminders,
		ActiveUsersWeek: active,
		TopUsers:        top,
	}, nil
}

// completionRate is completed/total as a percentage with two decimals; 0 when there are no plans.
func completionRate(completed, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(completed)/float64(total)*100*100) / 100
}

func (s *Service) ListUsers(ctx context.Context, limit, offset int, search string) ([]model.User, error) {
	return s.repos.Users.List(ctx, limit, offset, strings.TrimSpace(search))
}

func (s *Service) ListPlans(ctx context.Context, limit, offset int, userID *int64) ([]model.PlanRow, error) {
	return s.repos.Plans.List(ctx, limit, offset, userID)
}

func (s *Service) ListReminders(ctx context.Context, limit, offset int) ([]model.ReminderRow, error) {
	return s.repos.Reminders.List(ctx, limit, offset)
}

// DeleteUser removes a user and everything they own. Unknown ids succeed silently.
func (s *Service) DeleteUser(ctx context.Context, id int64) error {
	if err := s.repos.Users.Delete(ctx, id); err != nil {
		return err
	}
	s.cache.Invalidate()
	s.log.WithField("user_id", id).Info("user deleted")
	return nil
}

// DeletePlan removes one plan. Unknown ids succeed silently.
func (s *Service) DeletePlan(ctx context.Context, id uint) error {
	if err := s.repos.Plans.Delete(ctx, id); err != nil {
		return err
	}
	s.cache.Invalidate()
	s.log.WithField("plan_id", id).Info("plan deleted")
	return nil
}

// Broadcast sends text to recipients, or to every stored user when recipients is empty.
// Individual delivery failures are only counted; they never abort the fan-out.
func (s *Service) Broadcast(ctx context.Context, text string, recipients []int64) (BroadcastResult, error) {
	if strings.TrimSpace(text) == "" {
		return BroadcastResult{}, ErrEmptyMessage
	}
	if s.messenger == nil || !s.messenger.Configured() {
		return BroadcastResult{}, ErrBotNotConfigured
	}
	if len(recipients) == 0 {
		ids, err := s.repos.Users.ListIDs(ctx)
		if err != nil {
			return BroadcastResult{}, err
		}
		recipients = ids
	}

	var (
		sent   atomic.Int64
		failed atomic.Int64
		g      errgroup.Group
	)
	g.SetLimit(s.workers)
	for _, chatID := range recipients {
		chatID := chatID
		g.Go(func() error {
			if err := s.limiter.Wait(ctx); err != nil {
				return err
			}
			if err := s.messenger.SendMessage(ctx, chatID, text); err != nil {
				failed.Add(1)
				s.log.WithError(err).WithField("chat_id", chatID).Debug("broadcast delivery failed")
				return nil
			}
			sent.Add(1)
			return nil
		})
	}
	waitErr := g.Wait()

	result := BroadcastResult{Success: waitErr == nil, Sent: int(sent.Load()), Total: len(recipients)}
	s.log.WithFields(logrus.Fields{
		"sent":   result.Sent,
		"failed": failed.Load(),
		"total":  result.Total,
	}).Info("broadcast finished")
	if waitErr != nil {
		return result, fmt.Errorf("broadcast interrupted: %w", waitErr)
	}
	return result, nil
}
