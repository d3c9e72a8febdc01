package repository_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/gorm"

	"plannerbot/internal/model"
	"plannerbot/internal/repository"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := repository.NewDB(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("Failed to open test db: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func mustCreate(t *testing.T, db *gorm.DB, value interface{}) {
	t.Helper()
	if err := db.Create(value).Error; err != nil {
		t.Fatalf("Failed to create %T: %v", value, err)
	}
}

func TestUserRepository_UpsertFromTelegram(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewUserRepository(db)
	ctx := context.Background()

	user, err := repo.UpsertFromTelegram(ctx, 12345, "Test", "", "tester")
	if err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	if user.ID != 12345 {
		t.Errorf("Expected id 12345, got %d", user.ID)
	}
	if !user.ReminderEnabled || user.ReminderTime != "07:00" {
		t.Errorf("Expected default reminder settings, got %t %q", user.ReminderEnabled, user.ReminderTime)
	}

	if _, err := repo.UpsertFromTelegram(ctx, 12345, "Renamed", "Last", "tester2"); err != nil {
		t.Fatalf("Failed to update user: %v", err)
	}
	got, err := repo.FindByID(ctx, 12345)
	if err != nil {
		t.Fatalf("Failed to find user: %v", err)
	}
	if got.FirstName != "Renamed" || got.Username != "tester2" {
		t.Errorf("Profile not updated: %+v", got)
	}

	var count int64
	db.Model(&model.User{}).Count(&count)
	if count != 1 {
		t.Errorf("Expected 1 user, got %d", count)
	}
}

func TestUserRepository_ListSearchAndOrder(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewUserRepository(db)
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	mustCreate(t, db, &model.User{ID: 1, Username: "alice", FirstName: "Alice", LastActivity: base})
	mustCreate(t, db, &model.User{ID: 2, Username: "bob", FirstName: "Bob", LastActivity: base.Add(time.Hour)})
	mustCreate(t, db, &model.User{ID: 3, Username: "carol", LastName: "Malice", LastActivity: base.Add(2 * time.Hour)})

	all, err := repo.List(context.Background(), 10, 0, "")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 3 || all[0].ID != 3 || all[2].ID != 1 {
		t.Fatalf("Expected users ordered by last activity desc, got %+v", all)
	}

	found, err := repo.List(context.Background(), 10, 0, "lice")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(found) != 2 || found[0].ID != 3 || found[1].ID != 1 {
		t.Errorf("Expected carol and alice, got %+v", found)
	}
}

func TestUserRepository_DeleteCascades(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewUserRepository(db)
	ctx := context.Background()

	mustCreate(t, db, &model.User{ID: 1, Username: "gone"})
	mustCreate(t, db, &model.User{ID: 2, Username: "kept"})
	mustCreate(t, db, &model.Plan{UserID: 1, Text: "a", PlanDate: "2026-01-02"})
	mustCreate(t, db, &model.Plan{UserID: 1, Text: "b", PlanDate: "2026-01-03"})
	mustCreate(t, db, &model.Plan{UserID: 2, Text: "c", PlanDate: "2026-01-02"})
	mustCreate(t, db, &model.Reminder{UserID: 1, ReminderDate: "2026-01-02", ReminderTime: "07:00"})
	mustCreate(t, db, &model.Reminder{UserID: 2, ReminderDate: "2026-01-02", ReminderTime: "07:00"})

	if err := repo.Delete(ctx, 1); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	var users, plans, reminders int64
	db.Model(&model.User{}).Where("id = ?", 1).Count(&users)
	db.Model(&model.Plan{}).Where("user_id = ?", 1).Count(&plans)
	db.Model(&model.Reminder{}).Where("user_id = ?", 1).Count(&reminders)
	if users+plans+reminders != 0 {
		t.Errorf("Dangling rows: users=%d plans=%d reminders=%d", users, plans, reminders)
	}

	db.Model(&model.Plan{}).Count(&plans)
	db.Model(&model.Reminder{}).Count(&reminders)
	if plans != 1 || reminders != 1 {
		t.Errorf("Other user's rows touched: plans=%d reminders=%d", plans, reminders)
	}

	if err := repo.Delete(ctx, 999); err != nil {
		t.Errorf("Deleting a missing user should succeed, got %v", err)
	}
}

func TestPlanRepository_SaveForDateCreatesReminder(t *testing.T) {
	db := setupTestDB(t)
	users := repository.NewUserRepository(db)
	plans := repository.NewPlanRepository(db)
	ctx := context.Background()

	if _, err := users.UpsertFromTelegram(ctx, 7, "Ann", "", "ann"); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	if err := users.UpdateReminderSettings(ctx, 7, "08:30", true); err != nil {
		t.Fatalf("Failed to update settings: %v", err)
	}

	first, created, err := plans.SaveForDate(ctx, 7, "2026-03-02", model.Plan{Text: "run"})
	if err != nil || !created {
		t.Fatalf("Expected plan created, got created=%t err=%v", created, err)
	}
	second, created, err := plans.SaveForDate(ctx, 7, "2026-03-02", model.Plan{Text: "run and read"})
	if err != nil || created {
		t.Fatalf("Expected plan updated, got created=%t err=%v", created, err)
	}
	if first.ID != second.ID {
		t.Errorf("Expected the same plan row, got %d and %d", first.ID, second.ID)
	}

	got, err := plans.FindForDate(ctx, 7, "2026-03-02")
	if err != nil {
		t.Fatalf("FindForDate failed: %v", err)
	}
	if got.Text != "run and read" || got.Category != model.DefaultCategory {
		t.Errorf("Unexpected plan: %+v", got)
	}

	var reminders []model.Reminder
	db.Where("user_id = ?", 7).Find(&reminders)
	if len(reminders) != 1 {
		t.Fatalf("Expected 1 reminder, got %d", len(reminders))
	}
	if reminders[0].ReminderTime != "08:30" || reminders[0].PlanID == nil || *reminders[0].PlanID != first.ID {
		t.Errorf("Unexpected reminder: %+v", reminders[0])
	}
}

func TestPlanRepository_SaveForDateSkipsReminderWhenDisabled(t *testing.T) {
	db := setupTestDB(t)
	users := repository.NewUserRepository(db)
	plans := repository.NewPlanRepository(db)
	ctx := context.Background()

	users.UpsertFromTelegram(ctx, 7, "Ann", "", "ann")
	users.UpdateReminderSettings(ctx, 7, "07:00", false)

	if _, _, err := plans.SaveForDate(ctx, 7, "2026-03-02", model.Plan{Text: "run"}); err != nil {
		t.Fatalf("SaveForDate failed: %v", err)
	}
	var count int64
	db.Model(&model.Reminder{}).Count(&count)
	if count != 0 {
		t.Errorf("Expected no reminders, got %d", count)
	}
}

func TestPlanRepository_ListPagination(t *testing.T) {
	db := setupTestDB(t)
	plans := repository.NewPlanRepository(db)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	mustCreate(t, db, &model.User{ID: 1, Username: "one"})
	mustCreate(t, db, &model.User{ID: 2, Username: "two"})
	for i := 1; i <= 45; i++ {
		mustCreate(t, db, &model.Plan{
			UserID:    int64(i%2 + 1),
			Text:      fmt.Sprintf("plan %d", i),
			PlanDate:  "2026-01-02",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}

	page1, err := plans.List(context.Background(), 20, 0, nil)
	if err != nil {
		t.Fatalf("List page 1 failed: %v", err)
	}
	page2, err := plans.List(context.Background(), 20, 20, nil)
	if err != nil {
		t.Fatalf("List page 2 failed: %v", err)
	}
	if len(page1) != 20 || len(page2) != 20 {
		t.Fatalf("Expected 20 rows per page, got %d and %d", len(page1), len(page2))
	}
	// Newest is plan 45, so page 2 holds plans 25..6.
	if page2[0].Text != "plan 25" || page2[19].Text != "plan 6" {
		t.Errorf("Unexpected page 2 bounds: %q .. %q", page2[0].Text, page2[19].Text)
	}
	seen := make(map[uint]bool)
	for _, row := range page1 {
		seen[row.ID] = true
	}
	for _, row := range page2 {
		if seen[row.ID] {
			t.Errorf("Plan %d appears on both pages", row.ID)
		}
		if row.Username == "" {
			t.Errorf("Plan %d missing owner name", row.ID)
		}
	}

	owner := int64(1)
	filtered, err := plans.List(context.Background(), 100, 0, &owner)
	if err != nil {
		t.Fatalf("Filtered list failed: %v", err)
	}
	for _, row := range filtered {
		if row.UserID != 1 {
			t.Errorf("Filter leaked plan of user %d", row.UserID)
		}
	}
	if len(filtered) != 22 {
		t.Errorf("Expected 22 plans for user 1, got %d", len(filtered))
	}
}

func TestPlanRepository_OwnedMutations(t *testing.T) {
	db := setupTestDB(t)
	plans := repository.NewPlanRepository(db)
	ctx := context.Background()

	mustCreate(t, db, &model.User{ID: 1})
	plan := &model.Plan{UserID: 1, Text: "x", PlanDate: "2026-01-02"}
	mustCreate(t, db, plan)

	ok, err := plans.MarkCompleted(ctx, 2, plan.ID, time.Now())
	if err != nil || ok {
		t.Errorf("Foreign user must not complete plan: ok=%t err=%v", ok, err)
	}
	ok, err = plans.MarkCompleted(ctx, 1, plan.ID, time.Now())
	if err != nil || !ok {
		t.Errorf("Owner should complete plan: ok=%t err=%v", ok, err)
	}

	stats, err := plans.DailyStats(ctx, 1, "2026-01-01")
	if err != nil {
		t.Fatalf("DailyStats failed: %v", err)
	}
	if len(stats) != 1 || stats[0].Created != 1 || stats[0].Completed != 1 {
		t.Errorf("Unexpected stats: %+v", stats)
	}

	ok, err = plans.DeleteOwned(ctx, 1, plan.ID)
	if err != nil || !ok {
		t.Errorf("Owner should delete plan: ok=%t err=%v", ok, err)
	}
	if err := plans.Delete(ctx, plan.ID); err != nil {
		t.Errorf("Deleting a missing plan should succeed, got %v", err)
	}
}

func TestReminderRepository_Pending(t *testing.T) {
	db := setupTestDB(t)
	users := repository.NewUserRepository(db)
	reminders := repository.NewReminderRepository(db)
	ctx := context.Background()

	users.UpsertFromTelegram(ctx, 1, "On", "", "on")
	users.UpsertFromTelegram(ctx, 2, "Off", "", "off")
	users.UpdateReminderSettings(ctx, 2, "07:00", false)

	for _, r := range []*model.Reminder{
		{UserID: 1, ReminderDate: "2026-01-02", ReminderTime: "07:00", Message: "due"},
		{UserID: 1, ReminderDate: "2026-01-02", ReminderTime: "09:00", Message: "later"},
		{UserID: 1, ReminderDate: "2026-01-03", ReminderTime: "07:00", Message: "tomorrow"},
		{UserID: 2, ReminderDate: "2026-01-02", ReminderTime: "07:00", Message: "disabled user"},
	} {
		if err := reminders.Create(ctx, r); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	pending, err := reminders.Pending(ctx, "2026-01-02", "08:00")
	if err != nil {
		t.Fatalf("Pending failed: %v", err)
	}
	if len(pending) != 1 || pending[0].Message != "due" {
		t.Fatalf("Expected only the due reminder, got %+v", pending)
	}

	if err := reminders.MarkSent(ctx, pending[0].ID, time.Now()); err != nil {
		t.Fatalf("MarkSent failed: %v", err)
	}
	pending, _ = reminders.Pending(ctx, "2026-01-02", "08:00")
	if len(pending) != 0 {
		t.Errorf("Sent reminder still pending: %+v", pending)
	}

	page, err := reminders.List(ctx, 10, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(page) != 4 {
		t.Errorf("Expected 4 reminders, got %d", len(page))
	}
}

func TestStatsRepository(t *testing.T) {
	db := setupTestDB(t)
	stats := repository.NewStatsRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	mustCreate(t, db, &model.User{ID: 1, Username: "busy"})
	mustCreate(t, db, &model.User{ID: 2, Username: "idle"})
	mustCreate(t, db, &model.User{ID: 3, Username: "old"})
	mustCreate(t, db, &model.Plan{UserID: 1, Text: "a", PlanDate: "d1", Completed: true, CreatedAt: now})
	mustCreate(t, db, &model.Plan{UserID: 1, Text: "b", PlanDate: "d2", CreatedAt: now})
	mustCreate(t, db, &model.Plan{UserID: 3, Text: "c", PlanDate: "d3", CreatedAt: now.AddDate(0, 0, -30)})
	mustCreate(t, db, &model.Reminder{UserID: 1, ReminderDate: "d1", ReminderTime: "07:00"})

	totals, err := stats.Totals(ctx)
	if err != nil {
		t.Fatalf("Totals failed: %v", err)
	}
	if totals != (repository.Totals{Users: 3, Plans: 3, CompletedPlans: 1, Reminders: 1}) {
		t.Errorf("Unexpected totals: %+v", totals)
	}

	active, err := stats.ActiveUsersSince(ctx, now.AddDate(0, 0, -7))
	if err != nil {
		t.Fatalf("ActiveUsersSince failed: %v", err)
	}
	if active != 1 {
		t.Errorf("Expected 1 active user, got %d", active)
	}

	top, err := stats.TopUsers(ctx, 10)
	if err != nil {
		t.Fatalf("TopUsers failed: %v", err)
	}
	if len(top) != 3 {
		t.Fatalf("Expected 3 ranked users, got %d", len(top))
	}
	if top[0].ID != 1 || top[0].PlansCount != 2 {
		t.Errorf("Expected busy user first, got %+v", top[0])
	}
	if top[2].ID != 2 || top[2].PlansCount != 0 {
		t.Errorf("Expected idle user last with 0 plans, got %+v", top[2])
	}
}
