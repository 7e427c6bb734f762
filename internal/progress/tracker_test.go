package progress

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Kevin69007/formation-creation-entreprise-admin/internal/model"
	"github.com/Kevin69007/formation-creation-entreprise-admin/internal/repository"
)

func TestCompletionRate(t *testing.T) {
	cases := []struct {
		completed int
		total     int
		expect    float64
	}{
		{0, 77, 0},
		{10, 77, 13.0},
		{77, 77, 100},
		{1, 3, 33.3},
		{2, 3, 66.7},
		{5, 0, 0},
		{5, -1, 0},
	}
	for _, c := range cases {
		if got := CompletionRate(c.completed, c.total); got != c.expect {
			t.Fatalf("CompletionRate(%d, %d) = %v, expected %v", c.completed, c.total, got, c.expect)
		}
	}
}

func TestCompletionRateMonotonic(t *testing.T) {
	prev := 0.0
	for completed := 0; completed <= 77; completed++ {
		rate := CompletionRate(completed, 77)
		if rate < prev {
			t.Fatalf("rate decreased at %d completed: %v < %v", completed, rate, prev)
		}
		prev = rate
	}
}

type trackerStore struct {
	upserts  []repository.ProgressUpdate
	touched  []string
	snapshot []model.LessonProgress
}

func (s *trackerStore) UpsertProgress(_ context.Context, update repository.ProgressUpdate, now time.Time) (model.LessonProgress, error) {
	s.upserts = append(s.upserts, update)
	record := model.LessonProgress{
		UserID:   update.UserID,
		ModuleID: update.ModuleID,
		LessonID: update.LessonID,
	}
	if update.Completed != nil {
		record.Completed = *update.Completed
		if *update.Completed {
			record.CompletedAt = &now
		}
	}
	return record, nil
}

func (s *trackerStore) ListProgress(context.Context, string) ([]model.LessonProgress, error) {
	return s.snapshot, nil
}

func (s *trackerStore) CountCompletedLessons(context.Context, string) (int, error) {
	count := 0
	for _, p := range s.snapshot {
		if p.Completed {
			count++
		}
	}
	return count, nil
}

func (s *trackerStore) TouchActivity(_ context.Context, userID string, _ time.Time) error {
	s.touched = append(s.touched, userID)
	return nil
}

func TestRecordValidatesIdentifiers(t *testing.T) {
	tracker := NewTracker(&trackerStore{}, 77)

	_, err := tracker.Record(context.Background(), repository.ProgressUpdate{UserID: "u1", LessonID: "l1"})
	var trackerErr *Error
	if !errors.As(err, &trackerErr) || trackerErr.Code != ErrMissingModuleID {
		t.Fatalf("expected %s, got %v", ErrMissingModuleID, err)
	}

	_, err = tracker.Record(context.Background(), repository.ProgressUpdate{UserID: "u1", ModuleID: "m1"})
	if !errors.As(err, &trackerErr) || trackerErr.Code != ErrMissingLessonID {
		t.Fatalf("expected %s, got %v", ErrMissingLessonID, err)
	}
}

func TestRecordTouchesActivity(t *testing.T) {
	store := &trackerStore{}
	tracker := NewTracker(store, 77)

	completed := true
	record, err := tracker.Record(context.Background(), repository.ProgressUpdate{
		UserID:    "u1",
		ModuleID:  "m1",
		LessonID:  "l1",
		Completed: &completed,
	})
	if err != nil {
		t.Fatalf("record error: %v", err)
	}
	if !record.Completed || record.CompletedAt == nil {
		t.Fatalf("expected completed record with timestamp")
	}
	if len(store.touched) != 1 || store.touched[0] != "u1" {
		t.Fatalf("expected last activity touch for u1, got %v", store.touched)
	}
}

func TestStatsUsesConfiguredTotal(t *testing.T) {
	store := &trackerStore{snapshot: []model.LessonProgress{
		{ModuleID: "m1", LessonID: "l1", Completed: true},
		{ModuleID: "m1", LessonID: "l2", Completed: false},
	}}
	tracker := NewTracker(store, 77)

	stats, err := tracker.Stats(context.Background(), "u1")
	if err != nil {
		t.Fatalf("stats error: %v", err)
	}
	if stats.CompletedLessons != 1 || stats.TotalLessons != 77 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.CompletionRate != 1.3 {
		t.Fatalf("expected rate 1.3, got %v", stats.CompletionRate)
	}
}
