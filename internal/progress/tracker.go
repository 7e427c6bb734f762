package progress

import (
	"context"
	"math"
	"time"

	"github.com/Kevin69007/formation-creation-entreprise-admin/internal/model"
	"github.com/Kevin69007/formation-creation-entreprise-admin/internal/repository"
)

const (
	ErrMissingModuleID = "missing_module_id"
	ErrMissingLessonID = "missing_lesson_id"
)

type Error struct {
	Code string
}

func (e *Error) Error() string {
	return e.Code
}

// Store is the slice of the repository the tracker needs.
type Store interface {
	UpsertProgress(ctx context.Context, update repository.ProgressUpdate, now time.Time) (model.LessonProgress, error)
	ListProgress(ctx context.Context, userID string) ([]model.LessonProgress, error)
	CountCompletedLessons(ctx context.Context, userID string) (int, error)
	TouchActivity(ctx context.Context, userID string, now time.Time) error
}

type Stats struct {
	CompletedLessons int     `json:"completedLessons"`
	TotalLessons     int     `json:"totalLessons"`
	CompletionRate   float64 `json:"completionRate"`
}

// Tracker maintains per-lesson completion state. The curriculum size is
// injected configuration, not derived from the progress table.
type Tracker struct {
	store        Store
	totalLessons int
}

func NewTracker(store Store, totalLessons int) *Tracker {
	return &Tracker{store: store, totalLessons: totalLessons}
}

// Record reports progress on one lesson for one user. Fields left nil
// keep their stored value; the owning user's last activity is stamped as
// a side effect.
func (t *Tracker) Record(ctx context.Context, update repository.ProgressUpdate) (model.LessonProgress, error) {
	if update.ModuleID == "" {
		return model.LessonProgress{}, &Error{Code: ErrMissingModuleID}
	}
	if update.LessonID == "" {
		return model.LessonProgress{}, &Error{Code: ErrMissingLessonID}
	}

	now := time.Now().UTC()
	record, err := t.store.UpsertProgress(ctx, update, now)
	if err != nil {
		return model.LessonProgress{}, err
	}
	if err := t.store.TouchActivity(ctx, update.UserID, now); err != nil {
		return model.LessonProgress{}, err
	}
	return record, nil
}

// List returns a point-in-time snapshot ordered by (moduleId, lessonId).
func (t *Tracker) List(ctx context.Context, userID string) ([]model.LessonProgress, error) {
	return t.store.ListProgress(ctx, userID)
}

func (t *Tracker) Stats(ctx context.Context, userID string) (Stats, error) {
	completed, err := t.store.CountCompletedLessons(ctx, userID)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		CompletedLessons: completed,
		TotalLessons:     t.totalLessons,
		CompletionRate:   CompletionRate(completed, t.totalLessons),
	}, nil
}

// CompletionRate is the percentage of the curriculum completed, rounded
// to one decimal place. A non-positive total yields 0.
func CompletionRate(completed, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(completed)/float64(total)*100*10) / 10
}
