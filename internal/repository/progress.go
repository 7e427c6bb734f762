package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Kevin69007/formation-creation-entreprise-admin/internal/model"
)

const progressColumns = `id, user_id, module_id, lesson_id, completed, completed_at, time_spent, created_at, updated_at`

func scanProgress(row userRow) (model.LessonProgress, error) {
	var p model.LessonProgress
	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.ModuleID,
		&p.LessonID,
		&p.Completed,
		&p.CompletedAt,
		&p.TimeSpent,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	return p, err
}

// ProgressUpdate is one progress report. Nil Completed/TimeSpent mean
// "leave as is" on an existing row and "default" on a new one.
type ProgressUpdate struct {
	UserID    string
	ModuleID  string
	LessonID  string
	Completed *bool
	TimeSpent *float64
}

// UpsertProgress creates or updates the (user, module, lesson) row in a
// single statement, so concurrent reports for the same lesson cannot
// produce duplicates. completed_at is stamped on the false->true
// transition and deliberately never cleared afterwards.
func (s *Store) UpsertProgress(ctx context.Context, update ProgressUpdate, now time.Time) (model.LessonProgress, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO lesson_progress (id, user_id, module_id, lesson_id, completed, completed_at, time_spent, created_at, updated_at)
		VALUES ($1, $2, $3, $4,
			COALESCE($5, false),
			CASE WHEN COALESCE($5, false) THEN $7::timestamptz END,
			$6, $7, $7)
		ON CONFLICT (user_id, module_id, lesson_id) DO UPDATE SET
			completed = COALESCE($5, lesson_progress.completed),
			completed_at = CASE
				WHEN COALESCE($5, false) AND NOT lesson_progress.completed THEN $7::timestamptz
				ELSE lesson_progress.completed_at
			END,
			time_spent = COALESCE($6, lesson_progress.time_spent),
			updated_at = $7
		RETURNING `+progressColumns+`
	`, uuid.NewString(), update.UserID, update.ModuleID, update.LessonID, update.Completed, update.TimeSpent, now)
	return scanProgress(row)
}

func (s *Store) ListProgress(ctx context.Context, userID string) ([]model.LessonProgress, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+progressColumns+` FROM lesson_progress
		WHERE user_id = $1
		ORDER BY module_id ASC, lesson_id ASC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var progress []model.LessonProgress
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, err
		}
		progress = append(progress, p)
	}
	return progress, rows.Err()
}

func (s *Store) CountCompletedLessons(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM lesson_progress WHERE user_id = $1 AND completed = true
	`, userID).Scan(&count)
	return count, err
}

func (s *Store) CountAllCompletedLessons(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM lesson_progress WHERE completed = true
	`).Scan(&count)
	return count, err
}
