package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/codelove/codelove/internal/model"
	"github.com/codelove/codelove/internal/repository"
)

// SubmissionDB implements repository.SubmissionRepository.
type SubmissionDB struct {
	conn *sql.DB
}

var _ repository.SubmissionRepository = (*SubmissionDB)(nil)

// Create records a problem attempt.
func (s *SubmissionDB) Create(ctx context.Context, sub *model.Submission) error {
	sub.ID = xid.New().String()
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now()
	}

	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO submissions (id, user_id, problem_slug, status, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		sub.ID,
		sub.UserID,
		sub.ProblemSlug,
		sub.Status,
		sub.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting submission for user %s: %w", sub.UserID, err)
	}

	return nil
}

// ListForUserSince returns the user's submissions created at or after the
// cutoff, newest first. The (user_id, created_at) index keeps the
// contribution-graph query cheap.
func (s *SubmissionDB) ListForUserSince(ctx context.Context, userID string, since time.Time) ([]model.Submission, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, user_id, problem_slug, status, created_at
		 FROM submissions
		 WHERE user_id = ? AND created_at >= ?
		 ORDER BY created_at DESC`,
		userID, since,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing submissions for user %s: %w", userID, err)
	}
	defer rows.Close()

	subs := []model.Submission{}
	for rows.Next() {
		var sub model.Submission
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.ProblemSlug, &sub.Status, &sub.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning submission: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating submissions: %w", err)
	}

	return subs, nil
}
