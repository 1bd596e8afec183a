package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/xid"

	"github.com/codelove/codelove/internal/apperror"
	"github.com/codelove/codelove/internal/model"
	"github.com/codelove/codelove/internal/repository"
)

// ProblemDB implements repository.ProblemRepository.
type ProblemDB struct {
	conn *sql.DB
}

var _ repository.ProblemRepository = (*ProblemDB)(nil)

// GetBySlug retrieves a single catalog entry.
func (p *ProblemDB) GetBySlug(ctx context.Context, slug string) (*model.Problem, error) {
	var prob model.Problem
	err := p.conn.QueryRowContext(ctx,
		`SELECT id, slug, title, difficulty, topic, created_at
		 FROM problems WHERE slug = ?`, slug,
	).Scan(&prob.ID, &prob.Slug, &prob.Title, &prob.Difficulty, &prob.Topic, &prob.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("problem", slug)
		}
		return nil, fmt.Errorf("sqlite: getting problem %s: %w", slug, err)
	}
	return &prob, nil
}

// List returns catalog entries ordered by title.
func (p *ProblemDB) List(ctx context.Context, opts repository.ListOptions) ([]model.Problem, error) {
	limit := opts.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	rows, err := p.conn.QueryContext(ctx,
		`SELECT id, slug, title, difficulty, topic, created_at
		 FROM problems ORDER BY title LIMIT ? OFFSET ?`,
		limit, opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing problems: %w", err)
	}
	defer rows.Close()

	problems := []model.Problem{}
	for rows.Next() {
		var prob model.Problem
		if err := rows.Scan(&prob.ID, &prob.Slug, &prob.Title, &prob.Difficulty, &prob.Topic, &prob.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning problem: %w", err)
		}
		problems = append(problems, prob)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating problems: %w", err)
	}

	return problems, nil
}

// seedProblems inserts the starter catalog on first run. INSERT OR IGNORE
// keeps it idempotent across restarts (slug is unique).
func (db *DB) seedProblems() error {
	seed := []model.Problem{
		{Slug: "two-sum", Title: "Two Sum", Difficulty: "easy", Topic: "arrays"},
		{Slug: "reverse-linked-list", Title: "Reverse Linked List", Difficulty: "easy", Topic: "linked-lists"},
		{Slug: "valid-parentheses", Title: "Valid Parentheses", Difficulty: "easy", Topic: "stacks"},
		{Slug: "longest-substring", Title: "Longest Substring Without Repeating Characters", Difficulty: "medium", Topic: "strings"},
		{Slug: "course-schedule", Title: "Course Schedule", Difficulty: "medium", Topic: "graphs"},
		{Slug: "merge-k-sorted-lists", Title: "Merge K Sorted Lists", Difficulty: "hard", Topic: "heaps"},
		{Slug: "median-two-arrays", Title: "Median of Two Sorted Arrays", Difficulty: "hard", Topic: "binary-search"},
	}

	for _, prob := range seed {
		_, err := db.conn.Exec(
			`INSERT OR IGNORE INTO problems (id, slug, title, difficulty, topic)
			 VALUES (?, ?, ?, ?, ?)`,
			xid.New().String(), prob.Slug, prob.Title, prob.Difficulty, prob.Topic,
		)
		if err != nil {
			return fmt.Errorf("seeding problem %s: %w", prob.Slug, err)
		}
	}

	return nil
}
