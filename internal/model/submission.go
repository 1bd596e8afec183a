package model

import "time"

// Submission statuses. The product only distinguishes accepted from the rest
// for the contribution graph; the remaining values are kept for the
// submission list view.
const (
	StatusAccepted   = "accepted"
	StatusWrong      = "wrong_answer"
	StatusTimeLimit  = "time_limit"
	StatusRuntimeErr = "runtime_error"
)

// Submission is a single problem attempt by a user.
type Submission struct {
	ID          string    `json:"id"          db:"id"`
	UserID      string    `json:"userId"      db:"user_id"`
	ProblemSlug string    `json:"problemSlug" db:"problem_slug"`
	Status      string    `json:"status"      db:"status"`
	CreatedAt   time.Time `json:"createdAt"   db:"created_at"`
}

// SubmissionDay is the reduced shape served to the contribution graph:
// just when it happened and whether it counted.
type SubmissionDay struct {
	CreatedAt time.Time `json:"createdAt"`
	Status    string    `json:"status"`
}
