package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/codelove/codelove/internal/apperror"
	"github.com/codelove/codelove/internal/model"
	"github.com/codelove/codelove/internal/repository"
)

// ProfileService serves public profiles and the submission feed behind the
// contribution graph.
type ProfileService struct {
	users       repository.UserRepository
	submissions repository.SubmissionRepository
	problems    repository.ProblemRepository
	logger      *slog.Logger
}

func NewProfileService(
	users repository.UserRepository,
	submissions repository.SubmissionRepository,
	problems repository.ProblemRepository,
	logger *slog.Logger,
) *ProfileService {
	return &ProfileService{
		users:       users,
		submissions: submissions,
		problems:    problems,
		logger:      logger,
	}
}

// PublicProfile returns the user record shown on /u/{handle}.
func (s *ProfileService) PublicProfile(ctx context.Context, handle string) (*model.User, error) {
	user, err := s.users.FindByHandle(ctx, handle)
	if err != nil {
		return nil, fmt.Errorf("service/profile: fetching profile %s: %w", handle, err)
	}
	return user, nil
}

// SubmissionsLastYear returns the trailing year of a user's submissions
// reduced to the (createdAt, status) pairs the contribution graph needs.
func (s *ProfileService) SubmissionsLastYear(ctx context.Context, handle string) ([]model.SubmissionDay, error) {
	user, err := s.users.FindByHandle(ctx, handle)
	if err != nil {
		return nil, fmt.Errorf("service/profile: fetching user %s: %w", handle, err)
	}

	since := time.Now().AddDate(-1, 0, 0)
	subs, err := s.submissions.ListForUserSince(ctx, user.ID, since)
	if err != nil {
		return nil, fmt.Errorf("service/profile: listing submissions for %s: %w", handle, err)
	}

	days := make([]model.SubmissionDay, 0, len(subs))
	for _, sub := range subs {
		days = append(days, model.SubmissionDay{CreatedAt: sub.CreatedAt, Status: sub.Status})
	}
	return days, nil
}

var validStatuses = map[string]bool{
	model.StatusAccepted:   true,
	model.StatusWrong:      true,
	model.StatusTimeLimit:  true,
	model.StatusRuntimeErr: true,
}

// RecordSubmission stores a problem attempt for the user. The problem must
// exist in the catalog and the status must be one of the known values.
func (s *ProfileService) RecordSubmission(ctx context.Context, userID, problemSlug, status string) (*model.Submission, error) {
	if !validStatuses[status] {
		return nil, apperror.ValidationFailed("status", fmt.Sprintf("unknown submission status %q", status))
	}
	if _, err := s.problems.GetBySlug(ctx, problemSlug); err != nil {
		return nil, fmt.Errorf("service/profile: checking problem %s: %w", problemSlug, err)
	}

	sub := &model.Submission{
		UserID:      userID,
		ProblemSlug: problemSlug,
		Status:      status,
	}
	if err := s.submissions.Create(ctx, sub); err != nil {
		return nil, fmt.Errorf("service/profile: recording submission: %w", err)
	}

	s.logger.Info("submission recorded",
		slog.String("userID", userID),
		slog.String("problem", problemSlug),
		slog.String("status", status),
	)
	return sub, nil
}
