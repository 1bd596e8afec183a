package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/codelove/codelove/internal/model"
	"github.com/codelove/codelove/internal/repository"
)

// CatalogService serves the problem catalog.
type CatalogService struct {
	problems repository.ProblemRepository
	logger   *slog.Logger
}

func NewCatalogService(problems repository.ProblemRepository, logger *slog.Logger) *CatalogService {
	return &CatalogService{problems: problems, logger: logger}
}

func (s *CatalogService) List(ctx context.Context, opts repository.ListOptions) ([]model.Problem, error) {
	problems, err := s.problems.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("service/catalog: listing problems: %w", err)
	}
	return problems, nil
}

func (s *CatalogService) Get(ctx context.Context, slug string) (*model.Problem, error) {
	if slug == "" {
		return nil, fmt.Errorf("service/catalog: slug must not be empty")
	}
	problem, err := s.problems.GetBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("service/catalog: fetching problem %s: %w", slug, err)
	}
	return problem, nil
}
