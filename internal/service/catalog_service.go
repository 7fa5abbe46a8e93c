package service

import (
	"fmt"

	"recinto/internal/domain"
	"recinto/internal/models"

	"github.com/rs/zerolog"
)

// CatalogService serves the resource catalog. The catalog is loaded at
// startup and held by the repository; member-facing listings hide inactive
// and invisible resources, admin listings see everything.
type CatalogService struct {
	repo   domain.Repository
	logger zerolog.Logger
}

func NewCatalogService(repo domain.Repository, resources []models.Resource, logger *zerolog.Logger) *CatalogService {
	repo.SetResources(resources)
	return &CatalogService{
		repo:   repo,
		logger: logger.With().Str("component", "catalog_service").Logger(),
	}
}

// VisibleResources lists active, visible resources in display order.
func (s *CatalogService) VisibleResources() []*models.Resource {
	all := s.repo.GetResources()
	visible := make([]*models.Resource, 0, len(all))
	for _, r := range all {
		if r.IsActive && r.IsVisible {
			visible = append(visible, r)
		}
	}
	return visible
}

// AllResources lists every configured resource, including hidden ones.
func (s *CatalogService) AllResources() []*models.Resource {
	return s.repo.GetResources()
}

func (s *CatalogService) GetResource(id int64) (*models.Resource, error) {
	r, ok := s.repo.GetResourceByID(id)
	if !ok {
		return nil, fmt.Errorf("resource not found: %d", id)
	}
	return r, nil
}
