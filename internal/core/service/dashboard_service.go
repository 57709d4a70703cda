package service

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/gigmarket/identity/internal/core/domain"
	"github.com/gigmarket/identity/internal/core/ports"
)

// DashboardService implements ports.DashboardService.
type DashboardService struct {
	repo  ports.DashboardRepository
	clock clockwork.Clock
	log   zerolog.Logger
}

func NewDashboardService(repo ports.DashboardRepository, clock clockwork.Clock, log zerolog.Logger) *DashboardService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &DashboardService{repo: repo, clock: clock, log: log}
}

// Dashboard returns the summary for role. An empty role means the identity's
// own role; asking for another role's dashboard is forbidden.
func (s *DashboardService) Dashboard(ctx context.Context, identity *domain.Identity, role domain.Role) (*domain.Dashboard, error) {
	if identity == nil {
		return nil, domain.ErrIdentityNotFound
	}
	if role == "" {
		role = identity.Role
	}
	if role != identity.Role {
		return nil, domain.ErrForbidden
	}

	var (
		stats map[string]int64
		err   error
	)
	switch role {
	case domain.RoleClient:
		stats, err = s.repo.CountForClient(ctx, identity.ID)
	case domain.RoleFreelancer:
		stats, err = s.repo.CountForFreelancer(ctx, identity.ID)
	default:
		return nil, domain.ErrInvalidRole
	}
	if err != nil {
		return nil, fmt.Errorf("dashboard %s: %w", role, err)
	}

	return &domain.Dashboard{
		Role:        role,
		Stats:       stats,
		GeneratedAt: s.clock.Now().UTC(),
	}, nil
}
