package ports

import (
	"context"

	"github.com/gigmarket/identity/internal/core/domain"
)

// DashboardRepository counts collaborator records owned by an identity.
type DashboardRepository interface {
	CountForClient(ctx context.Context, identityID string) (map[string]int64, error)
	CountForFreelancer(ctx context.Context, identityID string) (map[string]int64, error)
}

// DashboardService builds the role-specific dashboard summary.
type DashboardService interface {
	Dashboard(ctx context.Context, identity *domain.Identity, role domain.Role) (*domain.Dashboard, error)
}
