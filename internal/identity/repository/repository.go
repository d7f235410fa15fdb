package repository

import (
	"context"

	"github.com/conversegy/saas-starter-kit/internal/identity/domain"
)

// Repository defines persistence for federated identities.
type Repository interface {
	GetByProviderAndSubject(ctx context.Context, provider, subjectID string) (*domain.Identity, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.Identity, error)
	Create(ctx context.Context, i *domain.Identity) error
	Delete(ctx context.Context, id string) error
}
