package auth

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sokoplace/sokoplace-backend/pkg/db/models"
)

// Repository persists accounts and seller shops.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
	CreateShop(ctx context.Context, shop *models.Shop) error
	FindShopByOwner(ctx context.Context, ownerID uuid.UUID) (*models.Shop, error)
}
