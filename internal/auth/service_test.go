package auth

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	pkgauth "github.com/sokoplace/sokoplace-backend/pkg/auth"
	"github.com/sokoplace/sokoplace-backend/pkg/config"
	"github.com/sokoplace/sokoplace-backend/pkg/db/models"
	"github.com/sokoplace/sokoplace-backend/pkg/enums"
	pkgerrors "github.com/sokoplace/sokoplace-backend/pkg/errors"
	"github.com/sokoplace/sokoplace-backend/pkg/logger"
	"github.com/sokoplace/sokoplace-backend/pkg/security"
)

type stubAuthRepo struct {
	usersByEmail map[string]*models.User
	shopsByOwner map[uuid.UUID]*models.Shop

	createdUsers []*models.User
	createdShops []*models.Shop
}

func newStubAuthRepo() *stubAuthRepo {
	return &stubAuthRepo{
		usersByEmail: map[string]*models.User{},
		shopsByOwner: map[uuid.UUID]*models.Shop{},
	}
}

func (r *stubAuthRepo) WithTx(tx *gorm.DB) Repository { return r }

func (r *stubAuthRepo) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	if user, ok := r.usersByEmail[email]; ok {
		return user, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubAuthRepo) CreateUser(ctx context.Context, user *models.User) error {
	r.usersByEmail[user.Email] = user
	r.createdUsers = append(r.createdUsers, user)
	return nil
}

func (r *stubAuthRepo) CreateShop(ctx context.Context, shop *models.Shop) error {
	r.shopsByOwner[shop.OwnerID] = shop
	r.createdShops = append(r.createdShops, shop)
	return nil
}

func (r *stubAuthRepo) FindShopByOwner(ctx context.Context, ownerID uuid.UUID) (*models.Shop, error) {
	if shop, ok := r.shopsByOwner[ownerID]; ok {
		return shop, nil
	}
	return nil, gorm.ErrRecordNotFound
}

type stubAuthTxRunner struct{}

func (stubAuthTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func testPasswordConfig() config.PasswordConfig {
	return config.PasswordConfig{
		ArgonMemoryKB:    8,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     8,
		ArgonKeyLen:      16,
	}
}

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "test-secret",
		Issuer:            "sokoplace-test",
		ExpirationMinutes: 5,
	}
}

func newAuthService(t *testing.T, repo Repository) Service {
	t.Helper()
	svc, err := NewService(
		repo,
		stubAuthTxRunner{},
		testJWTConfig(),
		testPasswordConfig(),
		logger.New(logger.Options{ServiceName: "test"}),
	)
	require.NoError(t, err)
	return svc
}

func TestRegisterBuyerHashesPassword(t *testing.T) {
	repo := newStubAuthRepo()
	svc := newAuthService(t, repo)

	summary, err := svc.Register(context.Background(), RegisterRequest{
		FullName: "Ada Obi",
		Email:    "  Ada@Example.COM ",
		Password: "correct horse battery",
		Role:     enums.UserRoleBuyer,
	})
	require.NoError(t, err)

	assert.Equal(t, "ada@example.com", summary.Email)
	assert.Equal(t, enums.UserRoleBuyer, summary.Role)
	assert.Nil(t, summary.ShopID)
	assert.Empty(t, repo.createdShops)

	require.Len(t, repo.createdUsers, 1)
	stored := repo.createdUsers[0]
	assert.NotEqual(t, "correct horse battery", stored.PasswordHash)
	ok, err := security.VerifyPassword("correct horse battery", stored.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRegisterSellerCreatesShop(t *testing.T) {
	repo := newStubAuthRepo()
	svc := newAuthService(t, repo)

	lat, lng := 6.5244, 3.3792
	summary, err := svc.Register(context.Background(), RegisterRequest{
		FullName:      "Bisi Ade",
		Email:         "bisi@example.com",
		Password:      "a strong passphrase",
		Role:          enums.UserRoleSeller,
		ShopName:      "Bisi Foods",
		ShopAddress:   "12 Allen Avenue, Ikeja",
		ShopLatitude:  &lat,
		ShopLongitude: &lng,
	})
	require.NoError(t, err)

	require.NotNil(t, summary.ShopID)
	require.Len(t, repo.createdShops, 1)
	shop := repo.createdShops[0]
	assert.Equal(t, *summary.ShopID, shop.ID)
	assert.Equal(t, summary.ID, shop.OwnerID)
	assert.Equal(t, "Bisi Foods", shop.Name)
	require.NotNil(t, shop.Latitude)
	assert.InDelta(t, 6.5244, *shop.Latitude, 0.0001)
}

func TestRegisterRiderStartsPending(t *testing.T) {
	repo := newStubAuthRepo()
	svc := newAuthService(t, repo)

	summary, err := svc.Register(context.Background(), RegisterRequest{
		FullName: "Chuka Eze",
		Email:    "chuka@example.com",
		Password: "a strong passphrase",
		Role:     enums.UserRoleRider,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.RiderStatusPending, summary.RiderStatus)
}

func TestRegisterDuplicateEmailConflicts(t *testing.T) {
	repo := newStubAuthRepo()
	repo.usersByEmail["taken@example.com"] = &models.User{ID: uuid.New(), Email: "taken@example.com"}
	svc := newAuthService(t, repo)

	_, err := svc.Register(context.Background(), RegisterRequest{
		FullName: "New User",
		Email:    "taken@example.com",
		Password: "a strong passphrase",
		Role:     enums.UserRoleBuyer,
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.As(err).Code())
}

func TestRegisterValidation(t *testing.T) {
	svc := newAuthService(t, newStubAuthRepo())

	lat := 6.52
	cases := []struct {
		name string
		req  RegisterRequest
	}{
		{
			name: "admin role rejected",
			req: RegisterRequest{
				FullName: "Eve", Email: "eve@example.com",
				Password: "a strong passphrase", Role: enums.UserRoleAdmin,
			},
		},
		{
			name: "seller without shop name",
			req: RegisterRequest{
				FullName: "Eve", Email: "eve@example.com",
				Password: "a strong passphrase", Role: enums.UserRoleSeller,
				ShopAddress: "12 Allen Avenue",
			},
		},
		{
			name: "seller without shop address",
			req: RegisterRequest{
				FullName: "Eve", Email: "eve@example.com",
				Password: "a strong passphrase", Role: enums.UserRoleSeller,
				ShopName: "Eve Stores",
			},
		},
		{
			name: "latitude without longitude",
			req: RegisterRequest{
				FullName: "Eve", Email: "eve@example.com",
				Password: "a strong passphrase", Role: enums.UserRoleSeller,
				ShopName: "Eve Stores", ShopAddress: "12 Allen Avenue",
				ShopLatitude: &lat,
			},
		},
		{
			name: "missing full name",
			req: RegisterRequest{
				Email: "eve@example.com", Password: "a strong passphrase",
				Role: enums.UserRoleBuyer,
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tc.req)
			require.Error(t, err)
			assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
		})
	}
}

func TestLoginReturnsTokenWithShopClaim(t *testing.T) {
	repo := newStubAuthRepo()
	svc := newAuthService(t, repo)

	_, err := svc.Register(context.Background(), RegisterRequest{
		FullName:    "Bisi Ade",
		Email:       "bisi@example.com",
		Password:    "a strong passphrase",
		Role:        enums.UserRoleSeller,
		ShopName:    "Bisi Foods",
		ShopAddress: "12 Allen Avenue, Ikeja",
	})
	require.NoError(t, err)

	resp, err := svc.Login(context.Background(), LoginRequest{
		Email:    "bisi@example.com",
		Password: "a strong passphrase",
	})
	require.NoError(t, err)
	require.NotNil(t, resp.User.ShopID)

	claims, err := pkgauth.ParseAccessToken(testJWTConfig(), resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, claims.UserID)
	assert.Equal(t, enums.UserRoleSeller, claims.Role)
	require.NotNil(t, claims.ShopID)
	assert.Equal(t, *resp.User.ShopID, *claims.ShopID)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	repo := newStubAuthRepo()
	svc := newAuthService(t, repo)

	_, err := svc.Register(context.Background(), RegisterRequest{
		FullName: "Ada Obi",
		Email:    "ada@example.com",
		Password: "correct horse battery",
		Role:     enums.UserRoleBuyer,
	})
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), LoginRequest{
		Email:    "ada@example.com",
		Password: "wrong password",
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeUnauthorized, pkgerrors.As(err).Code())

	_, err = svc.Login(context.Background(), LoginRequest{
		Email:    "nobody@example.com",
		Password: "correct horse battery",
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeUnauthorized, pkgerrors.As(err).Code())
}

func TestLoginRejectsDeactivatedAccount(t *testing.T) {
	repo := newStubAuthRepo()
	svc := newAuthService(t, repo)

	_, err := svc.Register(context.Background(), RegisterRequest{
		FullName: "Ada Obi",
		Email:    "ada@example.com",
		Password: "correct horse battery",
		Role:     enums.UserRoleBuyer,
	})
	require.NoError(t, err)
	repo.usersByEmail["ada@example.com"].IsActive = false

	_, err = svc.Login(context.Background(), LoginRequest{
		Email:    "ada@example.com",
		Password: "correct horse battery",
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeUnauthorized, pkgerrors.As(err).Code())
}
