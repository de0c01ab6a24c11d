package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgauth "github.com/sokoplace/sokoplace-backend/pkg/auth"
	"github.com/sokoplace/sokoplace-backend/pkg/config"
	"github.com/sokoplace/sokoplace-backend/pkg/db/models"
	"github.com/sokoplace/sokoplace-backend/pkg/enums"
	pkgerrors "github.com/sokoplace/sokoplace-backend/pkg/errors"
	"github.com/sokoplace/sokoplace-backend/pkg/logger"
	"github.com/sokoplace/sokoplace-backend/pkg/security"
)

const invalidCredentialsMessage = "invalid credentials"

// Service handles account onboarding and credential exchange.
type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*UserSummary, error)
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
}

type service struct {
	repo        Repository
	tx          txRunner
	jwtCfg      config.JWTConfig
	passwordCfg config.PasswordConfig
	logg        *logger.Logger
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// NewService wires the auth service.
func NewService(
	repo Repository,
	tx txRunner,
	jwtCfg config.JWTConfig,
	passwordCfg config.PasswordConfig,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("auth repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:        repo,
		tx:          tx,
		jwtCfg:      jwtCfg,
		passwordCfg: passwordCfg,
		logg:        logg,
	}, nil
}

func (s *service) Register(ctx context.Context, req RegisterRequest) (*UserSummary, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	if strings.TrimSpace(req.FullName) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "full name is required")
	}
	if !req.Role.IsValid() || req.Role == enums.UserRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "role must be buyer, seller, or rider")
	}
	if req.Role == enums.UserRoleSeller {
		if strings.TrimSpace(req.ShopName) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "shop name is required for sellers")
		}
		if strings.TrimSpace(req.ShopAddress) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "shop address is required for sellers")
		}
		if (req.ShopLatitude == nil) != (req.ShopLongitude == nil) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "shop latitude and longitude must be provided together")
		}
	}

	passwordHash, err := security.HashPassword(req.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "hash password")
	}

	user := &models.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: passwordHash,
		FullName:     strings.TrimSpace(req.FullName),
		Phone:        strings.TrimSpace(req.Phone),
		Role:         req.Role,
		RiderStatus:  enums.RiderStatusPending,
		IsActive:     true,
	}

	var shopID *uuid.UUID
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if _, err := repo.FindUserByEmail(ctx, email); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check user email")
		}

		if err := repo.CreateUser(ctx, user); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user")
		}

		if req.Role == enums.UserRoleSeller {
			shop := &models.Shop{
				ID:        uuid.New(),
				OwnerID:   user.ID,
				Name:      strings.TrimSpace(req.ShopName),
				Email:     email,
				Phone:     strings.TrimSpace(req.Phone),
				Address:   strings.TrimSpace(req.ShopAddress),
				Latitude:  req.ShopLatitude,
				Longitude: req.ShopLongitude,
			}
			if err := repo.CreateShop(ctx, shop); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create shop")
			}
			id := shop.ID
			shopID = &id
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"user_id": user.ID.String(),
		"role":    user.Role.String(),
	}), "account registered")

	return summarize(user, shopID), nil
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email and password are required")
	}

	user, err := s.repo.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find user")
	}
	if !user.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	ok, err := security.VerifyPassword(req.Password, user.PasswordHash)
	if err != nil || !ok {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	var shopID *uuid.UUID
	if user.Role == enums.UserRoleSeller {
		shop, err := s.repo.FindShopByOwner(ctx, user.ID)
		switch {
		case err == nil:
			id := shop.ID
			shopID = &id
		case errors.Is(err, gorm.ErrRecordNotFound):
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
				"user_id": user.ID.String(),
			}), "seller account has no shop")
		default:
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find shop")
		}
	}

	token, err := pkgauth.MintAccessToken(s.jwtCfg, time.Now().UTC(), pkgauth.AccessTokenPayload{
		UserID: user.ID,
		Role:   user.Role,
		ShopID: shopID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint access token")
	}

	return &LoginResponse{
		AccessToken: token,
		User:        *summarize(user, shopID),
	}, nil
}

func summarize(user *models.User, shopID *uuid.UUID) *UserSummary {
	summary := &UserSummary{
		ID:       user.ID,
		Email:    user.Email,
		FullName: user.FullName,
		Role:     user.Role,
		ShopID:   shopID,
	}
	if user.Role == enums.UserRoleRider {
		summary.RiderStatus = user.RiderStatus
	}
	return summary
}
