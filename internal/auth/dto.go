package auth

import (
	"github.com/google/uuid"

	"github.com/sokoplace/sokoplace-backend/pkg/enums"
)

// RegisterRequest captures the payload required to onboard a new account.
// Sellers must provide shop details; the shop is created in the same
// transaction as the user.
type RegisterRequest struct {
	FullName string         `json:"full_name" validate:"required"`
	Email    string         `json:"email" validate:"required,email"`
	Password string         `json:"password" validate:"required,min=8"`
	Phone    string         `json:"phone,omitempty"`
	Role     enums.UserRole `json:"role" validate:"required"`

	ShopName      string   `json:"shop_name,omitempty"`
	ShopAddress   string   `json:"shop_address,omitempty"`
	ShopLatitude  *float64 `json:"shop_latitude,omitempty"`
	ShopLongitude *float64 `json:"shop_longitude,omitempty"`
}

// LoginRequest captures the credentials sent to the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// UserSummary is the account shape returned after register and login.
type UserSummary struct {
	ID          uuid.UUID         `json:"id"`
	Email       string            `json:"email"`
	FullName    string            `json:"full_name"`
	Role        enums.UserRole    `json:"role"`
	RiderStatus enums.RiderStatus `json:"rider_status,omitempty"`
	ShopID      *uuid.UUID        `json:"shop_id,omitempty"`
}

// LoginResponse contains the token and account produced by a successful login.
type LoginResponse struct {
	AccessToken string      `json:"access_token"`
	User        UserSummary `json:"user"`
}
