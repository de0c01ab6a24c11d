package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/sokoplace/sokoplace-backend/pkg/enums"
)

// User is any marketplace account. Rider-specific availability and position
// fields are consulted read-only by the delivery assignment engine; position
// is refreshed by rider location pings.
type User struct {
	ID            uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Email         string            `gorm:"column:email;not null;uniqueIndex"`
	PasswordHash  string            `gorm:"column:password_hash;not null"`
	FullName      string            `gorm:"column:full_name;not null"`
	Phone         string            `gorm:"column:phone"`
	Role          enums.UserRole    `gorm:"column:role;type:text;not null;default:'buyer'"`
	RiderStatus   enums.RiderStatus `gorm:"column:rider_status;type:text;not null;default:'pending'"`
	IsOnline      bool              `gorm:"column:is_online;not null;default:false"`
	IsActive      bool              `gorm:"column:is_active;not null;default:true"`
	LastLatitude  *float64          `gorm:"column:last_latitude"`
	LastLongitude *float64          `gorm:"column:last_longitude"`
	CreatedAt     time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
