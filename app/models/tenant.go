package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	TenantStatusActive   = "active"
	TenantStatusInactive = "inactive"
	TenantStatusDisabled = "disabled"
)

// Tenant is a single restaurant account and the billing unit. The rest of
// the platform (menus, pages, theming) hangs off this row but is owned by
// other services; billing only needs identity and contact data.
type Tenant struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	UUID       string         `gorm:"type:varchar(36);uniqueIndex" json:"uuid"`
	Name       string         `gorm:"type:varchar(150);not null" json:"name" validate:"required,min=2,max=150"`
	Slug       string         `gorm:"type:varchar(150);uniqueIndex" json:"slug" validate:"required,min=2,max=150"`
	OwnerEmail string         `gorm:"type:varchar(200);not null" json:"owner_email" validate:"required,email,max=200"`
	Status     string         `gorm:"type:varchar(50);default:'active'" json:"status" validate:"oneof=active inactive disabled"`
	CreatedAt  time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}

func (t *Tenant) Validate() error {
	v := validator.New()
	return v.Struct(t)
}

// BeforeCreate assigns the public identifier used in API routing.
func (t *Tenant) BeforeCreate(tx *gorm.DB) error {
	if t.UUID == "" {
		t.UUID = uuid.New().String()
	}
	return nil
}
