package tenant

import (
	"time"

	"github.com/trezcool/darasa/core"
)

// Tenant is an isolated customer (teacher/academy) namespace identified by a
// subdomain slug.
type Tenant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Plan      string    `json:"plan"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// NewTenant contains information needed to register a new Tenant.
type NewTenant struct {
	Name string `json:"name" validate:"required"`
	Slug string `json:"slug" validate:"required,tenantslug"`
	Plan string `json:"plan" validate:"required"`
}

func (nt *NewTenant) Validate(svc *Service) error {
	nt.Name = core.CleanString(nt.Name)
	nt.Slug = core.CleanString(nt.Slug, true /* lower */)
	nt.Plan = core.CleanString(nt.Plan, true /* lower */)

	if err := svc.validate.Struct(nt); err != nil {
		return err
	}
	return svc.checkUniqueness(nt.Slug)
}
