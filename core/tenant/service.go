package tenant

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

var (
	// errors
	ErrNotFound   = errors.New("tenant not found")
	ErrSlugExists = errors.New("a tenant with this slug already exists")
)

type (
	Repository interface {
		CheckSlugUniqueness(slug string) error
		CreateTenant(tenant Tenant) (Tenant, error)
		GetTenantBySlug(slug string) (Tenant, error)
		QueryAllTenants() ([]Tenant, error)
	}

	Service struct {
		repo     Repository
		validate *validator.Validate
	}
)

func NewService(repo Repository, validate *validator.Validate) *Service {
	return &Service{repo: repo, validate: validate}
}

func (svc *Service) checkUniqueness(slug string) error {
	if err := svc.repo.CheckSlugUniqueness(slug); err != nil {
		if err == ErrSlugExists {
			return core.NewValidationError(err, core.FieldError{Field: "slug", Error: err.Error()})
		}
		return err
	}
	return nil
}

func (svc *Service) Create(nt NewTenant) (Tenant, error) {
	now := time.Now().UTC()
	t := Tenant{
		ID:        uuid.New().String(),
		Name:      nt.Name,
		Slug:      nt.Slug,
		Plan:      nt.Plan,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return svc.repo.CreateTenant(t)
}

func (svc *Service) GetBySlug(slug string) (Tenant, error) {
	return svc.repo.GetTenantBySlug(core.CleanString(slug, true /* lower */))
}

func (svc *Service) QueryAll() ([]Tenant, error) {
	return svc.repo.QueryAllTenants()
}
