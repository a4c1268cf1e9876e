package dummydb

import (
	"sort"

	"github.com/trezcool/darasa/core/tenant"
)

type tenantRepository struct {
	db *tenantTable
}

var _ tenant.Repository = (*tenantRepository)(nil) // interface compliance check

func NewTenantRepository(db *DB) tenant.Repository {
	return &tenantRepository{db: db.tenant}
}

func (repo *tenantRepository) CheckSlugUniqueness(slug string) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if _, ok := repo.db.table[slug]; ok {
		return tenant.ErrSlugExists
	}
	return nil
}

func (repo *tenantRepository) CreateTenant(t tenant.Tenant) (tenant.Tenant, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.table[t.Slug] = &t
	return t, nil
}

func (repo *tenantRepository) GetTenantBySlug(slug string) (tenant.Tenant, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if t, ok := repo.db.table[slug]; ok {
		return *t, nil
	}
	return tenant.Tenant{}, tenant.ErrNotFound
}

func (repo *tenantRepository) QueryAllTenants() ([]tenant.Tenant, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	tenants := make([]tenant.Tenant, 0, len(repo.db.table))
	for _, t := range repo.db.table {
		tenants = append(tenants, *t)
	}
	sort.Slice(tenants, func(i, j int) bool { return tenants[i].Slug < tenants[j].Slug })
	return tenants, nil
}
