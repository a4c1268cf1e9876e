package sqlxrepos

import (
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/tenant"
)

type tenantRepository struct {
	db *sqlx.DB
}

var _ tenant.Repository = (*tenantRepository)(nil) // interface compliance check

func NewTenantRepository(db *sql.DB, driverName string) *tenantRepository {
	return &tenantRepository{db: sqlx.NewDb(db, driverName)}
}

func (repo *tenantRepository) CheckSlugUniqueness(slug string) error {
	var exists bool
	err := repo.db.Get(&exists, `SELECT true FROM tenant WHERE slug = $1 LIMIT 1`, slug)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil
		}
		return errors.Wrap(err, "checking slug uniqueness")
	}
	return tenant.ErrSlugExists
}

func (repo *tenantRepository) CreateTenant(t tenant.Tenant) (tenant.Tenant, error) {
	_, err := repo.db.Exec(
		`INSERT INTO tenant (id, name, slug, plan, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.ID, t.Name, t.Slug, t.Plan, t.IsActive, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return tenant.Tenant{}, errors.Wrap(err, "creating tenant")
	}
	return t, nil
}

func (repo *tenantRepository) GetTenantBySlug(slug string) (tenant.Tenant, error) {
	var t tenant.Tenant
	err := repo.db.QueryRow(
		`SELECT id, name, slug, plan, is_active, created_at, updated_at FROM tenant WHERE slug = $1`,
		slug,
	).Scan(&t.ID, &t.Name, &t.Slug, &t.Plan, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return tenant.Tenant{}, tenant.ErrNotFound
		}
		return tenant.Tenant{}, errors.Wrap(err, "getting tenant")
	}
	return t, nil
}

func (repo *tenantRepository) QueryAllTenants() ([]tenant.Tenant, error) {
	rows, err := repo.db.Query(`SELECT id, name, slug, plan, is_active, created_at, updated_at FROM tenant ORDER BY slug`)
	if err != nil {
		return nil, errors.Wrap(err, "querying tenants")
	}
	defer func() { _ = rows.Close() }()

	tenants := make([]tenant.Tenant, 0)
	for rows.Next() {
		var t tenant.Tenant
		if err = rows.Scan(&t.ID, &t.Name, &t.Slug, &t.Plan, &t.IsActive, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, errors.Wrap(err, "scanning tenant")
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}
