package dummydb

import (
	"sync"

	"github.com/trezcool/darasa/core/tenant"
	"github.com/trezcool/darasa/core/user"
)

type (
	DB struct {
		user   *userTable
		tenant *tenantTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	tenantTable struct {
		sync.RWMutex
		table map[string]*tenant.Tenant // keyed by slug
	}
)

func Open() (*DB, error) {
	db := &DB{
		user:   &userTable{table: make(map[string]*user.User)},
		tenant: &tenantTable{table: make(map[string]*tenant.Tenant)},
	}
	return db, nil
}
