package testutil

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/darasa/core/tenant"
	"github.com/trezcool/darasa/core/user"
)

// Logger discards everything; it satisfies core.Logger.
type Logger struct{}

func (Logger) Enable(bool)                  {}
func (Logger) Debug(string, ...interface{}) {}
func (Logger) Info(string, ...interface{})  {}
func (Logger) Warn(string, ...interface{})  {}
func (Logger) Error(string, ...interface{}) {}
func (Logger) Fatal(string, ...interface{}) {}

func NewLogger() Logger { return Logger{} }

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, tenantSlug, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		ID:         uuid.New().String(),
		Name:       name,
		Username:   uname,
		Email:      email,
		TenantSlug: tenantSlug,
		Roles:      roles,
		IsActive:   isActive,
		CreatedAt:  tstamp,
		UpdatedAt:  tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

func CreateTenant(t *testing.T, repo tenant.Repository, name, slug, plan string, isActive ...bool) tenant.Tenant {
	active := true
	if len(isActive) > 0 {
		active = isActive[0]
	}

	tstamp := time.Now().UTC()
	ten := tenant.Tenant{
		ID:        uuid.New().String(),
		Name:      name,
		Slug:      slug,
		Plan:      plan,
		IsActive:  active,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	ten, err := repo.CreateTenant(ten)
	if err != nil {
		t.Fatalf("createTenant() failed: %v", err)
	}
	return ten
}
