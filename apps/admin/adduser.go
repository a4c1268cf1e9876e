package main

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
)

// addUser updates or creates a user.User
func (cli *commandLine) addUser(uname, email, tenantSlug, pwd string, isAdmin bool) error {
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)
	tenantSlug = core.CleanString(tenantSlug, true /* lower */)

	if _, err := cli.tenantRepo.GetTenantBySlug(tenantSlug); err != nil {
		return err
	}

	usr, err := cli.usrRepo.GetUserByUsernameOrEmail(uname)
	exists := err == nil
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return err
		}
		now := time.Now().UTC()
		usr = user.User{
			ID:        uuid.New().String(),
			Name:      uname,
			Username:  uname,
			Email:     email,
			CreatedAt: now,
			UpdatedAt: now,
		}
	}
	usr.TenantSlug = tenantSlug
	if isAdmin {
		usr.Roles = user.AllRoles
	}
	if err := usr.SetPassword(pwd); err != nil {
		return err
	}

	if exists {
		isActive := true
		_, err = cli.usrRepo.UpdateUser(usr, &isActive)
		return err
	}
	usr.IsActive = true
	_, err = cli.usrRepo.CreateUser(usr)
	return err
}
