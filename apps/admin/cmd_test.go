package main

import (
	"database/sql"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/tenant"
	"github.com/trezcool/darasa/core/user"
	dummydb "github.com/trezcool/darasa/storage/database/dummy"
	"github.com/trezcool/darasa/tests"
)

var (
	usrRepo    user.Repository
	tenantRepo tenant.Repository
)

func setup(t *testing.T) *commandLine {
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed: %v", err)
	}
	usrRepo = dummydb.NewUserRepository(db)
	tenantRepo = dummydb.NewTenantRepository(db)

	validate := validator.New()
	core.InitValidators(validate, newTranslator())

	// start CLI
	return &commandLine{
		usrRepo:    usrRepo,
		tenantRepo: tenantRepo,
		tenantSvc:  tenant.NewService(tenantRepo, validate),
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	gooseRunFunc = func(command string, db *sql.DB, fsys fs.FS, dir string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to":
			if len(args) == 0 {
				return fmt.Errorf("up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		case "down-to":
			if len(args) == 0 {
				return fmt.Errorf("down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "course", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			if err := cli.run(args); err != nil {
				if tt.wantErr != nil {
					if err != tt.wantErr {
						t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
					}
				} else if tt.wantErrStr != "" {
					if err.Error() != tt.wantErrStr {
						t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
					}
				} else {
					t.Errorf("cli.run() unexpected error = %v", err)
				}
			}
		})
	}
}

func Test_commandLine_addTenant(t *testing.T) {
	cli := setup(t)

	testutil.CreateTenant(t, tenantRepo, "Existing Academy", "existing", "basic")

	tests := []cliTest{
		{name: "no args", args: []string{"addtenant"}, wantErr: errHelp},
		{name: "missing slug", args: []string{"addtenant", "-name", "Alpha"}, wantErr: errHelp},
		{name: "slug taken", args: []string{"addtenant", "-name", "Existing", "-slug", "existing"}, wantErrStr: tenant.ErrSlugExists.Error()},
		{name: "invalid slug", args: []string{"addtenant", "-name", "Bad", "-slug", "Bad_Slug"}, wantErrStr: "tenantslug"},
		{name: "ok", args: []string{"addtenant", "-name", "Alpha Academy", "-slug", "alpha"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if tt.wantErr != nil {
				if err != tt.wantErr {
					t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
				}
				return
			}
			if tt.wantErrStr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErrStr) {
					t.Errorf("cli.run() error = %v, want it to mention %q", err, tt.wantErrStr)
				}
				return
			}
			if err != nil {
				t.Fatalf("cli.run() unexpected error = %v", err)
			}
		})
	}

	ten, err := tenantRepo.GetTenantBySlug("alpha")
	if err != nil {
		t.Fatalf("GetTenantBySlug() failed: %v", err)
	}
	if ten.Name != "Alpha Academy" || !ten.IsActive {
		t.Errorf("created tenant = %+v, want active Alpha Academy", ten)
	}
}

func Test_commandLine_addUser(t *testing.T) {
	cli := setup(t)

	testutil.CreateTenant(t, tenantRepo, "Alpha Academy", "alpha", "basic")

	readPasswordFunc = func(fd int) ([]byte, error) { return []byte("S3cr3tPwd!"), nil }

	tests := []cliTest{
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "missing tenant", args: []string{"adduser", "-username", "awe", "-email", "awe@test.cd"}, wantErr: errHelp},
		{name: "unknown tenant", args: []string{"adduser", "-username", "awe", "-email", "awe@test.cd", "-tenant", "nope"}, wantErr: tenant.ErrNotFound},
		{name: "ok", args: []string{"adduser", "-username", "awe", "-email", "awe@test.cd", "-tenant", "alpha"}},
		{name: "ok admin", args: []string{"adduser", "-username", "boss", "-email", "boss@test.cd", "-tenant", "alpha", "-admin"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if tt.wantErr != nil {
				if err != tt.wantErr {
					t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("cli.run() unexpected error = %v", err)
			}
		})
	}

	usr, err := usrRepo.GetUserByUsername("awe")
	if err != nil {
		t.Fatalf("GetUserByUsername() failed: %v", err)
	}
	if usr.TenantSlug != "alpha" || !usr.IsActive {
		t.Errorf("created user = %+v, want active on tenant alpha", usr)
	}
	if err := usr.CheckPassword("S3cr3tPwd!"); err != nil {
		t.Errorf("CheckPassword() failed: %v", err)
	}

	boss, err := usrRepo.GetUserByUsername("boss")
	if err != nil {
		t.Fatalf("GetUserByUsername() failed: %v", err)
	}
	if !boss.IsAdmin() {
		t.Errorf("admin user roles = %v, want admin roles", boss.Roles)
	}
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)

	usr := testutil.CreateUser(t, usrRepo, "User", "awe", "awe@test.cd", "alpha", "mdr", nil, true)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-username", "ghost"}, extra: extra{pwd: "NewPwd123!"}, wantErr: user.ErrNotFound},
		{name: "empty password", args: []string{"resetpassword", "-username", "awe"}, extra: extra{pwd: ""}, wantErr: errHelp},
		{name: "by username", args: []string{"resetpassword", "-username", "awe"}, extra: extra{pwd: "NewPwd123!"}},
		{name: "by email", args: []string{"resetpassword", "-username", "awe@test.cd"}, extra: extra{pwd: "NewerPwd123!"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			pwd := ""
			if ex, ok := tt.extra.(extra); ok {
				pwd = ex.pwd
			}
			readPasswordFunc = func(fd int) ([]byte, error) { return []byte(pwd), nil }

			err := cli.run(args)
			if tt.wantErr != nil {
				if err != tt.wantErr {
					t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("cli.run() unexpected error = %v", err)
			}

			ex := tt.extra.(extra)
			refreshed, err := usrRepo.GetUserByID(usr.ID)
			if err != nil {
				t.Fatalf("GetUserByID() failed: %v", err)
			}
			if err := refreshed.CheckPassword(ex.pwd); err != nil {
				t.Errorf("CheckPassword() failed after reset: %v", err)
			}
		})
	}
}
