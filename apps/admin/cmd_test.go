package main

import (
	"context"
	"database/sql"
	"io"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
	emailsvc "github.com/trezcool/darasa/services/email"
	inmemdb "github.com/trezcool/darasa/storage/database/inmem"
	testutil "github.com/trezcool/darasa/tests"
)

func setup(t *testing.T, db *sql.DB) *commandLine {
	t.Helper()
	conf := core.NewTestConfig()
	usrSvc := user.NewService(
		inmemdb.NewUserRepository(inmemdb.Open()),
		emailsvc.NewConsoleServiceMock(conf, testutil.NopLogger{}),
		conf,
	)
	return &commandLine{db: db, usrSvc: usrSvc, out: io.Discard}
}

// mockPasswords makes the password prompt return pwds in turn.
func mockPasswords(t *testing.T, pwds ...string) {
	t.Helper()
	orig := readPasswordFunc
	t.Cleanup(func() { readPasswordFunc = orig })

	readPasswordFunc = func(int) ([]byte, error) {
		if len(pwds) == 0 {
			return nil, nil
		}
		pwd := pwds[0]
		pwds = pwds[1:]
		return []byte(pwd), nil
	}
}

type cliTest struct {
	name    string
	args    []string // without program name
	pwds    []string
	wantErr error
}

func runCLITests(t *testing.T, cli *commandLine, tests []cliTest, check func(t *testing.T, tt cliTest)) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockPasswords(t, tt.pwds...)
			err := cli.run(append([]string{"admin"}, tt.args...))
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, errors.Cause(err))
				return
			}
			require.NoError(t, err)
			if check != nil {
				check(t, tt)
			}
		})
	}
}

func Test_commandLine_help(t *testing.T) {
	cli := setup(t, nil)
	runCLITests(t, cli, []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "unknown flag", args: []string{"adduser", "-lol"}, wantErr: errHelp},
	}, nil)
}

func Test_commandLine_migrate(t *testing.T) {
	type call struct {
		command string
		args    []string
	}
	var calls []call
	orig := migrateFunc
	t.Cleanup(func() { migrateFunc = orig })
	migrateFunc = func(_ *sql.DB, command string, args ...string) error {
		calls = append(calls, call{command: command, args: args})
		return nil
	}

	t.Run("memory storage", func(t *testing.T) {
		cli := setup(t, nil)
		assert.Equal(t, errNoSQLDB, cli.run([]string{"admin", "migrate", "up"}))
		assert.Empty(t, calls)
	})

	cli := setup(t, new(sql.DB))
	runCLITests(t, cli, []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "status", args: []string{"migrate", "status"}},
	}, nil)
	assert.Equal(t, []call{
		{command: "up", args: []string{}},
		{command: "up-to", args: []string{"2"}},
		{command: "status", args: []string{}},
	}, calls)
}

func Test_commandLine_addUser(t *testing.T) {
	cli := setup(t, nil)
	ctx := context.Background()

	runCLITests(t, cli, []cliTest{
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "no email", args: []string{"adduser", "-username", "root"}, wantErr: errHelp},
		{name: "no password", args: []string{"adduser", "-username", "root", "-email", "root@example.com"}, wantErr: errHelp},
		{
			name:    "passwords do not match",
			args:    []string{"adduser", "-username", "root", "-email", "root@example.com"},
			pwds:    []string{"secret", "secreT"},
			wantErr: errPwdMatch,
		},
		{
			name:    "invalid role",
			args:    []string{"adduser", "-username", "root", "-email", "root@example.com", "-role", "god"},
			pwds:    []string{"secret", "secret"},
			wantErr: errInvalidRole,
		},
		{
			name: "create admin",
			args: []string{"adduser", "-username", "Root", "-email", "ROOT@example.com"},
			pwds: []string{"secret", "secret"},
		},
	}, func(t *testing.T, tt cliTest) {
		usr, err := cli.usrSvc.GetByUsernameOrEmail(ctx, "root")
		require.NoError(t, err)
		assert.Equal(t, "root", usr.Name)
		assert.Equal(t, "root@example.com", usr.Email)
		assert.Equal(t, user.RoleAdmin, usr.Role)
		assert.True(t, usr.IsActive)
		assert.NoError(t, usr.CheckPassword("secret"))
	})

	t.Run("update existing user", func(t *testing.T) {
		orig, err := cli.usrSvc.GetByUsernameOrEmail(ctx, "root")
		require.NoError(t, err)
		_, err = cli.usrSvc.Update(ctx, orig, user.UpdateUser{
			Name: orig.Name, Username: orig.Username, Email: orig.Email, IsActive: new(bool),
		})
		require.NoError(t, err)

		mockPasswords(t, "n3w", "n3w")
		err = cli.run([]string{"admin", "adduser", "-username", "root", "-email", "root@example.com", "-name", "Root", "-role", "teacher"})
		require.NoError(t, err)

		usr, err := cli.usrSvc.GetByID(ctx, orig.ID)
		require.NoError(t, err)
		assert.Equal(t, "Root", usr.Name)
		assert.Equal(t, user.RoleTeacher, usr.Role)
		assert.True(t, usr.IsActive)
		assert.NoError(t, usr.CheckPassword("n3w"))
	})
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t, nil)
	ctx := context.Background()
	usr, err := cli.usrSvc.Create(ctx, user.NewUser{
		Name: "User", Username: "awe", Email: "awe@test.cd", Password: "mdr",
	})
	require.NoError(t, err)

	runCLITests(t, cli, []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "-username", "lol"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-username", "lol"}, pwds: []string{"lol"}, wantErr: user.ErrNotFound},
		{name: "reset with username", args: []string{"resetpassword", "-username", usr.Username}, pwds: []string{"lol"}},
		{name: "reset with email", args: []string{"resetpassword", "-username", "AWE@test.cd"}, pwds: []string{"lmao"}},
	}, func(t *testing.T, tt cliTest) {
		refreshed, err := cli.usrSvc.GetByID(ctx, usr.ID)
		require.NoError(t, err)
		assert.NoError(t, refreshed.CheckPassword(tt.pwds[0]))
	})
}
