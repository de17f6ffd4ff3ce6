package testutil

import (
	"context"
	"testing"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
)

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) Debug(string, ...interface{}) {}
func (NopLogger) Info(string, ...interface{})  {}
func (NopLogger) Warn(string, ...interface{})  {}
func (NopLogger) Error(string, ...interface{}) {}
func (NopLogger) Fatal(string, ...interface{}) {}

var _ core.Logger = NopLogger{}

// CreateUser stores a user straight into repo, bypassing the service validations.
// The name defaults to uname and the email to uname@example.com; pwd is left unset when empty.
func CreateUser(t *testing.T, repo user.Repository, uname, pwd string, role user.Role, isActive bool) user.User {
	t.Helper()
	now := core.Now()
	usr := user.User{
		Name:      uname,
		Username:  uname,
		Email:     uname + "@example.com",
		Role:      role,
		IsActive:  isActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}
