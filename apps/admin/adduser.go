package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
)

var errInvalidRole = errors.New("invalid role")

// addUser updates or creates an active user.User. The password policy is not applied.
func (cli *commandLine) addUser(name, uname, email string, role user.Role, pwd string) error {
	ctx := context.Background()
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)
	if name = core.CleanString(name); name == "" {
		name = uname
	}
	if !role.IsValid() {
		return errInvalidRole
	}

	usr, err := cli.usrSvc.GetByUsernameOrEmail(ctx, uname)
	if errors.Cause(err) == user.ErrNotFound {
		usr, err = cli.usrSvc.GetByUsernameOrEmail(ctx, email)
	}
	switch errors.Cause(err) {
	case nil:
		active := true
		usr, err = cli.usrSvc.Update(ctx, usr, user.UpdateUser{
			Name:      name,
			Username:  uname,
			Email:     email,
			AvatarURL: usr.AvatarURL,
			Role:      &role,
			IsActive:  &active,
		})
		if err != nil {
			return errors.Wrap(err, "updating user")
		}
		if _, err = cli.usrSvc.SetPassword(ctx, usr, pwd); err != nil {
			return errors.Wrap(err, "setting password")
		}
		fmt.Fprintf(cli.out, "User %q updated.\n", usr.Username)

	case user.ErrNotFound:
		usr, err = cli.usrSvc.Create(ctx, user.NewUser{
			Name:     name,
			Username: uname,
			Email:    email,
			Role:     role,
			Password: pwd,
		})
		if err != nil {
			return errors.Wrap(err, "creating user")
		}
		fmt.Fprintf(cli.out, "User %q created.\n", usr.Username)

	default:
		return errors.Wrap(err, "finding user")
	}
	return nil
}
