package user

import (
	"context"
	"net/mail"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

var (
	// errors
	ErrNotFound           = core.NewNotFoundError("user not found")
	ErrEmailExists        = errors.New("a user with this email already exists")
	ErrUsernameExists     = errors.New("a user with this username already exists")
	ErrInvalidCredentials = core.NewValidationError(errors.New("invalid credentials"))
	ErrAccountDeactivated = core.NewForbiddenError("account deactivated")
	ErrInvalidOldPassword = core.NewValidationError(nil, core.FieldError{Field: "old_password", Error: "invalid password"})
	errInvalidResetUID    = core.NewValidationError(nil, core.FieldError{Field: "uid", Error: "invalid value"})
	errInvalidResetToken  = core.NewValidationError(nil, core.FieldError{Field: "token", Error: "invalid value"})
)

type (
	Repository interface {
		// CreateUser returns ErrUsernameExists or ErrEmailExists on a unique constraint violation.
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name, User.Username or User.Email.
		QueryUsers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		// UpdateUser saves all the mutable fields of usr.
		UpdateUser(ctx context.Context, usr User) (User, error)
		// CheckUniqueness returns ErrUsernameExists or ErrEmailExists when taken by any User other than excludedIDs.
		CheckUniqueness(ctx context.Context, username, email string, excludedIDs ...string) error
	}

	Service struct {
		repo    Repository
		mailSvc core.EmailService
		tokens  tokenGenerator
	}
)

func NewService(repo Repository, mailSvc core.EmailService, conf *core.Config) *Service {
	return &Service{
		repo:    repo,
		mailSvc: mailSvc,
		tokens: tokenGenerator{
			secretKey: []byte(conf.SecretKey),
			timeout:   conf.PasswordResetTimeoutDelta,
		},
	}
}

// asFieldError maps username/email uniqueness errors to a core.ValidationError.
func asFieldError(err error) error {
	var field string
	switch errors.Cause(err) {
	case ErrUsernameExists:
		field = "username"
	case ErrEmailExists:
		field = "email"
	default:
		return err
	}
	return core.NewValidationError(err, core.FieldError{Field: field, Error: errors.Cause(err).Error()})
}

func (svc *Service) checkUniqueness(uname, email string, exclUsers ...User) error {
	ids := make([]string, 0, len(exclUsers))
	for _, u := range exclUsers {
		ids = append(ids, u.ID)
	}
	return asFieldError(svc.repo.CheckUniqueness(context.Background(), uname, email, ids...))
}

// Create creates an active User. nu.Role defaults to RoleStudent.
func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	now := core.Now()
	role := nu.Role
	if role == "" {
		role = RoleStudent
	}
	usr := User{
		Name:      nu.Name,
		Username:  nu.Username,
		Email:     nu.Email,
		Role:      role,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	usr, err := svc.repo.CreateUser(ctx, usr)
	if err != nil {
		// the uniqueness pre-check may have raced with another registration
		return User{}, asFieldError(err)
	}
	return usr, nil
}

// Register is the public sign up: always creates a student.
func (svc *Service) Register(ctx context.Context, nu NewUser) (User, error) {
	nu.Role = RoleStudent
	return svc.Create(ctx, nu)
}

// Authenticate checks the credentials of an active User and records their login.
func (svc *Service) Authenticate(ctx context.Context, login, pwd string) (User, error) {
	usr, err := svc.GetByUsernameOrEmail(ctx, login)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return User{}, ErrInvalidCredentials
		}
		return User{}, errors.Wrap(err, "finding user by username or email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return User{}, ErrInvalidCredentials
	}
	if !usr.IsActive {
		return User{}, ErrAccountDeactivated
	}

	usr.LastLogin = core.Now()
	usr, err = svc.repo.UpdateUser(ctx, usr)
	return usr, errors.Wrap(err, "setting lastLogin")
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	return svc.repo.QueryUsers(ctx, filter, core.CleanOrderings(ordering, OrderingFields))
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

func (svc *Service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{UsernameOrEmail: core.CleanString(uname, true /* lower */)})
}

// Update applies a validated UpdateUser on usr. Callers are responsible for restricting Role and IsActive to admins.
func (svc *Service) Update(ctx context.Context, usr User, uu UpdateUser) (User, error) {
	usr.Name = uu.Name
	usr.Username = uu.Username
	usr.Email = uu.Email
	usr.AvatarURL = uu.AvatarURL
	if uu.Role != nil {
		usr.Role = *uu.Role
	}
	if uu.IsActive != nil {
		usr.IsActive = *uu.IsActive
	}
	usr.UpdatedAt = core.Now()

	usr, err := svc.repo.UpdateUser(ctx, usr)
	if err != nil {
		return User{}, asFieldError(err)
	}
	return usr, nil
}

// SetPassword sets a new password without any policy check (admin CLI).
func (svc *Service) SetPassword(ctx context.Context, usr User, pwd string) (User, error) {
	if err := usr.SetPassword(pwd); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = core.Now()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *Service) ChangePassword(ctx context.Context, usr User, cp ChangePassword) (User, error) {
	if err := usr.CheckPassword(cp.OldPassword); err != nil {
		return User{}, ErrInvalidOldPassword
	}
	return svc.SetPassword(ctx, usr, cp.Password)
}

// RequestPasswordReset emails a reset link to the active User owning email.
func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return ErrAccountDeactivated
	}

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: map[string]interface{}{
			"Name":  usr.Name,
			"UID":   EncodeUID(usr),
			"Token": svc.tokens.makeToken(usr),
		},
	})
	return nil
}

// MakeResetToken returns the current password reset token of usr.
func (svc *Service) MakeResetToken(usr User) string {
	return svc.tokens.makeToken(usr)
}

func (svc *Service) ResetPassword(ctx context.Context, data ResetUserPassword) error {
	id, err := decodeUID(data.UID)
	if err != nil {
		return errInvalidResetUID
	}
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return errInvalidResetUID
		}
		return errors.Wrap(err, "resetting password")
	}
	if err = svc.tokens.verifyToken(usr, data.Token); err != nil {
		return errInvalidResetToken
	}

	_, err = svc.SetPassword(ctx, usr, data.Password)
	return errors.Wrap(err, "resetting password")
}
