package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
)

const userColumns = `id, name, username, email, role, is_active, avatar_url, password_hash, created_at, updated_at, last_login`

type userRow struct {
	ID           string      `db:"id"`
	Name         string      `db:"name"`
	Username     string      `db:"username"`
	Email        string      `db:"email"`
	Role         string      `db:"role"`
	IsActive     bool        `db:"is_active"`
	AvatarURL    null.String `db:"avatar_url"`
	PasswordHash []byte      `db:"password_hash"`
	CreatedAt    time.Time   `db:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at"`
	LastLogin    null.Time   `db:"last_login"`
}

func toUserRow(usr user.User) userRow {
	return userRow{
		ID:           usr.ID,
		Name:         usr.Name,
		Username:     usr.Username,
		Email:        usr.Email,
		Role:         string(usr.Role),
		IsActive:     usr.IsActive,
		AvatarURL:    null.NewString(usr.AvatarURL, usr.AvatarURL != ""),
		PasswordHash: usr.PasswordHash,
		CreatedAt:    usr.CreatedAt.UTC(),
		UpdatedAt:    usr.UpdatedAt.UTC(),
		LastLogin:    null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}
}

func (r userRow) toUser() user.User {
	return user.User{
		ID:           r.ID,
		Name:         r.Name,
		Username:     r.Username,
		Email:        r.Email,
		Role:         user.Role(r.Role),
		IsActive:     r.IsActive,
		AvatarURL:    r.AvatarURL.String,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
		LastLogin:    r.LastLogin.Time.UTC(),
	}
}

type userRepository struct {
	exec Executor
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(exec Executor) *userRepository {
	return &userRepository{exec: exec}
}

func (repo *userRepository) CheckUniqueness(ctx context.Context, username, email string, excludedIDs ...string) error {
	w := &where{}
	w.add("(username = ? OR email = ?)", username, email)
	if len(excludedIDs) > 0 {
		w.add("id NOT IN (?)", excludedIDs)
	}
	q, args, err := w.build(repo.exec, `SELECT username, email FROM "user"`+w.String()+" LIMIT 1")
	if err != nil {
		return err
	}

	var taken struct {
		Username string `db:"username"`
		Email    string `db:"email"`
	}
	switch err = sqlx.GetContext(ctx, repo.exec, &taken, q, args...); {
	case errors.Cause(err) == sql.ErrNoRows:
		return nil
	case err != nil:
		return errors.Wrap(err, "checking user uniqueness")
	case taken.Username == username:
		return user.ErrUsernameExists
	}
	return user.ErrEmailExists
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = uuid.New().String()
	_, err := sqlx.NamedExecContext(ctx, repo.exec, `
		INSERT INTO "user" (`+userColumns+`)
		VALUES (:id, :name, :username, :email, :role, :is_active, :avatar_url, :password_hash, :created_at, :updated_at, :last_login)`,
		toUserRow(usr))
	if err != nil {
		return user.User{}, trapConstraintErr(err, "inserting user")
	}
	return usr, nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	w := &where{}
	switch {
	case filter.ID != "":
		if !validID(filter.ID) {
			return user.User{}, user.ErrNotFound
		}
		w.add("id = ?", filter.ID)
	case filter.Username != "":
		w.add("username = ?", filter.Username)
	case filter.Email != "":
		w.add("email = ?", filter.Email)
	case filter.UsernameOrEmail != "":
		w.add("(username = ? OR email = ?)", filter.UsernameOrEmail, filter.UsernameOrEmail)
	default:
		return user.User{}, user.ErrNotFound
	}
	q, args, err := w.build(repo.exec, `SELECT `+userColumns+` FROM "user"`+w.String()+" LIMIT 1")
	if err != nil {
		return user.User{}, err
	}

	var row userRow
	if err = sqlx.GetContext(ctx, repo.exec, &row, q, args...); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "getting user")
	}
	return row.toUser(), nil
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	w := &where{}
	if filter != nil {
		if filter.IDs != nil {
			if len(filter.IDs) == 0 {
				return []user.User{}, nil
			}
			ids := make([]string, 0, len(filter.IDs))
			for _, id := range filter.IDs {
				if validID(id) {
					ids = append(ids, id)
				}
			}
			if len(ids) == 0 {
				return []user.User{}, nil
			}
			w.add("id IN (?)", ids)
		}
		// users with Name, Username or Email matching the search keyword
		if filter.Search != "" {
			val := likePattern(filter.Search)
			w.add("(name ILIKE ? OR username ILIKE ? OR email ILIKE ?)", val, val, val)
		}
		if len(filter.Roles) > 0 {
			w.add("role IN (?)", toStrings(filter.Roles))
		}
		if filter.IsActive != nil {
			w.add("is_active = ?", *filter.IsActive)
		}
		if !filter.CreatedFrom.IsZero() {
			w.add("created_at >= ?", filter.CreatedFrom.UTC())
		}
		if !filter.CreatedTo.IsZero() {
			w.add("created_at <= ?", filter.CreatedTo.UTC())
		}
	}
	q, args, err := w.build(repo.exec, `SELECT `+userColumns+` FROM "user"`+w.String()+orderBy(ordering, "created_at"))
	if err != nil {
		return nil, err
	}

	var rows []userRow
	if err = sqlx.SelectContext(ctx, repo.exec, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.toUser())
	}
	return users, nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	if !validID(usr.ID) {
		return user.User{}, user.ErrNotFound
	}
	res, err := sqlx.NamedExecContext(ctx, repo.exec, `
		UPDATE "user"
		SET name = :name, username = :username, email = :email, role = :role, is_active = :is_active,
			avatar_url = :avatar_url, password_hash = :password_hash, updated_at = :updated_at, last_login = :last_login
		WHERE id = :id`,
		toUserRow(usr))
	if err != nil {
		return user.User{}, trapConstraintErr(err, "updating user")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}
