package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) *userRepository {
	return &userRepository{db: db}
}

func (repo *userRepository) checkUniqueness(username, email string, excludedIDs ...string) error {
	excluded := make(map[string]bool, len(excludedIDs))
	for _, id := range excludedIDs {
		excluded[id] = true
	}
	for _, usr := range repo.db.users.filter(nil) {
		if excluded[usr.ID] {
			continue
		}
		if usr.Username == username {
			return user.ErrUsernameExists
		}
		if usr.Email == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CheckUniqueness(_ context.Context, username, email string, excludedIDs ...string) error {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.checkUniqueness(username, email, excludedIDs...)
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if err := repo.checkUniqueness(usr.Username, usr.Email); err != nil {
		return user.User{}, err
	}
	usr.ID = newID()
	if err := repo.db.users.insert(usr.ID, usr); err != nil {
		return user.User{}, err
	}
	return usr, nil
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter) (user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var usr user.User
	var ok bool
	switch {
	case filter.ID != "":
		if validID(filter.ID) {
			usr, ok = repo.db.users.get(filter.ID)
		}
	case filter.Username != "":
		usr, ok = repo.db.users.find(func(u user.User) bool { return u.Username == filter.Username })
	case filter.Email != "":
		usr, ok = repo.db.users.find(func(u user.User) bool { return u.Email == filter.Email })
	case filter.UsernameOrEmail != "":
		usr, ok = repo.db.users.find(func(u user.User) bool {
			return u.Username == filter.UsernameOrEmail || u.Email == filter.UsernameOrEmail
		})
	}
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}

func (repo *userRepository) QueryUsers(_ context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	users := repo.db.users.filter(func(u user.User) bool {
		return filter == nil || matchUser(u, filter)
	})
	if len(ordering) > 0 {
		sort.SliceStable(users, func(i, j int) bool { return lessUser(users[i], users[j], ordering) })
	}
	return users, nil
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.users.get(usr.ID); !ok {
		return user.User{}, user.ErrNotFound
	}
	if err := repo.checkUniqueness(usr.Username, usr.Email, usr.ID); err != nil {
		return user.User{}, err
	}
	if err := repo.db.users.set(usr.ID, usr); err != nil {
		return user.User{}, err
	}
	return usr, nil
}

func matchUser(u user.User, filter *user.QueryFilter) bool {
	if filter.IDs != nil && !containsString(filter.IDs, u.ID) {
		return false
	}
	if filter.Search != "" {
		s := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(u.Name), s) &&
			!strings.Contains(strings.ToLower(u.Username), s) &&
			!strings.Contains(strings.ToLower(u.Email), s) {
			return false
		}
	}
	if len(filter.Roles) > 0 {
		found := false
		for _, r := range filter.Roles {
			if u.Role == r {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.IsActive != nil && u.IsActive != *filter.IsActive {
		return false
	}
	if !filter.CreatedFrom.IsZero() && u.CreatedAt.Before(filter.CreatedFrom) {
		return false
	}
	if !filter.CreatedTo.IsZero() && u.CreatedAt.After(filter.CreatedTo) {
		return false
	}
	return true
}

// lessUser compares two users on the storage columns of user.OrderingFields.
func lessUser(a, b user.User, ordering []core.DBOrdering) bool {
	for _, ord := range ordering {
		var cmp int
		switch ord.Field {
		case "name":
			cmp = strings.Compare(a.Name, b.Name)
		case "username":
			cmp = strings.Compare(a.Username, b.Username)
		case "email":
			cmp = strings.Compare(a.Email, b.Email)
		case "role":
			cmp = strings.Compare(string(a.Role), string(b.Role))
		case "is_active":
			cmp = compareBool(a.IsActive, b.IsActive)
		case "created_at":
			cmp = a.CreatedAt.Compare(b.CreatedAt)
		case "last_login":
			cmp = a.LastLogin.Compare(b.LastLogin)
		}
		if cmp == 0 {
			continue
		}
		if ord.Ascending {
			return cmp < 0
		}
		return cmp > 0
	}
	return false
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	}
	return 1
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
