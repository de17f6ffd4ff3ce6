package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/classroom"
)

type classRepository struct {
	db *DB
}

var _ classroom.ClassRepository = (*classRepository)(nil) // interface compliance check

func NewClassRepository(db *DB) *classRepository {
	return &classRepository{db: db}
}

// checkCodes enforces the class_code and invite_code unique constraints.
func (repo *classRepository) checkCodes(cls classroom.Class) error {
	for _, c := range repo.db.classes.filter(nil) {
		if c.ID == cls.ID {
			continue
		}
		if c.ClassCode == cls.ClassCode {
			return classroom.ErrClassCodeTaken
		}
		if cls.InviteCode != "" && c.InviteCode == cls.InviteCode {
			return classroom.ErrInviteCodeTaken
		}
	}
	return nil
}

func (repo *classRepository) CreateClass(_ context.Context, cls classroom.Class) (classroom.Class, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	cls.ID = newID()
	if err := repo.checkCodes(cls); err != nil {
		return classroom.Class{}, err
	}
	if err := repo.db.classes.insert(cls.ID, cls); err != nil {
		return classroom.Class{}, err
	}
	return cls, nil
}

func (repo *classRepository) GetClass(_ context.Context, id string) (classroom.Class, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if !validID(id) {
		return classroom.Class{}, classroom.ErrClassNotFound
	}
	cls, ok := repo.db.classes.get(id)
	if !ok {
		return classroom.Class{}, classroom.ErrClassNotFound
	}
	return cls, nil
}

func (repo *classRepository) GetClassByInviteCode(_ context.Context, code string) (classroom.Class, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if code == "" {
		return classroom.Class{}, classroom.ErrClassNotFound
	}
	cls, ok := repo.db.classes.find(func(c classroom.Class) bool { return c.InviteCode == code })
	if !ok {
		return classroom.Class{}, classroom.ErrClassNotFound
	}
	return cls, nil
}

func (repo *classRepository) QueryClasses(_ context.Context, q classroom.ClassQuery, page core.Pagination) ([]classroom.Class, int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var memberOf map[string]bool
	if q.MemberID != "" {
		memberOf = make(map[string]bool)
		for _, enr := range repo.db.enrollments.filter(nil) {
			if enr.UserID == q.MemberID && enr.IsActive() {
				memberOf[enr.ClassID] = true
			}
		}
	}
	search := strings.ToLower(q.Search)

	classes := repo.db.classes.filter(func(c classroom.Class) bool {
		if memberOf != nil && !c.IsOwner(q.MemberID) && !memberOf[c.ID] {
			return false
		}
		if len(q.Status) > 0 && !containsStatus(q.Status, c.Status) {
			return false
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(c.Name), search) &&
			!strings.Contains(strings.ToLower(c.Description), search) &&
			!strings.Contains(strings.ToLower(c.ClassCode), search) {
			return false
		}
		return true
	})
	// newest first
	reverse(classes)
	sort.SliceStable(classes, func(i, j int) bool { return classes[i].CreatedAt.After(classes[j].CreatedAt) })
	return paginate(classes, page), len(classes), nil
}

func (repo *classRepository) UpdateClass(_ context.Context, cls classroom.Class) (classroom.Class, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.classes.get(cls.ID)
	if !ok {
		return classroom.Class{}, classroom.ErrClassNotFound
	}
	orig.Name = cls.Name
	orig.Description = cls.Description
	orig.Status = cls.Status
	orig.Settings = cls.Settings
	orig.UpdatedAt = cls.UpdatedAt
	if err := repo.db.classes.set(orig.ID, orig); err != nil {
		return classroom.Class{}, err
	}
	return orig, nil
}

func (repo *classRepository) SetInviteCode(_ context.Context, cls classroom.Class) (classroom.Class, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.classes.get(cls.ID)
	if !ok {
		return classroom.Class{}, classroom.ErrClassNotFound
	}
	orig.InviteCode = cls.InviteCode
	orig.InviteCodeExpiresAt = cls.InviteCodeExpiresAt
	orig.UpdatedAt = cls.UpdatedAt
	if err := repo.checkCodes(orig); err != nil {
		return classroom.Class{}, err
	}
	if err := repo.db.classes.set(orig.ID, orig); err != nil {
		return classroom.Class{}, err
	}
	return orig, nil
}

type enrollmentRepository struct {
	db *DB
}

var _ classroom.EnrollmentRepository = (*enrollmentRepository)(nil) // interface compliance check

func NewEnrollmentRepository(db *DB) *enrollmentRepository {
	return &enrollmentRepository{db: db}
}

func (repo *enrollmentRepository) get(classID, userID string) (classroom.Enrollment, bool) {
	return repo.db.enrollments.find(func(e classroom.Enrollment) bool {
		return e.ClassID == classID && e.UserID == userID
	})
}

func (repo *enrollmentRepository) CreateEnrollment(_ context.Context, enr classroom.Enrollment) (classroom.Enrollment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.classes.get(enr.ClassID); !ok {
		return classroom.Enrollment{}, classroom.ErrClassNotFound
	}
	if _, ok := repo.get(enr.ClassID, enr.UserID); ok {
		return classroom.Enrollment{}, classroom.ErrAlreadyEnrolled
	}
	enr.ID = newID()
	if err := repo.db.enrollments.insert(enr.ID, enr); err != nil {
		return classroom.Enrollment{}, err
	}
	return enr, nil
}

func (repo *enrollmentRepository) GetEnrollment(_ context.Context, classID, userID string) (classroom.Enrollment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	enr, ok := repo.get(classID, userID)
	if !ok {
		return classroom.Enrollment{}, classroom.ErrEnrollmentNotFound
	}
	return enr, nil
}

func (repo *enrollmentRepository) QueryEnrollments(_ context.Context, classID string) ([]classroom.Enrollment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	enrollments := repo.db.enrollments.filter(func(e classroom.Enrollment) bool { return e.ClassID == classID })
	sort.SliceStable(enrollments, func(i, j int) bool { return enrollments[i].JoinedAt.Before(enrollments[j].JoinedAt) })
	return enrollments, nil
}

func (repo *enrollmentRepository) UpdateEnrollment(_ context.Context, enr classroom.Enrollment) (classroom.Enrollment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.enrollments.get(enr.ID)
	if !ok {
		return classroom.Enrollment{}, classroom.ErrEnrollmentNotFound
	}
	orig.Role = enr.Role
	orig.Status = enr.Status
	orig.LastActivity = enr.LastActivity
	if err := repo.db.enrollments.set(orig.ID, orig); err != nil {
		return classroom.Enrollment{}, err
	}
	return orig, nil
}

func (repo *enrollmentRepository) TouchEnrollment(_ context.Context, id string, at time.Time) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	enr, ok := repo.db.enrollments.get(id)
	if !ok || !enr.IsActive() {
		return nil
	}
	enr.LastActivity = &at
	return repo.db.enrollments.set(enr.ID, enr)
}

func (repo *enrollmentRepository) DeleteEnrollment(_ context.Context, classID, userID string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	enr, ok := repo.get(classID, userID)
	if !ok {
		return classroom.ErrEnrollmentNotFound
	}
	return repo.db.enrollments.remove(enr.ID)
}

func containsStatus[S ~string](list []S, s S) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
