package service

import (
	"errors"
	"fmt"
	"time"

	"academy/internal/apperror"

	"gorm.io/gorm"
)

// Actor is the authenticated caller of a service operation. A zero Actor is the scheduler.
type Actor struct {
	ID   uint
	Role string
}

const (
	RoleAdmin      = "admin"
	RoleInstructor = "instructor"
	RoleStudent    = "student"
)

func (a Actor) IsAdmin() bool  { return a.Role == RoleAdmin }
func (a Actor) IsSystem() bool { return a.ID == 0 }

// Clock returns the current time. Tests substitute a fixed one.
type Clock func() time.Time

const dateLayout = "2006-01-02"

// storeErr maps a repository error onto the domain error kinds.
func storeErr(op, entity string, err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperror.NotFound(entity)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s %w", entity, apperror.ErrConflict)
	default:
		return apperror.Persistence(op, err)
	}
}
