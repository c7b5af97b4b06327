package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/Raytar/officehours/models"
	"gorm.io/gorm"
)

var kinds = []error{
	models.ErrNotFound,
	models.ErrAlreadyAssigned,
	models.ErrAlreadyRetired,
	models.ErrAlreadyExists,
	models.ErrValidation,
	models.ErrBadCredentials,
	models.ErrStorageUnavailable,
	models.ErrTimeout,
}

// storageError translates an error from GORM into one of the models error
// kinds. Errors that already carry a kind pass through unchanged.
func storageError(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range kinds {
		if errors.Is(err, kind) {
			return err
		}
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", op, models.ErrNotFound)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s: %w", op, models.ErrAlreadyExists)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", op, models.ErrTimeout)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, models.ErrStorageUnavailable, err)
}
