package database

import (
	"context"
	"fmt"

	"github.com/Raytar/officehours/models"
)

func (db *Database) CreateStaff(ctx context.Context, staff *models.Staff) error {
	return db.Transaction(ctx, func(tx *Database) error {
		var exists int64
		err := tx.conn.Model(&models.Staff{}).
			Where("email = ? OR number = ?", staff.Email, staff.Number).
			Count(&exists).Error
		if err != nil {
			return storageError("create staff", err)
		}
		if exists > 0 {
			return fmt.Errorf("staff %s (%d): %w", staff.Email, staff.Number, models.ErrAlreadyExists)
		}
		return storageError("create staff", tx.conn.Create(staff).Error)
	})
}

func (db *Database) StaffByEmail(ctx context.Context, email string) (*models.Staff, error) {
	var staff models.Staff
	if err := db.conn.WithContext(ctx).Where("email = ?", email).First(&staff).Error; err != nil {
		return nil, storageError(fmt.Sprintf("staff %q", email), err)
	}
	return &staff, nil
}
