package database

import (
	"context"
	"fmt"

	"github.com/Raytar/officehours/models"
)

func (db *Database) CreateStudent(ctx context.Context, student *models.Student) error {
	return db.Transaction(ctx, func(tx *Database) error {
		var exists int64
		err := tx.conn.Model(&models.Student{}).
			Where("email = ? OR number = ?", student.Email, student.Number).
			Count(&exists).Error
		if err != nil {
			return storageError("create student", err)
		}
		if exists > 0 {
			return fmt.Errorf("student %s (%d): %w", student.Email, student.Number, models.ErrAlreadyExists)
		}
		return storageError("create student", tx.conn.Create(student).Error)
	})
}

func (db *Database) StudentByEmail(ctx context.Context, email string) (*models.Student, error) {
	var student models.Student
	if err := db.conn.WithContext(ctx).Where("email = ?", email).First(&student).Error; err != nil {
		return nil, storageError(fmt.Sprintf("student %q", email), err)
	}
	return &student, nil
}

func (db *Database) StudentByNumber(ctx context.Context, number int64) (*models.Student, error) {
	var student models.Student
	if err := db.conn.WithContext(ctx).Where("number = ?", number).First(&student).Error; err != nil {
		return nil, storageError(fmt.Sprintf("student %d", number), err)
	}
	return &student, nil
}
