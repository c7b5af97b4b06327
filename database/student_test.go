package database

import (
	"context"
	"errors"
	"testing"

	"github.com/Raytar/officehours/models"
)

func TestCreateAndRetrieveStudent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	addStudent(t, db, 1, "Alice")

	got, err := db.StudentByEmail(ctx, "alice@uni.test")
	if err != nil {
		t.Fatal(err)
	}
	if got.Number != 1 || got.Name != "Alice" {
		t.Errorf("StudentByEmail() = %+v, want number 1 named Alice", got)
	}
	if _, err := db.StudentByNumber(ctx, 1); err != nil {
		t.Errorf("StudentByNumber(1): %v", err)
	}
}

func TestCreateStudentDuplicate(t *testing.T) {
	db := newTestDB(t)
	addStudent(t, db, 1, "Alice")

	err := db.CreateStudent(context.Background(), &models.Student{Number: 2, Name: "Alice", Email: "alice@uni.test"})
	if !errors.Is(err, models.ErrAlreadyExists) {
		t.Errorf("CreateStudent(duplicate email) = %v, want ErrAlreadyExists", err)
	}
	err = db.CreateStudent(context.Background(), &models.Student{Number: 1, Name: "Other", Email: "other@uni.test"})
	if !errors.Is(err, models.ErrAlreadyExists) {
		t.Errorf("CreateStudent(duplicate number) = %v, want ErrAlreadyExists", err)
	}
}

func TestUnknownIdentity(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	if _, err := db.StudentByEmail(ctx, "nobody@uni.test"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("StudentByEmail(unknown) = %v, want ErrNotFound", err)
	}
	if _, err := db.StaffByEmail(ctx, "nobody@staff.test"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("StaffByEmail(unknown) = %v, want ErrNotFound", err)
	}
}
