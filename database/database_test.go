package database

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/Raytar/officehours/models"
	"github.com/sirupsen/logrus"
)

var epoch = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

// newTestDB opens an in-memory database private to the calling test.
func newTestDB(t *testing.T) *Database {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := OpenDatabase(fmt.Sprintf("file:%s?mode=memory&cache=shared", name), logrus.New())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func addStudent(t *testing.T, db *Database, number int64, name string) *models.Student {
	t.Helper()
	s := &models.Student{Number: number, Name: name, Email: strings.ToLower(name) + "@uni.test"}
	if err := db.CreateStudent(context.Background(), s); err != nil {
		t.Fatalf("CreateStudent(%s): %v", name, err)
	}
	return s
}

func addStaff(t *testing.T, db *Database, number int64, name string) *models.Staff {
	t.Helper()
	s := &models.Staff{Number: number, Name: name, Email: strings.ToLower(name) + "@staff.test"}
	if err := db.CreateStaff(context.Background(), s); err != nil {
		t.Fatalf("CreateStaff(%s): %v", name, err)
	}
	return s
}

func enqueue(t *testing.T, db *Database, student int64) *models.Ticket {
	t.Helper()
	ticket, err := db.InsertTicket(context.Background(), student, "question", epoch)
	if err != nil {
		t.Fatalf("InsertTicket(%d): %v", student, err)
	}
	return ticket
}
