package database

import (
	"context"
	"errors"
	"testing"

	"github.com/Raytar/officehours/models"
	"github.com/google/go-cmp/cmp"
)

func TestInsertTicketNumbering(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	addStudent(t, db, 1, "Alice")
	addStaff(t, db, 100, "Tom")

	for want := int64(1); want <= 5; want++ {
		if got := enqueue(t, db, 1); got.Number != want || got.Issued != want {
			t.Fatalf("ticket number = %d (issued %d), want %d", got.Number, got.Issued, want)
		}
	}

	// retiring the highest ticket must not make its number available again
	if _, err := db.ClaimTicket(ctx, 5, 100, epoch); err != nil {
		t.Fatal(err)
	}
	if _, err := db.RetireTicket(ctx, 5, epoch); err != nil {
		t.Fatal(err)
	}
	if got := enqueue(t, db, 1); got.Number != 6 {
		t.Errorf("ticket number after retirement = %d, want 6", got.Number)
	}
	max, err := db.MaxIssued(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if max != 6 {
		t.Errorf("MaxIssued() = %d, want 6", max)
	}
}

func TestClaimTicket(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	addStudent(t, db, 1, "Alice")
	addStaff(t, db, 100, "Tom")
	addStaff(t, db, 101, "Tina")
	enqueue(t, db, 1)

	ticket, err := db.ClaimTicket(ctx, 1, 100, epoch)
	if err != nil {
		t.Fatal(err)
	}
	if ticket.State() != models.Assigned || ticket.StaffNumber == nil || *ticket.StaffNumber != 100 {
		t.Errorf("ClaimTicket() = %+v, want assigned to 100", ticket)
	}
	if _, err := db.ClaimTicket(ctx, 1, 101, epoch); !errors.Is(err, models.ErrAlreadyAssigned) {
		t.Errorf("second ClaimTicket() = %v, want ErrAlreadyAssigned", err)
	}
	if _, err := db.ClaimTicket(ctx, 42, 100, epoch); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("ClaimTicket(42) = %v, want ErrNotFound", err)
	}

	if _, err := db.RetireTicket(ctx, 1, epoch); err != nil {
		t.Fatal(err)
	}
	if _, err := db.ClaimTicket(ctx, 1, 101, epoch); !errors.Is(err, models.ErrAlreadyRetired) {
		t.Errorf("ClaimTicket(retired) = %v, want ErrAlreadyRetired", err)
	}
}

func TestRetireTicket(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	addStudent(t, db, 1, "Alice")
	addStaff(t, db, 100, "Tom")
	enqueue(t, db, 1)

	if _, err := db.RetireTicket(ctx, 1, epoch); !errors.Is(err, models.ErrValidation) {
		t.Errorf("RetireTicket(waiting) = %v, want ErrValidation", err)
	}
	if _, err := db.ClaimTicket(ctx, 1, 100, epoch); err != nil {
		t.Fatal(err)
	}
	ticket, err := db.RetireTicket(ctx, 1, epoch)
	if err != nil {
		t.Fatal(err)
	}
	if ticket.Number != models.RetiredNumber || ticket.FinishedAt == nil || ticket.State() != models.Retired {
		t.Errorf("RetireTicket() = %+v, want retired sentinel", ticket)
	}
	if _, err := db.RetireTicket(ctx, 1, epoch); !errors.Is(err, models.ErrAlreadyRetired) {
		t.Errorf("second RetireTicket() = %v, want ErrAlreadyRetired", err)
	}
	if _, err := db.RetireTicket(ctx, 7, epoch); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("RetireTicket(7) = %v, want ErrNotFound", err)
	}
}

func TestActiveTickets(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	addStudent(t, db, 1, "Alice")
	addStudent(t, db, 2, "Bob")
	addStudent(t, db, 3, "Carol")
	addStaff(t, db, 100, "Tom")
	for _, s := range []int64{1, 2, 3} {
		enqueue(t, db, s)
	}
	if _, err := db.ClaimTicket(ctx, 1, 100, epoch); err != nil {
		t.Fatal(err)
	}
	if _, err := db.RetireTicket(ctx, 1, epoch); err != nil {
		t.Fatal(err)
	}
	if _, err := db.ClaimTicket(ctx, 2, 100, epoch); err != nil {
		t.Fatal(err)
	}

	entries, err := db.ActiveTickets(ctx)
	if err != nil {
		t.Fatal(err)
	}
	type row struct {
		Number int64
		Name   string
		State  models.TicketState
		Staff  string
	}
	var got []row
	for _, e := range entries {
		r := row{Number: e.Number, Name: e.StudentName, State: e.State}
		if e.StaffName != nil {
			r.Staff = *e.StaffName
		}
		got = append(got, r)
	}
	want := []row{
		{Number: 2, Name: "Bob", State: models.Assigned, Staff: "Tom"},
		{Number: 3, Name: "Carol", State: models.Waiting},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ActiveTickets() mismatch (-want +got):\n%s", diff)
	}
}

func TestQueuePosition(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	for i, name := range []string{"A", "B", "C", "D"} {
		addStudent(t, db, int64(i+1), name)
	}
	addStaff(t, db, 100, "Tom")
	for _, s := range []int64{1, 2, 3, 4} {
		enqueue(t, db, s)
	}
	if _, err := db.ClaimTicket(ctx, 3, 100, epoch); err != nil {
		t.Fatal(err)
	}

	check := func(student int64, want int) {
		t.Helper()
		if pos, err := db.QueuePosition(ctx, student); err != nil {
			t.Errorf("QueuePosition(%d): %v", student, err)
		} else if pos != want {
			t.Errorf("QueuePosition(%d): got %d, want %d", student, pos, want)
		}
	}
	check(1, 1)
	check(2, 2)
	check(3, 0)
	check(4, 3)

	length, err := db.QueueLength(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if length != 3 {
		t.Errorf("QueueLength() = %d, want 3", length)
	}
	active, err := db.ActiveCountForStaff(ctx, 100)
	if err != nil {
		t.Fatal(err)
	}
	if active != 1 {
		t.Errorf("ActiveCountForStaff(100) = %d, want 1", active)
	}
}
