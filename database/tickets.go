package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Raytar/officehours/models"
	"gorm.io/gorm"
)

// MaxIssued returns the highest ticket number ever issued, or 0 if the ledger
// is empty. Retired tickets count; their numbers are never reused.
func (db *Database) MaxIssued(ctx context.Context) (int64, error) {
	var max int64
	err := db.conn.WithContext(ctx).Model(&models.Ticket{}).
		Select("COALESCE(MAX(issued), 0)").
		Scan(&max).Error
	if err != nil {
		return 0, storageError("max ticket number", err)
	}
	return max, nil
}

// InsertTicket appends a Waiting ticket numbered 1 + MaxIssued. Callers that
// need gap-free numbering under concurrency must run it in a transaction and
// serialize enqueues.
func (db *Database) InsertTicket(ctx context.Context, studentNumber int64, question string, now time.Time) (*models.Ticket, error) {
	var ticket *models.Ticket
	err := db.Transaction(ctx, func(tx *Database) error {
		max, err := tx.MaxIssued(ctx)
		if err != nil {
			return err
		}
		ticket = &models.Ticket{
			Number:        max + 1,
			Issued:        max + 1,
			StudentNumber: studentNumber,
			Question:      question,
			RequestedAt:   now,
		}
		return storageError("insert ticket", tx.conn.Create(ticket).Error)
	})
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

// Ticket looks a ticket up by the number it was issued with, so retired
// tickets are still found.
func (db *Database) Ticket(ctx context.Context, number int64) (*models.Ticket, error) {
	var ticket models.Ticket
	if err := db.conn.WithContext(ctx).Where("issued = ?", number).First(&ticket).Error; err != nil {
		return nil, storageError(fmt.Sprintf("ticket %d", number), err)
	}
	return &ticket, nil
}

// ActiveTickets returns every non-retired ticket joined with its owner's name
// and, when claimed, the assigned staff member's name, ordered by number.
func (db *Database) ActiveTickets(ctx context.Context) ([]*models.QueueEntry, error) {
	entries := []*models.QueueEntry{}
	err := db.conn.WithContext(ctx).Table("tickets").
		Select(`tickets.number, tickets.student_number, students.name AS student_name,
			tickets.question, tickets.requested_at, tickets.staff_number,
			staff.name AS staff_name, tickets.assigned_at`).
		Joins("JOIN students ON students.number = tickets.student_number").
		Joins("LEFT JOIN staff ON staff.number = tickets.staff_number").
		Where("tickets.number > ?", 0).
		Order("tickets.number asc").
		Scan(&entries).Error
	if err != nil {
		return nil, storageError("active tickets", err)
	}
	for _, e := range entries {
		e.State = models.Waiting
		if e.AssignedAt != nil {
			e.State = models.Assigned
		}
	}
	return entries, nil
}

// ClaimTicket assigns a Waiting ticket to staff. The update only matches a
// ticket whose assigned_at is still unset, so of two racing claims exactly one
// succeeds and the other gets ErrAlreadyAssigned.
func (db *Database) ClaimTicket(ctx context.Context, number, staffNumber int64, now time.Time) (*models.Ticket, error) {
	res := db.conn.WithContext(ctx).Model(&models.Ticket{}).
		Where("issued = ? AND assigned_at IS NULL AND finished_at IS NULL", number).
		Updates(map[string]interface{}{
			"staff_number": staffNumber,
			"assigned_at":  now,
		})
	if res.Error != nil {
		return nil, storageError(fmt.Sprintf("claim ticket %d", number), res.Error)
	}
	ticket, err := db.Ticket(ctx, number)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 {
		if ticket.State() == models.Retired {
			return nil, fmt.Errorf("claim ticket %d: %w", number, models.ErrAlreadyRetired)
		}
		return nil, fmt.Errorf("claim ticket %d: %w", number, models.ErrAlreadyAssigned)
	}
	return ticket, nil
}

// RetireTicket marks an Assigned ticket finished and overwrites its number
// with models.RetiredNumber. Retiring twice fails with ErrAlreadyRetired and a
// ticket that was never claimed cannot be retired.
func (db *Database) RetireTicket(ctx context.Context, number int64, now time.Time) (*models.Ticket, error) {
	res := db.conn.WithContext(ctx).Model(&models.Ticket{}).
		Where("issued = ? AND assigned_at IS NOT NULL AND finished_at IS NULL", number).
		Updates(map[string]interface{}{
			"number":      models.RetiredNumber,
			"finished_at": now,
		})
	if res.Error != nil {
		return nil, storageError(fmt.Sprintf("retire ticket %d", number), res.Error)
	}
	ticket, err := db.Ticket(ctx, number)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 {
		if ticket.State() == models.Retired {
			return nil, fmt.Errorf("retire ticket %d: %w", number, models.ErrAlreadyRetired)
		}
		return nil, fmt.Errorf("retire ticket %d: not claimed yet: %w", number, models.ErrValidation)
	}
	return ticket, nil
}

// ActiveCountForStaff counts the non-retired tickets assigned to staff.
func (db *Database) ActiveCountForStaff(ctx context.Context, staffNumber int64) (int64, error) {
	var count int64
	err := db.conn.WithContext(ctx).Model(&models.Ticket{}).
		Where("staff_number = ? AND number > ?", staffNumber, 0).
		Count(&count).Error
	if err != nil {
		return 0, storageError("count staff tickets", err)
	}
	return count, nil
}

// QueueLength returns the number of Waiting tickets.
func (db *Database) QueueLength(ctx context.Context) (int64, error) {
	var count int64
	err := db.conn.WithContext(ctx).Model(&models.Ticket{}).
		Where("number > ? AND assigned_at IS NULL", 0).
		Count(&count).Error
	if err != nil {
		return 0, storageError("queue length", err)
	}
	return count, nil
}

// QueuePosition returns the 1-based position of the student's earliest Waiting
// ticket among all Waiting tickets, or 0 if the student is not waiting.
func (db *Database) QueuePosition(ctx context.Context, studentNumber int64) (int, error) {
	var first models.Ticket
	err := db.conn.WithContext(ctx).
		Where("student_number = ? AND number > ? AND assigned_at IS NULL", studentNumber, 0).
		Order("number asc").
		First(&first).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	} else if err != nil {
		return -1, storageError("queue position", err)
	}

	var ahead int64
	err = db.conn.WithContext(ctx).Model(&models.Ticket{}).
		Where("number > ? AND number <= ? AND assigned_at IS NULL", 0, first.Number).
		Count(&ahead).Error
	if err != nil {
		return -1, storageError("queue position", err)
	}
	return int(ahead), nil
}
