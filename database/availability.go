package database

import (
	"context"
	"fmt"
	"time"

	"github.com/Raytar/officehours/models"
)

// ReplaceAvailability deletes any record for staff and inserts a fresh
// Available one for the new shift window. A Helping record is discarded.
func (db *Database) ReplaceAvailability(ctx context.Context, staffNumber int64, start, end time.Time) error {
	return db.Transaction(ctx, func(tx *Database) error {
		err := tx.conn.Where("staff_number = ?", staffNumber).Delete(&models.Availability{}).Error
		if err != nil {
			return storageError("delete availability", err)
		}
		return storageError("insert availability", tx.conn.Create(&models.Availability{
			StaffNumber: staffNumber,
			Status:      models.Available,
			ShiftStart:  start,
			ShiftEnd:    end,
		}).Error)
	})
}

func (db *Database) UpdateAvailabilityStatus(ctx context.Context, staffNumber int64, status models.Status) error {
	res := db.conn.WithContext(ctx).Model(&models.Availability{}).
		Where("staff_number = ?", staffNumber).
		Update("status", status)
	if res.Error != nil {
		return storageError("update availability", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("availability for staff %d: %w", staffNumber, models.ErrNotFound)
	}
	return nil
}

func (db *Database) SetHelping(ctx context.Context, staffNumber int64) error {
	return db.UpdateAvailabilityStatus(ctx, staffNumber, models.Helping)
}

// RecomputeAvailability sets staff Available iff they have no active ticket.
func (db *Database) RecomputeAvailability(ctx context.Context, staffNumber int64, hasActiveTicket bool) error {
	status := models.Available
	if hasActiveTicket {
		status = models.Helping
	}
	return db.UpdateAvailabilityStatus(ctx, staffNumber, status)
}

func (db *Database) AvailabilityFor(ctx context.Context, staffNumber int64) (*models.Availability, error) {
	var a models.Availability
	if err := db.conn.WithContext(ctx).Where("staff_number = ?", staffNumber).First(&a).Error; err != nil {
		return nil, storageError(fmt.Sprintf("availability for staff %d", staffNumber), err)
	}
	return &a, nil
}

// AvailabilitySnapshot lists every availability record with the staff
// member's name, ordered by staff number.
func (db *Database) AvailabilitySnapshot(ctx context.Context) ([]*models.AvailabilityEntry, error) {
	entries := []*models.AvailabilityEntry{}
	err := db.conn.WithContext(ctx).Table("availability").
		Select("availability.staff_number, staff.name, availability.status, availability.shift_start, availability.shift_end").
		Joins("JOIN staff ON staff.number = availability.staff_number").
		Order("availability.staff_number asc").
		Scan(&entries).Error
	if err != nil {
		return nil, storageError("availability snapshot", err)
	}
	return entries, nil
}
