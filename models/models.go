package models

import (
	"time"
)

type Student struct {
	Number       int64  `gorm:"primaryKey;autoIncrement:false"`
	Name         string `gorm:"not null"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string
	CreatedAt    time.Time
}

func (Student) TableName() string { return "students" }

type Staff struct {
	Number       int64  `gorm:"primaryKey;autoIncrement:false"`
	Name         string `gorm:"not null"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string
	CreatedAt    time.Time
}

func (Staff) TableName() string { return "staff" }

// RetiredNumber replaces a ticket's number once it has been retired, which
// removes it from every active view.
const RetiredNumber int64 = -1

// Ticket is one student's queued help request. Issued is the number the ticket
// was created with and never changes; Number is overwritten with RetiredNumber
// on retirement.
type Ticket struct {
	ID            uint       `gorm:"primaryKey" json:"-"`
	Number        int64      `gorm:"index;not null" json:"number"`
	Issued        int64      `gorm:"uniqueIndex;not null" json:"issued"`
	StudentNumber int64      `gorm:"index;not null" json:"student_number"`
	Question      string     `json:"question"`
	RequestedAt   time.Time  `json:"requested_at"`
	StaffNumber   *int64     `gorm:"index" json:"staff_number,omitempty"`
	AssignedAt    *time.Time `json:"assigned_at,omitempty"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}

func (Ticket) TableName() string { return "tickets" }

func (t *Ticket) State() TicketState {
	switch {
	case t.FinishedAt != nil:
		return Retired
	case t.AssignedAt != nil:
		return Assigned
	default:
		return Waiting
	}
}

type TicketState string

const (
	Waiting  TicketState = "waiting"
	Assigned TicketState = "assigned"
	Retired  TicketState = "retired"
)

type Status string

const (
	Available Status = "available"
	Helping   Status = "helping"
)

// Availability is a staff member's state for the current shift. There is at
// most one record per staff member.
type Availability struct {
	StaffNumber int64     `gorm:"primaryKey;autoIncrement:false"`
	Status      Status    `gorm:"not null"`
	ShiftStart  time.Time `gorm:"not null"`
	ShiftEnd    time.Time `gorm:"not null"`
}

func (Availability) TableName() string { return "availability" }

// QueueEntry is an active ticket joined with the names of its owner and, once
// claimed, its assigned staff member.
type QueueEntry struct {
	Number        int64       `json:"number"`
	StudentNumber int64       `json:"student_number"`
	StudentName   string      `json:"student_name"`
	Question      string      `json:"question"`
	RequestedAt   time.Time   `json:"requested_at"`
	StaffNumber   *int64      `json:"staff_number,omitempty"`
	StaffName     *string     `json:"staff_name,omitempty"`
	AssignedAt    *time.Time  `json:"assigned_at,omitempty"`
	State         TicketState `gorm:"-" json:"state"`
}

type AvailabilityEntry struct {
	StaffNumber int64     `json:"staff_number"`
	Name        string    `json:"name"`
	Status      Status    `json:"status"`
	ShiftStart  time.Time `json:"shift_start"`
	ShiftEnd    time.Time `json:"shift_end"`
}
