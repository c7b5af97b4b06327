package officehours

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Raytar/officehours/broadcast"
	"github.com/Raytar/officehours/database"
	"github.com/Raytar/officehours/models"
)

// DefaultDispatchTimeout bounds each coordinator operation when no timeout is
// configured.
const DefaultDispatchTimeout = 5 * time.Second

// Broadcaster delivers events to connected clients.
type Broadcaster interface {
	Register(identity string, conn broadcast.Conn)
	Unregister(identity string, conn broadcast.Conn) bool
	Broadcast(ev broadcast.Event)
	NotifyOne(identity string, ev broadcast.Event) bool
}

type EnqueueRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Question string `json:"question" validate:"required"`
}

type ShiftRequest struct {
	Email string    `json:"email" validate:"required,email"`
	Start time.Time `json:"start" validate:"required"`
	End   time.Time `json:"end" validate:"required,gtfield=Start"`
}

// DispatchRequest names a ticket and the staff member acting on it.
type DispatchRequest struct {
	Number int64  `json:"number" validate:"gt=0"`
	Email  string `json:"email" validate:"required,email"`
}

// AssignmentResult is the outcome of a successful Assign. Owner is the email
// of the student whose ticket was claimed; they receive a helpIncoming event.
type AssignmentResult struct {
	Ticket *models.Ticket `json:"ticket"`
	Owner  string         `json:"owner"`
}

// Coordinator matches staff to waiting tickets. Every mutation runs in a
// single storage transaction, and mutations are serialized so that ticket
// numbers are gap-free and snapshots are published in commit order.
type Coordinator struct {
	db      *database.Database
	out     Broadcaster
	timeout time.Duration
	now     func() time.Time

	// OnPublishError is called when a snapshot could not be read after a
	// successful mutation. The mutation itself stays committed.
	OnPublishError func(event string, err error)

	mu sync.Mutex
}

func NewCoordinator(db *database.Database, out Broadcaster, timeout time.Duration) *Coordinator {
	if timeout <= 0 {
		timeout = DefaultDispatchTimeout
	}
	return &Coordinator{
		db:      db,
		out:     out,
		timeout: timeout,
		now:     time.Now,
	}
}

func (c *Coordinator) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.timeout)
}

// fail wraps err with op, reporting a deadline hit as models.ErrTimeout even
// when storage surfaced it as something else.
func fail(ctx context.Context, op string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, models.ErrTimeout) {
		return fmt.Errorf("%s: %w: %w", op, models.ErrTimeout, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Enqueue files a new Waiting ticket for the student with the given email.
func (c *Coordinator) Enqueue(ctx context.Context, req EnqueueRequest) (*models.Ticket, error) {
	if err := validateRequest(req); err != nil {
		return nil, fmt.Errorf("enqueue: %w", err)
	}
	ctx, cancel := c.bound(ctx)
	defer cancel()

	c.mu.Lock()
	defer c.mu.Unlock()

	var ticket *models.Ticket
	err := c.db.Transaction(ctx, func(tx *database.Database) error {
		student, err := tx.StudentByEmail(ctx, req.Email)
		if err != nil {
			return err
		}
		ticket, err = tx.InsertTicket(ctx, student.Number, req.Question, c.now())
		return err
	})
	if err != nil {
		return nil, fail(ctx, "enqueue", err)
	}
	c.publishQueue(ctx)
	return ticket, nil
}

func (c *Coordinator) ListQueue(ctx context.Context) ([]*models.QueueEntry, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()
	entries, err := c.db.ActiveTickets(ctx)
	if err != nil {
		return nil, fail(ctx, "list queue", err)
	}
	return entries, nil
}

func (c *Coordinator) ListAvailability(ctx context.Context) ([]*models.AvailabilityEntry, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()
	entries, err := c.db.AvailabilitySnapshot(ctx)
	if err != nil {
		return nil, fail(ctx, "list availability", err)
	}
	return entries, nil
}

// QueueLength returns the number of Waiting tickets.
func (c *Coordinator) QueueLength(ctx context.Context) (int64, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()
	n, err := c.db.QueueLength(ctx)
	if err != nil {
		return 0, fail(ctx, "queue length", err)
	}
	return n, nil
}

// Position returns the student's 1-based place among Waiting tickets, or 0
// if they have none.
func (c *Coordinator) Position(ctx context.Context, email string) (int, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()
	student, err := c.db.StudentByEmail(ctx, email)
	if err != nil {
		return 0, fail(ctx, "position", err)
	}
	pos, err := c.db.QueuePosition(ctx, student.Number)
	if err != nil {
		return 0, fail(ctx, "position", err)
	}
	return pos, nil
}

// BeginShift records a staff login. Any earlier record for the staff member,
// including a Helping one, is replaced by a fresh Available record.
func (c *Coordinator) BeginShift(ctx context.Context, req ShiftRequest) error {
	if err := validateRequest(req); err != nil {
		return fmt.Errorf("begin shift: %w", err)
	}
	ctx, cancel := c.bound(ctx)
	defer cancel()

	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.db.Transaction(ctx, func(tx *database.Database) error {
		staff, err := tx.StaffByEmail(ctx, req.Email)
		if err != nil {
			return err
		}
		return tx.ReplaceAvailability(ctx, staff.Number, req.Start, req.End)
	})
	if err != nil {
		return fail(ctx, "begin shift", err)
	}
	c.publishAvailability(ctx)
	return nil
}

// Assign claims a Waiting ticket for a staff member and marks them Helping.
// Both updates commit together or not at all. The ticket's owner is sent a
// helpIncoming event.
func (c *Coordinator) Assign(ctx context.Context, req DispatchRequest) (*AssignmentResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, fmt.Errorf("assign: %w", err)
	}
	ctx, cancel := c.bound(ctx)
	defer cancel()

	c.mu.Lock()
	defer c.mu.Unlock()

	var result AssignmentResult
	err := c.db.Transaction(ctx, func(tx *database.Database) error {
		staff, err := tx.StaffByEmail(ctx, req.Email)
		if err != nil {
			return err
		}
		if _, err := tx.AvailabilityFor(ctx, staff.Number); err != nil {
			return fmt.Errorf("staff %s has no shift: %w", req.Email, err)
		}
		ticket, err := tx.Ticket(ctx, req.Number)
		if err != nil {
			return err
		}
		switch ticket.State() {
		case models.Assigned:
			return fmt.Errorf("ticket %d: %w", req.Number, models.ErrAlreadyAssigned)
		case models.Retired:
			return fmt.Errorf("ticket %d: %w", req.Number, models.ErrAlreadyRetired)
		}
		owner, err := tx.StudentByNumber(ctx, ticket.StudentNumber)
		if err != nil {
			return err
		}
		if ticket, err = tx.ClaimTicket(ctx, req.Number, staff.Number, c.now()); err != nil {
			return err
		}
		if err := tx.SetHelping(ctx, staff.Number); err != nil {
			return err
		}
		result = AssignmentResult{Ticket: ticket, Owner: owner.Email}
		return nil
	})
	if err != nil {
		return nil, fail(ctx, "assign", err)
	}
	c.publishBoth(ctx, EventStudentHelped)
	c.out.NotifyOne(result.Owner, broadcast.Event{Name: EventHelpIncoming, Data: struct{}{}})
	return &result, nil
}

// Finish retires a ticket held by the given staff member and recomputes their
// availability: they become Available once no active ticket references them.
func (c *Coordinator) Finish(ctx context.Context, req DispatchRequest) (*models.Ticket, error) {
	if err := validateRequest(req); err != nil {
		return nil, fmt.Errorf("finish: %w", err)
	}
	ctx, cancel := c.bound(ctx)
	defer cancel()

	c.mu.Lock()
	defer c.mu.Unlock()

	var retired *models.Ticket
	err := c.db.Transaction(ctx, func(tx *database.Database) error {
		staff, err := tx.StaffByEmail(ctx, req.Email)
		if err != nil {
			return err
		}
		ticket, err := tx.Ticket(ctx, req.Number)
		if err != nil {
			return err
		}
		switch ticket.State() {
		case models.Retired:
			return fmt.Errorf("ticket %d: %w", req.Number, models.ErrAlreadyRetired)
		case models.Waiting:
			return fmt.Errorf("ticket %d has not been claimed: %w", req.Number, models.ErrValidation)
		}
		if *ticket.StaffNumber != staff.Number {
			return fmt.Errorf("ticket %d is assigned to another staff member: %w", req.Number, models.ErrValidation)
		}
		if retired, err = tx.RetireTicket(ctx, req.Number, c.now()); err != nil {
			return err
		}
		active, err := tx.ActiveCountForStaff(ctx, staff.Number)
		if err != nil {
			return err
		}
		return tx.RecomputeAvailability(ctx, staff.Number, active > 0)
	})
	if err != nil {
		return nil, fail(ctx, "finish", err)
	}
	c.publishBoth(ctx, EventStudentFinished)
	return retired, nil
}

// RegisterConnection maps a client identity to its live connection and sends
// it the current queue and availability so it need not wait for a change.
// The greeting is read and queued under the same lock as mutations, so it can
// never arrive after a newer snapshot.
func (c *Coordinator) RegisterConnection(ctx context.Context, identity string, conn broadcast.Conn) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.out.Register(identity, conn)
	if queue, err := c.db.ActiveTickets(ctx); err != nil {
		c.publishFailed(EventQueueUpdated, err)
	} else {
		c.out.NotifyOne(identity, broadcast.Event{Name: EventQueueUpdated, Data: queue})
	}
	if availability, err := c.db.AvailabilitySnapshot(ctx); err != nil {
		c.publishFailed(EventAvailabilityUpdated, err)
	} else {
		c.out.NotifyOne(identity, broadcast.Event{Name: EventAvailabilityUpdated, Data: availability})
	}
}

// UnregisterConnection removes identity's mapping if it still points at conn.
func (c *Coordinator) UnregisterConnection(identity string, conn broadcast.Conn) {
	c.out.Unregister(identity, conn)
}

func (c *Coordinator) publishQueue(ctx context.Context) {
	queue, err := c.db.ActiveTickets(ctx)
	if err != nil {
		c.publishFailed(EventQueueUpdated, err)
		return
	}
	c.out.Broadcast(broadcast.Event{Name: EventQueueUpdated, Data: queue})
}

func (c *Coordinator) publishAvailability(ctx context.Context) {
	availability, err := c.db.AvailabilitySnapshot(ctx)
	if err != nil {
		c.publishFailed(EventAvailabilityUpdated, err)
		return
	}
	c.out.Broadcast(broadcast.Event{Name: EventAvailabilityUpdated, Data: availability})
}

func (c *Coordinator) publishBoth(ctx context.Context, event string) {
	queue, err := c.db.ActiveTickets(ctx)
	if err != nil {
		c.publishFailed(event, err)
		return
	}
	availability, err := c.db.AvailabilitySnapshot(ctx)
	if err != nil {
		c.publishFailed(event, err)
		return
	}
	c.out.Broadcast(broadcast.Event{Name: event, Data: Snapshot{Queue: queue, Availability: availability}})
}

func (c *Coordinator) publishFailed(event string, err error) {
	if c.OnPublishError != nil {
		c.OnPublishError(event, err)
	}
}
