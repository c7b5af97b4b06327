package officehours

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Raytar/officehours/broadcast"
	"github.com/Raytar/officehours/database"
	"github.com/Raytar/officehours/models"
	"github.com/sirupsen/logrus"
)

var epoch = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)
	return log
}

func testDBPath(t *testing.T) string {
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	return fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
}

func newTestDB(t *testing.T) *database.Database {
	t.Helper()
	db, err := database.OpenDatabase(testDBPath(t), testLogger())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// recorder is a synchronous Broadcaster that remembers what was sent.
type recorder struct {
	mu     sync.Mutex
	conns  map[string]broadcast.Conn
	events []broadcast.Event
	direct map[string][]broadcast.Event
}

func newRecorder() *recorder {
	return &recorder{
		conns:  make(map[string]broadcast.Conn),
		direct: make(map[string][]broadcast.Event),
	}
}

func (r *recorder) Register(identity string, conn broadcast.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[identity] = conn
}

func (r *recorder) Unregister(identity string, conn broadcast.Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conns[identity] != conn {
		return false
	}
	delete(r.conns, identity)
	return true
}

func (r *recorder) Broadcast(ev broadcast.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) NotifyOne(identity string, ev broadcast.Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.direct[identity] = append(r.direct[identity], ev)
	_, ok := r.conns[identity]
	return ok
}

func (r *recorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.events))
	for i, ev := range r.events {
		names[i] = ev.Name
	}
	return names
}

func (r *recorder) last() broadcast.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

func (r *recorder) sentTo(identity string) []broadcast.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]broadcast.Event(nil), r.direct[identity]...)
}

type fixture struct {
	db    *database.Database
	out   *recorder
	coord *Coordinator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	out := newRecorder()
	coord := NewCoordinator(db, out, time.Second)
	coord.now = func() time.Time { return epoch }
	coord.OnPublishError = func(event string, err error) {
		t.Errorf("publish %s: %v", event, err)
	}
	return &fixture{db: db, out: out, coord: coord}
}

func (f *fixture) student(t *testing.T, number int64, name string) string {
	t.Helper()
	s := &models.Student{Number: number, Name: name, Email: strings.ToLower(name) + "@uni.test"}
	if err := f.db.CreateStudent(context.Background(), s); err != nil {
		t.Fatalf("CreateStudent(%s): %v", name, err)
	}
	return s.Email
}

// staff registers a staff member and starts their shift.
func (f *fixture) staff(t *testing.T, number int64, name string) string {
	t.Helper()
	s := &models.Staff{Number: number, Name: name, Email: strings.ToLower(name) + "@staff.test"}
	if err := f.db.CreateStaff(context.Background(), s); err != nil {
		t.Fatalf("CreateStaff(%s): %v", name, err)
	}
	req := ShiftRequest{Email: s.Email, Start: epoch, End: epoch.Add(8 * time.Hour)}
	if err := f.coord.BeginShift(context.Background(), req); err != nil {
		t.Fatalf("BeginShift(%s): %v", name, err)
	}
	return s.Email
}

func (f *fixture) enqueue(t *testing.T, email string) int64 {
	t.Helper()
	ticket, err := f.coord.Enqueue(context.Background(), EnqueueRequest{Email: email, Question: "why does my test fail?"})
	if err != nil {
		t.Fatalf("Enqueue(%s): %v", email, err)
	}
	return ticket.Number
}

func (f *fixture) status(t *testing.T, email string) models.Status {
	t.Helper()
	entries, err := f.coord.ListAvailability(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	staff, err := f.db.StaffByEmail(context.Background(), email)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.StaffNumber == staff.Number {
			return e.Status
		}
	}
	t.Fatalf("no availability for %s", email)
	return ""
}
