package officehours

import (
	"github.com/Raytar/officehours/models"
)

// Events pushed to connected clients.
const (
	EventQueueUpdated        = "queueUpdated"
	EventAvailabilityUpdated = "availableTAUpdated"
	EventStudentHelped       = "newStudentHelped"
	EventStudentFinished     = "newStudentFinish"
	EventHelpIncoming        = "helpIncoming"
)

// Snapshot is the payload of events that carry both the queue and the
// availability of staff.
type Snapshot struct {
	Queue        []*models.QueueEntry        `json:"queue"`
	Availability []*models.AvailabilityEntry `json:"availability"`
}
