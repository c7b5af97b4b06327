package officehours

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Raytar/officehours/broadcast"
	"github.com/Raytar/officehours/models"
	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"
)

// announcerIdentity is the hub identity the course-channel announcer is
// registered under. Client identities are email addresses, so it cannot
// collide with one.
const announcerIdentity = "announcer:discord"

type poster interface {
	Post(channelID, content string) error
}

type sessionPoster struct {
	s *discordgo.Session
}

func (p sessionPoster) Post(channelID, content string) error {
	_, err := p.s.ChannelMessageSend(channelID, content)
	return err
}

// announcer is a hub connection that posts a summary of each queue event to a
// Discord channel.
type announcer struct {
	out       poster
	channelID string
	log       *logrus.Logger
}

type announcement struct {
	Waiting   int
	Helping   int
	Available []string
}

func newAnnouncer(out poster, channelID string, log *logrus.Logger) *announcer {
	return &announcer{out: out, channelID: channelID, log: log}
}

// Send never fails: a Discord outage must not evict the announcer from the hub.
func (a *announcer) Send(ev broadcast.Event) error {
	msg, err := a.render(ev)
	if err != nil {
		a.log.Errorln("Failed to render announcement:", err)
		return nil
	}
	if msg == "" {
		return nil
	}
	if err := a.out.Post(a.channelID, msg); err != nil {
		a.log.Errorln("Failed to post announcement:", err)
	}
	return nil
}

func (a *announcer) Close() error { return nil }

func (a *announcer) render(ev broadcast.Event) (string, error) {
	if announcements.Lookup(ev.Name) == nil {
		return "", nil
	}
	snap, err := toSnapshot(ev)
	if err != nil {
		return "", err
	}
	var data announcement
	for _, e := range snap.Queue {
		if e.State == models.Assigned {
			data.Helping++
		} else {
			data.Waiting++
		}
	}
	for _, e := range snap.Availability {
		if e.Status == models.Available {
			data.Available = append(data.Available, e.Name)
		}
	}
	buf := new(strings.Builder)
	if err := announcements.ExecuteTemplate(buf, ev.Name, data); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", ev.Name, err)
	}
	return buf.String(), nil
}

// toSnapshot normalizes an event payload. Events relayed from other processes
// carry raw JSON instead of typed snapshots.
func toSnapshot(ev broadcast.Event) (Snapshot, error) {
	var snap Snapshot
	switch d := ev.Data.(type) {
	case Snapshot:
		return d, nil
	case []*models.QueueEntry:
		snap.Queue = d
	case []*models.AvailabilityEntry:
		snap.Availability = d
	case json.RawMessage:
		var err error
		switch ev.Name {
		case EventQueueUpdated:
			err = json.Unmarshal(d, &snap.Queue)
		case EventAvailabilityUpdated:
			err = json.Unmarshal(d, &snap.Availability)
		default:
			err = json.Unmarshal(d, &snap)
		}
		if err != nil {
			return snap, err
		}
	default:
		return snap, fmt.Errorf("unexpected payload %T for %s", ev.Data, ev.Name)
	}
	return snap, nil
}
