package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// DefaultChannel is the Redis pub/sub channel used when none is configured.
const DefaultChannel = "officehours:events"

const publishTimeout = 2 * time.Second

// envelope is the wire form of an event relayed between processes. Target is
// empty for broadcasts.
type envelope struct {
	Origin string          `json:"origin"`
	Target string          `json:"target,omitempty"`
	Name   string          `json:"event"`
	Data   json.RawMessage `json:"data"`
}

// publisher is the part of *redis.Client the relay publishes through.
type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// Relay shares a hub's events with other server processes over Redis
// pub/sub. Events are delivered to the local hub immediately and published;
// events published by other processes are delivered to the local hub by Run.
type Relay struct {
	hub     *Hub
	rdb     *redis.Client
	pub     publisher
	channel string
	origin  string
	log     *logrus.Logger
}

func NewRelay(hub *Hub, rdb *redis.Client, channel string, log *logrus.Logger) *Relay {
	if channel == "" {
		channel = DefaultChannel
	}
	host, _ := os.Hostname()
	return &Relay{
		hub:     hub,
		rdb:     rdb,
		pub:     rdb,
		channel: channel,
		origin:  fmt.Sprintf("%s-%d-%d", host, os.Getpid(), time.Now().UnixNano()),
		log:     log,
	}
}

func (r *Relay) Register(identity string, conn Conn) { r.hub.Register(identity, conn) }

func (r *Relay) Unregister(identity string, conn Conn) bool { return r.hub.Unregister(identity, conn) }

func (r *Relay) Broadcast(ev Event) {
	r.hub.Broadcast(ev)
	r.publish("", ev)
}

// NotifyOne delivers to a local connection for identity and publishes the
// event so that a process holding identity's connection can deliver it. It
// reports whether the event was queued locally.
func (r *Relay) NotifyOne(identity string, ev Event) bool {
	local := r.hub.NotifyOne(identity, ev)
	if !local {
		r.publish(identity, ev)
	}
	return local
}

func (r *Relay) publish(target string, ev Event) {
	data, err := json.Marshal(ev.Data)
	if err != nil {
		r.log.Errorln("Failed to encode relayed event:", err)
		return
	}
	payload, err := json.Marshal(envelope{Origin: r.origin, Target: target, Name: ev.Name, Data: data})
	if err != nil {
		r.log.Errorln("Failed to encode relay envelope:", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := r.pub.Publish(ctx, r.channel, payload).Err(); err != nil {
		r.log.Errorln("Failed to publish event to Redis:", err)
	}
}

// Run subscribes to the relay channel and delivers remote events until ctx is
// cancelled.
func (r *Relay) Run(ctx context.Context) error {
	sub := r.rdb.Subscribe(ctx, r.channel)
	defer sub.Close()
	r.log.Infoln("Subscribed to Redis channel:", r.channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if err := r.deliver([]byte(msg.Payload)); err != nil {
				r.log.Warnln("Invalid relay payload:", err)
			}
		}
	}
}

// deliver hands an envelope received from Redis to the local hub. Envelopes
// this relay published itself were already delivered and are skipped.
func (r *Relay) deliver(payload []byte) error {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return err
	}
	if env.Origin == r.origin {
		return nil
	}
	ev := Event{Name: env.Name, Data: env.Data}
	if env.Target != "" {
		r.hub.NotifyOne(env.Target, ev)
		return nil
	}
	r.hub.Broadcast(ev)
	return nil
}
