package officehours

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Raytar/officehours/broadcast"
	"github.com/Raytar/officehours/database"
	"github.com/bwmarrin/discordgo"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// OfficeHours wires storage, the coordinator, the broadcaster and the HTTP
// surface into one server.
type OfficeHours struct {
	cfg      Config
	db       *database.Database
	hub      *broadcast.Hub
	relay    *broadcast.Relay
	rdb      *redis.Client
	discord  *discordgo.Session
	coord    *Coordinator
	accounts *Accounts
	log      *logrus.Logger
	srv      *http.Server
}

func New(cfg Config, log *logrus.Logger) (oh *OfficeHours, err error) {
	cfg.setDefaults()
	oh = &OfficeHours{cfg: cfg, log: log}
	oh.db, err = database.OpenDatabase(cfg.DBPath, log)
	if err != nil {
		return nil, err
	}

	oh.hub = broadcast.NewHub(broadcast.WithErrorHandler(func(identity string, err error) {
		log.Warnf("Dropped connection for %s: %v", identity, err)
	}))
	var out Broadcaster = oh.hub
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			_ = oh.db.Close()
			return nil, fmt.Errorf("invalid redis-url: %w", err)
		}
		oh.rdb = redis.NewClient(opt)
		oh.relay = broadcast.NewRelay(oh.hub, oh.rdb, cfg.RedisChannel, log)
		out = oh.relay
	}

	oh.coord = NewCoordinator(oh.db, out, cfg.DispatchTimeout)
	oh.coord.OnPublishError = func(event string, err error) {
		log.Errorf("Failed to publish %s: %v", event, err)
	}
	oh.accounts = NewAccounts(oh.db, BcryptHasher{Cost: cfg.BcryptCost}, cfg.DispatchTimeout)

	if cfg.DiscordToken != "" && cfg.DiscordChannel != "" {
		oh.discord, err = discordgo.New("Bot " + cfg.DiscordToken)
		if err != nil {
			_ = oh.Close()
			return nil, fmt.Errorf("failed to create discord session: %w", err)
		}
		oh.hub.Register(announcerIdentity, newAnnouncer(sessionPoster{oh.discord}, cfg.DiscordChannel, log))
	}

	oh.srv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           oh.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return oh, nil
}

func (oh *OfficeHours) Accounts() *Accounts { return oh.accounts }

// Handler returns the HTTP handler, for tests.
func (oh *OfficeHours) Handler() http.Handler { return oh.srv.Handler }

// Run serves HTTP until ctx is cancelled, and relays events through Redis
// when configured.
func (oh *OfficeHours) Run(ctx context.Context) error {
	if oh.relay != nil {
		go func() {
			if err := oh.relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				oh.log.Errorln("Redis relay stopped:", err)
			}
		}()
	}
	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := oh.srv.Shutdown(shutCtx); err != nil {
			oh.log.Errorln("Failed to shut down HTTP server:", err)
		}
	}()

	oh.log.Infoln("Office hours server listening on", oh.cfg.Addr)
	if err := oh.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func (oh *OfficeHours) Close() error {
	oh.hub.Close()
	if oh.rdb != nil {
		if err := oh.rdb.Close(); err != nil {
			oh.log.Errorln("Failed to close Redis client:", err)
		}
	}
	if oh.discord != nil {
		if err := oh.discord.Close(); err != nil {
			oh.log.Errorln("Failed to close discord session:", err)
		}
	}
	return oh.db.Close()
}
