package officehours

import "time"

const (
	DefaultAddr   = ":3000"
	DefaultDBPath = "officehours.db"
)

type Config struct {
	Addr            string        `mapstructure:"addr"`
	DBPath          string        `mapstructure:"db-path"`
	DispatchTimeout time.Duration `mapstructure:"dispatch-timeout"`
	LogLevel        string        `mapstructure:"log-level"`
	AllowedOrigins  []string      `mapstructure:"allowed-origins"`
	BcryptCost      int           `mapstructure:"bcrypt-cost"`
	RedisURL        string        `mapstructure:"redis-url"`
	RedisChannel    string        `mapstructure:"redis-channel"`
	DiscordToken    string        `mapstructure:"discord-token"`
	DiscordChannel  string        `mapstructure:"discord-channel"`
}

func (cfg *Config) setDefaults() {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.DBPath == "" {
		cfg.DBPath = DefaultDBPath
	}
	if cfg.DispatchTimeout <= 0 {
		cfg.DispatchTimeout = DefaultDispatchTimeout
	}
}

// allowAllOrigins reports whether cross-origin requests are unrestricted.
func (cfg *Config) allowAllOrigins() bool {
	if len(cfg.AllowedOrigins) == 0 {
		return true
	}
	for _, o := range cfg.AllowedOrigins {
		if o == "*" {
			return true
		}
	}
	return false
}
