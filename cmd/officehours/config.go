package main

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/Raytar/officehours"
	"github.com/Raytar/officehours/broadcast"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	envPrefix = "OFFICEHOURS"
	cfgFile   = ".officehoursrc"
)

func initConfig() (cfg officehours.Config, err error) {
	// .env is optional; values already in the environment win
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, err
	}

	// command line
	pflag.String("addr", officehours.DefaultAddr, "Address to listen on")
	pflag.String("db-path", officehours.DefaultDBPath, "Path to database file")
	pflag.Duration("dispatch-timeout", officehours.DefaultDispatchTimeout, "Time limit for each queue operation")
	pflag.String("log-level", "info", "Log level (debug, info, warn, error)")
	pflag.StringSlice("allowed-origins", nil, "Origins allowed to call the API (default all)")
	pflag.Int("bcrypt-cost", 0, "bcrypt cost for password hashes (0 means the library default)")
	pflag.String("redis-url", "", "Redis URL used to relay events between server instances")
	pflag.String("redis-channel", broadcast.DefaultChannel, "Redis pub/sub channel for relayed events")
	pflag.String("discord-token", "", "Discord bot token for queue announcements")
	pflag.String("discord-channel", "", "Discord channel ID for queue announcements")
	pflag.Parse()

	err = viper.BindPFlags(pflag.CommandLine)
	if err != nil {
		return
	}

	// env
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	// config file
	viper.SetConfigName(cfgFile)
	viper.SetConfigType("toml")
	viper.AddConfigPath(".")
	if err = viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return
		}
	}

	err = viper.Unmarshal(&cfg)
	return
}
