package main

import (
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
)

// Config holds all configuration options
type Config struct {
	// Server config
	Port      string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	PublicURL string `long:"public-url" env:"PUBLIC_URL" default:"http://localhost:8080" description:"Externally reachable base URL used in authorization links"`

	ExternalTimeout time.Duration `long:"external-timeout" env:"EXTERNAL_TIMEOUT" default:"30s" description:"Timeout for each call to the calendar, token and model services"`
	Timezone        string        `long:"timezone" env:"TIMEZONE" description:"IANA zone used for today/week ranges (default: system zone)"`

	// Storage config
	StorageMode string `long:"storage-mode" env:"STORAGE_MODE" default:"sqlite" choice:"sqlite" choice:"filesystem" choice:"s3" choice:"redis" choice:"memory" description:"User storage backend"`

	// SQLite storage
	DatabasePath string `long:"database-path" env:"DATABASE_PATH" default:"donna_bot.db" description:"SQLite database file"`

	// Filesystem storage
	DataPath string `long:"data-path" env:"DATA_PATH" default:"./data" description:"Filesystem storage directory"`

	// S3 storage
	S3 struct {
		Endpoint  string `long:"s3-endpoint" env:"S3_ENDPOINT" default:"localhost:9000" description:"S3 endpoint (host:port)"`
		Bucket    string `long:"s3-bucket" env:"S3_BUCKET" default:"donna" description:"S3 bucket name"`
		AccessKey string `long:"s3-access-key" env:"S3_ACCESS_KEY" default:"minioadmin" description:"S3 access key"`
		SecretKey string `long:"s3-secret-key" env:"S3_SECRET_KEY" default:"minioadmin" description:"S3 secret key"`
		UseSSL    bool   `long:"s3-use-ssl" env:"S3_USE_SSL" description:"Use SSL for S3 connections"`
	} `group:"S3 Storage Options"`

	// Redis config
	Redis struct {
		Addr     string `long:"redis-addr" env:"REDIS_ADDR" default:"localhost:6379" description:"Redis address"`
		Password string `long:"redis-password" env:"REDIS_PASSWORD" description:"Redis password"`
		DB       int    `long:"redis-db" env:"REDIS_DB" default:"0" description:"Redis database number"`
	} `group:"Redis Options"`

	Google struct {
		CredentialsFile string        `long:"google-credentials" env:"GOOGLE_CREDENTIALS_FILE" default:"credentials.json" description:"Google OAuth client secret file"`
		FlowLifetime    time.Duration `long:"flow-lifetime" env:"OAUTH_FLOW_LIFETIME" default:"10m" description:"How long a started calendar authorization stays valid (0 disables expiry)"`
	} `group:"Google Calendar Options"`

	OpenAI struct {
		APIKey  string `long:"openai-api-key" env:"OPENAI_API_KEY" description:"OpenAI API key"`
		BaseURL string `long:"openai-base-url" env:"OPENAI_BASE_URL" description:"OpenAI API base URL (default: public API)"`
	} `group:"OpenAI Options"`

	Telegram struct {
		Token string `long:"telegram-token" env:"TELEGRAM_TOKEN" description:"Telegram bot token (leave empty to run without Telegram)"`
	} `group:"Telegram Options"`

	Assistant struct {
		ProfilePath string `long:"assistant-profile" env:"ASSISTANT_PROFILE" description:"YAML file with model, instructions and tool descriptions"`
		Model       string `long:"assistant-model" env:"ASSISTANT_MODEL" description:"Override the model named in the profile"`
	} `group:"Assistant Options"`
}

// LoadConfig parses configuration from environment variables and command line flags
func LoadConfig() (*Config, error) {
	var config Config

	parser := flags.NewParser(&config, flags.Default)
	parser.Usage = "[OPTIONS]"

	if _, err := parser.Parse(); err != nil {
		if flags.WroteHelp(err) {
			os.Exit(0)
		}
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

func (c *Config) location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}
