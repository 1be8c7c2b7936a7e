// Package config loads the dormwatt configuration document and validates it
// against the embedded JSON schema. The document is an external contract: a
// shape failure is fatal at startup, partial operation is never attempted.
package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/spf13/viper"
)

//go:embed schema.json
var schemaJSON []byte

// Config is the validated run configuration. It is read-only for the
// lifetime of the process.
type Config struct {
	Username      string      `mapstructure:"username"`
	Password      string      `mapstructure:"password"`
	CheckInterval int         `mapstructure:"check_interval"`
	AlertBalance  float64     `mapstructure:"alert_balance"`
	SMTP          SMTPConfig  `mapstructure:"smtp"`
	Queries       []RoomQuery `mapstructure:"queries"`
}

// SMTPConfig defines the mail submission endpoint for alert delivery.
type SMTPConfig struct {
	Server   string `mapstructure:"server"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Security string `mapstructure:"security"` // "ssl", "tls" or "none"
}

// RoomQuery is the monitoring entry for a single room.
type RoomQuery struct {
	RoomName   string           `mapstructure:"room_name"`
	Recipients []string         `mapstructure:"recipients"`
	ServerChan ServerChanConfig `mapstructure:"server_chan"`
}

// ServerChanConfig defines ServerChan push delivery for a room.
type ServerChanConfig struct {
	Enabled    bool            `mapstructure:"enabled"`
	Recipients []PushRecipient `mapstructure:"recipients"`
}

// PushRecipient identifies one ServerChan push target.
type PushRecipient struct {
	UID     string `mapstructure:"uid"`
	SendKey string `mapstructure:"sendkey"`
}

// DefaultPath returns the path of the externally managed active document:
// <user config dir>/dormwatt/configs/active.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("find user config directory: %w", err)
	}
	return filepath.Join(dir, "dormwatt", "configs", "active"), nil
}

// Load reads the document at path, or the default active document when path
// is empty, validates it and decodes it.
func Load(path string) (*Config, error) {
	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return nil, err
		}
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := validate(raw); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	v := viper.New()
	v.SetConfigType("json")
	if err := v.ReadConfig(bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	return &cfg, nil
}

// validate checks the raw document against the embedded schema. Unknown keys
// anywhere in the document are rejected.
func validate(raw []byte) error {
	schemaDoc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
	if err != nil {
		return fmt.Errorf("parse embedded schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat()
	if err := compiler.AddResource("schema.json", schemaDoc); err != nil {
		return fmt.Errorf("register embedded schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile embedded schema: %w", err)
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := schema.Validate(inst); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}

// Summary renders a short human-readable description of the configuration
// for the check command. Secrets are not included.
func (c *Config) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "username:       %s\n", c.Username)
	fmt.Fprintf(&b, "check interval: %ds\n", c.CheckInterval)
	fmt.Fprintf(&b, "alert balance:  %.2f\n", c.AlertBalance)
	fmt.Fprintf(&b, "smtp:           %s:%d (%s)\n", c.SMTP.Server, c.SMTP.Port, c.SMTP.Security)
	fmt.Fprintf(&b, "rooms:          %d\n", len(c.Queries))
	for i, q := range c.Queries {
		push := 0
		if q.ServerChan.Enabled {
			push = len(q.ServerChan.Recipients)
		}
		fmt.Fprintf(&b, "  %d. %s (email: %d, push: %d)\n", i+1, q.RoomName, len(q.Recipients), push)
	}
	return b.String()
}
