// Package config loads the bot's settings from a TOML file plus environment
// overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"

	"tbot/pkg/user"
)

// DefaultPath is read when TBOT_CONFIG is unset.
const DefaultPath = "tbot.toml"

// Config is the whole runtime configuration.
type Config struct {
	Port          string            `toml:"port"`
	AdminID       int64             `toml:"admin_id"`
	Token         string            `toml:"token"`
	DatabaseURL   string            `toml:"database_url"`
	NATSURL       string            `toml:"nats_url"`
	Timezone      string            `toml:"timezone"`
	SweepInterval Duration          `toml:"sweep_interval"`
	Projects      map[string]string `toml:"projects"`
	Directions    map[string]string `toml:"directions"`
	Users         []UserEntry       `toml:"users"`
}

// UserEntry is one [[users]] table.
type UserEntry struct {
	ID         int64    `toml:"id"`
	Name       string   `toml:"name"`
	Role       string   `toml:"role"`
	Handle     string   `toml:"handle"`
	Directions []string `toml:"directions"`
}

// Duration decodes "90s" style strings.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// DefaultProjects are the project tags offered when the file lists none.
var DefaultProjects = map[string]string{
	"crmk":       "ЦРМК Буколпак",
	"kinoclub":   "Киноклуб Кадр",
	"anticafe":   "Антикафе Ковёр",
	"literature": "Литературный клуб Переплёт",
	"boardgames": "Проект Настолки с ведущим",
	"podcast":    "Подкаст Десятиминутка",
	"tourism":    "Туристический проект Цифровой Торжокъ",
	"vinyl":      "Творческий проект Винил",
	"caps":       "Проект Колпачки",
	"quizzes":    "Квизы",
}

// Default returns the built-in configuration.
func Default() *Config {
	projects := make(map[string]string, len(DefaultProjects))
	for k, v := range DefaultProjects {
		projects[k] = v
	}
	return &Config{
		Port:          "8080",
		Timezone:      "Europe/Moscow",
		SweepInterval: Duration{time.Minute},
		Projects:      projects,
	}
}

// Load reads path (TBOT_CONFIG, then DefaultPath when empty) over the
// defaults and applies environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("TBOT_CONFIG")
	}
	if path == "" {
		path = DefaultPath
	}

	cfg := Default()
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("PORT"); v != "" {
		c.Port = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
	if v := os.Getenv("TBOT_TOKEN"); v != "" {
		c.Token = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		c.NATSURL = v
	}
	if v := os.Getenv("TELEGRAM_ADMIN_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("TELEGRAM_ADMIN_ID: %w", err)
		}
		c.AdminID = id
	}
	return nil
}

// Validate checks the roster for duplicates and missing ids.
func (c *Config) Validate() error {
	seen := make(map[int64]bool, len(c.Users))
	for i, u := range c.Users {
		if u.ID == 0 {
			return fmt.Errorf("users[%d]: id is required", i)
		}
		if u.Name == "" {
			return fmt.Errorf("users[%d]: name is required", i)
		}
		if seen[u.ID] {
			return fmt.Errorf("users[%d]: duplicate id %d", i, u.ID)
		}
		seen[u.ID] = true
	}
	if c.SweepInterval.Duration < 0 {
		return fmt.Errorf("sweep_interval must not be negative")
	}
	return nil
}

// Location resolves Timezone, falling back to Moscow time.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return user.Moscow
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return user.Moscow
	}
	return loc
}

// Directory builds the roster: the configured users, or the built-in one when
// the file has none.
func (c *Config) Directory() *user.Directory {
	if len(c.Users) == 0 {
		d := user.DefaultDirectory()
		c.applyLabels(d)
		return d
	}
	d := user.NewDirectory()
	c.applyLabels(d)
	for _, u := range c.Users {
		d.Add(user.User{ID: u.ID, FullName: u.Name, Role: u.Role, Handle: u.Handle}, u.Directions...)
	}
	return d
}

func (c *Config) applyLabels(d *user.Directory) {
	for code, label := range c.Directions {
		d.SetDirectionLabel(code, label)
	}
}
