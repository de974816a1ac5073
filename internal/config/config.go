package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"meetupnotify/internal/model"
)

// ErrInvalid wraps every validation failure so callers can tell a bad config
// apart from an unreadable one.
var ErrInvalid = errors.New("invalid config")

const (
	DefaultAPIBase     = "https://api.meetup.com"
	DefaultTimezone    = "Local"
	DefaultHTTPTimeout = 10 * time.Second

	// DefaultRuleKey is the events entry used when no pattern matches.
	DefaultRuleKey = "default"
)

// Summary controls the weekly digest message.
type Summary struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Webhook string `yaml:"webhook" toml:"webhook"`
	// Daily is the lowercase weekday name on which the digest is sent.
	Daily string `yaml:"daily" toml:"daily"`
}

type Discord struct {
	Webhook string  `yaml:"webhook" toml:"webhook"`
	Summary Summary `yaml:"summary" toml:"summary"`
}

// Meetup selects the event source. Exactly one of Group and ICal is set.
type Meetup struct {
	Group string `yaml:"group" toml:"group"`
	ICal  string `yaml:"ical" toml:"ical"`
	// APIBase overrides the group-events API host.
	APIBase string `yaml:"api_base" toml:"api_base"`
}

// Config is the immutable run configuration. It is built once by Load and
// passed explicitly to every component.
type Config struct {
	Discord Discord `yaml:"discord" toml:"discord"`
	Meetup  Meetup  `yaml:"meetup" toml:"meetup"`

	// Timezone is the IANA zone used for all date arithmetic.
	Timezone string `yaml:"timezone" toml:"timezone"`

	// HTTPTimeout bounds every outbound request.
	HTTPTimeout time.Duration `yaml:"http_timeout" toml:"http_timeout"`

	// Events holds the pattern rules in declaration order. Order matters:
	// the first pattern contained in an event name wins.
	Events []model.Rule `yaml:"-" toml:"-"`
	// Default applies when no pattern matches.
	Default model.Rule `yaml:"-" toml:"-"`

	loc *time.Location
}

// ruleFields is the on-disk shape of one events entry.
type ruleFields struct {
	Reminder bool       `yaml:"reminder" toml:"reminder"`
	ThreadID flexString `yaml:"thread_id" toml:"thread_id"`
}

// flexString accepts both quoted and bare numeric values, since Discord
// thread IDs are often written as plain integers.
type flexString string

func (f *flexString) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a scalar", n.Line)
	}
	if n.Tag == "!!null" {
		*f = ""
		return nil
	}
	*f = flexString(n.Value)
	return nil
}

func (f *flexString) UnmarshalTOML(v any) error {
	switch x := v.(type) {
	case string:
		*f = flexString(x)
	case int64:
		*f = flexString(fmt.Sprint(x))
	default:
		return fmt.Errorf("unsupported thread_id value %v", v)
	}
	return nil
}

// Load reads, interpolates, decodes, normalizes and validates the config at
// path. Files ending in .toml are decoded as TOML, everything else as YAML.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	data = []byte(expandEnv(string(data)))

	var cfg *Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		cfg, err = decodeTOML(data)
	default:
		cfg, err = decodeYAML(data)
	}
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// expandEnv replaces ${VAR}, $VAR and ${VAR:-fallback} with environment
// values.
func expandEnv(s string) string {
	return os.Expand(s, func(key string) string {
		name, fallback, hasFallback := strings.Cut(key, ":-")
		if v, ok := os.LookupEnv(name); ok && v != "" {
			return v
		}
		if hasFallback {
			return fallback
		}
		return ""
	})
}

func decodeYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	var raw struct {
		Events yaml.Node `yaml:"events"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	node := raw.Events
	switch node.Kind {
	case 0:
		return &cfg, nil
	case yaml.MappingNode:
	default:
		return nil, fmt.Errorf("line %d: events must be a mapping", node.Line)
	}

	// Mapping content alternates key, value.
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		var rf ruleFields
		if err := node.Content[i+1].Decode(&rf); err != nil {
			return nil, fmt.Errorf("events.%s: %w", key, err)
		}
		cfg.addRule(key, rf)
	}
	return &cfg, nil
}

func decodeTOML(data []byte) (*Config, error) {
	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, err
	}

	var raw struct {
		Events map[string]ruleFields `toml:"events"`
	}
	md, err := toml.Decode(string(data), &raw)
	if err != nil {
		return nil, err
	}

	// Go maps lose declaration order; recover it from the metadata, which
	// lists keys as they appear in the document.
	seen := make(map[string]bool, len(raw.Events))
	for _, k := range md.Keys() {
		if len(k) < 2 || k[0] != "events" || seen[k[1]] {
			continue
		}
		seen[k[1]] = true
		cfg.addRule(k[1], raw.Events[k[1]])
	}
	return &cfg, nil
}

func (c *Config) addRule(key string, rf ruleFields) {
	rule := model.Rule{
		Pattern:  key,
		Reminder: rf.Reminder,
		ThreadID: string(rf.ThreadID),
	}
	if key == DefaultRuleKey {
		rule.Pattern = ""
		c.Default = rule
		return
	}
	c.Events = append(c.Events, rule)
}

// Normalize fills in defaults for optional settings.
func (c *Config) Normalize() {
	c.Timezone = strings.TrimSpace(c.Timezone)
	if c.Timezone == "" {
		c.Timezone = DefaultTimezone
	}
	if c.Meetup.APIBase == "" {
		c.Meetup.APIBase = DefaultAPIBase
	}
	c.Meetup.APIBase = strings.TrimRight(c.Meetup.APIBase, "/")
	c.Meetup.Group = strings.TrimSpace(c.Meetup.Group)
	c.Meetup.ICal = strings.TrimSpace(c.Meetup.ICal)
	c.Discord.Summary.Daily = strings.ToLower(strings.TrimSpace(c.Discord.Summary.Daily))
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = DefaultHTTPTimeout
	}
}

// Validate checks required keys and resolves the timezone.
func (c *Config) Validate() error {
	if c.Discord.Webhook == "" {
		return fmt.Errorf("%w: discord.webhook is required", ErrInvalid)
	}
	if err := checkURL(c.Discord.Webhook); err != nil {
		return fmt.Errorf("%w: discord.webhook: %v", ErrInvalid, err)
	}

	switch {
	case c.Meetup.Group == "" && c.Meetup.ICal == "":
		return fmt.Errorf("%w: one of meetup.group or meetup.ical is required", ErrInvalid)
	case c.Meetup.Group != "" && c.Meetup.ICal != "":
		return fmt.Errorf("%w: meetup.group and meetup.ical are mutually exclusive", ErrInvalid)
	case c.Meetup.ICal != "":
		if err := checkURL(c.Meetup.ICal); err != nil {
			return fmt.Errorf("%w: meetup.ical: %v", ErrInvalid, err)
		}
	}

	if c.Discord.Summary.Enabled {
		if c.Discord.Summary.Webhook == "" {
			return fmt.Errorf("%w: discord.summary.webhook is required when summary is enabled", ErrInvalid)
		}
		if err := checkURL(c.Discord.Summary.Webhook); err != nil {
			return fmt.Errorf("%w: discord.summary.webhook: %v", ErrInvalid, err)
		}
		if _, ok := ParseWeekday(c.Discord.Summary.Daily); !ok {
			return fmt.Errorf("%w: discord.summary.daily %q is not a weekday name", ErrInvalid, c.Discord.Summary.Daily)
		}
	}

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("%w: timezone %q: %v", ErrInvalid, c.Timezone, err)
	}
	c.loc = loc
	return nil
}

// Location returns the configured timezone. It falls back to time.Local if
// Validate has not run.
func (c *Config) Location() *time.Location {
	if c.loc == nil {
		return time.Local
	}
	return c.loc
}

// RuleFor returns the first rule whose pattern occurs in name, scanning in
// declaration order, or the default rule.
func (c *Config) RuleFor(name string) model.Rule {
	for _, r := range c.Events {
		if r.Pattern != "" && strings.Contains(name, r.Pattern) {
			return r
		}
	}
	return c.Default
}

// ParseWeekday maps a case-insensitive English weekday name to time.Weekday.
func ParseWeekday(name string) (time.Weekday, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.ToLower(d.String()) == name {
			return d, true
		}
	}
	return 0, false
}

func checkURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}
