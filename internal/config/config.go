package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileName is the config file searched for in the default locations.
const FileName = "tdquotes.yaml"

var (
	// ErrConfigMissing means no config file could be found or read.
	ErrConfigMissing = errors.New("config file missing")
	// ErrAPIKeyMissing means the config has no provider API key.
	ErrAPIKeyMissing = errors.New("config must specify settings.apikey")
)

type Settings struct {
	APIKey string `yaml:"apikey"`
	// Delay is the minimum number of seconds between provider requests.
	Delay int `yaml:"delay"`
	// QuoteTime is the epoch second of the last provider request. It is
	// rewritten by StateFile, not by hand.
	QuoteTime  int64  `yaml:"quotetime"`
	Endpoint   string `yaml:"endpoint"`
	TimeoutSec int    `yaml:"timeout"`
	LockDir    string `yaml:"lockdir"`
}

type Logging struct {
	Level string `yaml:"loglevel"`
	// File is a path, "syslog", or empty for no log sink.
	File string `yaml:"logfile"`
}

type Quotes struct {
	CSVFile    string  `yaml:"csvfile"`
	Symbols    Symbols `yaml:"symbols"`
	KMMFile    string  `yaml:"kmmfile"`
	SourceName string  `yaml:"sourcename"`
	Exclude    Symbols `yaml:"exclude"`
}

type Config struct {
	Settings Settings `yaml:"settings"`
	Logging  Logging  `yaml:"logging"`
	Quotes   Quotes   `yaml:"quotes"`

	path string
}

// Symbols is a ticker list written either as a YAML sequence or as one
// whitespace separated string.
type Symbols []string

func (s *Symbols) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*s = strings.Fields(value.Value)
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := value.Decode(&list); err != nil {
			return err
		}
		out := make([]string, 0, len(list))
		for _, v := range list {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
		*s = out
		return nil
	default:
		return fmt.Errorf("line %d: symbols must be a list or a string", value.Line)
	}
}

func Default() Config {
	return Config{
		Settings: Settings{
			Delay:    8,
			Endpoint: "https://api.twelvedata.com",
		},
		Logging: Logging{Level: "ERROR"},
	}
}

// Path is the file the config was loaded from.
func (c Config) Path() string { return c.path }

// Validate reports settings the tool cannot run without.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Settings.APIKey) == "" {
		return fmt.Errorf("%s: %w", c.path, ErrAPIKeyMissing)
	}
	if c.Settings.Delay < 0 {
		return fmt.Errorf("%s: settings.delay must not be negative", c.path)
	}
	return nil
}

// Locate returns the first existing config file among $TDQUOTES_CONFIG,
// ~/.config/tdquotes.yaml and tdquotes.yaml next to the executable.
func Locate() (string, error) {
	var candidates []string
	if v := os.Getenv("TDQUOTES_CONFIG"); v != "" {
		candidates = append(candidates, v)
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", FileName))
	}
	if exe, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(exe), FileName))
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: looked for %s", ErrConfigMissing, strings.Join(candidates, ", "))
}

// Load reads the YAML config at path, or at the first location found by
// Locate when path is empty. Environment variables override select fields.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		p, err := Locate()
		if err != nil {
			return cfg, err
		}
		path = p
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("%w: %s", ErrConfigMissing, path)
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.path = path
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("TDQUOTES_API_KEY"); v != "" {
		cfg.Settings.APIKey = v
	}
	if v := os.Getenv("TDQUOTES_ENDPOINT"); v != "" {
		cfg.Settings.Endpoint = v
	}
	if v := os.Getenv("TDQUOTES_DELAY"); v != "" {
		var x int
		if _, err := fmt.Sscanf(v, "%d", &x); err == nil && x >= 0 {
			cfg.Settings.Delay = x
		}
	}
	if v := os.Getenv("TDQUOTES_LOCKDIR"); v != "" {
		cfg.Settings.LockDir = v
	}
	if v := os.Getenv("TDQUOTES_CSVFILE"); v != "" {
		cfg.Quotes.CSVFile = v
	}
	if v := os.Getenv("TDQUOTES_LOGLEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("TDQUOTES_LOGFILE"); v != "" {
		cfg.Logging.File = v
	}
}
