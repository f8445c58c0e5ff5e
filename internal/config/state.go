package config

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"tdquotes/internal/fsx"
)

// StateFile keeps the last provider request time in settings.quotetime of
// the config file, so the rate limit holds across invocations.
type StateFile struct {
	path string
}

func NewStateFile(path string) *StateFile { return &StateFile{path: path} }

// State returns the StateFile backed by the file c was loaded from.
func (c Config) State() *StateFile { return NewStateFile(c.path) }

// LastRequest re-reads the file so a timestamp written by another process
// since Load is seen. A zero time means no request was ever recorded.
func (s *StateFile) LastRequest() (time.Time, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return time.Time{}, fmt.Errorf("read quote time: %w", err)
	}
	var doc struct {
		Settings struct {
			QuoteTime int64 `yaml:"quotetime"`
		} `yaml:"settings"`
	}
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return time.Time{}, fmt.Errorf("parse quote time in %s: %w", s.path, err)
	}
	if doc.Settings.QuoteTime <= 0 {
		return time.Time{}, nil
	}
	return time.Unix(doc.Settings.QuoteTime, 0), nil
}

// SetLastRequest writes t into settings.quotetime, leaving every other key
// and comment of the file as it was.
func (s *StateFile) SetLastRequest(t time.Time) error {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read %s: %w", s.path, err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return fmt.Errorf("parse %s: %w", s.path, err)
	}
	if doc.Kind == 0 {
		doc = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}}
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return fmt.Errorf("%s: top level is not a mapping", s.path)
	}

	settings := lookup(root, "settings")
	if settings == nil {
		settings = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		root.Content = append(root.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: "settings"}, settings)
	} else if settings.Kind != yaml.MappingNode {
		*settings = yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	}

	value := strconv.FormatInt(t.Unix(), 10)
	if qt := lookup(settings, "quotetime"); qt != nil {
		*qt = yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: value, LineComment: qt.LineComment}
	} else {
		settings.Content = append(settings.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: "quotetime"},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: value},
		)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return fmt.Errorf("encode %s: %w", s.path, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encode %s: %w", s.path, err)
	}
	if err := fsx.WriteFile(s.path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("write quote time to %s: %w", s.path, err)
	}
	return nil
}

func lookup(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}
