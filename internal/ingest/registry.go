package ingest

import (
	"embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed config/sources.yaml
var sourcesYAML embed.FS

// Registry holds the configuration for all grant data providers.
type Registry struct {
	Fetch   FetchConfig    `yaml:"fetch,omitempty"`
	Sources []SourceConfig `yaml:"sources"`
}

// SourceConfig defines a single provider.
type SourceConfig struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name"`
	Adapter    string `yaml:"adapter"` // grantsgov, philanthropy, rss, directory
	SourceType string `yaml:"source_type"`
	BaseURL    string `yaml:"base_url,omitempty"`
	FeedURL    string `yaml:"feed_url,omitempty"`
	SeedURL    string `yaml:"seed_url,omitempty"`
	APIKey     string `yaml:"api_key,omitempty"`
	RequireKey bool   `yaml:"requires_key,omitempty"`
	Enabled    bool   `yaml:"enabled"`
	MaxPages   int    `yaml:"max_pages,omitempty"`

	// Selectors for the directory (HTML) adapter only.
	Selectors SelectorConfig `yaml:"selectors,omitempty"`
}

// SelectorConfig drives the HTML directory adapter.
type SelectorConfig struct {
	Container string `yaml:"container,omitempty"`
	Title     string `yaml:"title,omitempty"`
	Link      string `yaml:"link,omitempty"`
	Amount    string `yaml:"amount,omitempty"`
	Deadline  string `yaml:"deadline,omitempty"`
	Summary   string `yaml:"summary,omitempty"`
}

// LoadRegistry reads the embedded sources.yaml, falling back to the given
// path for local development. ${VAR} references are expanded from the
// environment so API keys never live in the file.
func LoadRegistry(path string) (*Registry, error) {
	data, err := sourcesYAML.ReadFile("config/sources.yaml")
	if err != nil {
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, err
		}
	}

	expanded := os.ExpandEnv(string(data))

	var reg Registry
	if err := yaml.Unmarshal([]byte(expanded), &reg); err != nil {
		return nil, fmt.Errorf("parsing source registry: %w", err)
	}

	return &reg, nil
}

// Build constructs adapters for all enabled sources. Sources whose required
// credential expanded to empty are reported as skipped, never attempted.
func (r *Registry) Build(client *Client) (adapters []Adapter, skipped []string, err error) {
	for _, src := range r.Sources {
		if !src.Enabled {
			continue
		}
		if src.RequireKey && strings.TrimSpace(src.APIKey) == "" {
			skipped = append(skipped, src.ID)
			continue
		}

		switch src.Adapter {
		case "grantsgov":
			adapters = append(adapters, NewGrantsGovAdapter(client, src))
		case "philanthropy":
			adapters = append(adapters, NewPhilanthropyAdapter(client, src))
		case "rss":
			adapters = append(adapters, NewRSSAdapter(client, src))
		case "directory":
			adapters = append(adapters, NewDirectoryAdapter(src, r.Fetch))
		default:
			return nil, nil, fmt.Errorf("unknown adapter %q for source %q", src.Adapter, src.ID)
		}
	}
	return adapters, skipped, nil
}
