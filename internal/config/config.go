package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models taskdesk.yml. Everything is optional: a missing file or an
// empty section falls back to the built-in defaults, so a fresh workspace
// works without any configuration.
type Config struct {
	Partners   []Partner `yaml:"partners"`
	Categories []string  `yaml:"categories"`
	Backups    struct {
		Retention int `yaml:"retention"`
	} `yaml:"backups"`
}

type Partner struct {
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
}

// DefaultRetention is the number of backup slots kept when the config does
// not override it.
const DefaultRetention = 10

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "taskdesk.yml")
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	seen := map[string]bool{}
	for i, p := range c.Partners {
		if p.Name == "" {
			return fmt.Errorf("partners[%d] has empty name", i)
		}
		if seen[p.Name] {
			return fmt.Errorf("partner %s listed twice; lookups are by name", p.Name)
		}
		seen[p.Name] = true
	}
	for i, cat := range c.Categories {
		if cat == "" {
			return fmt.Errorf("categories[%d] is empty", i)
		}
	}
	if c.Backups.Retention < 0 {
		return fmt.Errorf("backups.retention must be >= 0")
	}
	return nil
}

// Retention returns the configured backup retention, or the default.
func (c *Config) Retention() int {
	if c == nil || c.Backups.Retention == 0 {
		return DefaultRetention
	}
	return c.Backups.Retention
}

// GenerateDefault returns default config YAML for td init-style bootstrap.
func GenerateDefault() string {
	return defaultTemplate
}

const defaultTemplate = `# taskdesk.yml - optional workspace configuration.
# Remove a section to fall back to the built-in defaults.

partners:
  - name: Avi
    email: aviluv@oporto-carbon.com
  - name: Sivan
    email: SivanLa@bdo.co.il
  - name: Lihi
    email: LihieI@bdo.co.il

categories:
  - Development
  - Marketing
  - Operations
  - Finance
  - Legal
  - General

backups:
  retention: 10
`
