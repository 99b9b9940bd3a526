package config

import "strings"

// ComponentsConfig lists the optional data models and route groups resolved at startup.
// Names that cannot be built degrade instead of stopping the process.
type ComponentsConfig struct {
	// Models are collection names, e.g. "verified_agents".
	Models []string `env:"MODELS" envDefault:"verified_agents" envSeparator:","`

	// Routes are route group names mounted under /api/<name>, e.g. "verified-agents".
	Routes []string `env:"ROUTES" envDefault:"verified-agents" envSeparator:","`
}

// Sanitize trims, lowercases and de-duplicates component names, keeping the first occurrence.
func (c *ComponentsConfig) Sanitize() {
	c.Models = normalizeNames(c.Models)
	c.Routes = normalizeNames(c.Routes)
}

func normalizeNames(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, name := range in {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
