// Package presets ships starter run configurations baked into the
// binary, one YAML document per preset.
package presets

import (
	"embed"
	"fmt"
	"sort"
	"strings"
)

//go:embed templates/*.yaml
var templates embed.FS

// Preset is a named starter configuration.
type Preset struct {
	Name        string
	Description string
}

// Names returns the available preset names, sorted.
func Names() []string {
	entries, err := templates.ReadDir("templates")
	if err != nil {
		return nil
	}
	var names []string
	for _, entry := range entries {
		name := strings.TrimSuffix(entry.Name(), ".yaml")
		if name == entry.Name() {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns the available presets with their descriptions, sorted
// by name.
func List() []Preset {
	var presets []Preset
	for _, name := range Names() {
		data, err := Get(name)
		if err != nil {
			continue
		}
		presets = append(presets, Preset{Name: name, Description: describe(data)})
	}
	return presets
}

// Get returns the raw YAML document of a named preset.
func Get(name string) ([]byte, error) {
	data, err := templates.ReadFile("templates/" + name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("unknown preset %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	return data, nil
}

// describe extracts the leading comment line of a preset document.
func describe(data []byte) string {
	for _, line := range strings.Split(string(data), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "#") {
			return strings.TrimSpace(strings.TrimPrefix(trimmed, "#"))
		}
		return ""
	}
	return ""
}
