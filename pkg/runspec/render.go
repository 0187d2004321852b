package runspec

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// RenderYAML emits the harness-ready document. Sections come out in the
// canonical order regardless of how the input was written.
func RenderYAML(d *Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(d); err != nil {
		return nil, fmt.Errorf("failed to render run config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to render run config: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderJSON emits the document as indented JSON with alphabetically
// ordered map keys, the form used for submission payloads.
func RenderJSON(d *Document) ([]byte, error) {
	b, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to render run config: %w", err)
	}
	return b, nil
}
