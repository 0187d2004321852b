package runspec

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

var DebugLog func(string, ...interface{})

// Load reads a run configuration document from disk, resolves ${...}
// references and decodes it strictly.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read run config: %w", err)
	}

	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if DebugLog != nil {
		DebugLog("loaded run config from %s", path)
	}

	return doc, nil
}

// Parse decodes a run configuration document from raw YAML. References
// are resolved before decoding, and unknown fields outside the free-form
// mappings are rejected.
func Parse(data []byte) (*Document, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse run config: %w", err)
	}

	if root.Kind == 0 || len(root.Content) == 0 {
		return nil, fmt.Errorf("run config is empty")
	}
	if root.Content[0].Kind != yaml.MappingNode {
		return nil, fmt.Errorf("run config must be a YAML mapping")
	}

	if err := resolveReferences(&root); err != nil {
		return nil, err
	}

	resolved, err := yaml.Marshal(&root)
	if err != nil {
		return nil, fmt.Errorf("failed to re-encode resolved config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(resolved))
	dec.KnownFields(true)

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode run config: %w", err)
	}

	return &doc, nil
}
