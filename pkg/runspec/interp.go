package runspec

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	// ErrUnknownReference marks a ${...} reference to a key that does not
	// exist in the document.
	ErrUnknownReference = errors.New("reference to unknown key")

	// ErrReferenceCycle marks ${...} references that form a cycle.
	ErrReferenceCycle = errors.New("reference cycle")
)

var (
	refPattern     = regexp.MustCompile(`\$\{([^}]*)\}`)
	refNamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+(?:\.[A-Za-z0-9_]+)*$`)
)

const (
	stateResolving = 1
	stateResolved  = 2
)

type resolver struct {
	root  *yaml.Node
	state map[*yaml.Node]int
}

// resolveReferences rewrites every ${...} reference in the document with
// the value it points at. A scalar that consists of exactly one
// reference adopts the referent's type; a reference embedded in a longer
// string stringifies the referent.
func resolveReferences(doc *yaml.Node) error {
	root := doc
	if root.Kind == yaml.DocumentNode {
		if len(root.Content) == 0 {
			return nil
		}
		root = root.Content[0]
	}
	r := &resolver{root: root, state: make(map[*yaml.Node]int)}
	return r.walk(root, "")
}

func (r *resolver) walk(n *yaml.Node, path string) error {
	switch n.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			if err := r.walk(n.Content[i+1], childPath(path, n.Content[i].Value)); err != nil {
				return err
			}
		}
	case yaml.SequenceNode:
		for i, item := range n.Content {
			if err := r.walk(item, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
	case yaml.ScalarNode:
		return r.resolveScalar(n, path)
	}
	return nil
}

func (r *resolver) resolveScalar(n *yaml.Node, path string) error {
	if !strings.Contains(n.Value, "${") {
		return nil
	}

	switch r.state[n] {
	case stateResolving:
		return fmt.Errorf("%s: %w", path, ErrReferenceCycle)
	case stateResolved:
		return nil
	}
	r.state[n] = stateResolving

	matches := refPattern.FindAllStringSubmatchIndex(n.Value, -1)

	if len(matches) == 1 && matches[0][0] == 0 && matches[0][1] == len(n.Value) {
		ref := n.Value[matches[0][2]:matches[0][3]]
		target, err := r.lookup(ref, path)
		if err != nil {
			return err
		}
		if err := r.resolveScalar(target, ref); err != nil {
			return err
		}
		n.Tag = target.Tag
		n.Value = target.Value
		n.Style = 0
		r.state[n] = stateResolved
		return nil
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		b.WriteString(n.Value[last:m[0]])
		ref := n.Value[m[2]:m[3]]
		target, err := r.lookup(ref, path)
		if err != nil {
			return err
		}
		if err := r.resolveScalar(target, ref); err != nil {
			return err
		}
		b.WriteString(target.Value)
		last = m[1]
	}
	b.WriteString(n.Value[last:])
	n.Value = b.String()
	n.Tag = "!!str"
	n.Style = 0
	r.state[n] = stateResolved
	return nil
}

func (r *resolver) lookup(ref, from string) (*yaml.Node, error) {
	if !refNamePattern.MatchString(ref) {
		return nil, fmt.Errorf("%s: malformed reference ${%s}", from, ref)
	}

	node := r.root
	parts := strings.Split(ref, ".")
	for i, part := range parts {
		if node.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("%s: reference ${%s}: %s is not a mapping", from, ref, strings.Join(parts[:i], "."))
		}
		var next *yaml.Node
		for j := 0; j+1 < len(node.Content); j += 2 {
			if node.Content[j].Value == part {
				next = node.Content[j+1]
				break
			}
		}
		if next == nil {
			return nil, fmt.Errorf("%s: ${%s}: %w", from, ref, ErrUnknownReference)
		}
		node = next
	}

	if node.Kind != yaml.ScalarNode {
		return nil, fmt.Errorf("%s: reference ${%s} targets a non-scalar value", from, ref)
	}
	return node, nil
}

func childPath(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}
