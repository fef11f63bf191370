// Package content renders subscriber meta into message content.
//
// Meta keys appear in content as {{ key }} merge tags, matched
// case-insensitively. Rendering goes through the Liquid engine, so content
// may also use filters ({{ name | upcase }}) without any extra plumbing.
package content

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/osteele/liquid"
)

var mergeTag = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+)`)

// Merger renders merge tags from a subscriber's meta map.
type Merger struct {
	engine *liquid.Engine
	cache  sync.Map // template source -> *liquid.Template
}

// NewMerger creates a Merger with a fresh Liquid engine.
func NewMerger() *Merger {
	return &Merger{engine: liquid.NewEngine()}
}

// Merge renders content with the given meta bindings. Unknown tags render
// as empty, never as an error: a missing meta key must not block a send.
func (m *Merger) Merge(text string, meta map[string]any) (string, error) {
	bindings := make(map[string]any, len(meta))
	lower := make(map[string]string, len(meta))
	for k, v := range meta {
		bindings[k] = v
		lower[strings.ToLower(k)] = k
	}

	// Canonicalize tag case so {{ First_Name }} finds meta key
	// "first_name", matching the historical case-insensitive behavior.
	text = mergeTag.ReplaceAllStringFunc(text, func(match string) string {
		name := mergeTag.FindStringSubmatch(match)[1]
		if canonical, ok := lower[strings.ToLower(name)]; ok && canonical != name {
			return strings.Replace(match, name, canonical, 1)
		}
		return match
	})

	tpl, err := m.parse(text)
	if err != nil {
		return "", fmt.Errorf("parse merge template: %w", err)
	}
	out, err := tpl.Render(bindings)
	if err != nil {
		return "", fmt.Errorf("render merge template: %w", err)
	}
	return string(out), nil
}

func (m *Merger) parse(text string) (*liquid.Template, error) {
	if cached, ok := m.cache.Load(text); ok {
		return cached.(*liquid.Template), nil
	}
	tpl, err := m.engine.ParseString(text)
	if err != nil {
		return nil, err
	}
	m.cache.Store(text, tpl)
	return tpl, nil
}
