// Package contexts loads the per-conversation initial instructions from a
// YAML or JSON file keyed by context name.
package contexts

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// DefaultKey names the fallback context.
const DefaultKey = "default"

var (
	separatorRun = regexp.MustCompile(`[\s_]+`)
	dashRun      = regexp.MustCompile(`-+`)
)

// Loader reads the contexts file once and serves lookups from memory.
type Loader struct {
	path string

	mu       sync.Mutex
	contexts map[string]string
}

func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// InitialContext returns the context for key, falling back to the default
// entry. Load failures are logged and yield ("", false).
func (l *Loader) InitialContext(key string) (string, bool) {
	contexts, err := l.load()
	if err != nil {
		slog.Warn("Initial context unavailable", "path", l.path, "err", err)
		return "", false
	}

	if text, ok := contexts[key]; ok {
		return text, true
	}
	if key != DefaultKey {
		slog.Warn("Context key not found, using default", "context_key", key)
	}
	if text, ok := contexts[NormalizeKey(key)]; ok {
		return text, true
	}
	text, ok := contexts[DefaultKey]
	return text, ok
}

// Clear drops the cached file contents.
func (l *Loader) Clear() {
	l.mu.Lock()
	l.contexts = nil
	l.mu.Unlock()
}

func (l *Loader) load() (map[string]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.contexts != nil {
		return l.contexts, nil
	}

	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, err
	}
	contexts, err := Parse(data)
	if err != nil {
		return nil, err
	}
	l.contexts = contexts
	return contexts, nil
}

// Parse builds the context map from a YAML or JSON document. Every key also
// registers its normalized alias; when no "default" entry exists the first
// valid entry becomes the default.
func Parse(data []byte) (map[string]string, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse contexts: %w", err)
	}
	if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, errors.New("contexts file must be a mapping of context keys")
	}

	root := doc.Content[0]
	contexts := make(map[string]string)
	var first string
	for i := 0; i+1 < len(root.Content); i += 2 {
		rawKey := root.Content[i].Value
		var value any
		if err := root.Content[i+1].Decode(&value); err != nil {
			continue
		}
		text := normalizeValue(value)
		if text == "" {
			continue
		}
		if first == "" {
			first = rawKey
		}
		contexts[rawKey] = text
		if alias := NormalizeKey(rawKey); alias != "" {
			if _, exists := contexts[alias]; !exists {
				contexts[alias] = text
			}
		}
	}

	if _, ok := contexts[DefaultKey]; !ok && first != "" {
		contexts[DefaultKey] = contexts[first]
	}
	if _, ok := contexts[DefaultKey]; !ok {
		return nil, errors.New("no valid context entry found")
	}
	return contexts, nil
}

// NormalizeKey lower-cases key and folds whitespace and underscores into
// single dashes.
func NormalizeKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	key = separatorRun.ReplaceAllString(key, "-")
	return dashRun.ReplaceAllString(key, "-")
}

func normalizeValue(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case []any:
		var lines []string
		for _, item := range t {
			if s, ok := item.(string); ok {
				if s = strings.TrimSpace(s); s != "" {
					lines = append(lines, s)
				}
			}
		}
		return strings.Join(lines, "\n")
	case map[string]any:
		for _, field := range []string{"instructions", "prompt", "content", "text"} {
			if text := normalizeValue(t[field]); text != "" {
				return text
			}
		}
	}
	return ""
}
