// Package registry loads the static agent catalog.
//
// The registry document maps agent names to their trigger definitions
// (exact keywords, phrase patterns, negation patterns), categories, and
// file patterns, plus literal command-to-agent mappings. It is read-only
// input, loaded fresh on each invocation. A missing or corrupt document
// degrades to an empty registry: the engine then simply has no agents to
// recommend.
package registry

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"

	"agentgate/internal/logging"
)

// AgentDefinition describes one selectable agent.
type AgentDefinition struct {
	Description  string   `json:"description"`
	Categories   []string `json:"categories"`
	Triggers     Triggers `json:"triggers"`
	FilePatterns []string `json:"file_patterns"`

	// Compiled at load time. Malformed patterns are dropped with a log
	// line rather than failing the whole registry.
	PhraseRegexps   []*regexp.Regexp `json:"-"`
	NegationRegexps []*regexp.Regexp `json:"-"`
}

// Triggers holds the raw trigger pattern lists for an agent.
type Triggers struct {
	ExactKeywords    []string `json:"exact_keywords"`
	PhrasePatterns   []string `json:"phrase_patterns"`
	NegationPatterns []string `json:"negation_patterns"`
}

// Registry is the full agent catalog.
type Registry struct {
	Agents          map[string]*AgentDefinition `json:"agents"`
	CommandMappings map[string][]string         `json:"command_mappings"`

	// Document key order, used for deterministic iteration and stable
	// tie-breaking. Go maps iterate randomly; the classifier contract
	// requires registry order.
	AgentOrder   []string `json:"-"`
	CommandOrder []string `json:"-"`
}

// Empty returns a registry with no agents.
func Empty() *Registry {
	return &Registry{
		Agents:          map[string]*AgentDefinition{},
		CommandMappings: map[string][]string{},
	}
}

// Load reads agent-registry.json from <workspace>/.agentgate/agents/.
// Absence or corruption degrades to an empty registry, never an error.
func Load(workspace string) *Registry {
	path := filepath.Join(workspace, ".agentgate", "agents", "agent-registry.json")
	data, err := os.ReadFile(path)
	if err != nil {
		logging.RegistryDebug("No registry at %s: %v", path, err)
		return Empty()
	}
	return Parse(data)
}

// Parse decodes a registry document. Malformed documents degrade to an
// empty registry; malformed individual regexes are skipped.
func Parse(data []byte) *Registry {
	reg := Empty()
	if err := json.Unmarshal(data, reg); err != nil {
		logging.Get(logging.CategoryRegistry).Error("Malformed registry document: %v", err)
		return Empty()
	}
	if reg.Agents == nil {
		reg.Agents = map[string]*AgentDefinition{}
	}
	if reg.CommandMappings == nil {
		reg.CommandMappings = map[string][]string{}
	}

	reg.AgentOrder = objectKeyOrder(data, "agents")
	reg.CommandOrder = objectKeyOrder(data, "command_mappings")

	for _, name := range reg.AgentOrder {
		agent := reg.Agents[name]
		if agent == nil {
			continue
		}
		agent.PhraseRegexps = compilePatterns(name, agent.Triggers.PhrasePatterns)
		agent.NegationRegexps = compilePatterns(name, agent.Triggers.NegationPatterns)
	}

	logging.RegistryDebug("Registry loaded: %d agents, %d command mappings",
		len(reg.Agents), len(reg.CommandMappings))
	return reg
}

// compilePatterns compiles each pattern case-insensitively, skipping any
// that fail to compile. A single bad pattern must never disable an agent.
func compilePatterns(agent string, patterns []string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			logging.Get(logging.CategoryRegistry).Warn("Skipping bad pattern for %s: %q (%v)", agent, p, err)
			continue
		}
		compiled = append(compiled, re)
	}
	return compiled
}

// AgentNames returns agent names in document order. Agents present in the
// map but absent from the order scan (defensive case) are appended.
func (r *Registry) AgentNames() []string {
	names := make([]string, 0, len(r.Agents))
	seen := make(map[string]bool, len(r.Agents))
	for _, name := range r.AgentOrder {
		if _, ok := r.Agents[name]; ok && !seen[name] {
			names = append(names, name)
			seen[name] = true
		}
	}
	for name := range r.Agents {
		if !seen[name] {
			names = append(names, name)
		}
	}
	return names
}

// Agent returns the definition for name, or nil.
func (r *Registry) Agent(name string) *AgentDefinition {
	return r.Agents[name]
}

// Description returns the agent's description, or empty if unknown.
func (r *Registry) Description(name string) string {
	if a := r.Agents[name]; a != nil {
		return a.Description
	}
	return ""
}

// AgentCategories returns the declared categories for an agent, or nil.
func (r *Registry) AgentCategories(name string) []string {
	if a := r.Agents[name]; a != nil {
		return a.Categories
	}
	return nil
}

// objectKeyOrder extracts the key order of the top-level object member
// named field by walking the JSON token stream. encoding/json maps do not
// preserve order, and scoring ties must break deterministically.
func objectKeyOrder(data []byte, field string) []string {
	dec := json.NewDecoder(bytes.NewReader(data))

	// Advance to the top-level object.
	tok, err := dec.Token()
	if err != nil {
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil
		}
		key, _ := keyTok.(string)
		if key != field {
			// Skip this member's value entirely.
			if err := skipValue(dec); err != nil {
				return nil
			}
			continue
		}

		// Found the target member; it must be an object.
		tok, err := dec.Token()
		if err != nil {
			return nil
		}
		if d, ok := tok.(json.Delim); !ok || d != '{' {
			return nil
		}

		var keys []string
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return keys
			}
			k, ok := keyTok.(string)
			if !ok {
				return keys
			}
			keys = append(keys, k)
			if err := skipValue(dec); err != nil {
				return keys
			}
		}
		return keys
	}
	return nil
}

// skipValue consumes exactly one JSON value from the decoder.
func skipValue(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	d, ok := tok.(json.Delim)
	if !ok {
		return nil // scalar
	}
	switch d {
	case '{', '[':
		depth := 1
		for depth > 0 {
			tok, err := dec.Token()
			if err != nil {
				return err
			}
			if dd, ok := tok.(json.Delim); ok {
				switch dd {
				case '{', '[':
					depth++
				case '}', ']':
					depth--
				}
			}
		}
	}
	return nil
}
