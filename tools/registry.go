package tools

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Factory constructs a fresh tool instance per selection.
type Factory func() Tool

// Bundle names a reusable group of tools selectable as "@name".
type Bundle struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Tools       []string `json:"tools"`
}

var (
	regMu     sync.RWMutex
	factories = map[string]Factory{}
	descs     = map[string]string{}
	bundles   = map[string]Bundle{}
)

func RegisterFactory(name, description string, factory Factory) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("tool name is required")
	}
	if factory == nil {
		return fmt.Errorf("tool factory is required")
	}
	regMu.Lock()
	defer regMu.Unlock()
	if _, exists := factories[name]; exists {
		return fmt.Errorf("tool %q already registered", name)
	}
	factories[name] = factory
	descs[name] = strings.TrimSpace(description)
	return nil
}

func MustRegisterFactory(name, description string, factory Factory) {
	if err := RegisterFactory(name, description, factory); err != nil {
		panic(err)
	}
}

func RegisterBundle(name, description string, toolNames []string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("bundle name is required")
	}
	cleaned := make([]string, 0, len(toolNames))
	for _, t := range toolNames {
		if t = strings.TrimSpace(t); t != "" {
			cleaned = append(cleaned, t)
		}
	}
	if len(cleaned) == 0 {
		return fmt.Errorf("bundle %q has no tools", name)
	}
	regMu.Lock()
	defer regMu.Unlock()
	if _, exists := bundles[name]; exists {
		return fmt.Errorf("bundle %q already registered", name)
	}
	bundles[name] = Bundle{Name: name, Description: strings.TrimSpace(description), Tools: cleaned}
	return nil
}

func FactoryNames() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]string, 0, len(factories))
	for n := range factories {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// BuildSelection instantiates the named tools. Entries may be tool
// names, "@bundle" references, or "*" for every registered tool.
func BuildSelection(selection []string) ([]Tool, error) {
	names, err := expandSelection(selection)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, nil
	}
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]Tool, 0, len(names))
	for _, name := range names {
		factory, ok := factories[name]
		if !ok {
			return nil, fmt.Errorf("unknown tool %q", name)
		}
		tool := factory()
		if tool == nil {
			return nil, fmt.Errorf("tool %q factory returned nil", name)
		}
		out = append(out, tool)
	}
	return out, nil
}

func expandSelection(selection []string) ([]string, error) {
	regMu.RLock()
	defer regMu.RUnlock()

	ordered := make([]string, 0, len(selection))
	seen := map[string]bool{}
	appendName := func(name string) {
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		ordered = append(ordered, name)
	}

	for _, raw := range selection {
		entry := strings.TrimSpace(raw)
		switch {
		case entry == "":
		case strings.HasPrefix(entry, "@"):
			bundle, ok := bundles[strings.TrimPrefix(entry, "@")]
			if !ok {
				return nil, fmt.Errorf("unknown tool bundle %q", strings.TrimPrefix(entry, "@"))
			}
			for _, n := range bundle.Tools {
				appendName(n)
			}
		case entry == "*":
			all := make([]string, 0, len(factories))
			for n := range factories {
				all = append(all, n)
			}
			sort.Strings(all)
			for _, n := range all {
				appendName(n)
			}
		default:
			appendName(entry)
		}
	}
	return ordered, nil
}
