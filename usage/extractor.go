// Package usage normalizes provider token accounting into a common
// shape. Providers report usage in incompatible field spellings and
// container shapes; extractors absorb that variance.
package usage

import (
	"reflect"
	"sync"
)

type Usage struct {
	PromptTokens     int            `json:"promptTokens"`
	CompletionTokens int            `json:"completionTokens"`
	TotalTokens      int            `json:"totalTokens"`
	Extra            map[string]any `json:"extra,omitempty"`
}

// Extractor reads token counts out of a raw provider usage payload.
// Extract must never fail: unknown shapes yield zeroed counts.
type Extractor interface {
	Provider() string
	Extract(raw any) Usage
}

// Registry maps provider names to extractors, falling back to a
// best-effort default when no provider-specific one is registered.
type Registry struct {
	mu         sync.RWMutex
	extractors map[string]Extractor
	fallback   Extractor
}

func NewRegistry() *Registry {
	return &Registry{
		extractors: map[string]Extractor{},
		fallback:   DefaultExtractor{},
	}
}

func (r *Registry) Register(e Extractor) {
	if e == nil || e.Provider() == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extractors[e.Provider()] = e
}

func (r *Registry) ForProvider(name string) Extractor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.extractors[name]; ok {
		return e
	}
	return r.fallback
}

// DefaultExtractor heuristically reads prompt/completion/total token
// fields, accepting both camelCase and snake_case spellings, from a
// map- or struct-shaped payload.
type DefaultExtractor struct{}

func (DefaultExtractor) Provider() string { return "" }

func (DefaultExtractor) Extract(raw any) Usage {
	switch v := raw.(type) {
	case nil:
		return Usage{}
	case Usage:
		return v
	case *Usage:
		if v == nil {
			return Usage{}
		}
		return *v
	case map[string]any:
		return fromMap(v)
	default:
		return fromStruct(raw)
	}
}

var (
	promptKeys     = []string{"promptTokens", "prompt_tokens", "inputTokens", "input_tokens"}
	completionKeys = []string{"completionTokens", "completion_tokens", "outputTokens", "output_tokens"}
	totalKeys      = []string{"totalTokens", "total_tokens"}
)

func fromMap(m map[string]any) Usage {
	u := Usage{}
	u.PromptTokens, _ = firstInt(m, promptKeys)
	u.CompletionTokens, _ = firstInt(m, completionKeys)
	u.TotalTokens, _ = firstInt(m, totalKeys)
	if u.TotalTokens == 0 {
		u.TotalTokens = u.PromptTokens + u.CompletionTokens
	}
	known := map[string]bool{}
	for _, keys := range [][]string{promptKeys, completionKeys, totalKeys} {
		for _, k := range keys {
			known[k] = true
		}
	}
	for k, v := range m {
		if known[k] {
			continue
		}
		if u.Extra == nil {
			u.Extra = map[string]any{}
		}
		u.Extra[k] = v
	}
	return u
}

func firstInt(m map[string]any, keys []string) (int, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if n, ok := asInt(v); ok {
				return n, true
			}
		}
	}
	return 0, false
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case float32:
		return int(n), true
	default:
		return 0, false
	}
}

var structFields = map[string][]string{
	"prompt":     {"PromptTokens", "InputTokens"},
	"completion": {"CompletionTokens", "OutputTokens"},
	"total":      {"TotalTokens"},
}

func fromStruct(raw any) Usage {
	rv := reflect.ValueOf(raw)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return Usage{}
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return Usage{}
	}
	u := Usage{
		PromptTokens:     structInt(rv, structFields["prompt"]),
		CompletionTokens: structInt(rv, structFields["completion"]),
		TotalTokens:      structInt(rv, structFields["total"]),
	}
	if u.TotalTokens == 0 {
		u.TotalTokens = u.PromptTokens + u.CompletionTokens
	}
	return u
}

func structInt(rv reflect.Value, names []string) int {
	for _, name := range names {
		f := rv.FieldByName(name)
		if !f.IsValid() || !f.CanInterface() {
			continue
		}
		if n, ok := asInt(f.Interface()); ok && n != 0 {
			return n
		}
	}
	return 0
}

// Merge sums a sequence of raw usage payloads into a single map so
// that multi-step tool loops report aggregate accounting in a shape
// the default extractor still understands.
func Merge(raws []any) any {
	if len(raws) == 0 {
		return nil
	}
	if len(raws) == 1 {
		return raws[0]
	}
	total := Usage{}
	d := DefaultExtractor{}
	for _, raw := range raws {
		u := d.Extract(raw)
		total.PromptTokens += u.PromptTokens
		total.CompletionTokens += u.CompletionTokens
		total.TotalTokens += u.TotalTokens
	}
	return map[string]any{
		"prompt_tokens":     total.PromptTokens,
		"completion_tokens": total.CompletionTokens,
		"total_tokens":      total.TotalTokens,
	}
}
