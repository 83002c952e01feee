package usage

import "testing"

func TestDefaultExtractor_SnakeCaseMap(t *testing.T) {
	u := DefaultExtractor{}.Extract(map[string]any{"total_tokens": 42})
	if u.TotalTokens != 42 {
		t.Fatalf("expected total tokens 42, got %d", u.TotalTokens)
	}
	if u.PromptTokens != 0 || u.CompletionTokens != 0 {
		t.Fatalf("expected absent fields to default to zero")
	}
}

func TestDefaultExtractor_CamelCaseMapWithExtra(t *testing.T) {
	u := DefaultExtractor{}.Extract(map[string]any{
		"promptTokens":     float64(10),
		"completionTokens": float64(5),
		"cachedTokens":     float64(3),
	})
	if u.PromptTokens != 10 || u.CompletionTokens != 5 {
		t.Fatalf("unexpected counts: %+v", u)
	}
	if u.TotalTokens != 15 {
		t.Fatalf("expected derived total 15, got %d", u.TotalTokens)
	}
	if u.Extra["cachedTokens"] != float64(3) {
		t.Fatalf("expected provider-specific field preserved in Extra")
	}
}

func TestDefaultExtractor_StructShaped(t *testing.T) {
	type providerUsage struct {
		InputTokens  int
		OutputTokens int
	}
	u := DefaultExtractor{}.Extract(&providerUsage{InputTokens: 7, OutputTokens: 3})
	if u.PromptTokens != 7 || u.CompletionTokens != 3 || u.TotalTokens != 10 {
		t.Fatalf("unexpected counts: %+v", u)
	}
}

func TestDefaultExtractor_NeverPanicsOnGarbage(t *testing.T) {
	for _, raw := range []any{nil, 17, "usage", []int{1}, map[string]any{"total_tokens": "many"}} {
		u := DefaultExtractor{}.Extract(raw)
		if u.PromptTokens != 0 || u.CompletionTokens != 0 || u.TotalTokens != 0 {
			t.Fatalf("expected zero usage for %v, got %+v", raw, u)
		}
	}
}

func TestRegistry_FallsBackToDefault(t *testing.T) {
	r := NewRegistry()
	e := r.ForProvider("unregistered")
	u := e.Extract(map[string]any{"total_tokens": 42})
	if u.TotalTokens != 42 {
		t.Fatalf("expected default extractor fallback, got %+v", u)
	}
}

type fixedExtractor struct{ name string }

func (f fixedExtractor) Provider() string  { return f.name }
func (f fixedExtractor) Extract(any) Usage { return Usage{TotalTokens: 99} }

func TestRegistry_PrefersProviderSpecific(t *testing.T) {
	r := NewRegistry()
	r.Register(fixedExtractor{name: "custom"})
	if got := r.ForProvider("custom").Extract(nil).TotalTokens; got != 99 {
		t.Fatalf("expected provider-specific extractor, got %d", got)
	}
}

func TestMerge_SumsAcrossSteps(t *testing.T) {
	merged := Merge([]any{
		map[string]any{"prompt_tokens": 10, "completion_tokens": 2},
		map[string]any{"prompt_tokens": 20, "completion_tokens": 3},
	})
	u := DefaultExtractor{}.Extract(merged)
	if u.PromptTokens != 30 || u.CompletionTokens != 5 || u.TotalTokens != 35 {
		t.Fatalf("unexpected merged usage: %+v", u)
	}
}
