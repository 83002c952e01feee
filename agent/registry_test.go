package agent

import (
	"errors"
	"testing"
)

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	ag := MustNew(Config{Key: "support", Provider: "fake", Model: "m"})

	if err := r.Register(ag, false); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	got, err := r.Get("support")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Key() != "support" {
		t.Fatalf("unexpected agent: %q", got.Key())
	}
}

func TestRegistryDuplicateRejected(t *testing.T) {
	r := NewRegistry()
	first := MustNew(Config{Key: "support", Model: "m1"})
	second := MustNew(Config{Key: "support", Model: "m2"})

	if err := r.Register(first, false); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	err := r.Register(second, false)
	var dup *DuplicateError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateError, got %v", err)
	}

	got, _ := r.Get("support")
	if got.Model() != "m1" {
		t.Fatalf("failed duplicate registration must not replace: %q", got.Model())
	}

	if err := r.Register(second, true); err != nil {
		t.Fatalf("override register failed: %v", err)
	}
	got, _ = r.Get("support")
	if got.Model() != "m2" {
		t.Fatalf("override did not replace: %q", got.Model())
	}
}

func TestRegistryConstructor(t *testing.T) {
	r := NewRegistry()
	ctor := func() (Agent, error) {
		return New(Config{Key: "built", Model: "m"})
	}
	if err := r.Register(ctor, false); err != nil {
		t.Fatalf("constructor register failed: %v", err)
	}
	if !r.Has("built") {
		t.Fatalf("constructed agent not stored")
	}

	failing := func() (Agent, error) { return nil, errors.New("boom") }
	err := r.Register(failing, false)
	var res *ResolutionError
	if !errors.As(err, &res) {
		t.Fatalf("expected ResolutionError, got %v", err)
	}
}

func TestRegistryMissIsNotFound(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get("nope")
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestRegistryInvalidValueRejected(t *testing.T) {
	r := NewRegistry()
	err := r.Register(42, false)
	var invalid *InvalidDefinitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidDefinitionError, got %v", err)
	}
}

func TestRegistryAllSorted(t *testing.T) {
	r := NewRegistry()
	for _, key := range []string{"zeta", "alpha", "mid"} {
		if err := r.Register(MustNew(Config{Key: key, Model: "m"}), false); err != nil {
			t.Fatalf("register %s: %v", key, err)
		}
	}
	keys := r.Keys()
	want := []string{"alpha", "mid", "zeta"}
	for i, k := range want {
		if keys[i] != k {
			t.Fatalf("keys not sorted: %v", keys)
		}
	}
	if r.Count() != 3 {
		t.Fatalf("unexpected count %d", r.Count())
	}
}
