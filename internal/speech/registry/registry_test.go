package registry

import (
	"errors"
	"slices"
	"testing"
)

func TestRegistryCreate(t *testing.T) {
	r := New[string]()
	r.Register("echo", func(cfg map[string]string) (string, error) {
		return cfg["value"], nil
	})
	r.Register("broken", func(map[string]string) (string, error) {
		return "", errors.New("missing key")
	})

	got, err := r.Create("echo", map[string]string{"value": "hi"})
	if err != nil || got != "hi" {
		t.Fatalf("Create(echo) = %q, %v", got, err)
	}

	if _, err := r.Create("nope", nil); !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("Create(nope) err = %v, want ErrUnknownBackend", err)
	}
	if _, err := r.Create("broken", nil); err == nil || err.Error() != "create broken: missing key" {
		t.Errorf("Create(broken) err = %v", err)
	}
}

func TestRegistryList(t *testing.T) {
	r := New[int]()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		r.Register(name, func(map[string]string) (int, error) { return 0, nil })
	}
	if got := r.List(); !slices.Equal(got, []string{"alpha", "mid", "zeta"}) {
		t.Errorf("List() = %v", got)
	}
	if !r.Has("mid") || r.Has("other") {
		t.Error("Has mismatch")
	}
}
