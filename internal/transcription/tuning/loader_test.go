package tuning

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func write(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write yaml: %v", err)
	}
}

func TestLoaderLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	write(t, path, `
batch_size: 8
chunk_duration_sec: 20
search_window_sec: 4
drop_policy: retry
retry_attempts: 3
`)

	l := NewLoader(path)
	if _, ok := l.Current(); ok {
		t.Fatal("Current reported loaded before Load")
	}
	p, err := l.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := Params{BatchSize: 8, ChunkDurationSec: 20, SearchWindowSec: 4, DropPolicy: "retry", RetryAttempts: 3}
	if p != want {
		t.Fatalf("params = %+v, want %+v", p, want)
	}
	if cur, ok := l.Current(); !ok || cur != want {
		t.Fatalf("Current = %+v, %v", cur, ok)
	}
}

func TestLoaderKeepsPreviousOnInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	write(t, path, "batch_size: 4\n")
	l := NewLoader(path)
	if _, err := l.Load(); err != nil {
		t.Fatal(err)
	}

	for _, bad := range []string{"batch_size: -1\n", "drop_policy: sometimes\n", "batch_size: [\n"} {
		write(t, path, bad)
		if _, err := l.Load(); err == nil {
			t.Errorf("Load(%q) succeeded", bad)
		}
	}
	if cur, _ := l.Current(); cur.BatchSize != 4 {
		t.Fatalf("batch size = %d, want previous value 4", cur.BatchSize)
	}
}

func TestLoaderWatchAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	write(t, path, "batch_size: 4\n")
	l := NewLoader(path)
	if _, err := l.Load(); err != nil {
		t.Fatal(err)
	}

	reloaded := make(chan Params, 8)
	l.OnReload(func(p Params) {
		select {
		case reloaded <- p:
		default:
		}
	})

	done := make(chan struct{})
	errc := make(chan error, 1)
	go func() { errc <- l.WatchAndReload(done) }()
	// Give the watcher time to register.
	time.Sleep(100 * time.Millisecond)

	write(t, path, "batch_size: 16\n")
	deadline := time.Now().Add(3 * time.Second)
	for {
		if cur, _ := l.Current(); cur.BatchSize == 16 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("tuning file change not picked up")
		}
		time.Sleep(20 * time.Millisecond)
	}

	select {
	case <-reloaded:
	case <-time.After(time.Second):
		t.Error("OnReload callback not invoked")
	}

	close(done)
	if err := <-errc; err != nil {
		t.Fatalf("WatchAndReload: %v", err)
	}
}
