package deepgram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/voicetyped/scribe/internal/speech/engine"
	"github.com/voicetyped/scribe/internal/speech/registry"
)

func TestInfer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Token dg" || r.URL.Query().Get("model") != "nova-2" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"results":{"channels":[{"alternatives":[{"transcript":"good morning","confidence":0.98}]}]}}`))
	}))
	defer server.Close()

	eng, err := registry.Engines.Create("deepgram", map[string]string{
		"deepgram_api_key":  "dg",
		"deepgram_base_url": server.URL,
	})
	if err != nil {
		t.Fatal(err)
	}
	texts, err := eng.Infer(context.Background(), &engine.Batch{
		Indices:    []int{3},
		Chunks:     [][]float32{make([]float32, 160)},
		SampleRate: 16000,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(texts) != 1 || texts[0] != "good morning" {
		t.Fatalf("texts = %q", texts)
	}
}

func TestRequiresKey(t *testing.T) {
	if _, err := registry.Engines.Create("deepgram", nil); err == nil {
		t.Fatal("expected error without key")
	}
}
