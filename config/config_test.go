package config

import "testing"

func TestEngineConfig(t *testing.T) {
	c := ScribeConfig{
		OpenAIAPIKey:    "sk",
		EngineParallel:  3,
		LoopbackLatency: 5,
		EngineModel:     "whisper-1",
	}
	m := c.EngineConfig()
	if m["openai_api_key"] != "sk" || m["parallel"] != "3" || m["latency_ms"] != "5" || m["model"] != "whisper-1" {
		t.Errorf("EngineConfig = %v", m)
	}
	if _, ok := m["language"]; ok {
		t.Error("empty language should be omitted")
	}
}

func TestWebhookEndpoints(t *testing.T) {
	c := ScribeConfig{WebhookURLs: " https://a.example.com/cb, ,https://b.example.com "}
	got := c.WebhookEndpoints()
	if len(got) != 2 || got[0] != "https://a.example.com/cb" || got[1] != "https://b.example.com" {
		t.Errorf("WebhookEndpoints = %q", got)
	}
	if (&ScribeConfig{}).WebhookEndpoints() != nil {
		t.Error("empty config should have no endpoints")
	}
}
