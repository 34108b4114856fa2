package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoad_Defaults(t *testing.T) {
	// Only the simulator section; server section absent.
	p := writeConfig(t, `sim:
  output_dir: results
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.GRPCPort != DefaultGRPCPort {
		t.Errorf("grpc_port: got %d, want %d", cfg.Server.GRPCPort, DefaultGRPCPort)
	}
	if cfg.Server.HTTPPort != DefaultHTTPPort {
		t.Errorf("http_port: got %d, want %d", cfg.Server.HTTPPort, DefaultHTTPPort)
	}
	if cfg.Server.Runs.TTL != DefaultRunTTL {
		t.Errorf("runs.ttl: got %v, want %v", cfg.Server.Runs.TTL, DefaultRunTTL)
	}
	if cfg.Server.Runs.MaxSteps != DefaultMaxSteps || cfg.Server.Runs.MaxValues != DefaultMaxValues {
		t.Errorf("runs limits: got %+v", cfg.Server.Runs)
	}
	if cfg.Server.StreamInterval != DefaultStreamInterval {
		t.Errorf("stream_interval: got %v, want %v", cfg.Server.StreamInterval, DefaultStreamInterval)
	}
	if cfg.Server.Storage.Enabled() {
		t.Error("storage enabled by default")
	}
}

func TestLoad_FullServer(t *testing.T) {
	p := writeConfig(t, `server:
  grpc_port: 9090
  http_port: 9091
  auth:
    mode: apikey
    key_env: MY_KEY
    header: x-sasi-key
  runs:
    ttl: 10m
    max_steps: 50
    max_values: 20
  storage:
    backend: sqlite
    path: /var/lib/sasi/runs.db
  stream_interval: 2s
  alerts:
    rules:
      - name: collapse
        condition: "state == STRUCTURAL_COLLAPSE"
        severity: critical
    webhooks:
      - type: slack
        url_env: SLACK_URL
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.GRPCPort != 9090 {
		t.Errorf("grpc_port: got %d, want 9090", cfg.Server.GRPCPort)
	}
	if cfg.Server.Auth.Mode != "apikey" {
		t.Errorf("auth.mode: got %q, want apikey", cfg.Server.Auth.Mode)
	}
	if cfg.Server.Auth.EffectiveHeader() != "x-sasi-key" {
		t.Errorf("header: got %q, want x-sasi-key", cfg.Server.Auth.EffectiveHeader())
	}
	if cfg.Server.Runs.TTL != 10*time.Minute {
		t.Errorf("runs.ttl: got %v, want 10m", cfg.Server.Runs.TTL)
	}
	if cfg.Server.Runs.MaxSteps != 50 || cfg.Server.Runs.MaxValues != 20 {
		t.Errorf("runs limits: got %+v", cfg.Server.Runs)
	}
	if !cfg.Server.Storage.Enabled() || cfg.Server.Storage.Path != "/var/lib/sasi/runs.db" {
		t.Errorf("storage: got %+v", cfg.Server.Storage)
	}
	if cfg.Server.StreamInterval != 2*time.Second {
		t.Errorf("stream_interval: got %v, want 2s", cfg.Server.StreamInterval)
	}
	if len(cfg.Server.Alerts.Rules) != 1 || cfg.Server.Alerts.Rules[0].Condition != "state == STRUCTURAL_COLLAPSE" {
		t.Errorf("alerts.rules: got %+v", cfg.Server.Alerts.Rules)
	}
}

func TestLoad_DefaultHeader(t *testing.T) {
	p := writeConfig(t, `server:
  auth:
    mode: apikey
    key_env: K
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if h := cfg.Server.Auth.EffectiveHeader(); h != "x-api-key" {
		t.Errorf("EffectiveHeader: got %q, want x-api-key", h)
	}
}

func TestLoad_KeyEnvResolution(t *testing.T) {
	t.Setenv("TEST_SERVER_KEY", "supersecret")
	p := writeConfig(t, `server:
  auth:
    mode: apikey
    key_env: TEST_SERVER_KEY
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if k := cfg.Server.Auth.Key(); k != "supersecret" {
		t.Errorf("Key(): got %q, want supersecret", k)
	}
	if k := cfg.Server.Agents.Key(); k != "" {
		t.Errorf("Agents.Key() without key_env: got %q, want empty", k)
	}
}

func TestLoad_AgentsKeyEnv(t *testing.T) {
	t.Setenv("TEST_AGENT_KEY", "agent-secret")
	p := writeConfig(t, `server:
  agents:
    key_env: TEST_AGENT_KEY
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if k := cfg.Server.Agents.Key(); k != "agent-secret" {
		t.Errorf("Agents.Key(): got %q, want agent-secret", k)
	}
}

func TestLoad_UnknownAuthMode(t *testing.T) {
	p := writeConfig(t, `server:
  auth:
    mode: oauth2
`)
	_, err := Load(p)
	if err == nil {
		t.Fatal("expected error for unknown auth mode, got nil")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"grpc port out of range", "server:\n  grpc_port: 70000\n"},
		{"http port zero", "server:\n  http_port: 0\n"},
		{"negative ttl", "server:\n  runs:\n    ttl: -1m\n"},
		{"zero max steps", "server:\n  runs:\n    max_steps: 0\n"},
		{"zero max values", "server:\n  runs:\n    max_values: 0\n"},
		{"unknown backend", "server:\n  storage:\n    backend: postgres\n"},
		{"sqlite without path", "server:\n  storage:\n    backend: sqlite\n"},
		{"zero stream interval", "server:\n  stream_interval: 0s\n"},
		{"rule without condition", "server:\n  alerts:\n    rules:\n      - name: x\n"},
		{"unknown webhook type", "server:\n  alerts:\n    webhooks:\n      - type: pager\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tc.yaml)); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestWebhookConfig_URL(t *testing.T) {
	t.Setenv("TEST_HOOK_URL", "https://hooks.example.com/x")
	w := WebhookConfig{Type: "http", URLEnv: "TEST_HOOK_URL"}
	if got := w.URL(); got != "https://hooks.example.com/x" {
		t.Errorf("URL(): got %q", got)
	}
	if got := (WebhookConfig{}).URL(); got != "" {
		t.Errorf("URL() with no URLEnv: got %q, want empty", got)
	}
}
