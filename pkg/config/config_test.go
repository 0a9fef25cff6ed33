package config

import (
	"os"
	"path/filepath"
	"testing"
)

func validConfig() *Config {
	cfg := Default()
	cfg.MdFrontAddr = "tcp://md.example.com:41213"
	cfg.TraderFrontAddr = "tcp://td.example.com:41205"
	cfg.BrokerID = "9999"
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing md front", func(c *Config) { c.MdFrontAddr = "" }, true},
		{"missing trader front", func(c *Config) { c.TraderFrontAddr = "" }, true},
		{"missing broker id", func(c *Config) { c.BrokerID = "" }, true},
		{"timeout too small", func(c *Config) { c.TimeoutSecs = 0 }, true},
		{"timeout too large", func(c *Config) { c.TimeoutSecs = 301 }, true},
		{"warning level out of range", func(c *Config) { c.RiskWarningLevel = 1.5 }, true},
		{"force close below warning", func(c *Config) {
			c.RiskWarningLevel = 0.9
			c.RiskForceCloseLevel = 0.8
		}, true},
		{"bad language", func(c *Config) { c.Language = "fr" }, true},
		{"negative order volume", func(c *Config) { c.MaxOrderVolume = -1 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	data := `
md_front_addr: tcp://md.example.com:41213
trader_front_addr: tcp://td.example.com:41205
broker_id: "9999"
investor_id: "100001"
timeout_secs: 10
language: zh
multipliers:
  rb2610: 10
  IF2609: 300
instruments: [rb2610, IF2609]
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BrokerID != "9999" {
		t.Fatalf("BrokerID = %q, want 9999", cfg.BrokerID)
	}
	if cfg.TimeoutSecs != 10 {
		t.Fatalf("TimeoutSecs = %d, want 10", cfg.TimeoutSecs)
	}
	// Defaults survive for fields the file omits.
	if cfg.RiskWarningLevel != 0.8 || cfg.RiskForceCloseLevel != 0.9 {
		t.Fatalf("risk levels = %v/%v, want defaults 0.8/0.9",
			cfg.RiskWarningLevel, cfg.RiskForceCloseLevel)
	}
	if got := cfg.Multiplier("IF2609"); got != 300 {
		t.Fatalf("Multiplier(IF2609) = %v, want 300", got)
	}
	if got := cfg.Multiplier("unknown"); got != cfg.DefaultMultiplier {
		t.Fatalf("Multiplier(unknown) = %v, want default %v", got, cfg.DefaultMultiplier)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	data := `
md_front_addr: tcp://md.example.com:41213
trader_front_addr: tcp://td.example.com:41205
broker_id: "9999"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("BROKER_ID", "8888")
	t.Setenv("TIMEOUT_SECS", "15")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BrokerID != "8888" {
		t.Fatalf("BrokerID = %q, want env override 8888", cfg.BrokerID)
	}
	if cfg.TimeoutSecs != 15 {
		t.Fatalf("TimeoutSecs = %d, want env override 15", cfg.TimeoutSecs)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yml"); err == nil {
		t.Fatalf("Load() should fail for a missing file")
	}
}
