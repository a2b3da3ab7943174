package config

import (
	"testing"
	"time"
)

func TestGetEnvAsDuration(t *testing.T) {
	cases := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{"go duration", "15s", 15 * time.Second},
		{"bare seconds", "7", 7 * time.Second},
		{"garbage falls back", "soon", time.Minute},
		{"empty falls back", "", time.Minute},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("TEST_DURATION", tc.value)
			if got := getEnvAsDuration("TEST_DURATION", time.Minute); got != tc.want {
				t.Fatalf("getEnvAsDuration(%q) = %v, want %v", tc.value, got, tc.want)
			}
		})
	}
}

func TestGetEnvAsList(t *testing.T) {
	t.Setenv("TEST_LIST", " https://a.example , ,https://b.example")
	got := getEnvAsList("TEST_LIST", []string{"*"})
	if len(got) != 2 || got[0] != "https://a.example" || got[1] != "https://b.example" {
		t.Fatalf("getEnvAsList = %v", got)
	}

	t.Setenv("TEST_LIST", " , ")
	got = getEnvAsList("TEST_LIST", []string{"*"})
	if len(got) != 1 || got[0] != "*" {
		t.Fatalf("expected fallback, got %v", got)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "Memory")
	t.Setenv("S3_PUBLIC_BASE", "https://cdn.example/")
	cfg := LoadConfig()

	if cfg.StoreDriver != StoreDriverMemory {
		t.Errorf("StoreDriver = %q, want %q", cfg.StoreDriver, StoreDriverMemory)
	}
	if cfg.PhotoMaxBytes != 5*1024*1024 {
		t.Errorf("PhotoMaxBytes = %d", cfg.PhotoMaxBytes)
	}
	if cfg.MessagePageDefault != 200 || cfg.MessagePageMax != 500 {
		t.Errorf("message page = %d/%d", cfg.MessagePageDefault, cfg.MessagePageMax)
	}
	if cfg.S3PublicBase != "https://cdn.example" {
		t.Errorf("S3PublicBase = %q", cfg.S3PublicBase)
	}
	if cfg.S3Configured() {
		t.Errorf("S3Configured should be false without region and bucket")
	}
}
