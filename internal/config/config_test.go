package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

// clearEnv blanks every config key so ambient environment variables
// cannot leak into the test.
func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"LOG_LEVEL", "MAX_ORDER_VALUE", "MAX_POSITION_SIZE",
		"EXPIRATION_INTERVAL", "VWAP_WINDOW", "EVENT_BUFFER",
		"SIM_SEED", "SIM_ORDERS", "SIM_ACCOUNTS", "SIM_STARTING_CASH",
	}
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("expected log level info, got %q", cfg.LogLevel)
	}
	if !cfg.MaxOrderValue.Equal(decimal.NewFromInt(1000000)) {
		t.Errorf("expected max order value 1000000, got %s", cfg.MaxOrderValue)
	}
	if !cfg.MaxPositionSize.Equal(decimal.NewFromInt(10000)) {
		t.Errorf("expected max position size 10000, got %s", cfg.MaxPositionSize)
	}
	if cfg.ExpirationInterval != time.Second {
		t.Errorf("expected expiration interval 1s, got %v", cfg.ExpirationInterval)
	}
	if cfg.VWAPWindow != 5*time.Minute {
		t.Errorf("expected vwap window 5m, got %v", cfg.VWAPWindow)
	}
	if cfg.EventBuffer != 1024 {
		t.Errorf("expected event buffer 1024, got %d", cfg.EventBuffer)
	}
	if cfg.SimSeed != 42 || cfg.SimOrders != 200 || cfg.SimAccounts != 4 {
		t.Errorf("unexpected sim defaults: %+v", cfg)
	}
	if !cfg.SimStartingCash.Equal(decimal.NewFromInt(1000000)) {
		t.Errorf("expected sim starting cash 1000000, got %s", cfg.SimStartingCash)
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("MAX_ORDER_VALUE", "5000.5")
	t.Setenv("MAX_POSITION_SIZE", "0")
	t.Setenv("EXPIRATION_INTERVAL", "250ms")
	t.Setenv("VWAP_WINDOW", "1m")
	t.Setenv("EVENT_BUFFER", "16")
	t.Setenv("SIM_SEED", "7")
	t.Setenv("SIM_ORDERS", "10")
	t.Setenv("SIM_ACCOUNTS", "2")
	t.Setenv("SIM_STARTING_CASH", "2500.75")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("expected debug, got %q", cfg.LogLevel)
	}
	if !cfg.MaxOrderValue.Equal(decimal.RequireFromString("5000.5")) {
		t.Errorf("expected max order value 5000.5, got %s", cfg.MaxOrderValue)
	}
	if !cfg.MaxPositionSize.IsZero() {
		t.Errorf("expected position limit disabled, got %s", cfg.MaxPositionSize)
	}
	if cfg.ExpirationInterval != 250*time.Millisecond {
		t.Errorf("expected 250ms, got %v", cfg.ExpirationInterval)
	}
	if cfg.VWAPWindow != time.Minute {
		t.Errorf("expected 1m, got %v", cfg.VWAPWindow)
	}
	if cfg.EventBuffer != 16 {
		t.Errorf("expected buffer 16, got %d", cfg.EventBuffer)
	}
	if cfg.SimSeed != 7 || cfg.SimOrders != 10 || cfg.SimAccounts != 2 {
		t.Errorf("unexpected sim overrides: %+v", cfg)
	}
	if !cfg.SimStartingCash.Equal(decimal.RequireFromString("2500.75")) {
		t.Errorf("expected starting cash 2500.75, got %s", cfg.SimStartingCash)
	}
}

func TestLoadInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"bad log level", "LOG_LEVEL", "verbose"},
		{"malformed order value", "MAX_ORDER_VALUE", "abc"},
		{"negative order value", "MAX_ORDER_VALUE", "-1"},
		{"negative position size", "MAX_POSITION_SIZE", "-5"},
		{"malformed interval", "EXPIRATION_INTERVAL", "fast"},
		{"zero interval", "EXPIRATION_INTERVAL", "0s"},
		{"negative window", "VWAP_WINDOW", "-1m"},
		{"malformed buffer", "EVENT_BUFFER", "x"},
		{"zero buffer", "EVENT_BUFFER", "0"},
		{"malformed seed", "SIM_SEED", "seed"},
		{"negative orders", "SIM_ORDERS", "-5"},
		{"zero accounts", "SIM_ACCOUNTS", "0"},
		{"negative cash", "SIM_STARTING_CASH", "-10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.val)
			if _, err := Load(); err == nil {
				t.Errorf("expected error for %s=%q", tt.key, tt.val)
			}
		})
	}
}
