package config

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"pgregory.net/rapid"
)

var validLogLevels = []string{"debug", "info", "warn", "error"}

var durationEnvKeys = []string{"EXPIRATION_INTERVAL", "VWAP_WINDOW"}

var decimalEnvKeys = []string{"MAX_ORDER_VALUE", "MAX_POSITION_SIZE", "SIM_STARTING_CASH"}

var allEnvKeys = append(append([]string{
	"LOG_LEVEL", "EVENT_BUFFER", "SIM_SEED", "SIM_ORDERS", "SIM_ACCOUNTS",
}, durationEnvKeys...), decimalEnvKeys...)

func unsetAllConfigEnv() {
	for _, key := range allEnvKeys {
		os.Unsetenv(key)
	}
}

// genDurationString generates a positive Go duration string.
func genDurationString() *rapid.Generator[string] {
	return rapid.Custom(func(t *rapid.T) string {
		unit := rapid.SampledFrom([]string{"ms", "s", "m"}).Draw(t, "unit")
		val := rapid.IntRange(1, 600).Draw(t, "val")
		return fmt.Sprintf("%d%s", val, unit)
	})
}

func TestProperty_ValidConfigParsing(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		unsetAllConfigEnv()
		defer unsetAllConfigEnv()

		logLevel := rapid.OneOf(
			rapid.Just(""),
			rapid.SampledFrom(validLogLevels),
		).Draw(t, "logLevel")
		if logLevel != "" {
			os.Setenv("LOG_LEVEL", logLevel)
		}

		durStrs := make(map[string]string, len(durationEnvKeys))
		for _, key := range durationEnvKeys {
			durStrs[key] = rapid.OneOf(rapid.Just(""), genDurationString()).Draw(t, key)
			if durStrs[key] != "" {
				os.Setenv(key, durStrs[key])
			}
		}

		decStrs := make(map[string]string, len(decimalEnvKeys))
		for _, key := range decimalEnvKeys {
			cents := rapid.IntRange(0, 10_000_000).Draw(t, key)
			if rapid.Bool().Draw(t, key+"_set") {
				decStrs[key] = decimal.New(int64(cents), -2).String()
				os.Setenv(key, decStrs[key])
			}
		}

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() returned error for valid inputs: %v", err)
		}

		wantLevel := "info"
		if logLevel != "" {
			wantLevel = logLevel
		}
		if cfg.LogLevel != wantLevel {
			t.Fatalf("LogLevel = %q, want %q", cfg.LogLevel, wantLevel)
		}

		wantInterval := time.Second
		if durStrs["EXPIRATION_INTERVAL"] != "" {
			wantInterval, _ = time.ParseDuration(durStrs["EXPIRATION_INTERVAL"])
		}
		if cfg.ExpirationInterval != wantInterval {
			t.Fatalf("ExpirationInterval = %v, want %v", cfg.ExpirationInterval, wantInterval)
		}

		wantWindow := 5 * time.Minute
		if durStrs["VWAP_WINDOW"] != "" {
			wantWindow, _ = time.ParseDuration(durStrs["VWAP_WINDOW"])
		}
		if cfg.VWAPWindow != wantWindow {
			t.Fatalf("VWAPWindow = %v, want %v", cfg.VWAPWindow, wantWindow)
		}

		checkDecimal := func(key string, got, def decimal.Decimal) {
			want := def
			if s, ok := decStrs[key]; ok {
				want = decimal.RequireFromString(s)
			}
			if !got.Equal(want) {
				t.Fatalf("%s = %s, want %s", key, got, want)
			}
		}
		checkDecimal("MAX_ORDER_VALUE", cfg.MaxOrderValue, decimal.NewFromInt(1000000))
		checkDecimal("MAX_POSITION_SIZE", cfg.MaxPositionSize, decimal.NewFromInt(10000))
		checkDecimal("SIM_STARTING_CASH", cfg.SimStartingCash, decimal.NewFromInt(1000000))
	})
}

func TestProperty_InvalidLogLevelReturnsError(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		unsetAllConfigEnv()
		defer unsetAllConfigEnv()

		invalidLevel := rapid.StringMatching(`[a-z]{1,20}`).Filter(func(s string) bool {
			for _, v := range validLogLevels {
				if s == v {
					return false
				}
			}
			return s != ""
		}).Draw(t, "invalidLevel")

		os.Setenv("LOG_LEVEL", invalidLevel)

		if _, err := Load(); err == nil {
			t.Fatalf("Load() should return error for invalid LOG_LEVEL %q", invalidLevel)
		}
	})
}

func TestProperty_InvalidDurationReturnsError(t *testing.T) {
	for _, key := range durationEnvKeys {
		t.Run(key, func(t *testing.T) {
			rapid.Check(t, func(t *rapid.T) {
				unsetAllConfigEnv()
				defer unsetAllConfigEnv()

				invalidDur := rapid.OneOf(
					rapid.StringMatching(`[a-zA-Z]{2,10}`),
					rapid.Just("notaduration"),
					rapid.Just("5x"),
				).Filter(func(s string) bool {
					if s == "" {
						return false
					}
					_, err := time.ParseDuration(s)
					return err != nil
				}).Draw(t, "invalidDuration")

				os.Setenv(key, invalidDur)

				if _, err := Load(); err == nil {
					t.Fatalf("Load() should return error for invalid %s=%q", key, invalidDur)
				}
			})
		})
	}
}

func TestProperty_InvalidDecimalReturnsError(t *testing.T) {
	for _, key := range decimalEnvKeys {
		t.Run(key, func(t *testing.T) {
			rapid.Check(t, func(t *rapid.T) {
				unsetAllConfigEnv()
				defer unsetAllConfigEnv()

				invalid := rapid.OneOf(
					rapid.StringMatching(`[a-zA-Z]{1,10}`),
					rapid.Just("1.2.3"),
					rapid.Just("--5"),
				).Filter(func(s string) bool {
					_, err := decimal.NewFromString(s)
					return err != nil
				}).Draw(t, "invalidDecimal")

				os.Setenv(key, invalid)

				if _, err := Load(); err == nil {
					t.Fatalf("Load() should return error for invalid %s=%q", key, invalid)
				}
			})
		})
	}
}
