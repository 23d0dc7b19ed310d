package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds all runtime configuration for the trading core.
type Config struct {
	LogLevel           string
	MaxOrderValue      decimal.Decimal // 0 disables the check
	MaxPositionSize    decimal.Decimal // 0 disables the check
	ExpirationInterval time.Duration
	VWAPWindow         time.Duration
	EventBuffer        int

	// Demo driver knobs.
	SimSeed         int64
	SimOrders       int
	SimAccounts     int
	SimStartingCash decimal.Decimal
}

// Load reads configuration from environment variables, applies defaults,
// and validates values. It returns an error for any invalid value.
func Load() (*Config, error) {
	logLevel := getStr("LOG_LEVEL", "info")
	if !isValidLogLevel(logLevel) {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %q, must be one of: debug, info, warn, error", logLevel)
	}

	maxOrderValue, err := getDecimal("MAX_ORDER_VALUE", decimal.NewFromInt(1000000))
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_ORDER_VALUE: %w", err)
	}
	if maxOrderValue.IsNegative() {
		return nil, fmt.Errorf("invalid MAX_ORDER_VALUE: must be >= 0")
	}

	maxPositionSize, err := getDecimal("MAX_POSITION_SIZE", decimal.NewFromInt(10000))
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_POSITION_SIZE: %w", err)
	}
	if maxPositionSize.IsNegative() {
		return nil, fmt.Errorf("invalid MAX_POSITION_SIZE: must be >= 0")
	}

	expirationInterval, err := getDuration("EXPIRATION_INTERVAL", 1*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid EXPIRATION_INTERVAL: %w", err)
	}
	if expirationInterval <= 0 {
		return nil, fmt.Errorf("invalid EXPIRATION_INTERVAL: must be positive")
	}

	vwapWindow, err := getDuration("VWAP_WINDOW", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid VWAP_WINDOW: %w", err)
	}
	if vwapWindow <= 0 {
		return nil, fmt.Errorf("invalid VWAP_WINDOW: must be positive")
	}

	eventBuffer, err := getInt("EVENT_BUFFER", 1024)
	if err != nil {
		return nil, fmt.Errorf("invalid EVENT_BUFFER: %w", err)
	}
	if eventBuffer < 1 {
		return nil, fmt.Errorf("invalid EVENT_BUFFER: must be >= 1")
	}

	simSeed, err := getInt("SIM_SEED", 42)
	if err != nil {
		return nil, fmt.Errorf("invalid SIM_SEED: %w", err)
	}

	simOrders, err := getInt("SIM_ORDERS", 200)
	if err != nil {
		return nil, fmt.Errorf("invalid SIM_ORDERS: %w", err)
	}
	if simOrders < 0 {
		return nil, fmt.Errorf("invalid SIM_ORDERS: must be >= 0")
	}

	simAccounts, err := getInt("SIM_ACCOUNTS", 4)
	if err != nil {
		return nil, fmt.Errorf("invalid SIM_ACCOUNTS: %w", err)
	}
	if simAccounts < 1 {
		return nil, fmt.Errorf("invalid SIM_ACCOUNTS: must be >= 1")
	}

	simStartingCash, err := getDecimal("SIM_STARTING_CASH", decimal.NewFromInt(1000000))
	if err != nil {
		return nil, fmt.Errorf("invalid SIM_STARTING_CASH: %w", err)
	}
	if simStartingCash.IsNegative() {
		return nil, fmt.Errorf("invalid SIM_STARTING_CASH: must be >= 0")
	}

	return &Config{
		LogLevel:           logLevel,
		MaxOrderValue:      maxOrderValue,
		MaxPositionSize:    maxPositionSize,
		ExpirationInterval: expirationInterval,
		VWAPWindow:         vwapWindow,
		EventBuffer:        eventBuffer,
		SimSeed:            int64(simSeed),
		SimOrders:          simOrders,
		SimAccounts:        simAccounts,
		SimStartingCash:    simStartingCash,
	}, nil
}

func getStr(key, defaultVal string) string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	return v
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.Atoi(v)
}

func getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return time.ParseDuration(v)
}

func getDecimal(key string, defaultVal decimal.Decimal) (decimal.Decimal, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return decimal.NewFromString(v)
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}
