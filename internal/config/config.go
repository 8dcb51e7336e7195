package config

import (
	"os"
	"strconv"
	"time"
)

// ServiceConfig holds the outbound call service configuration
type ServiceConfig struct {
	Port string

	// LiveKit configuration
	LiveKitServerURL  string
	LiveKitAPIKey     string
	LiveKitAPISecret  string
	LiveKitSIPTrunkID string

	// Twilio configuration (direct-dial fallback for test calls)
	TwilioAccountSID  string
	TwilioAuthToken   string
	TwilioPhoneNumber string

	// Redis configuration (live status events; optional)
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	EnableCORS bool

	// Call timing
	Timing TimingConfig
}

// TimingConfig holds the knobs of the call monitoring state machine.
// Defaults match production behavior; tests inject scaled-down values.
type TimingConfig struct {
	PollInterval     time.Duration // presence poll cadence
	CallTimeout      time.Duration // overall monitoring window per call
	DisconnectGrace  time.Duration // customer absent this long => hung up
	ShortCallCutoff  time.Duration // calls shorter than this count as hang-ups, not completions
	StaleThreshold   time.Duration // reconciler sweep threshold
	DashboardStale   time.Duration // background dashboard sweep threshold
	RoomEmptyTimeout uint32        // seconds before an empty room expires server-side
}

// DefaultTiming returns the reference timing configuration.
func DefaultTiming() TimingConfig {
	return TimingConfig{
		PollInterval:     500 * time.Millisecond,
		CallTimeout:      45 * time.Second,
		DisconnectGrace:  5 * time.Second,
		ShortCallCutoff:  10 * time.Second,
		StaleThreshold:   5 * time.Minute,
		DashboardStale:   10 * time.Minute,
		RoomEmptyTimeout: 300,
	}
}

// LoadFromEnv loads service configuration from environment variables.
// A .env file, if any, is loaded in main before this runs.
func LoadFromEnv() *ServiceConfig {
	timing := DefaultTiming()
	timing.CallTimeout = getEnvAsDurationOrDefault("CALL_TIMEOUT_SECONDS", timing.CallTimeout)
	timing.StaleThreshold = getEnvAsDurationOrDefault("STALE_CALL_MINUTES", timing.StaleThreshold)

	return &ServiceConfig{
		Port: getEnvOrDefault("PORT", "8082"),

		LiveKitServerURL:  getEnvOrDefault("LIVEKIT_SERVER_URL", ""),
		LiveKitAPIKey:     getEnvOrDefault("LIVEKIT_API_KEY", ""),
		LiveKitAPISecret:  getEnvOrDefault("LIVEKIT_API_SECRET", ""),
		LiveKitSIPTrunkID: getEnvOrDefault("LIVEKIT_SIP_TRUNK_ID", ""),

		TwilioAccountSID:  getEnvOrDefault("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:   getEnvOrDefault("TWILIO_AUTH_TOKEN", ""),
		TwilioPhoneNumber: getEnvOrDefault("TWILIO_PHONE_NUMBER", ""),

		RedisHost:     getEnvOrDefault("REDIS_HOST", ""),
		RedisPort:     getEnvOrDefault("REDIS_PORT", "6379"),
		RedisPassword: getEnvOrDefault("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsIntOrDefault("REDIS_DB", 0),

		EnableCORS: getEnvAsBoolOrDefault("ENABLE_CORS", true),

		Timing: timing,
	}
}

// getEnvOrDefault gets environment variable or returns default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault gets environment variable as int or returns default
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvAsBoolOrDefault gets environment variable as bool or returns default
func getEnvAsBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvAsDurationOrDefault reads a duration expressed in the unit the env
// var name carries (seconds or minutes).
func getEnvAsDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return defaultValue
	}
	switch {
	case len(key) > 7 && key[len(key)-7:] == "MINUTES":
		return time.Duration(parsed) * time.Minute
	default:
		return time.Duration(parsed) * time.Second
	}
}
