package config

import (
	"log"

	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	Env      string `mapstructure:"ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// OpenAI configuration for intent extraction.
	OpenAIAPIKey string `mapstructure:"OPENAI_API_KEY"`
	OpenAIModel  string `mapstructure:"OPENAI_MODEL"`

	// Upstream reservation API credentials.
	ResyBaseURL   string `mapstructure:"RESY_BASE_URL"`
	ResyAPIKey    string `mapstructure:"RESY_API_KEY"`
	ResyAuthToken string `mapstructure:"RESY_AUTH_TOKEN"`
	// When true, an availability response with no entry for the requested
	// venue id is a hard error instead of falling back to the first entry.
	StrictAvailabilityMatch bool `mapstructure:"STRICT_AVAILABILITY_MATCH"`

	// Message transport.
	RecipientHandle string `mapstructure:"RECIPIENT_HANDLE"`
	ChatDBPath      string `mapstructure:"CHAT_DB_PATH"`
	PollIntervalMS  int    `mapstructure:"POLL_INTERVAL_MS"`
	SendRatePerMin  int    `mapstructure:"SEND_RATE_PER_MIN"`

	// Local ops server port; "0" disables it.
	OpsPort string `mapstructure:"OPS_PORT"`
}

var AppConfig Config

func LoadConfig() {
	// Look for a config file named "config.yaml" in the current and "config" directory.
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	// Automatically use environment variables where available.
	viper.AutomaticEnv()

	// Set default values.
	viper.SetDefault("ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("OPENAI_MODEL", "gpt-4o")
	viper.SetDefault("RESY_BASE_URL", "https://api.resy.com")
	viper.SetDefault("STRICT_AVAILABILITY_MATCH", true)
	viper.SetDefault("CHAT_DB_PATH", "")
	viper.SetDefault("POLL_INTERVAL_MS", 1000)
	viper.SetDefault("SEND_RATE_PER_MIN", 20)
	viper.SetDefault("OPS_PORT", "0")

	if err := viper.ReadInConfig(); err != nil {
		log.Println("No config file found, using environment variables only")
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
}

func GetEnv() string {
	return AppConfig.Env
}

func IsProduction() bool {
	return GetEnv() == "production"
}
