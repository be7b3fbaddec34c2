package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
	Database DatabaseConfig `mapstructure:"database"`
	Owner    OwnerConfig    `mapstructure:"owner"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Memory   MemoryConfig   `mapstructure:"memory"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Maps     MapsConfig     `mapstructure:"maps"`
}

type TelegramConfig struct {
	Token string `mapstructure:"token"`
}

type DatabaseConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	DBName      string `mapstructure:"dbname"`
	SSLMode     string `mapstructure:"sslmode"`
	UseInMemory bool   `mapstructure:"use_in_memory"`
}

type OwnerConfig struct {
	ChatID      int64  `mapstructure:"chat_id"`
	DisplayName string `mapstructure:"display_name"`
}

type LLMConfig struct {
	DefaultProvider string      `mapstructure:"default_provider"`
	MaxTokens       int         `mapstructure:"max_tokens"`
	Anthropic       ModelConfig `mapstructure:"anthropic"`
	OpenAI          ModelConfig `mapstructure:"openai"`
}

// ModelConfig holds one provider's credentials and its model ids per tier.
type ModelConfig struct {
	APIKey     string `mapstructure:"api_key"`
	CheapModel string `mapstructure:"cheap_model"`
	MidModel   string `mapstructure:"mid_model"`
}

type MemoryConfig struct {
	ContextWindow    int `mapstructure:"context_window"`
	RetentionDays    int `mapstructure:"retention_days"`
	LogRetentionDays int `mapstructure:"log_retention_days"`
}

type ScheduleConfig struct {
	Timezone     string `mapstructure:"timezone"`
	BriefingCron string `mapstructure:"briefing_cron"`
	CleanupCron  string `mapstructure:"cleanup_cron"`
}

type MapsConfig struct {
	APIKey string `mapstructure:"api_key"`
}

func parseDatabaseURL(dbURL string) (DatabaseConfig, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, err
	}

	password, _ := u.User.Password()
	port := 5432 // default PostgreSQL port
	if u.Port() != "" {
		fmt.Sscanf(u.Port(), "%d", &port)
	}

	// Remove leading slash from path to get database name
	dbName := strings.TrimPrefix(u.Path, "/")

	return DatabaseConfig{
		Host:     u.Hostname(),
		Port:     port,
		User:     u.User.Username(),
		Password: password,
		DBName:   dbName,
		SSLMode:  "disable",
	}, nil
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// Set default values
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.use_in_memory", false)
	v.SetDefault("owner.display_name", "Owner")
	v.SetDefault("llm.default_provider", "claude")
	v.SetDefault("llm.max_tokens", 2000)
	v.SetDefault("llm.anthropic.cheap_model", "claude-haiku-4-5-20251001")
	v.SetDefault("llm.anthropic.mid_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("llm.openai.cheap_model", "gpt-4o-mini")
	v.SetDefault("llm.openai.mid_model", "gpt-4o")
	v.SetDefault("memory.context_window", 10)
	v.SetDefault("memory.retention_days", 30)
	v.SetDefault("memory.log_retention_days", 90)
	v.SetDefault("schedule.timezone", "Asia/Bangkok")
	v.SetDefault("schedule.briefing_cron", "0 7 * * *")
	v.SetDefault("schedule.cleanup_cron", "0 3 * * *")

	// Enable environment variable support
	v.AutomaticEnv()

	// Read the config file
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Check for DATABASE_URL environment variable
	if dbURL := v.GetString("DATABASE_URL"); dbURL != "" {
		dbConfig, err := parseDatabaseURL(dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %v", err)
		}
		config.Database = dbConfig
	}

	// Get other environment variables
	if token := v.GetString("TELEGRAM_TOKEN"); token != "" {
		config.Telegram.Token = token
	}

	if apiKey := v.GetString("ANTHROPIC_API_KEY"); apiKey != "" {
		config.LLM.Anthropic.APIKey = apiKey
	}

	if apiKey := v.GetString("OPENAI_API_KEY"); apiKey != "" {
		config.LLM.OpenAI.APIKey = apiKey
	}

	if apiKey := v.GetString("MAPS_API_KEY"); apiKey != "" {
		config.Maps.APIKey = apiKey
	}

	if chatID := v.GetInt64("OWNER_CHAT_ID"); chatID != 0 {
		config.Owner.ChatID = chatID
	}

	if config.Telegram.Token == "" {
		return nil, fmt.Errorf("telegram token is required (telegram.token or TELEGRAM_TOKEN)")
	}
	if config.Owner.ChatID == 0 {
		return nil, fmt.Errorf("owner chat_id is required (owner.chat_id or OWNER_CHAT_ID)")
	}

	return &config, nil
}
