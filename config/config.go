package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the assistant.
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Search    SearchConfig    `mapstructure:"search"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Memory    MemoryConfig    `mapstructure:"memory"`
	News      NewsConfig      `mapstructure:"news"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Server    ServerConfig    `mapstructure:"server"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings.
type GeneralConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// TelegramConfig contains the chat transport settings.
type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	// Handle is the assistant's @username; group messages are processed
	// only when they start with a mention of it.
	Handle      string        `mapstructure:"handle"`
	PollTimeout time.Duration `mapstructure:"poll_timeout"`
}

func (t TelegramConfig) Validate() error {
	if strings.TrimSpace(t.BotToken) == "" {
		return fmt.Errorf("telegram.bot_token is required")
	}
	return nil
}

// LLMConfig contains the language-model service settings. Any
// OpenAI-compatible chat-completions endpoint works (LM Studio included).
type LLMConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	APIKey       string        `mapstructure:"api_key"`
	ChatModel    string        `mapstructure:"chat_model"`
	PlannerModel string        `mapstructure:"planner_model"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

func (l LLMConfig) Validate() error {
	if strings.TrimSpace(l.BaseURL) == "" {
		return fmt.Errorf("llm.base_url is required")
	}
	if strings.TrimSpace(l.ChatModel) == "" {
		return fmt.Errorf("llm.chat_model is required")
	}
	return nil
}

// SearchConfig contains web-search provider settings.
type SearchConfig struct {
	Provider string        `mapstructure:"provider"` // brave or mcp
	APIKey   string        `mapstructure:"api_key"`
	Country  string        `mapstructure:"country"`
	Lang     string        `mapstructure:"lang"`
	Count    int           `mapstructure:"count"`
	Timeout  time.Duration `mapstructure:"timeout"`

	// Subprocess tool bridge (provider = mcp).
	MCPCommand string   `mapstructure:"mcp_command"`
	MCPArgs    []string `mapstructure:"mcp_args"`
}

func (s SearchConfig) Validate() error {
	switch s.Provider {
	case "brave":
		if strings.TrimSpace(s.APIKey) == "" {
			return fmt.Errorf("search.api_key is required for the brave provider")
		}
	case "mcp":
		if strings.TrimSpace(s.MCPCommand) == "" {
			return fmt.Errorf("search.mcp_command is required for the mcp provider")
		}
	default:
		return fmt.Errorf("search.provider must be brave or mcp")
	}
	return nil
}

// FetchConfig contains page-fetch settings.
type FetchConfig struct {
	Type     string        `mapstructure:"type"` // http or chromedp
	TopN     int           `mapstructure:"top_n"`
	MaxChars int           `mapstructure:"max_chars"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// MemoryConfig contains conversation-state settings.
type MemoryConfig struct {
	Store       string `mapstructure:"store"` // file, redis or postgres
	Dir         string `mapstructure:"dir"`
	Mode        string `mapstructure:"mode"`
	Days        int    `mapstructure:"days"`
	RecentTurns int    `mapstructure:"recent_turns"`
	// SweepSpec is a cron expression for the file-store retention sweep.
	SweepSpec string `mapstructure:"sweep_spec"`
}

// NewsConfig bounds news answers and follow-up continuations.
type NewsConfig struct {
	FollowupDefaultCount int `mapstructure:"followup_default_count"`
	MaxItems             int `mapstructure:"max_items"`
}

// StorageConfig contains storage backend connection settings.
type StorageConfig struct {
	Redis    RedisConfig    `mapstructure:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type PostgresConfig struct {
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN builds a postgres connection string from the configured parts.
func (p PostgresConfig) DSN() (string, error) {
	if p.URL != "" {
		return p.URL, nil
	}
	if p.Host == "" || p.DBName == "" {
		return "", fmt.Errorf("postgres not configured (storage.postgres.host/dbname or url)")
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl), nil
}

// ServerConfig contains the ops HTTP server and auth settings.
type ServerConfig struct {
	Address string `mapstructure:"address"`
	// JWTSecret signs ops tokens; AdminPasswordHash is a bcrypt hash
	// checked by /api/auth/login.
	JWTSecret         string `mapstructure:"jwt_secret"`
	AdminPasswordHash string `mapstructure:"admin_password_hash"`
}

// TelemetryConfig contains metrics settings.
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoadConfig loads config from file with GROUNDCHAT_* env overrides.
func LoadConfig(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("json")

	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("telegram.poll_timeout", 50*time.Second)
	viper.SetDefault("llm.base_url", "http://localhost:1234/v1")
	viper.SetDefault("llm.timeout", 60*time.Second)
	viper.SetDefault("search.provider", "brave")
	viper.SetDefault("search.country", "TW")
	viper.SetDefault("search.lang", "zh-hant")
	viper.SetDefault("search.count", 10)
	viper.SetDefault("search.timeout", 30*time.Second)
	viper.SetDefault("search.mcp_command", "npx")
	viper.SetDefault("search.mcp_args", []string{"-y", "@modelcontextprotocol/server-brave-search"})
	viper.SetDefault("fetch.type", "http")
	viper.SetDefault("fetch.top_n", 10)
	viper.SetDefault("fetch.max_chars", 8000)
	viper.SetDefault("fetch.timeout", 12*time.Second)
	viper.SetDefault("memory.store", "file")
	viper.SetDefault("memory.dir", "memory")
	viper.SetDefault("memory.mode", "per_chat_daily")
	viper.SetDefault("memory.days", 1)
	viper.SetDefault("memory.recent_turns", 6)
	viper.SetDefault("memory.sweep_spec", "0 3 * * *")
	viper.SetDefault("news.followup_default_count", 5)
	viper.SetDefault("news.max_items", 8)
	viper.SetDefault("storage.redis.host", "localhost")
	viper.SetDefault("storage.redis.port", "6379")
	viper.SetDefault("storage.redis.timeout", 5*time.Second)
	viper.SetDefault("server.address", ":10080")
	viper.SetDefault("telemetry.enabled", true)

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("GROUNDCHAT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// Env-only operation is fine; only a malformed file is fatal.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			panic(fmt.Errorf("fatal error config file: %w", err))
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	if err := config.Telegram.Validate(); err != nil {
		panic(err)
	}
	if err := config.LLM.Validate(); err != nil {
		panic(err)
	}
	if err := config.Search.Validate(); err != nil {
		panic(err)
	}
	return &config
}
