package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

const (
	// EnvConfigPath overrides the secrets file location.
	EnvConfigPath     = "MEDIGUIDE_CONFIG"
	defaultConfigPath = ".streamlit/secrets.toml"
)

// ErrMissingKey is returned when a required secret is absent.
var ErrMissingKey = errors.New("missing required config key")

// Config represents runtime configuration for the service.
type Config struct {
	MongoURI      string `toml:"MONGODB_ATLAS_CLUSTER_URI"`
	GoogleAPIKey  string `toml:"GOOGLE_API_KEY"`
	GeminiAPIKey  string `toml:"GEMINI_API_KEY"`
	GeminiBaseURL string `toml:"GEMINI_BASE_URL"`

	BasicConfig BasicConfig               `toml:"basic_config"`
	Providers   map[string]ProviderConfig `toml:"providers"`
	Embedding   EmbeddingConfig           `toml:"embedding"`
	Index       IndexConfig               `toml:"index"`
	Databases   map[string]DatabaseConfig `toml:"databases"`
	Redis       RedisConfig               `toml:"redis"`
	Persona     PersonaConfig             `toml:"persona"`
}

type ProviderConfig struct {
	BaseURL string `toml:"base_url"`
	Model   string `toml:"model"`
	APIKey  string `toml:"api_key"`
}

type BasicConfig struct {
	ServerAddress       string `toml:"server_address"`
	LogMode             string `toml:"log_mode"`
	ChatProvider        string `toml:"chat_provider"`
	ProviderTimeoutSecs int    `toml:"provider_timeout_secs"`
	QueueSize           int    `toml:"queue_size"`
}

type EmbeddingConfig struct {
	Model      string `toml:"model"`
	APIKey     string `toml:"api_key"`
	TaskType   string `toml:"task_type"`
	Dimensions int    `toml:"dimensions"`
	BatchSize  int    `toml:"batch_size"`
}

// IndexConfig selects the document index backend and its field layout.
type IndexConfig struct {
	Type         string `toml:"type"`
	Database     string `toml:"database"`
	Collection   string `toml:"collection"`
	IndexName    string `toml:"index_name"`
	EmbeddingKey string `toml:"embedding_key"`
	TextKey      string `toml:"text_key"`
	TopK         int    `toml:"top_k"`
}

type DatabaseConfig struct {
	DSN      string `toml:"dsn"`
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	DBName   string `toml:"db_name"`
	Params   string `toml:"params"`
}

type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Host       string `toml:"host"`
	Port       int    `toml:"port"`
	Username   string `toml:"username"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	TTLMinutes int    `toml:"ttl_minutes"`
}

// PersonaConfig holds the answer style knobs fed into the generation prompt.
type PersonaConfig struct {
	Language       string `toml:"language"`
	MaxChars       int    `toml:"max_chars"`
	HardLimitRunes int    `toml:"hard_limit_runes"`
	FallbackAnswer string `toml:"fallback_answer"`
}

// Load reads configuration from the provided path (defaults to .streamlit/secrets.toml).
// A .env file in the working directory, when present, is loaded first so that
// environment variables can fill secrets missing from the file.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path == "" {
		path = defaultConfigPath
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	for name, db := range cfg.Databases {
		if isSQLite(name) && db.DSN != "" && !strings.HasPrefix(db.DSN, ":memory:") &&
			!strings.HasPrefix(db.DSN, "file:") && !filepath.IsAbs(db.DSN) {
			db.DSN = filepath.Join(filepath.Dir(absPath), db.DSN)
			cfg.Databases[name] = db
		}
	}
	return &cfg, nil
}

// Validate reports the first required key that is not configured.
func (c *Config) Validate() error {
	if c.Index.Type == "mongo" && c.MongoURI == "" {
		return fmt.Errorf("%w: MONGODB_ATLAS_CLUSTER_URI", ErrMissingKey)
	}
	if c.Embedding.APIKey == "" {
		return fmt.Errorf("%w: GOOGLE_API_KEY", ErrMissingKey)
	}
	provider, ok := c.Providers[c.BasicConfig.ChatProvider]
	if !ok {
		return fmt.Errorf("provider %s not configured", c.BasicConfig.ChatProvider)
	}
	if provider.APIKey == "" {
		return fmt.Errorf("%w: api key for provider %s", ErrMissingKey, c.BasicConfig.ChatProvider)
	}
	if isSQLite(c.Index.Type) || c.Index.Type == "mysql" {
		if _, ok := c.Databases[c.Index.Type]; !ok {
			return fmt.Errorf("database config for %s not found", c.Index.Type)
		}
	}
	return nil
}

func (c *Config) applyEnv() {
	fill := func(dst *string, env string) {
		if *dst == "" {
			*dst = strings.TrimSpace(os.Getenv(env))
		}
	}
	fill(&c.MongoURI, "MONGODB_ATLAS_CLUSTER_URI")
	fill(&c.GoogleAPIKey, "GOOGLE_API_KEY")
	fill(&c.GeminiAPIKey, "GEMINI_API_KEY")
	fill(&c.GeminiBaseURL, "GEMINI_BASE_URL")
}

func (c *Config) applyDefaults() {
	if c.BasicConfig.ServerAddress == "" {
		c.BasicConfig.ServerAddress = ":8090"
	}
	if c.BasicConfig.LogMode == "" {
		c.BasicConfig.LogMode = "dev"
	}
	if c.BasicConfig.ChatProvider == "" {
		c.BasicConfig.ChatProvider = "openai"
	}
	if c.BasicConfig.ProviderTimeoutSecs <= 0 {
		c.BasicConfig.ProviderTimeoutSecs = 60
	}
	if c.BasicConfig.QueueSize <= 0 {
		c.BasicConfig.QueueSize = 16
	}

	if c.Providers == nil {
		c.Providers = make(map[string]ProviderConfig)
	}
	// the reference deployment talks to Gemini through its OpenAI-compatible endpoint
	openaiCfg := c.Providers["openai"]
	if openaiCfg.APIKey == "" {
		openaiCfg.APIKey = c.GeminiAPIKey
	}
	if openaiCfg.BaseURL == "" {
		openaiCfg.BaseURL = c.GeminiBaseURL
	}
	if openaiCfg.Model == "" {
		openaiCfg.Model = "gemini-2.5-flash"
	}
	c.Providers["openai"] = openaiCfg
	if gem, ok := c.Providers["gemini"]; ok {
		if gem.APIKey == "" {
			gem.APIKey = c.GeminiAPIKey
		}
		if gem.Model == "" {
			gem.Model = "gemini-2.5-flash"
		}
		c.Providers["gemini"] = gem
	}

	if c.Embedding.Model == "" {
		c.Embedding.Model = "models/gemini-embedding-001"
	}
	if c.Embedding.APIKey == "" {
		c.Embedding.APIKey = c.GoogleAPIKey
	}
	if c.Embedding.BatchSize <= 0 {
		c.Embedding.BatchSize = 32
	}

	if c.Index.Type == "" {
		c.Index.Type = "mongo"
	}
	if c.Index.Database == "" {
		c.Index.Database = "MediGuide"
	}
	if c.Index.Collection == "" {
		c.Index.Collection = "Symptom"
	}
	if c.Index.IndexName == "" {
		c.Index.IndexName = "default"
	}
	if c.Index.EmbeddingKey == "" {
		c.Index.EmbeddingKey = "question_embeddings"
	}
	if c.Index.TextKey == "" {
		c.Index.TextKey = "question"
	}
	if c.Index.TopK <= 0 {
		c.Index.TopK = 3
	}

	if c.Redis.TTLMinutes <= 0 {
		c.Redis.TTLMinutes = 24 * 60
	}

	if c.Persona.Language == "" {
		c.Persona.Language = "繁體中文"
	}
	if c.Persona.MaxChars <= 0 {
		c.Persona.MaxChars = 300
	}
	if c.Persona.HardLimitRunes == 0 {
		c.Persona.HardLimitRunes = 2 * c.Persona.MaxChars
	}
	if c.Persona.FallbackAnswer == "" {
		c.Persona.FallbackAnswer = "很抱歉 寫我的工程師是個笨蛋 她剛剛在中山大學被猴子咬了"
	}
}

func isSQLite(name string) bool {
	return name == "sqlite" || name == "sqlite3"
}
