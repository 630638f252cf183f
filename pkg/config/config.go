package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"120s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		RateLimit       struct {
			RPS   float64 `yaml:"rps" default:"2"`
			Burst int     `yaml:"burst" default:"5"`
		} `yaml:"rate_limit"`
	} `yaml:"server"`
	Logging struct {
		Level      string `yaml:"level" default:"info"`
		Format     string `yaml:"format" default:"json"`
		Output     string `yaml:"output" default:"stdout"`
		TimeFormat string `yaml:"time_format"`
		Collect    struct {
			Enabled     bool          `yaml:"enabled"`
			Interval    time.Duration `yaml:"interval" default:"30s"`
			Threshold   int           `yaml:"threshold" default:"100"`
			DigestTopic string        `yaml:"digest_topic" default:"marketstate.log-digest"`
		} `yaml:"collect"`
	} `yaml:"logging"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Engine struct {
		MACDMode    string `yaml:"macd_mode" default:"cold"`
		CandleLimit int    `yaml:"candle_limit" default:"100"`
	} `yaml:"engine"`
	Oracle struct {
		Mode    string        `yaml:"mode" default:"rules"`
		URL     string        `yaml:"url"`
		Path    string        `yaml:"path" default:"/predict"`
		Command []string      `yaml:"command"`
		Timeout time.Duration `yaml:"timeout" default:"5s"`
		Retries int           `yaml:"retries" default:"2"`
	} `yaml:"oracle"`
	Reasoner struct {
		URL          string        `yaml:"url" default:"http://localhost:11434"`
		DefaultModel string        `yaml:"default_model" default:"llama3"`
		Timeout      time.Duration `yaml:"timeout" default:"120s"`
	} `yaml:"reasoner"`
	MarketData struct {
		BaseURL         string        `yaml:"base_url" default:"https://query1.finance.yahoo.com"`
		Range           string        `yaml:"range" default:"3mo"`
		PrimaryInterval string        `yaml:"primary_interval" default:"1d"`
		HigherInterval  string        `yaml:"higher_interval"`
		CacheTTL        time.Duration `yaml:"cache_ttl" default:"60s"`
		Timeout         time.Duration `yaml:"timeout" default:"10s"`
		UserAgent       string        `yaml:"user_agent" default:"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"`
	} `yaml:"market_data"`
	News struct {
		FinnhubURL string        `yaml:"finnhub_url" default:"https://finnhub.io/api/v1"`
		APIKey     string        `yaml:"api_key"`
		MaxEvents  int           `yaml:"max_events" default:"10"`
		Timeout    time.Duration `yaml:"timeout" default:"10s"`
	} `yaml:"news"`
	Storage struct {
		Driver   string `yaml:"driver" default:"file"`
		FilePath string `yaml:"file_path" default:"data/analyses.json"`
	} `yaml:"storage"`
	ClickHouse struct {
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"marketstate"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Host     string `yaml:"host" default:"localhost"`
		Port     int    `yaml:"port" default:"6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix" default:"marketstate"`
		// L1 is the in-process layer in front of Redis.
		L1Size int           `yaml:"l1_size" default:"1000"`
		L1TTL  time.Duration `yaml:"l1_ttl" default:"30s"`
	} `yaml:"redis"`
	Kafka struct {
		Enabled       bool     `yaml:"enabled"`
		Brokers       []string `yaml:"brokers"`
		AnalysisTopic string   `yaml:"analysis_topic" default:"marketstate.analysis"`
		RequestTopic  string   `yaml:"request_topic" default:"marketstate.analyze-requests"`
		RequiredAcks  int      `yaml:"required_acks" default:"1"`
		Compression   string   `yaml:"compression" default:"snappy"`
		Producer      struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"10ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"marketstate-analyzer"`
			Workers    int           `yaml:"workers" default:"4"`
			BufferSize int           `yaml:"buffer_size" default:"64"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"200ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic   string        `yaml:"dlq_topic" default:"marketstate.analyze-requests.dlq"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var c Config
	if err := defaults.Set(&c); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return &c
}

// Load reads and parses a YAML configuration file over the defaults.
func Load(path string) (*Config, error) {
	c, err := parse(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func parse(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
// A .env file in the working directory is read first when present.
func LoadWithEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	c, err := parse(path)
	if err != nil {
		return nil, err
	}
	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("ORACLE_URL"); v != "" {
		c.Oracle.URL = v
	}
	if v := os.Getenv("ORACLE_MODE"); v != "" {
		c.Oracle.Mode = v
	}
	if v := os.Getenv("OLLAMA_URL"); v != "" {
		c.Reasoner.URL = v
	}
	if v := os.Getenv("FINNHUB_API_KEY"); v != "" {
		c.News.APIKey = v
	}
	if v := os.Getenv("STORAGE_DRIVER"); v != "" {
		c.Storage.Driver = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		host, port, ok := strings.Cut(v, ":")
		c.Redis.Host = host
		if ok {
			p, err := strconv.Atoi(port)
			if err != nil {
				return fmt.Errorf("REDIS_ADDR port: %w", err)
			}
			c.Redis.Port = p
		}
		c.Redis.Enabled = true
	}
	if v := os.Getenv("HTTP_PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("HTTP_PORT: %w", err)
		}
		c.Server.Port = p
	}
	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	switch c.Storage.Driver {
	case "file", "clickhouse":
	default:
		return fmt.Errorf("storage.driver must be 'file' or 'clickhouse', got '%s'", c.Storage.Driver)
	}
	switch c.Oracle.Mode {
	case "http":
		if c.Oracle.URL == "" {
			return fmt.Errorf("oracle.url is required when oracle.mode is 'http'")
		}
	case "exec", "rules":
	default:
		return fmt.Errorf("oracle.mode must be 'http', 'exec' or 'rules', got '%s'", c.Oracle.Mode)
	}
	switch c.Engine.MACDMode {
	case "cold", "incremental":
	default:
		return fmt.Errorf("engine.macd_mode must be 'cold' or 'incremental', got '%s'", c.Engine.MACDMode)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	return nil
}
