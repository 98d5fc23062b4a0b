package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"Wonderland/pkg/util"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Token is a tracked portfolio entry.
type Token struct {
	CoinType    string `yaml:"coin_type" validate:"required"`
	Symbol      string `yaml:"symbol" validate:"required"`
	Name        string `yaml:"name"`
	Decimals    int    `yaml:"decimals" validate:"gte=0,lte=18"`
	Description string `yaml:"description"`
}

// Asset is a price-feed asset identified by its CoinMarketCap id.
type Asset struct {
	Symbol       string `yaml:"symbol" validate:"required"`
	CMCID        string `yaml:"cmc_id" validate:"required"`
	Name         string `yaml:"name"`
	Introduction string `yaml:"introduction"`
}

// Pair is a ratio pair analysed by the market digest.
type Pair struct {
	Base        string `yaml:"base" validate:"required"`
	Quote       string `yaml:"quote" validate:"required"`
	Description string `yaml:"description"`
}

// OraclePlatform is one OpenAI-compatible completion endpoint with its
// model-tier mapping (small, medium, large, xlarge, reason).
type OraclePlatform struct {
	BaseURL string            `yaml:"base_url" validate:"required"`
	APIKey  string            `yaml:"api_key"`
	Models  map[string]string `yaml:"models" validate:"required"`
}

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
		TriggerRPS      float64       `yaml:"trigger_rps" default:"0.2"`
		TriggerBurst    int           `yaml:"trigger_burst" default:"3"`
	} `yaml:"server"`
	Metrics struct {
		Path string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Log struct {
		Level         string        `yaml:"level" default:"info"`
		Format        string        `yaml:"format" default:"console"`
		Output        string        `yaml:"output" default:"stdout"`
		CollectTopic  string        `yaml:"collector_topic"`
		CollectWindow time.Duration `yaml:"collector_window" default:"30s"`
	} `yaml:"log"`
	Agent struct {
		Heartbeat   time.Duration `yaml:"heartbeat" default:"100m"`
		TaskHistory int           `yaml:"task_history" default:"500" validate:"gt=0"`
		StallCycles int           `yaml:"stall_cycles" default:"3" validate:"gt=0"`
	} `yaml:"agent"`
	Schedule struct {
		RateInterval    time.Duration `yaml:"rate_interval" default:"30m"`
		HoldingInterval time.Duration `yaml:"holding_interval" default:"5m"`
		SkipInitialRun  bool          `yaml:"skip_initial_run"`
	} `yaml:"schedule"`
	Portfolio struct {
		Tokens         []Token       `yaml:"tokens" validate:"required,min=2,dive"`
		StableCoinType string        `yaml:"stable_coin_type" validate:"required"`
		DeadZone       float64       `yaml:"dead_zone" default:"2"`
		Quantum        float64       `yaml:"quantum" default:"5" validate:"gt=0"`
		LockTTL        time.Duration `yaml:"lock_ttl" default:"10m"`
	} `yaml:"portfolio"`
	Market struct {
		Assets           []Asset  `yaml:"assets" validate:"required,dive"`
		Pairs            []Pair   `yaml:"pairs" validate:"required,dive"`
		SpotInterval     string   `yaml:"spot_interval" default:"5m"`
		Intervals        []string `yaml:"intervals"`
		FetchConcurrency int      `yaml:"fetch_concurrency" default:"2" validate:"gt=0"`
	} `yaml:"market"`
	CMC struct {
		BaseURL        string        `yaml:"base_url" default:"https://pro-api.coinmarketcap.com"`
		APIKey         string        `yaml:"api_key"`
		MaxRetries     int           `yaml:"max_retries" default:"3"`
		RetryAfterUnit time.Duration `yaml:"retry_after_unit" default:"20s"`
		RequestsPerMin float64       `yaml:"requests_per_min" default:"30"`
		Timeout        time.Duration `yaml:"timeout" default:"15s"`
	} `yaml:"cmc"`
	Oracle struct {
		Platforms       map[string]OraclePlatform `yaml:"platforms" validate:"required,dive"`
		InsightPlatform string                    `yaml:"insight_platform" default:"deepseek"`
		InsightModel    string                    `yaml:"insight_model" default:"reason"`
		TradingPlatform string                    `yaml:"trading_platform" default:"qwen"`
		TradingModel    string                    `yaml:"trading_model" default:"large"`
		Temperature     float64                   `yaml:"temperature"`
		Timeout         time.Duration             `yaml:"timeout" default:"120s"`
	} `yaml:"oracle"`
	Swap struct {
		Live          bool          `yaml:"live"`
		BaseURL       string        `yaml:"base_url" default:"https://api.panora.exchange"`
		APIKey        string        `yaml:"api_key"`
		ChainID       string        `yaml:"chain_id" default:"1"`
		WalletAddress string        `yaml:"wallet_address"`
		Slippage      float64       `yaml:"slippage" default:"10"`
		Timeout       time.Duration `yaml:"timeout" default:"60s"`
	} `yaml:"swap"`
	Holding struct {
		IndexerURL string        `yaml:"indexer_url" default:"https://api.mainnet.aptoslabs.com/v1/graphql"`
		PriceURL   string        `yaml:"price_url" default:"https://api.aptoscan.com/public/v1.0"`
		CacheTTL   time.Duration `yaml:"cache_ttl" default:"1m"`
		Timeout    time.Duration `yaml:"timeout" default:"20s"`
	} `yaml:"holding"`
	ClickHouse struct {
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"wonderland"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
	} `yaml:"clickhouse"`
	Postgres struct {
		DSN      string `yaml:"dsn"`
		Host     string `yaml:"host" default:"localhost"`
		Port     int    `yaml:"port" default:"5432"`
		User     string `yaml:"user" default:"postgres"`
		Password string `yaml:"password"`
		Database string `yaml:"database" default:"wonderland"`
		SSLMode  string `yaml:"ssl_mode" default:"disable"`
		MaxConns int32  `yaml:"max_conns" default:"10"`
	} `yaml:"postgres"`
	Redis struct {
		// Disabled swaps Redis for the in-process cache and turns off the
		// notification queue.
		Disabled bool   `yaml:"disabled"`
		Host     string `yaml:"host" default:"localhost"`
		Port     int    `yaml:"port" default:"6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix" default:"wonderland"`
	} `yaml:"redis"`
	Kafka struct {
		Brokers       []string `yaml:"brokers"`
		EventsTopic   string   `yaml:"events_topic" default:"wonderland.events"`
		CommandsTopic string   `yaml:"commands_topic" default:"wonderland.commands"`
		RequiredAcks  int      `yaml:"required_acks" default:"-1"`
		Compression   string   `yaml:"compression" default:"gzip"`
		Producer      struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"200ms"`
			BatchSize    int           `yaml:"batch_size" default:"50"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"wonderland-agent"`
			Workers    int           `yaml:"workers" default:"1"`
			RetryMax   int           `yaml:"retry_max" default:"2"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"2s"`
			DLQTopic   string        `yaml:"dlq_topic" default:"wonderland.commands.dlq"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	Notify struct {
		TelegramURL   string        `yaml:"telegram_url" default:"https://api.telegram.org"`
		BotToken      string        `yaml:"bot_token"`
		ChatID        string        `yaml:"chat_id"`
		Workers       int           `yaml:"workers" default:"1"`
		RetryLimit    int           `yaml:"retry_limit" default:"3"`
		RetryDelay    time.Duration `yaml:"retry_delay" default:"30s"`
		MaxMessageLen int           `yaml:"max_message_len" default:"4000"`
	} `yaml:"notify"`
}

var validate = validator.New()

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes, applies defaults and validates.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if len(c.Market.Intervals) == 0 {
		c.Market.Intervals = []string{"1h", "1d", "3d", "7d", "30d"}
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides secrets and endpoints
// from the environment.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.applyEnv(os.Getenv)
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("CMC_API_KEY"); v != "" {
		c.CMC.APIKey = v
	}
	if v := getenv("SWAP_API_KEY"); v != "" {
		c.Swap.APIKey = v
	}
	if v := getenv("WALLET_ADDRESS"); v != "" {
		c.Swap.WalletAddress = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := getenv("POSTGRES_DSN"); v != "" {
		c.Postgres.DSN = v
	}
	if v := getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	c.Redis.DB = util.ParseIntDefault(getenv("REDIS_DB"), c.Redis.DB)
	if v := getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Notify.BotToken = v
	}
	// ORACLE_<PLATFORM>_API_KEY, e.g. ORACLE_DEEPSEEK_API_KEY
	for name, p := range c.Oracle.Platforms {
		if v := getenv("ORACLE_" + strings.ToUpper(name) + "_API_KEY"); v != "" {
			p.APIKey = v
			c.Oracle.Platforms[name] = p
		}
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	found := false
	seen := make(map[string]struct{}, len(c.Portfolio.Tokens))
	symbols := make(map[string]struct{}, len(c.Portfolio.Tokens))
	for _, t := range c.Portfolio.Tokens {
		if _, dup := seen[t.CoinType]; dup {
			return fmt.Errorf("portfolio.tokens: duplicate coin type %s", t.CoinType)
		}
		seen[t.CoinType] = struct{}{}
		// Symbols name the model's weight fields, so they must differ
		// ignoring case.
		sym := strings.ToLower(t.Symbol)
		if _, dup := symbols[sym]; dup {
			return fmt.Errorf("portfolio.tokens: duplicate symbol %s", t.Symbol)
		}
		symbols[sym] = struct{}{}
		if t.CoinType == c.Portfolio.StableCoinType {
			found = true
		}
	}
	if !found {
		return fmt.Errorf("portfolio.stable_coin_type %s is not a tracked token", c.Portfolio.StableCoinType)
	}
	if _, err := util.ParseInterval(c.Market.SpotInterval); err != nil {
		return fmt.Errorf("market.spot_interval: %w", err)
	}
	for _, iv := range c.Market.Intervals {
		if _, err := util.ParseInterval(iv); err != nil {
			return fmt.Errorf("market.intervals: %w", err)
		}
	}
	assets := make(map[string]struct{}, len(c.Market.Assets))
	for _, a := range c.Market.Assets {
		assets[a.Symbol] = struct{}{}
	}
	for _, p := range c.Market.Pairs {
		if _, ok := assets[p.Base]; !ok {
			return fmt.Errorf("market.pairs: unknown asset %s", p.Base)
		}
		if _, ok := assets[p.Quote]; !ok {
			return fmt.Errorf("market.pairs: unknown asset %s", p.Quote)
		}
	}
	if c.Oracle.InsightPlatform != "" {
		if _, ok := c.Oracle.Platforms[c.Oracle.InsightPlatform]; !ok {
			return fmt.Errorf("oracle.insight_platform %s is not configured", c.Oracle.InsightPlatform)
		}
	}
	if _, ok := c.Oracle.Platforms[c.Oracle.TradingPlatform]; !ok {
		return fmt.Errorf("oracle.trading_platform %s is not configured", c.Oracle.TradingPlatform)
	}
	if c.Swap.Live && c.Swap.WalletAddress == "" {
		return fmt.Errorf("swap.wallet_address is required when swap.live is set")
	}
	return nil
}

// PostgresDSN returns the configured DSN or builds one from the parts.
func (c *Config) PostgresDSN() string {
	if c.Postgres.DSN != "" {
		return c.Postgres.DSN
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Postgres.Host, c.Postgres.Port, c.Postgres.User, c.Postgres.Password, c.Postgres.Database, c.Postgres.SSLMode)
}
