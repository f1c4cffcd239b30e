package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del reconciliador.
type Config struct {
	Engine  EngineConfig  `yaml:"engine"`
	API     APIConfig     `yaml:"api"`
	Feed    FeedConfig    `yaml:"feed"`
	Storage StorageConfig `yaml:"storage"`
	Metrics MetricsConfig `yaml:"metrics"`
	Log     LogConfig     `yaml:"log"`

	// Secrets — solo desde variables de entorno, nunca del YAML.
	PrivateKey string `yaml:"-"` // POLY_PRIVATE_KEY
	FeedAPIKey string `yaml:"-"` // FEED_API_KEY
	Funder     string `yaml:"-"` // FUNDER
}

// EngineConfig controla el loop de reconciliación.
type EngineConfig struct {
	IntervalSeconds     int `yaml:"interval_seconds"`
	MarketExpirySeconds int `yaml:"market_expiry_seconds"`
	BatchSize           int `yaml:"batch_size"`
	StaleWarnMinutes    int `yaml:"stale_warn_minutes"`
}

// APIConfig contiene los base URLs de las APIs de Polymarket.
type APIConfig struct {
	CLOBBase string `yaml:"clob_base"`
	DataBase string `yaml:"data_base"`
}

// FeedConfig describe el signal provider y el payload que espera.
type FeedConfig struct {
	URL                 string        `yaml:"url"`
	IsAutoredeemEnabled bool          `yaml:"is_autoredeem_enabled"`
	PriceSpread         float64       `yaml:"price_spread"`
	PriceBuffer         float64       `yaml:"price_buffer"`
	BuyMin              float64       `yaml:"buy_min"`
	BuyMax              float64       `yaml:"buy_max"`
	SellMin             float64       `yaml:"sell_min"`
	SellMax             float64       `yaml:"sell_max"`
	Traders             []TraderEntry `yaml:"traders"`
	ExcludedMarkets     []string      `yaml:"excluded_markets"`
	IsAggregated        bool          `yaml:"is_aggregated"`
	DeferEnabled        bool          `yaml:"defer_enabled"`
	DeferHoursBefore    float64       `yaml:"defer_hours_before"`
}

// TraderEntry es un trader a copiar, con su factor de escala y límites.
type TraderEntry struct {
	Address      string   `yaml:"address"`
	Factor       float64  `yaml:"factor"`
	ExcludedTags []string `yaml:"excluded_tags"`
	MinShare     float64  `yaml:"min_share"`
	MaxShare     float64  `yaml:"max_share"`
}

// StorageConfig controla dónde se persisten los datos.
type StorageConfig struct {
	StatePath string `yaml:"state_path"` // JSON con el estado deferred
	AuditDSN  string `yaml:"audit_dsn"`  // ruta al archivo SQLite, o ":memory:"
}

// MetricsConfig controla el servidor de métricas Prometheus.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Los secrets vienen únicamente del entorno.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// Interval devuelve el intervalo del loop como time.Duration.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.Engine.IntervalSeconds) * time.Second
}

// MarketExpiry devuelve la expiración de órdenes inmediatas.
func (c *Config) MarketExpiry() time.Duration {
	return time.Duration(c.Engine.MarketExpirySeconds) * time.Second
}

// StaleWarn devuelve el umbral de aviso para settlements atascados.
func (c *Config) StaleWarn() time.Duration {
	return time.Duration(c.Engine.StaleWarnMinutes) * time.Minute
}

// ValidateSecrets comprueba que los secrets obligatorios están presentes.
func (c *Config) ValidateSecrets() error {
	if c.PrivateKey == "" {
		return fmt.Errorf("config: POLY_PRIVATE_KEY is required")
	}
	if c.FeedAPIKey == "" {
		return fmt.Errorf("config: FEED_API_KEY is required")
	}
	if c.Funder == "" {
		return fmt.Errorf("config: FUNDER is required")
	}
	return nil
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	cfg.PrivateKey = os.Getenv("POLY_PRIVATE_KEY")
	cfg.FeedAPIKey = os.Getenv("FEED_API_KEY")
	cfg.Funder = os.Getenv("FUNDER")

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Engine.IntervalSeconds <= 0 {
		cfg.Engine.IntervalSeconds = 15
	}
	if cfg.Engine.MarketExpirySeconds <= 0 {
		cfg.Engine.MarketExpirySeconds = 70
	}
	if cfg.Engine.BatchSize <= 0 {
		cfg.Engine.BatchSize = 5
	}
	if cfg.Engine.StaleWarnMinutes <= 0 {
		cfg.Engine.StaleWarnMinutes = 10
	}
	if cfg.API.CLOBBase == "" {
		cfg.API.CLOBBase = "https://clob.polymarket.com"
	}
	if cfg.API.DataBase == "" {
		cfg.API.DataBase = "https://data-api.polymarket.com"
	}
	if cfg.Feed.BuyMin <= 0 {
		cfg.Feed.BuyMin = 0.01
	}
	if cfg.Feed.BuyMax <= 0 {
		cfg.Feed.BuyMax = 0.98
	}
	if cfg.Feed.SellMin <= 0 {
		cfg.Feed.SellMin = 0.01
	}
	if cfg.Feed.SellMax <= 0 {
		cfg.Feed.SellMax = 0.98
	}
	if cfg.Storage.StatePath == "" {
		cfg.Storage.StatePath = "polysync-state.json"
	}
	if cfg.Storage.AuditDSN == "" {
		cfg.Storage.AuditDSN = "polysync.db"
	}
	if cfg.Metrics.Port <= 0 {
		cfg.Metrics.Port = 9090
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
