// Package config provides application configuration loaded from environment
// variables. Use the package-level Get() function to obtain the singleton
// Config instance.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Sub-config structs
// ──────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port                 string // PORT, e.g. "8080"
	BackofficePort       string
	Env                  string        // "development" | "production"
	ReadTimeout          time.Duration
	WriteTimeout         time.Duration
	BackofficeAllowedIPs string // comma-separated IPs; "" = allow all
}

// DBConfig holds database connection settings.
type DBConfig struct {
	Path            string // DB_PATH; stored only, the DSN comes from DATABASE_URL or the DB_* variables
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	MigrationsDir   string
}

// SettlementConfig holds connection settings for the external settlement
// service (§4.6).
type SettlementConfig struct {
	ClearnodeURL      string
	MMPrivateKey      string
	ApplicationName   string
	FaucetURL         string
	Asset             string        // primary settlement asset symbol, e.g. "usdc"
	RPCTimeout        time.Duration // default 15s
	FaucetRetryBase   time.Duration // default 500ms
	FaucetRetryCap    time.Duration // default 5s
	FaucetRetryJitter float64       // default 0.2 (20%)
	FaucetMaxRetries  int           // default 3
}

// marketConfigState is the mutable part of MarketConfig: transactionFeePercent
// and lmsrSensitivityFactor are admin-mutable (§6's /api/admin/config, §9's
// "configuration as process-wide state" note). Guarded by mu so concurrent
// reads during bet placement and resolution stay consistent.
type marketConfigState struct {
	mu                    sync.RWMutex
	transactionFeePercent decimal.Decimal
	lmsrSensitivityFactor decimal.Decimal
}

// MarketConfig holds the hub's pricing/fee configuration. TransactionFeePercent
// and LMSRSensitivityFactor are read/written through accessor methods rather
// than plain fields so every manager sees a consistent snapshot.
type MarketConfig struct {
	state             *marketConfigState
	DefaultLiquidityB decimal.Decimal
}

// FeePercent returns the current transaction fee percentage (e.g. 2.0 = 2%).
func (m *MarketConfig) FeePercent() decimal.Decimal {
	m.state.mu.RLock()
	defer m.state.mu.RUnlock()
	return m.state.transactionFeePercent
}

// SetFeePercent updates the transaction fee percentage. Called from the
// admin config endpoint.
func (m *MarketConfig) SetFeePercent(v decimal.Decimal) {
	m.state.mu.Lock()
	defer m.state.mu.Unlock()
	m.state.transactionFeePercent = v
}

// SensitivityFactor returns the current LMSR auto-scaling sensitivity factor.
func (m *MarketConfig) SensitivityFactor() decimal.Decimal {
	m.state.mu.RLock()
	defer m.state.mu.RUnlock()
	return m.state.lmsrSensitivityFactor
}

// SetSensitivityFactor updates the LMSR auto-scaling sensitivity factor.
func (m *MarketConfig) SetSensitivityFactor(v decimal.Decimal) {
	m.state.mu.Lock()
	defer m.state.mu.Unlock()
	m.state.lmsrSensitivityFactor = v
}

// JWTConfig holds signing settings for backoffice operator sessions (§9).
type JWTConfig struct {
	AccessSecret string
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
}

// WSConfig tunes the WS Fan-out Manager.
type WSConfig struct {
	SendBufferSize int
	PingInterval   time.Duration
	PongWait       time.Duration
}

// SchedulerConfig tunes the auto-play loops' tick intervals (§4.10's
// optional demo/testing cycling).
type SchedulerConfig struct {
	MarketCreationInterval time.Duration
	ResolutionInterval     time.Duration
	OddsBroadcastInterval  time.Duration
}

// KafkaConfig gates the Resolution Pipeline's additive audit-event channel
// (§11.2). Disabled by default so the hub runs without a broker in dev/test.
type KafkaConfig struct {
	Enabled bool
	Brokers string
}

// ambientEnv holds operational variables loaded via caarlos0/env struct
// tags, separate from the domain-facing leaves above which follow the
// teacher's own getEnv/getInt/getDuration loader.
type ambientEnv struct {
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
}

// ──────────────────────────────────────────────────────────────────────────────
// Top-level Config
// ──────────────────────────────────────────────────────────────────────────────

// Config is the root configuration object for the entire application.
type Config struct {
	Server     ServerConfig
	DB         DBConfig
	Settlement SettlementConfig
	Market     MarketConfig
	JWT        JWTConfig
	WS         WSConfig
	Scheduler  SchedulerConfig
	Kafka      KafkaConfig
	LogLevel   string
	LogFormat  string
}

// IsProd returns true when running in the production environment.
func (c *Config) IsProd() bool {
	return c.Server.Env == "production"
}

// Validate checks that all required configuration values are present and
// valid, joining every violation with errors.Join so a single boot failure
// reports everything wrong at once.
func (c *Config) Validate() error {
	var errs []error

	if c.IsProd() && c.Settlement.MMPrivateKey == "" {
		errs = append(errs, errors.New("MM_PRIVATE_KEY must be set in production"))
	}
	if c.Settlement.RPCTimeout <= 0 {
		errs = append(errs, errors.New("settlement RPC timeout must be positive"))
	}
	if c.IsProd() && c.JWT.AccessSecret == "" {
		errs = append(errs, errors.New("JWT_ACCESS_SECRET must be set in production"))
	}
	if c.Market.DefaultLiquidityB.Sign() <= 0 {
		errs = append(errs, errors.New("DEFAULT_LIQUIDITY_B must be positive"))
	}
	fee := c.Market.FeePercent()
	if fee.IsNegative() || fee.GreaterThan(decimal.NewFromInt(100)) {
		errs = append(errs, fmt.Errorf("TRANSACTION_FEE_PERCENT must be in [0, 100], got %s", fee))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Singleton
// ──────────────────────────────────────────────────────────────────────────────

var (
	instance *Config
	once     sync.Once
	loadErr  error
)

// Get returns the singleton Config, loading it once from environment
// variables. Panics if loading fails — call this early in main() to catch
// misconfigurations at startup.
func Get() *Config {
	once.Do(func() {
		instance, loadErr = load()
	})
	if loadErr != nil {
		panic(fmt.Sprintf("config: failed to load: %v", loadErr))
	}
	return instance
}

// MustLoad loads and validates configuration. Intended for use in main().
func MustLoad() *Config {
	cfg := Get()
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("config: validation failed: %v", err))
	}
	return cfg
}

// ──────────────────────────────────────────────────────────────────────────────
// Internal loader
// ──────────────────────────────────────────────────────────────────────────────

func load() (*Config, error) {
	cfg := &Config{}

	var ambient ambientEnv
	if err := env.Parse(&ambient); err != nil {
		return nil, fmt.Errorf("parse ambient env: %w", err)
	}
	cfg.LogLevel = ambient.LogLevel
	cfg.LogFormat = ambient.LogFormat

	cfg.Server = ServerConfig{
		Port:                 getEnv("PORT", "8080"),
		BackofficePort:       getEnv("BACKOFFICE_PORT", "8081"),
		Env:                  getEnv("ENVIRONMENT", "development"),
		ReadTimeout:          getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
		WriteTimeout:         getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
		BackofficeAllowedIPs: getEnv("BACKOFFICE_ALLOWED_IPS", ""),
	}

	dbPath := getEnv("DB_PATH", "./data/prediction.db")
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		dsn = fmt.Sprintf(
			"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			getEnv("DB_HOST", "localhost"),
			getEnv("DB_PORT", "5432"),
			getEnv("DB_USER", "postgres"),
			getEnv("DB_PASSWORD", ""),
			getEnv("DB_NAME", "prediction_hub"),
			getEnv("DB_SSLMODE", "disable"),
		)
	}
	maxOpen, err := getInt("DB_MAX_OPEN_CONNS", 25)
	if err != nil {
		return nil, fmt.Errorf("DB_MAX_OPEN_CONNS: %w", err)
	}
	maxIdle, err := getInt("DB_MAX_IDLE_CONNS", 10)
	if err != nil {
		return nil, fmt.Errorf("DB_MAX_IDLE_CONNS: %w", err)
	}
	cfg.DB = DBConfig{
		Path:            dbPath,
		DSN:             dsn,
		MaxOpenConns:    maxOpen,
		MaxIdleConns:    maxIdle,
		ConnMaxLifetime: getDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		MigrationsDir:   getEnv("MIGRATIONS_DIR", "./migrations"),
	}

	faucetBase, err := getDurationErr("FAUCET_RETRY_BASE", 500*time.Millisecond)
	if err != nil {
		return nil, err
	}
	faucetCap, err := getDurationErr("FAUCET_RETRY_CAP", 5*time.Second)
	if err != nil {
		return nil, err
	}
	faucetJitter, err := getFloat("FAUCET_RETRY_JITTER", 0.2)
	if err != nil {
		return nil, fmt.Errorf("FAUCET_RETRY_JITTER: %w", err)
	}
	faucetRetries, err := getInt("FAUCET_MAX_RETRIES", 3)
	if err != nil {
		return nil, fmt.Errorf("FAUCET_MAX_RETRIES: %w", err)
	}
	cfg.Settlement = SettlementConfig{
		ClearnodeURL:      getEnv("CLEARNODE_URL", "wss://clearnode.example.org/ws"),
		MMPrivateKey:      getEnv("MM_PRIVATE_KEY", ""),
		ApplicationName:   getEnv("APPLICATION_NAME", "prediction-hub"),
		FaucetURL:         getEnv("FAUCET_URL", ""),
		Asset:             getEnv("SETTLEMENT_ASSET", "usdc"),
		RPCTimeout:        getDuration("SETTLEMENT_RPC_TIMEOUT", 15*time.Second),
		FaucetRetryBase:   faucetBase,
		FaucetRetryCap:    faucetCap,
		FaucetRetryJitter: faucetJitter,
		FaucetMaxRetries:  faucetRetries,
	}

	feePercent, err := getFloat("TRANSACTION_FEE_PERCENT", 2.0)
	if err != nil {
		return nil, fmt.Errorf("TRANSACTION_FEE_PERCENT: %w", err)
	}
	sensitivity, err := getFloat("LMSR_SENSITIVITY_FACTOR", 0.01)
	if err != nil {
		return nil, fmt.Errorf("LMSR_SENSITIVITY_FACTOR: %w", err)
	}
	defaultB, err := getFloat("DEFAULT_LIQUIDITY_B", 100)
	if err != nil {
		return nil, fmt.Errorf("DEFAULT_LIQUIDITY_B: %w", err)
	}
	cfg.Market = MarketConfig{
		state: &marketConfigState{
			transactionFeePercent: decimal.NewFromFloat(feePercent),
			lmsrSensitivityFactor: decimal.NewFromFloat(sensitivity),
		},
		DefaultLiquidityB: decimal.NewFromFloat(defaultB),
	}

	cfg.JWT = JWTConfig{
		AccessSecret: getEnv("JWT_ACCESS_SECRET", ""),
		AccessTTL:    getDuration("JWT_ACCESS_TTL", 15*time.Minute),
		RefreshTTL:   getDuration("JWT_REFRESH_TTL", 7*24*time.Hour),
	}

	wsBuf, err := getInt("WS_SEND_BUFFER_SIZE", 256)
	if err != nil {
		return nil, fmt.Errorf("WS_SEND_BUFFER_SIZE: %w", err)
	}
	cfg.WS = WSConfig{
		SendBufferSize: wsBuf,
		PingInterval:   getDuration("WS_PING_INTERVAL", 30*time.Second),
		PongWait:       getDuration("WS_PONG_WAIT", 60*time.Second),
	}

	cfg.Scheduler = SchedulerConfig{
		MarketCreationInterval: getDuration("SCHEDULER_MARKET_CREATION_INTERVAL", 30*time.Second),
		ResolutionInterval:     getDuration("SCHEDULER_RESOLUTION_INTERVAL", 5*time.Second),
		OddsBroadcastInterval:  getDuration("SCHEDULER_ODDS_BROADCAST_INTERVAL", 2*time.Second),
	}

	cfg.Kafka = KafkaConfig{
		Enabled: getBool("KAFKA_ENABLED", false),
		Brokers: getEnv("KAFKA_BROKERS", ""),
	}

	return cfg, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Helper functions
// ──────────────────────────────────────────────────────────────────────────────

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q", v)
	}
	return n, nil
}

func getFloat(key string, defaultVal float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float %q", v)
	}
	return f, nil
}

// getDuration parses an env var as a Go duration string. Falls back to
// defaultVal on parse error rather than failing the boot.
func getDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

// getDurationErr is like getDuration but returns a hard error on malformed
// input, used for settings whose misconfiguration should fail the boot loudly.
func getDurationErr(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", key, v)
	}
	return d, nil
}
