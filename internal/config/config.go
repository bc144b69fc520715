package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	DBConn   string
	LogLevel string
	// JWTSecret enables bearer-token auth on the API when non-empty.
	JWTSecret string
	CBRURL    string

	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	TimelineCacheTTL time.Duration

	LLMBaseURL string
	LLMAPIKey  string
	LLMModel   string
	LLMTimeout time.Duration

	Simulations       int
	SimulationCap     int
	SimulationWorkers int
	SimulationSeed    uint64
	SimulationTimeout time.Duration

	InstallmentsRate     float64
	TaxRate              float64
	VolatilityBufferRate float64

	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SenderEmail  string

	AtRiskCron      string
	AtRiskThreshold float64

	CORSOrigins []string
}

// NewConfig loads configuration from environment variables
func NewConfig() (*Config, error) {
	var errs []string
	cfg := &Config{
		Port:      getEnv("PORT", "8080"),
		DBConn:    getEnv("DB_CONN", "host=localhost port=5432 user=test password=test dbname=finance sslmode=disable"),
		LogLevel:  getEnv("LOG_LEVEL", "INFO"),
		JWTSecret: getEnv("JWT_SECRET", ""),
		CBRURL:    getEnv("CBR_URL", "https://www.cbr.ru/scripts/XML_daily.asp"),

		RedisAddr:        getEnv("REDIS_ADDR", ""),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RedisDB:          getEnvInt("REDIS_DB", 0, &errs),
		TimelineCacheTTL: getEnvDuration("TIMELINE_CACHE_TTL", 10*time.Minute, &errs),

		LLMBaseURL: getEnv("LLM_BASE_URL", "https://api.openai.com/v1"),
		LLMAPIKey:  getEnv("LLM_API_KEY", ""),
		LLMModel:   getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMTimeout: getEnvDuration("LLM_TIMEOUT", 20*time.Second, &errs),

		Simulations:       getEnvInt("SIMULATIONS", 5000, &errs),
		SimulationCap:     getEnvInt("SIMULATION_MONTH_CAP", 360, &errs),
		SimulationWorkers: getEnvInt("SIMULATION_WORKERS", 0, &errs),
		SimulationSeed:    uint64(getEnvInt("SIMULATION_SEED", 0, &errs)),
		SimulationTimeout: getEnvDuration("SIMULATION_TIMEOUT", 2*time.Second, &errs),

		InstallmentsRate:     getEnvFloat("INSTALLMENTS_RATE", 0, &errs),
		TaxRate:              getEnvFloat("TAX_RATE", 0.12, &errs),
		VolatilityBufferRate: getEnvFloat("VOLATILITY_BUFFER_RATE", 0.05, &errs),

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnv("SMTP_PORT", "587"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SenderEmail:  getEnv("SENDER_EMAIL", "no-reply@goal-service.local"),

		AtRiskCron:      getEnv("AT_RISK_CRON", "0 9 * * *"),
		AtRiskThreshold: getEnvFloat("AT_RISK_THRESHOLD", 50, &errs),

		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "http://localhost:3000")),
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}

	if cfg.DBConn == "" {
		return nil, fmt.Errorf("DB_CONN is required")
	}
	if cfg.Simulations <= 0 {
		return nil, fmt.Errorf("SIMULATIONS must be positive")
	}
	if cfg.SimulationCap <= 0 {
		return nil, fmt.Errorf("SIMULATION_MONTH_CAP must be positive")
	}
	for name, rate := range map[string]float64{
		"INSTALLMENTS_RATE":      cfg.InstallmentsRate,
		"TAX_RATE":               cfg.TaxRate,
		"VOLATILITY_BUFFER_RATE": cfg.VolatilityBufferRate,
	} {
		if rate < 0 || rate > 1 {
			return nil, fmt.Errorf("%s must be between 0 and 1", name)
		}
	}

	return cfg, nil
}

// SMTPEnabled reports whether email alerts can be sent.
func (c *Config) SMTPEnabled() bool {
	return c.SMTPHost != ""
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int, errs *[]string) int {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: %v", key, err))
		return defaultVal
	}
	return v
}

func getEnvFloat(key string, defaultVal float64, errs *[]string) float64 {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return defaultVal
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: %v", key, err))
		return defaultVal
	}
	return v
}

func getEnvDuration(key string, defaultVal time.Duration, errs *[]string) time.Duration {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return defaultVal
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: %v", key, err))
		return defaultVal
	}
	return v
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
