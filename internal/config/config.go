package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Database   DatabaseConfig
	Server     ServerConfig
	App        AppConfig
	BAI2       BAI2Config
	Storage    StorageConfig
	Extraction ExtractionConfig
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	// Enabled is false when run history should stay in memory.
	Enabled bool
}

type ServerConfig struct {
	Port string
}

type AppConfig struct {
	LogLevel  string
	BatchSize int
}

// BAI2Config carries the assembler and reconciliation options.
type BAI2Config struct {
	MismatchToleranceCents int64
	DescriptionMaxLength   int
	DateTwoDigitPivot      int
	DefaultCreditCode      string
	DefaultDebitCode       string
	FundsType              string
	EmitEmptyWhenUnknown   bool
	LineEnding             string
	BankTags               map[string]string
}

type StorageConfig struct {
	Bucket       string
	OutputPrefix string
}

type ExtractionConfig struct {
	APIKey string
	Model  string
}

func Load() (*Config, error) {
	batchSize, err := strconv.Atoi(getEnv("BATCH_SIZE", "10000"))
	if err != nil {
		batchSize = 10000
	}

	bai2, err := loadBAI2()
	if err != nil {
		return nil, err
	}

	return &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "bai2_db"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			Enabled:  getEnvBool("DB_ENABLED", true),
		},
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
		},
		App: AppConfig{
			LogLevel:  getEnv("LOG_LEVEL", "info"),
			BatchSize: batchSize,
		},
		BAI2: bai2,
		Storage: StorageConfig{
			Bucket:       getEnv("GCS_BUCKET", ""),
			OutputPrefix: getEnv("GCS_OUTPUT_PREFIX", "bai2/"),
		},
		Extraction: ExtractionConfig{
			APIKey: getEnv("GEMINI_API_KEY", ""),
			Model:  getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		},
	}, nil
}

// DefaultBAI2 returns the documented defaults for every BAI2 option.
func DefaultBAI2() BAI2Config {
	return BAI2Config{
		MismatchToleranceCents: 1,
		DescriptionMaxLength:   50,
		DateTwoDigitPivot:      50,
		DefaultCreditCode:      "301",
		DefaultDebitCode:       "451",
		FundsType:              "Z",
		EmitEmptyWhenUnknown:   true,
		LineEnding:             "lf",
		BankTags:               map[string]string{},
	}
}

func loadBAI2() (BAI2Config, error) {
	c := DefaultBAI2()

	var err error
	if c.MismatchToleranceCents, err = getEnvInt64("BAI2_MISMATCH_TOLERANCE_CENTS", c.MismatchToleranceCents); err != nil {
		return c, err
	}
	maxLen, err := getEnvInt64("BAI2_DESCRIPTION_MAX_LENGTH", int64(c.DescriptionMaxLength))
	if err != nil {
		return c, err
	}
	c.DescriptionMaxLength = int(maxLen)
	pivot, err := getEnvInt64("BAI2_DATE_TWO_DIGIT_PIVOT", int64(c.DateTwoDigitPivot))
	if err != nil {
		return c, err
	}
	c.DateTwoDigitPivot = int(pivot)

	c.DefaultCreditCode = getEnv("BAI2_DEFAULT_CREDIT_CODE", c.DefaultCreditCode)
	c.DefaultDebitCode = getEnv("BAI2_DEFAULT_DEBIT_CODE", c.DefaultDebitCode)
	c.FundsType = getEnv("BAI2_FUNDS_TYPE", c.FundsType)
	c.EmitEmptyWhenUnknown = getEnvBool("BAI2_EMIT_EMPTY_WHEN_UNKNOWN", c.EmitEmptyWhenUnknown)
	c.LineEnding = strings.ToLower(getEnv("BAI2_LINE_ENDING", c.LineEnding))

	if c.BankTags, err = ParseBankTags(getEnv("BAI2_BANK_TAGS", "")); err != nil {
		return c, err
	}

	return c, c.Validate()
}

// Validate rejects option values the assembler cannot work with.
func (c BAI2Config) Validate() error {
	if c.MismatchToleranceCents < 0 {
		return fmt.Errorf("mismatch tolerance must be non-negative, got %d", c.MismatchToleranceCents)
	}
	if c.DescriptionMaxLength <= 0 {
		return fmt.Errorf("description max length must be positive, got %d", c.DescriptionMaxLength)
	}
	if c.DateTwoDigitPivot < 0 || c.DateTwoDigitPivot > 100 {
		return fmt.Errorf("two-digit year pivot must be within 0..100, got %d", c.DateTwoDigitPivot)
	}
	if strings.TrimSpace(c.FundsType) == "" {
		return fmt.Errorf("funds type cannot be empty")
	}
	if !isTypeCode(c.DefaultCreditCode) || !isTypeCode(c.DefaultDebitCode) {
		return fmt.Errorf("default type codes must be three digits, got %q/%q", c.DefaultCreditCode, c.DefaultDebitCode)
	}
	if c.LineEnding != "lf" && c.LineEnding != "crlf" {
		return fmt.Errorf("line ending must be lf or crlf, got %q", c.LineEnding)
	}
	return nil
}

// ParseBankTags reads "routing=TAG,routing=TAG" pairs.
func ParseBankTags(raw string) (map[string]string, error) {
	tags := make(map[string]string)
	if strings.TrimSpace(raw) == "" {
		return tags, nil
	}
	for _, pair := range strings.Split(raw, ",") {
		routing, tag, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || routing == "" || tag == "" {
			return nil, fmt.Errorf("invalid bank tag entry %q, want routing=TAG", pair)
		}
		tags[strings.TrimSpace(routing)] = strings.ToUpper(strings.TrimSpace(tag))
	}
	return tags, nil
}

func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func isTypeCode(s string) bool {
	if len(s) != 3 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) (int64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return n, nil
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}
