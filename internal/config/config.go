// Package config содержит логику чтения конфигурации пульта розыгрыша.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	defaultRunAddress       = "localhost:8080"
	defaultSpinDuration     = 6 * time.Second
	defaultSpinMode         = "two-phase"
	defaultSettleDelay      = 800 * time.Millisecond
	defaultConfirmThreshold = time.Hour
	defaultPointerSide      = "right"
)

// Config содержит параметры конфигурации пульта розыгрыша.
type Config struct {
	RunAddress         string        `env:"RUN_ADDRESS"`
	DatabaseURI        string        `env:"DATABASE_URI"`
	DrawServiceAddress string        `env:"DRAW_SERVICE_ADDRESS"`
	OperatorKey        string        `env:"OPERATOR_KEY"`
	SpinDuration       time.Duration `env:"SPIN_DURATION"`
	SpinMode           string        `env:"SPIN_MODE"`
	SettleDelay        time.Duration `env:"SETTLE_DELAY" envDefault:"800ms"`
	ConfirmThreshold   time.Duration `env:"CONFIRM_THRESHOLD" envDefault:"1h"`
	PointerSide        string        `env:"POINTER_SIDE" envDefault:"right"`
}

// LoadDotEnv подгружает переменные из файла path, не перезаписывая уже заданные.
// Отсутствие файла не считается ошибкой.
func LoadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load %s: %w", path, err)
}

// Parse считывает конфигурацию из .env, флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	if err := LoadDotEnv(".env"); err != nil {
		return nil, err
	}

	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envDrawAddress := cfg.DrawServiceAddress
	envOperatorKey := cfg.OperatorKey
	envSpinDuration := cfg.SpinDuration
	envSpinMode := cfg.SpinMode

	flag.StringVar(&cfg.RunAddress, "a", defaultRunAddress, "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI, empty keeps selection in memory")
	flag.StringVar(&cfg.DrawServiceAddress, "r", "", "draw service address")
	flag.StringVar(&cfg.OperatorKey, "k", "", "operator access key")
	flag.DurationVar(&cfg.SpinDuration, "s", defaultSpinDuration, "wheel spin duration")
	flag.StringVar(&cfg.SpinMode, "m", defaultSpinMode, "spin animation mode: two-phase or direct")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envDrawAddress != "" {
		cfg.DrawServiceAddress = envDrawAddress
	}
	if envOperatorKey != "" {
		cfg.OperatorKey = envOperatorKey
	}
	if envSpinDuration != 0 {
		cfg.SpinDuration = envSpinDuration
	}
	if envSpinMode != "" {
		cfg.SpinMode = envSpinMode
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = defaultRunAddress
	}
	if cfg.SpinDuration <= 0 {
		cfg.SpinDuration = defaultSpinDuration
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.SpinMode {
	case "two-phase", "direct":
	default:
		return fmt.Errorf("invalid spin mode %q", c.SpinMode)
	}

	switch c.PointerSide {
	case "right", "top":
	default:
		return fmt.Errorf("invalid pointer side %q", c.PointerSide)
	}

	if c.SettleDelay < 0 {
		return fmt.Errorf("invalid settle delay %s", c.SettleDelay)
	}
	if c.ConfirmThreshold <= 0 {
		c.ConfirmThreshold = defaultConfirmThreshold
	}

	return nil
}
