// Package config loads the fit service configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"

	"github.com/copyleftdev/lmfit/internal/optimization"
)

type Config struct {
	Environment string `env:"ENV" envDefault:"development"`
	HTTP        struct {
		Port            int           `env:"HTTP_PORT" envDefault:"8080"`
		ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
		WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
		IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
		ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	}
	Logging struct {
		Level  string `env:"LOG_LEVEL"`
		Format string `env:"LOG_FORMAT" envDefault:"json"`
		Output string `env:"LOG_OUTPUT" envDefault:"stderr"`
	}
	Fit struct {
		WorkerCount     int           `env:"FIT_WORKER_COUNT" envDefault:"10"`
		JobTTL          time.Duration `env:"FIT_JOB_TTL" envDefault:"1h"`
		Ftol            float64       `env:"FIT_FTOL" envDefault:"1e-10"`
		Xtol            float64       `env:"FIT_XTOL" envDefault:"1e-10"`
		Gtol            float64       `env:"FIT_GTOL" envDefault:"1e-10"`
		Epsfcn          float64       `env:"FIT_EPSFCN" envDefault:"2.220446049250313e-16"`
		StepFactor      float64       `env:"FIT_STEP_FACTOR" envDefault:"100"`
		CovTol          float64       `env:"FIT_COV_TOL" envDefault:"1e-14"`
		MaxIter         int           `env:"FIT_MAX_ITER" envDefault:"200"`
		MaxFev          int           `env:"FIT_MAX_FEV" envDefault:"0"`
		MaxRejects      int           `env:"FIT_MAX_REJECTS" envDefault:"50"`
		JacobianWorkers int           `env:"FIT_JACOBIAN_WORKERS" envDefault:"0"`
		ScaleCovariance bool          `env:"FIT_SCALE_COVARIANCE" envDefault:"false"`
		FiniteCheck     bool          `env:"FIT_FINITE_CHECK" envDefault:"true"`
	}
}

func Load() (*Config, error) {
	cfg := &Config{}

	// Parse environment variables
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	// Set default logging level based on environment
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
		if cfg.Environment == "development" {
			cfg.Logging.Level = "debug"
		}
	}

	if cfg.Fit.WorkerCount < 1 {
		return nil, fmt.Errorf("FIT_WORKER_COUNT must be at least 1, got %d", cfg.Fit.WorkerCount)
	}
	fc := cfg.FitConfig()
	if err := fc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid fit defaults: %w", err)
	}

	return cfg, nil
}

// FitConfig returns the fitter defaults as an optimization.Config.
func (c *Config) FitConfig() optimization.Config {
	return optimization.Config{
		Ftol:            c.Fit.Ftol,
		Xtol:            c.Fit.Xtol,
		Gtol:            c.Fit.Gtol,
		Epsfcn:          c.Fit.Epsfcn,
		StepFactor:      c.Fit.StepFactor,
		CovTol:          c.Fit.CovTol,
		MaxIter:         c.Fit.MaxIter,
		MaxFev:          c.Fit.MaxFev,
		MaxRejects:      c.Fit.MaxRejects,
		ScaleCovariance: c.Fit.ScaleCovariance,
		FiniteCheck:     c.Fit.FiniteCheck,
		JacobianWorkers: c.Fit.JacobianWorkers,
	}
}
