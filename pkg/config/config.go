package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendREST     = "rest"
	BackendPostgres = "postgres"
)

// Backend describes where campaign, lead and analytics rows are read from.
type Backend struct {
	Kind       string
	URL        string
	ServiceKey string
	DBDSN      string
	RateLimit  float64
	Timeout    time.Duration
}

type APIConfig struct {
	Port          string
	Backend       Backend
	RMQURL        string
	Queue         string
	SchedulerCron string
	Location      *time.Location
}

type WorkerConfig struct {
	Backend     Backend
	RMQURL      string
	Queue       string
	BatchSize   int
	// Prefetch is the AMQP QoS window: deliveries held unacked at once.
	Prefetch    int
	MetricsPort string
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func mustEnv(k string) (string, error) {
	v := os.Getenv(k)
	if v == "" {
		return "", fmt.Errorf("required env %s is not set", k)
	}
	return v, nil
}

// loadDotenv reads .env if present. Variables already set in the
// environment win.
func loadDotenv() {
	_ = godotenv.Load()
}

func loadBackend() (Backend, error) {
	b := Backend{
		Kind: strings.ToLower(getenv("DATA_BACKEND", BackendREST)),
	}

	rl, err := strconv.ParseFloat(getenv("BACKEND_RATE_LIMIT", "20"), 64)
	if err != nil || rl <= 0 {
		return Backend{}, fmt.Errorf("invalid BACKEND_RATE_LIMIT: %q", os.Getenv("BACKEND_RATE_LIMIT"))
	}
	b.RateLimit = rl

	b.Timeout, err = time.ParseDuration(getenv("BACKEND_TIMEOUT", "15s"))
	if err != nil {
		return Backend{}, fmt.Errorf("invalid BACKEND_TIMEOUT: %w", err)
	}

	switch b.Kind {
	case BackendREST:
		if b.URL, err = mustEnv("BACKEND_URL"); err != nil {
			return Backend{}, err
		}
		if b.ServiceKey, err = mustEnv("BACKEND_SERVICE_KEY"); err != nil {
			return Backend{}, err
		}
		b.URL = strings.TrimRight(b.URL, "/")
	case BackendPostgres:
		if b.DBDSN, err = mustEnv("DB_DSN"); err != nil {
			return Backend{}, err
		}
	default:
		return Backend{}, fmt.Errorf("unknown DATA_BACKEND %q", b.Kind)
	}
	return b, nil
}

func LoadAPI() (APIConfig, error) {
	loadDotenv()

	backend, err := loadBackend()
	if err != nil {
		return APIConfig{}, err
	}
	rmqURL, err := mustEnv("RMQ_URL")
	if err != nil {
		return APIConfig{}, err
	}

	loc, err := time.LoadLocation(getenv("METRICS_TIMEZONE", "UTC"))
	if err != nil {
		return APIConfig{}, fmt.Errorf("invalid METRICS_TIMEZONE: %w", err)
	}

	return APIConfig{
		Port:          getenv("PORT", "8080"),
		Backend:       backend,
		RMQURL:        rmqURL,
		Queue:         getenv("QUEUE", "campaign_dispatch"),
		SchedulerCron: os.Getenv("SCHEDULER_CRON"),
		Location:      loc,
	}, nil
}

func LoadWorker() (WorkerConfig, error) {
	loadDotenv()

	backend, err := loadBackend()
	if err != nil {
		return WorkerConfig{}, err
	}
	rmqURL, err := mustEnv("RMQ_URL")
	if err != nil {
		return WorkerConfig{}, err
	}

	batch, err := strconv.Atoi(getenv("WORKER_BATCH_SIZE", "100"))
	if err != nil || batch <= 0 {
		return WorkerConfig{}, errors.New("WORKER_BATCH_SIZE must be a positive integer")
	}
	prefetch, err := strconv.Atoi(getenv("WORKER_PREFETCH", "10"))
	if err != nil || prefetch <= 0 {
		return WorkerConfig{}, errors.New("WORKER_PREFETCH must be a positive integer")
	}

	return WorkerConfig{
		Backend:     backend,
		RMQURL:      rmqURL,
		Queue:       getenv("QUEUE", "campaign_dispatch"),
		BatchSize:   batch,
		Prefetch:    prefetch,
		MetricsPort: getenv("WORKER_METRICS_PORT", "9091"),
	}, nil
}
