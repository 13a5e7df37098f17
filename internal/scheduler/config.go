package scheduler

import (
	"os"
	"strings"
	"time"
)

// Config controls the background sweep loop.
type Config struct {
	RunInterval time.Duration
	JobTimeout  time.Duration

	// EnabledJobs restricts which jobs run. Empty enables everything.
	EnabledJobs []string
}

func DefaultConfig() Config {
	return Config{
		RunInterval: time.Minute,
		JobTimeout:  30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	return c
}

func ProvideConfig() Config {
	cfg := Config{
		RunInterval: parseDuration(os.Getenv("SCHEDULER_RUN_INTERVAL")),
		JobTimeout:  parseDuration(os.Getenv("SCHEDULER_JOB_TIMEOUT")),
	}
	if jobs := strings.TrimSpace(os.Getenv("SCHEDULER_ENABLED_JOBS")); jobs != "" {
		for _, job := range strings.Split(jobs, ",") {
			if job = strings.TrimSpace(job); job != "" {
				cfg.EnabledJobs = append(cfg.EnabledJobs, job)
			}
		}
	}
	return cfg.withDefaults()
}

func parseDuration(raw string) time.Duration {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0
	}
	return d
}
