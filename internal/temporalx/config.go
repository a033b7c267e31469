package temporalx

import (
	"strings"
	"time"
)

type Config struct {
	Address   string
	Namespace string
	TaskQueue string

	ClientCertPath string
	ClientKeyPath  string
	ClientCAPath   string

	AutoRegisterNamespace bool
	NamespaceRetention    time.Duration

	DialTimeout    time.Duration
	DialMaxWait    time.Duration
	DialBackoff    time.Duration
	DialBackoffMax time.Duration
}

// WithDefaults fills unset fields. Address stays empty when unset, which
// means Temporal is disabled.
func (c Config) WithDefaults() Config {
	c.Address = strings.TrimSpace(c.Address)
	c.Namespace = stringsOr(strings.TrimSpace(c.Namespace), "ideaforge")
	c.TaskQueue = stringsOr(strings.TrimSpace(c.TaskQueue), "ideaforge-research")
	if c.NamespaceRetention <= 0 {
		c.NamespaceRetention = 7 * 24 * time.Hour
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.DialMaxWait < 0 {
		c.DialMaxWait = 0
	}
	if c.DialBackoff <= 0 {
		c.DialBackoff = 250 * time.Millisecond
	}
	if c.DialBackoffMax <= 0 {
		c.DialBackoffMax = 5 * time.Second
	}
	return c
}

func (c Config) mTLS() bool {
	return c.ClientCertPath != "" || c.ClientKeyPath != "" || c.ClientCAPath != ""
}

// Backoff is the wait before retry number attempt+1: DialBackoff doubled per
// attempt, capped at DialBackoffMax.
func (c Config) Backoff(attempt int) time.Duration {
	base, max := c.DialBackoff, c.DialBackoffMax
	if base <= 0 {
		base = 250 * time.Millisecond
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if max > 0 && d >= max {
			return max
		}
	}
	if max > 0 && d > max {
		return max
	}
	return d
}

func stringsOr(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
