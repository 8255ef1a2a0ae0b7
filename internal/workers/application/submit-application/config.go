// internal/workers/application/submit-application/config.go
package submitapplication

import "time"

// The timeout covers lock acquisition plus the read-model round trip, so it
// sits above the other lifecycle workers.
type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 30 * time.Second,
	}
}
