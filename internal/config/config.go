package config

import (
	"fmt"
	"net/url"
	"os"
	"time"
)

// Default configuration values
const (
	DefaultAPIURL   = "http://localhost:8080"
	DefaultProxyURL = "ws://localhost:80"
	DefaultTimeout  = 10 * time.Second
)

// Config holds application configuration
type Config struct {
	// APIURL is the base URL of the room directory API
	APIURL string

	// ProxyURL is the websocket endpoint of the relay proxy
	ProxyURL string

	// Timeout bounds each directory request
	Timeout time.Duration
}

// Options for loading config with CLI flag overrides
type Options struct {
	APIURL   string
	ProxyURL string
	Timeout  time.Duration
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	apiURL := firstNonEmpty(opts.APIURL, os.Getenv("ROOM_API_URL"), DefaultAPIURL)
	if err := checkURL(apiURL, "http", "https"); err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}

	proxyURL := firstNonEmpty(opts.ProxyURL, os.Getenv("RELAY_PROXY_URL"), DefaultProxyURL)
	if err := checkURL(proxyURL, "ws", "wss"); err != nil {
		return nil, fmt.Errorf("invalid proxy URL: %w", err)
	}

	timeout := opts.Timeout
	if timeout == 0 {
		if env := os.Getenv("REQUEST_TIMEOUT"); env != "" {
			d, err := time.ParseDuration(env)
			if err != nil {
				return nil, fmt.Errorf("invalid REQUEST_TIMEOUT: %w", err)
			}
			timeout = d
		}
	}
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	return &Config{
		APIURL:   apiURL,
		ProxyURL: proxyURL,
		Timeout:  timeout,
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func checkURL(raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Host == "" {
		return fmt.Errorf("%q has no host", raw)
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return nil
		}
	}
	return fmt.Errorf("%q: scheme must be one of %v", raw, schemes)
}
