// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package remoting

import (
	"fmt"
	"net/http"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
)

const configLogPrefix = "remoting:config"

// Config is the environment-driven configuration of client bindings.
type Config struct {
	// BaseURL is the endpoint service names are qualified against.
	BaseURL string `envconfig:"REMOTING_BASE_URL"`

	Envelope    bool   `envconfig:"REMOTING_ENVELOPE" default:"false"`
	Diagnostics bool   `envconfig:"REMOTING_DIAGNOSTICS" default:"false"`
	WriteBack   string `envconfig:"REMOTING_WRITE_BACK" default:"reject"`
	// Codec is "json" or "json2".
	Codec string `envconfig:"REMOTING_CODEC" default:"json"`

	// Timeout bounds HTTP calls.
	Timeout time.Duration `envconfig:"REMOTING_TIMEOUT" default:"30s"`

	DescriptorFile string `envconfig:"REMOTING_DESCRIPTOR_FILE"`

	LogLevel string `envconfig:"REMOTING_LOG_LEVEL" default:"info"`
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks the values LoadConfig cannot check by type.
func (c *Config) Validate() error {
	if c.BaseURL != "" {
		if _, err := Qualify(c.BaseURL, "service"); err != nil {
			return fmt.Errorf("%s - REMOTING_BASE_URL: %w", configLogPrefix, err)
		}
	}
	if _, err := ParseWriteBackPolicy(c.WriteBack); err != nil {
		return fmt.Errorf("%s - REMOTING_WRITE_BACK: %w", configLogPrefix, err)
	}
	if _, err := c.codecSource(); err != nil {
		return fmt.Errorf("%s - REMOTING_CODEC: %w", configLogPrefix, err)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%s - REMOTING_TIMEOUT must be positive", configLogPrefix)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%s - REMOTING_LOG_LEVEL: %w", configLogPrefix, err)
	}
	return nil
}

func (c *Config) codecSource() (CodecSource, error) {
	switch c.Codec {
	case "", "json":
		return JSONCodecs, nil
	case "json2":
		return JSON2Codecs, nil
	default:
		return nil, fmt.Errorf("unknown codec: %s", c.Codec)
	}
}

// Options turns the configuration into binding options. Options given later
// to NewBinding or Dial override these.
func (c *Config) Options() ([]Option, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	policy, _ := ParseWriteBackPolicy(c.WriteBack)
	codecs, _ := c.codecSource()
	level, _ := logrus.ParseLevel(c.LogLevel)

	logger := logrus.New()
	logger.SetLevel(level)

	httpTransport := NewHTTPTransport(c.HTTPClient())

	opts := []Option{
		WithEnvelope(c.Envelope),
		WithDiagnostics(c.Diagnostics),
		WithWriteBackPolicy(policy),
		WithCodecs(codecs),
		WithLogger(logger),
		WithTransport(SchemeHTTP, httpTransport),
		WithTransport(SchemeHTTPS, httpTransport),
	}
	if c.DescriptorFile != "" {
		descriptors, err := LoadDescriptorFile(c.DescriptorFile)
		if err != nil {
			return nil, fmt.Errorf("%s - REMOTING_DESCRIPTOR_FILE: %w", configLogPrefix, err)
		}
		// A loaded file is an in-memory map; CachedDescriptors is for
		// sources that do work per lookup.
		opts = append(opts, WithDescriptors(descriptors))
	}
	return opts, nil
}

// Locator qualifies service against BaseURL.
func (c *Config) Locator(service string) (Locator, error) {
	if c.BaseURL == "" {
		return NewRelative(service), nil
	}
	return Qualify(c.BaseURL, service)
}

// HTTPClient returns a client honoring Timeout, for callers building their
// own transports.
func (c *Config) HTTPClient() *http.Client {
	client := newHTTPClient()
	client.Timeout = c.Timeout
	return client
}
