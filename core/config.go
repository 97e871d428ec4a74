package core

import (
	"fmt"
	"strings"
)

type RequestConfig struct {
	ContentType string            `koanf:"content_type" mapstructure:"content_type"`
	Mode        string            `koanf:"mode" mapstructure:"mode"`
	Credentials string            `koanf:"credentials" mapstructure:"credentials"`
	Headers     map[string]string `koanf:"headers" mapstructure:"headers"`
}

type TransportConfig struct {
	Kind                 string `koanf:"kind" mapstructure:"kind"`
	MaxResponseBodyBytes int64  `koanf:"max_response_body_bytes" mapstructure:"max_response_body_bytes"`
}

type Config struct {
	ServiceName string          `koanf:"service_name" mapstructure:"service_name"`
	Request     RequestConfig   `koanf:"request" mapstructure:"request"`
	Transport   TransportConfig `koanf:"transport" mapstructure:"transport"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "service-driver",
		Request: RequestConfig{
			ContentType: DefaultContentType,
			Mode:        DefaultMode,
			Credentials: DefaultCredentials,
		},
		Transport: TransportConfig{
			Kind: "rest",
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Transport.MaxResponseBodyBytes < 0 {
		return fmt.Errorf("core: transport.max_response_body_bytes must not be negative")
	}
	return nil
}

func (c Config) requestDefaults() RequestDefaults {
	headers := make(map[string]string, len(c.Request.Headers))
	for key, value := range c.Request.Headers {
		headers[key] = value
	}
	return RequestDefaults{
		ContentType: c.Request.ContentType,
		Mode:        c.Request.Mode,
		Credentials: c.Request.Credentials,
		Headers:     headers,
	}
}
