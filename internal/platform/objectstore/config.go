// Package objectstore configures the S3-compatible store holding rendered
// code images.
package objectstore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pivotpie/piedocs-go/internal/platform/env"
)

type Config struct {
	Endpoint    string
	AccessKey   string
	SecretKey   string
	Region      string
	UseSSL      bool
	BucketCodes string
}

func ConfigFromEnv() (Config, error) {
	useSSL, err := env.Bool("PIEDOCS_MINIO_USE_SSL", false)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		Endpoint:    env.String("PIEDOCS_MINIO_ENDPOINT", "localhost:9000"),
		AccessKey:   env.String("PIEDOCS_MINIO_ACCESS_KEY", "piedocs"),
		SecretKey:   env.String("PIEDOCS_MINIO_SECRET_KEY", "piedocsminio"),
		Region:      env.String("PIEDOCS_MINIO_REGION", "us-east-1"),
		UseSSL:      useSSL,
		BucketCodes: env.String("PIEDOCS_MINIO_BUCKET_CODES", "codes"),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return errors.New("endpoint is required")
	}
	if strings.TrimSpace(c.AccessKey) == "" {
		return errors.New("access key is required")
	}
	if strings.TrimSpace(c.SecretKey) == "" {
		return errors.New("secret key is required")
	}
	if strings.TrimSpace(c.Region) == "" {
		return errors.New("region is required")
	}
	if strings.TrimSpace(c.BucketCodes) == "" {
		return errors.New("codes bucket is required")
	}
	if strings.Contains(c.Endpoint, "://") {
		return fmt.Errorf("endpoint must not include scheme: %q", c.Endpoint)
	}
	return nil
}
