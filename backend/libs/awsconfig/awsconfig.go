package awsconfig

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
)

// Options selects the region and an optional endpoint override (LocalStack,
// DynamoDB Local).
type Options struct {
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
}

// Load resolves credentials from the default chain.
func Load(ctx context.Context, opts Options) (aws.Config, error) {
	var loaders []func(*config.LoadOptions) error
	if region := strings.TrimSpace(opts.Region); region != "" {
		loaders = append(loaders, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("awsconfig: load: %w", err)
	}
	return cfg, nil
}

// BaseEndpoint returns the override as the SDK expects it, or nil.
func (o Options) BaseEndpoint() *string {
	if strings.TrimSpace(o.Endpoint) == "" {
		return nil
	}
	return aws.String(strings.TrimSpace(o.Endpoint))
}
