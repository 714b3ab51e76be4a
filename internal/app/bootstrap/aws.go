package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	appconfig "github.com/wolfman30/diagnostic-booking-api/internal/config"
)

// AWSClients holds the SDK clients used for outbox delivery and report email.
type AWSClients struct {
	Config aws.Config
	SQS    *sqs.Client
	SES    *sesv2.Client
}

// BuildAWSClients loads the default credential chain, or static keys when both
// are set. AWS_ENDPOINT_OVERRIDE points SQS and SES at LocalStack.
func BuildAWSClients(ctx context.Context, cfg *appconfig.Config) (*AWSClients, error) {
	var loaders []func(*config.LoadOptions) error
	if region := strings.TrimSpace(cfg.AWSRegion); region != "" {
		loaders = append(loaders, config.WithRegion(region))
	}
	key, secret := strings.TrimSpace(cfg.AWSAccessKeyID), strings.TrimSpace(cfg.AWSSecretAccessKey)
	if key != "" && secret != "" {
		loaders = append(loaders, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(key, secret, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: load aws config: %w", err)
	}

	endpoint := strings.TrimSpace(cfg.AWSEndpointOverride)
	return &AWSClients{
		Config: awsCfg,
		SQS: sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
			if endpoint != "" {
				o.BaseEndpoint = aws.String(endpoint)
			}
		}),
		SES: sesv2.NewFromConfig(awsCfg, func(o *sesv2.Options) {
			if endpoint != "" {
				o.BaseEndpoint = aws.String(endpoint)
			}
		}),
	}, nil
}
