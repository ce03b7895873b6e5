package config

import (
	"context"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"

	"github.com/ceramicnetwork/go-pulse"
	"github.com/ceramicnetwork/go-pulse/common"
	"github.com/ceramicnetwork/go-pulse/models"
)

func AwsConfigWithOverride(ctx context.Context, customEndpoint string) (aws.Config, error) {
	endpointResolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		return aws.Endpoint{
			PartitionID:   "aws",
			URL:           customEndpoint,
			SigningRegion: os.Getenv(pulse.Env_AwsRegion),
		}, nil
	})

	httpCtx, httpCancel := context.WithTimeout(ctx, common.DefaultRpcWaitTime)
	defer httpCancel()

	return config.LoadDefaultConfig(
		httpCtx,
		config.WithRegion(os.Getenv(pulse.Env_AwsRegion)),
		config.WithEndpointResolverWithOptions(endpointResolver),
	)
}

func AwsConfig(ctx context.Context, logger models.Logger) (aws.Config, error) {
	awsEndpoint := os.Getenv(pulse.Env_AwsEndpoint)
	if len(awsEndpoint) > 0 {
		logger.Infof("config: using custom global aws endpoint: %s", awsEndpoint)
		return AwsConfigWithOverride(ctx, awsEndpoint)
	}

	httpCtx, httpCancel := context.WithTimeout(ctx, common.DefaultRpcWaitTime)
	defer httpCancel()

	return config.LoadDefaultConfig(httpCtx, config.WithRegion(os.Getenv(pulse.Env_AwsRegion)))
}

// DynamoDbConfig returns the config for the DynamoDB client, honoring a DB-specific endpoint override.
func DynamoDbConfig(ctx context.Context, logger models.Logger) (aws.Config, error) {
	if dbEndpoint := os.Getenv(pulse.Env_DbAwsEndpoint); len(dbEndpoint) > 0 {
		logger.Infof("config: using custom dynamodb aws endpoint: %s", dbEndpoint)
		return AwsConfigWithOverride(ctx, dbEndpoint)
	}
	return AwsConfig(ctx, logger)
}
