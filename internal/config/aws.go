package config

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// DefaultRegion is used when AWS.Region is empty.
const DefaultRegion = "us-east-1"

// LoadAWS builds an aws.Config from a. Static credentials are used only when
// both keys are set.
func (a AWS) LoadAWS(ctx context.Context) (aws.Config, error) {
	region := a.Region
	if region == "" {
		region = DefaultRegion
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if a.AccessKeyID != "" && a.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(a.AccessKeyID, a.SecretAccessKey, ""),
		))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("config: load aws config: %w", err)
	}
	return cfg, nil
}

// S3Client returns an S3 client for a.
func (a AWS) S3Client(ctx context.Context) (*s3.Client, error) {
	cfg, err := a.LoadAWS(ctx)
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(cfg), nil
}

// SSMFactory returns a constructor for an SSM client, suitable for
// NewCredentialLoader.
func (a AWS) SSMFactory(ctx context.Context) func() (SSMAPI, error) {
	return func() (SSMAPI, error) {
		cfg, err := a.LoadAWS(ctx)
		if err != nil {
			return nil, err
		}
		return ssm.NewFromConfig(cfg), nil
	}
}
