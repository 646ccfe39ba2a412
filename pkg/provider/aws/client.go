package aws

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/autoscaling"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/elasticloadbalancing"
	"github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	"github.com/aws/smithy-go"

	"github.com/cuemby/roller/pkg/metrics"
	"github.com/cuemby/roller/pkg/provider"
)

// maxRetryAttempts bounds the SDK's backoff retries for throttled or
// transient failures. Exhaustion surfaces as a per-group error; the next
// pass re-derives and retries naturally.
const maxRetryAttempts = 5

// autoScalingAPI is the subset of the Auto Scaling service used by Roller
type autoScalingAPI interface {
	DescribeAutoScalingGroups(ctx context.Context, params *autoscaling.DescribeAutoScalingGroupsInput, optFns ...func(*autoscaling.Options)) (*autoscaling.DescribeAutoScalingGroupsOutput, error)
	DescribeAutoScalingInstances(ctx context.Context, params *autoscaling.DescribeAutoScalingInstancesInput, optFns ...func(*autoscaling.Options)) (*autoscaling.DescribeAutoScalingInstancesOutput, error)
	DescribeLifecycleHooks(ctx context.Context, params *autoscaling.DescribeLifecycleHooksInput, optFns ...func(*autoscaling.Options)) (*autoscaling.DescribeLifecycleHooksOutput, error)
	UpdateAutoScalingGroup(ctx context.Context, params *autoscaling.UpdateAutoScalingGroupInput, optFns ...func(*autoscaling.Options)) (*autoscaling.UpdateAutoScalingGroupOutput, error)
	SetInstanceHealth(ctx context.Context, params *autoscaling.SetInstanceHealthInput, optFns ...func(*autoscaling.Options)) (*autoscaling.SetInstanceHealthOutput, error)
	CreateOrUpdateTags(ctx context.Context, params *autoscaling.CreateOrUpdateTagsInput, optFns ...func(*autoscaling.Options)) (*autoscaling.CreateOrUpdateTagsOutput, error)
	DeleteTags(ctx context.Context, params *autoscaling.DeleteTagsInput, optFns ...func(*autoscaling.Options)) (*autoscaling.DeleteTagsOutput, error)
}

// ec2API is the subset of the EC2 service used by Roller
type ec2API interface {
	DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
	DescribeLaunchTemplates(ctx context.Context, params *ec2.DescribeLaunchTemplatesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeLaunchTemplatesOutput, error)
}

// elbAPI is the classic load balancer health query
type elbAPI interface {
	DescribeInstanceHealth(ctx context.Context, params *elasticloadbalancing.DescribeInstanceHealthInput, optFns ...func(*elasticloadbalancing.Options)) (*elasticloadbalancing.DescribeInstanceHealthOutput, error)
}

// elbv2API is the target group health query
type elbv2API interface {
	DescribeTargetHealth(ctx context.Context, params *elasticloadbalancingv2.DescribeTargetHealthInput, optFns ...func(*elasticloadbalancingv2.Options)) (*elasticloadbalancingv2.DescribeTargetHealthOutput, error)
}

// Config holds settings for creating a Client
type Config struct {
	// Region overrides the SDK's default region resolution when set
	Region string

	// SavedMaxSizeTagKey is the tag key used for the saved-max-size marker
	SavedMaxSizeTagKey string
}

// Client implements provider.Provider against AWS
type Client struct {
	autoscaling autoScalingAPI
	ec2         ec2API
	elb         elbAPI
	elbv2       elbv2API

	savedMaxSizeTagKey string
}

var _ provider.Provider = (*Client)(nil)

// New creates a Client using the default AWS credential chain with bounded
// retry backoff configured on every service client
func New(ctx context.Context, cfg Config) (*Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRetryer(func() aws.Retryer {
			return retry.AddWithMaxAttempts(retry.NewStandard(), maxRetryAttempts)
		}),
	}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	return &Client{
		autoscaling:        autoscaling.NewFromConfig(awsCfg),
		ec2:                ec2.NewFromConfig(awsCfg),
		elb:                elasticloadbalancing.NewFromConfig(awsCfg),
		elbv2:              elasticloadbalancingv2.NewFromConfig(awsCfg),
		savedMaxSizeTagKey: cfg.SavedMaxSizeTagKey,
	}, nil
}

// record counts a provider call in metrics and normalizes throttling errors
func record(operation string, err error) error {
	status := "ok"
	if err != nil {
		status = "error"
		if isThrottle(err) {
			status = "throttled"
			err = fmt.Errorf("%w: %s: %v", provider.ErrThrottled, operation, err)
		}
	}
	metrics.ProviderCallsTotal.WithLabelValues(operation, status).Inc()
	return err
}

// isThrottle reports whether the error is a rate limiting rejection that
// survived the SDK's own retries
func isThrottle(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "Throttling", "ThrottlingException", "RequestLimitExceeded", "TooManyRequestsException":
		return true
	}
	return false
}
