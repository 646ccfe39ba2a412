package aws

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/autoscaling"
	astypes "github.com/aws/aws-sdk-go-v2/service/autoscaling/types"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/elasticloadbalancing"
	"github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	elbv2types "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"

	"github.com/cuemby/roller/pkg/log"
	"github.com/cuemby/roller/pkg/provider"
	"github.com/cuemby/roller/pkg/types"
)

// describeInstancesBatch is the maximum instance ids per EC2 filter query
const describeInstancesBatch = 100

// DescribeGroups returns snapshots of the named Auto Scaling groups with
// member health fully resolved. Nil or empty names means all groups.
// Snapshot resolution takes several API calls per group, and any one of
// them can be throttled; a group whose enrichment fails lands in the
// failed map while the remaining groups are still returned.
func (c *Client) DescribeGroups(ctx context.Context, names []string) ([]*types.Group, map[string]error, error) {
	input := &autoscaling.DescribeAutoScalingGroupsInput{}
	if len(names) > 0 {
		input.AutoScalingGroupNames = names
	}

	var groups []*types.Group
	failed := make(map[string]error)
	paginator := autoscaling.NewDescribeAutoScalingGroupsPaginator(c.autoscaling, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err = record("DescribeAutoScalingGroups", err); err != nil {
			return nil, nil, fmt.Errorf("failed to describe groups: %w", err)
		}
		for i := range page.AutoScalingGroups {
			name := aws.ToString(page.AutoScalingGroups[i].AutoScalingGroupName)
			group, err := c.snapshotGroup(ctx, &page.AutoScalingGroups[i])
			if err != nil {
				providerLog := log.WithComponent("provider")
				providerLog.Warn().Err(err).
					Str("group", name).
					Msg("skipping group with unresolvable snapshot")
				failed[name] = err
				continue
			}
			groups = append(groups, group)
		}
	}
	return groups, failed, nil
}

// GroupForInstance resolves the Auto Scaling group an instance belongs to
func (c *Client) GroupForInstance(ctx context.Context, instanceID string) (string, error) {
	out, err := c.autoscaling.DescribeAutoScalingInstances(ctx, &autoscaling.DescribeAutoScalingInstancesInput{
		InstanceIds: []string{instanceID},
	})
	if err = record("DescribeAutoScalingInstances", err); err != nil {
		return "", fmt.Errorf("failed to describe instance %s: %w", instanceID, err)
	}
	for _, detail := range out.AutoScalingInstances {
		if detail.AutoScalingGroupName != nil {
			return *detail.AutoScalingGroupName, nil
		}
	}
	return "", fmt.Errorf("%w: %s", provider.ErrInstanceNotFound, instanceID)
}

// DescribeLaunchTimes returns launch times for the given instances.
// The query filters by instance id rather than naming ids directly so that
// instances terminated between calls are silently absent instead of
// failing the whole request.
func (c *Client) DescribeLaunchTimes(ctx context.Context, instanceIDs []string) (map[string]time.Time, error) {
	launchTimes := make(map[string]time.Time, len(instanceIDs))

	for start := 0; start < len(instanceIDs); start += describeInstancesBatch {
		end := start + describeInstancesBatch
		if end > len(instanceIDs) {
			end = len(instanceIDs)
		}

		input := &ec2.DescribeInstancesInput{
			Filters: []ec2types.Filter{
				{Name: aws.String("instance-id"), Values: instanceIDs[start:end]},
			},
		}
		paginator := ec2.NewDescribeInstancesPaginator(c.ec2, input)
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err = record("DescribeInstances", err); err != nil {
				return nil, fmt.Errorf("failed to describe instances: %w", err)
			}
			for _, reservation := range page.Reservations {
				for _, inst := range reservation.Instances {
					if inst.InstanceId != nil && inst.LaunchTime != nil {
						launchTimes[*inst.InstanceId] = *inst.LaunchTime
					}
				}
			}
		}
	}
	return launchTimes, nil
}

// snapshotGroup converts one ASG API record into a Group snapshot,
// resolving fingerprints, lifecycle hooks, launch times, and load balancer
// health for every member
func (c *Client) snapshotGroup(ctx context.Context, asg *astypes.AutoScalingGroup) (*types.Group, error) {
	name := aws.ToString(asg.AutoScalingGroupName)

	target, err := c.groupFingerprint(ctx, asg)
	if err != nil {
		return nil, err
	}

	group := &types.Group{
		Name:              name,
		MinSize:           int(aws.ToInt32(asg.MinSize)),
		MaxSize:           int(aws.ToInt32(asg.MaxSize)),
		DesiredCapacity:   int(aws.ToInt32(asg.DesiredCapacity)),
		TargetFingerprint: target,
		LoadBalancerNames: asg.LoadBalancerNames,
		TargetGroupARNs:   asg.TargetGroupARNs,
		Tags:              make(map[string]string, len(asg.Tags)),
	}

	for _, tag := range asg.Tags {
		group.Tags[aws.ToString(tag.Key)] = aws.ToString(tag.Value)
	}
	hooks, err := c.lifecycleHooks(ctx, name)
	if err != nil {
		return nil, err
	}
	group.LifecycleHooks = hooks

	instanceIDs := make([]string, 0, len(asg.Instances))
	for _, member := range asg.Instances {
		if member.InstanceId != nil {
			instanceIDs = append(instanceIDs, *member.InstanceId)
		}
	}

	launchTimes, err := c.DescribeLaunchTimes(ctx, instanceIDs)
	if err != nil {
		return nil, err
	}
	targetHealth, err := c.targetHealth(ctx, asg.TargetGroupARNs, instanceIDs)
	if err != nil {
		return nil, err
	}
	instanceHealth, err := c.instanceHealth(ctx, asg.LoadBalancerNames)
	if err != nil {
		return nil, err
	}

	for _, member := range asg.Instances {
		if member.InstanceId == nil {
			continue
		}
		id := *member.InstanceId
		group.Instances = append(group.Instances, &types.Instance{
			ID:                   id,
			GroupName:            name,
			Fingerprint:          memberFingerprint(&member),
			Lifecycle:            types.LifecycleState(member.LifecycleState),
			Health:               types.HealthStatus(aws.ToString(member.HealthStatus)),
			LaunchTime:           launchTimes[id],
			TargetHealthStates:   targetHealth[id],
			InstanceHealthStates: instanceHealth[id],
		})
	}

	return group, nil
}

// lifecycleHooks returns the names of the group's lifecycle hooks
func (c *Client) lifecycleHooks(ctx context.Context, group string) ([]string, error) {
	out, err := c.autoscaling.DescribeLifecycleHooks(ctx, &autoscaling.DescribeLifecycleHooksInput{
		AutoScalingGroupName: aws.String(group),
	})
	if err = record("DescribeLifecycleHooks", err); err != nil {
		return nil, fmt.Errorf("failed to describe lifecycle hooks for %s: %w", group, err)
	}
	var hooks []string
	for _, hook := range out.LifecycleHooks {
		hooks = append(hooks, aws.ToString(hook.LifecycleHookName))
	}
	return hooks, nil
}

// targetHealth returns non-healthy target states per instance across all
// attached target groups
func (c *Client) targetHealth(ctx context.Context, targetGroupARNs, instanceIDs []string) (map[string][]string, error) {
	if len(targetGroupARNs) == 0 || len(instanceIDs) == 0 {
		return nil, nil
	}

	targets := make([]elbv2types.TargetDescription, 0, len(instanceIDs))
	for _, id := range instanceIDs {
		targets = append(targets, elbv2types.TargetDescription{Id: aws.String(id)})
	}

	result := make(map[string][]string)
	for _, arn := range targetGroupARNs {
		out, err := c.elbv2.DescribeTargetHealth(ctx, &elasticloadbalancingv2.DescribeTargetHealthInput{
			TargetGroupArn: aws.String(arn),
			Targets:        targets,
		})
		if err = record("DescribeTargetHealth", err); err != nil {
			return nil, fmt.Errorf("failed to describe target health for %s: %w", arn, err)
		}
		for _, desc := range out.TargetHealthDescriptions {
			if desc.Target == nil || desc.Target.Id == nil || desc.TargetHealth == nil {
				continue
			}
			if desc.TargetHealth.State == elbv2types.TargetHealthStateEnumHealthy {
				continue
			}
			reason := string(desc.TargetHealth.Reason)
			if reason == "" {
				reason = string(desc.TargetHealth.State)
			}
			result[*desc.Target.Id] = append(result[*desc.Target.Id], reason)
		}
	}
	return result, nil
}

// instanceHealth returns non-InService classic load balancer states per
// instance across all attached load balancers
func (c *Client) instanceHealth(ctx context.Context, loadBalancerNames []string) (map[string][]string, error) {
	if len(loadBalancerNames) == 0 {
		return nil, nil
	}

	result := make(map[string][]string)
	for _, lbName := range loadBalancerNames {
		out, err := c.elb.DescribeInstanceHealth(ctx, &elasticloadbalancing.DescribeInstanceHealthInput{
			LoadBalancerName: aws.String(lbName),
		})
		if err = record("DescribeInstanceHealth", err); err != nil {
			return nil, fmt.Errorf("failed to describe instance health for %s: %w", lbName, err)
		}
		for _, state := range out.InstanceStates {
			if state.InstanceId == nil || aws.ToString(state.State) == "InService" {
				continue
			}
			reason := aws.ToString(state.ReasonCode)
			if reason == "" || reason == "N/A" {
				reason = aws.ToString(state.State)
			}
			result[*state.InstanceId] = append(result[*state.InstanceId], reason)
		}
	}
	return result, nil
}

// groupFingerprint derives the group's target configuration fingerprint.
// Launch template versions "$Latest" and "$Default" are resolved to the
// concrete version number so member fingerprints compare by equality.
func (c *Client) groupFingerprint(ctx context.Context, asg *astypes.AutoScalingGroup) (string, error) {
	if asg.LaunchConfigurationName != nil {
		return *asg.LaunchConfigurationName, nil
	}

	spec := asg.LaunchTemplate
	if spec == nil && asg.MixedInstancesPolicy != nil && asg.MixedInstancesPolicy.LaunchTemplate != nil {
		spec = asg.MixedInstancesPolicy.LaunchTemplate.LaunchTemplateSpecification
	}
	if spec == nil || spec.LaunchTemplateId == nil {
		return "", nil
	}

	version := aws.ToString(spec.Version)
	switch version {
	case "", "$Latest", "$Default":
		resolved, err := c.resolveTemplateVersion(ctx, *spec.LaunchTemplateId, version)
		if err != nil {
			return "", err
		}
		version = resolved
	}
	return *spec.LaunchTemplateId + ":" + version, nil
}

// resolveTemplateVersion resolves a symbolic launch template version
func (c *Client) resolveTemplateVersion(ctx context.Context, templateID, version string) (string, error) {
	out, err := c.ec2.DescribeLaunchTemplates(ctx, &ec2.DescribeLaunchTemplatesInput{
		LaunchTemplateIds: []string{templateID},
	})
	if err = record("DescribeLaunchTemplates", err); err != nil {
		return "", fmt.Errorf("failed to describe launch template %s: %w", templateID, err)
	}
	for _, template := range out.LaunchTemplates {
		if version == "$Default" {
			return strconv.FormatInt(aws.ToInt64(template.DefaultVersionNumber), 10), nil
		}
		return strconv.FormatInt(aws.ToInt64(template.LatestVersionNumber), 10), nil
	}
	return "", fmt.Errorf("launch template %s not found", templateID)
}

// memberFingerprint derives one member's configuration fingerprint. Member
// records always carry a concrete template version, never a symbolic one.
func memberFingerprint(member *astypes.Instance) string {
	if member.LaunchConfigurationName != nil {
		return *member.LaunchConfigurationName
	}
	if member.LaunchTemplate != nil && member.LaunchTemplate.LaunchTemplateId != nil {
		return *member.LaunchTemplate.LaunchTemplateId + ":" + aws.ToString(member.LaunchTemplate.Version)
	}
	return ""
}
