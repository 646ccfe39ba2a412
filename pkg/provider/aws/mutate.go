package aws

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/autoscaling"
	astypes "github.com/aws/aws-sdk-go-v2/service/autoscaling/types"
)

// SetCapacity updates desired capacity and max size in one call
func (c *Client) SetCapacity(ctx context.Context, group string, desired, max int) error {
	_, err := c.autoscaling.UpdateAutoScalingGroup(ctx, &autoscaling.UpdateAutoScalingGroupInput{
		AutoScalingGroupName: aws.String(group),
		DesiredCapacity:      aws.Int32(int32(desired)),
		MaxSize:              aws.Int32(int32(max)),
	})
	if err = record("UpdateAutoScalingGroup", err); err != nil {
		return fmt.Errorf("failed to update capacity for %s: %w", group, err)
	}
	return nil
}

// MarkInstanceUnhealthy overrides an instance's health status so the group
// service terminates and replaces it. The grace period is not respected:
// the planner only targets instances that finished starting up.
func (c *Client) MarkInstanceUnhealthy(ctx context.Context, instanceID string) error {
	_, err := c.autoscaling.SetInstanceHealth(ctx, &autoscaling.SetInstanceHealthInput{
		InstanceId:               aws.String(instanceID),
		HealthStatus:             aws.String("Unhealthy"),
		ShouldRespectGracePeriod: aws.Bool(false),
	})
	if err = record("SetInstanceHealth", err); err != nil {
		return fmt.Errorf("failed to mark instance %s unhealthy: %w", instanceID, err)
	}
	return nil
}

// SaveMaxSize writes the saved-max-size marker tag on the group. The tag
// does not propagate to instances; it belongs to the controller alone.
func (c *Client) SaveMaxSize(ctx context.Context, group string, max int) error {
	_, err := c.autoscaling.CreateOrUpdateTags(ctx, &autoscaling.CreateOrUpdateTagsInput{
		Tags: []astypes.Tag{c.markerTag(group, strconv.Itoa(max))},
	})
	if err = record("CreateOrUpdateTags", err); err != nil {
		return fmt.Errorf("failed to write saved-max-size marker on %s: %w", group, err)
	}
	return nil
}

// ClearSavedMaxSize deletes the saved-max-size marker tag from the group
func (c *Client) ClearSavedMaxSize(ctx context.Context, group string) error {
	_, err := c.autoscaling.DeleteTags(ctx, &autoscaling.DeleteTagsInput{
		Tags: []astypes.Tag{c.markerTag(group, "")},
	})
	if err = record("DeleteTags", err); err != nil {
		return fmt.Errorf("failed to clear saved-max-size marker on %s: %w", group, err)
	}
	return nil
}

func (c *Client) markerTag(group, value string) astypes.Tag {
	tag := astypes.Tag{
		Key:               aws.String(c.savedMaxSizeTagKey),
		ResourceId:        aws.String(group),
		ResourceType:      aws.String("auto-scaling-group"),
		PropagateAtLaunch: aws.Bool(false),
	}
	if value != "" {
		tag.Value = aws.String(value)
	}
	return tag
}
