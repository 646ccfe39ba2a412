package aws

import (
	"context"
	"testing"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSetCapacity tests that both bounds travel in a single update call
func TestSetCapacity(t *testing.T) {
	as := &stubAutoScaling{}
	client := newTestClient(as, nil)

	err := client.SetCapacity(context.Background(), "web", 3, 4)
	require.NoError(t, err)

	require.Len(t, as.updateInputs, 1)
	input := as.updateInputs[0]
	assert.Equal(t, "web", awssdk.ToString(input.AutoScalingGroupName))
	assert.Equal(t, int32(3), awssdk.ToInt32(input.DesiredCapacity))
	assert.Equal(t, int32(4), awssdk.ToInt32(input.MaxSize))
}

// TestMarkInstanceUnhealthy tests the health override call shape
func TestMarkInstanceUnhealthy(t *testing.T) {
	as := &stubAutoScaling{}
	client := newTestClient(as, nil)

	err := client.MarkInstanceUnhealthy(context.Background(), "i-stale")
	require.NoError(t, err)

	require.Len(t, as.healthInputs, 1)
	input := as.healthInputs[0]
	assert.Equal(t, "i-stale", awssdk.ToString(input.InstanceId))
	assert.Equal(t, "Unhealthy", awssdk.ToString(input.HealthStatus))
	assert.False(t, awssdk.ToBool(input.ShouldRespectGracePeriod))
}

// TestSaveMaxSize tests the marker tag write
func TestSaveMaxSize(t *testing.T) {
	as := &stubAutoScaling{}
	client := newTestClient(as, nil)

	err := client.SaveMaxSize(context.Background(), "web", 4)
	require.NoError(t, err)

	require.Len(t, as.tagInputs, 1)
	require.Len(t, as.tagInputs[0].Tags, 1)
	tag := as.tagInputs[0].Tags[0]
	assert.Equal(t, "roller:saved-max-size", awssdk.ToString(tag.Key))
	assert.Equal(t, "4", awssdk.ToString(tag.Value))
	assert.Equal(t, "web", awssdk.ToString(tag.ResourceId))
	assert.False(t, awssdk.ToBool(tag.PropagateAtLaunch))
}

// TestClearSavedMaxSize tests the marker tag delete
func TestClearSavedMaxSize(t *testing.T) {
	as := &stubAutoScaling{}
	client := newTestClient(as, nil)

	err := client.ClearSavedMaxSize(context.Background(), "web")
	require.NoError(t, err)

	require.Len(t, as.deleteInputs, 1)
	require.Len(t, as.deleteInputs[0].Tags, 1)
	tag := as.deleteInputs[0].Tags[0]
	assert.Equal(t, "roller:saved-max-size", awssdk.ToString(tag.Key))
	assert.Equal(t, "web", awssdk.ToString(tag.ResourceId))
}
