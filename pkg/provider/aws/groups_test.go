package aws

import (
	"context"
	"errors"
	"testing"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/autoscaling"
	astypes "github.com/aws/aws-sdk-go-v2/service/autoscaling/types"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/elasticloadbalancing"
	elbtypes "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancing/types"
	"github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	elbv2types "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/roller/pkg/provider"
	"github.com/cuemby/roller/pkg/types"
)

type stubAutoScaling struct {
	describeGroups    func(*autoscaling.DescribeAutoScalingGroupsInput) (*autoscaling.DescribeAutoScalingGroupsOutput, error)
	describeInstances func(*autoscaling.DescribeAutoScalingInstancesInput) (*autoscaling.DescribeAutoScalingInstancesOutput, error)
	describeHooks     func(*autoscaling.DescribeLifecycleHooksInput) (*autoscaling.DescribeLifecycleHooksOutput, error)

	updateInputs []*autoscaling.UpdateAutoScalingGroupInput
	healthInputs []*autoscaling.SetInstanceHealthInput
	tagInputs    []*autoscaling.CreateOrUpdateTagsInput
	deleteInputs []*autoscaling.DeleteTagsInput
}

func (s *stubAutoScaling) DescribeAutoScalingGroups(_ context.Context, params *autoscaling.DescribeAutoScalingGroupsInput, _ ...func(*autoscaling.Options)) (*autoscaling.DescribeAutoScalingGroupsOutput, error) {
	return s.describeGroups(params)
}

func (s *stubAutoScaling) DescribeAutoScalingInstances(_ context.Context, params *autoscaling.DescribeAutoScalingInstancesInput, _ ...func(*autoscaling.Options)) (*autoscaling.DescribeAutoScalingInstancesOutput, error) {
	return s.describeInstances(params)
}

func (s *stubAutoScaling) DescribeLifecycleHooks(_ context.Context, params *autoscaling.DescribeLifecycleHooksInput, _ ...func(*autoscaling.Options)) (*autoscaling.DescribeLifecycleHooksOutput, error) {
	if s.describeHooks != nil {
		return s.describeHooks(params)
	}
	return &autoscaling.DescribeLifecycleHooksOutput{
		LifecycleHooks: []astypes.LifecycleHook{
			{LifecycleHookName: awssdk.String("drain-connections")},
		},
	}, nil
}

func (s *stubAutoScaling) UpdateAutoScalingGroup(_ context.Context, params *autoscaling.UpdateAutoScalingGroupInput, _ ...func(*autoscaling.Options)) (*autoscaling.UpdateAutoScalingGroupOutput, error) {
	s.updateInputs = append(s.updateInputs, params)
	return &autoscaling.UpdateAutoScalingGroupOutput{}, nil
}

func (s *stubAutoScaling) SetInstanceHealth(_ context.Context, params *autoscaling.SetInstanceHealthInput, _ ...func(*autoscaling.Options)) (*autoscaling.SetInstanceHealthOutput, error) {
	s.healthInputs = append(s.healthInputs, params)
	return &autoscaling.SetInstanceHealthOutput{}, nil
}

func (s *stubAutoScaling) CreateOrUpdateTags(_ context.Context, params *autoscaling.CreateOrUpdateTagsInput, _ ...func(*autoscaling.Options)) (*autoscaling.CreateOrUpdateTagsOutput, error) {
	s.tagInputs = append(s.tagInputs, params)
	return &autoscaling.CreateOrUpdateTagsOutput{}, nil
}

func (s *stubAutoScaling) DeleteTags(_ context.Context, params *autoscaling.DeleteTagsInput, _ ...func(*autoscaling.Options)) (*autoscaling.DeleteTagsOutput, error) {
	s.deleteInputs = append(s.deleteInputs, params)
	return &autoscaling.DeleteTagsOutput{}, nil
}

type stubEC2 struct {
	launchTimes map[string]time.Time
}

func (s *stubEC2) DescribeInstances(_ context.Context, params *ec2.DescribeInstancesInput, _ ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
	var instances []ec2types.Instance
	for _, filter := range params.Filters {
		for _, id := range filter.Values {
			if lt, ok := s.launchTimes[id]; ok {
				instances = append(instances, ec2types.Instance{
					InstanceId: awssdk.String(id),
					LaunchTime: awssdk.Time(lt),
				})
			}
		}
	}
	return &ec2.DescribeInstancesOutput{
		Reservations: []ec2types.Reservation{{Instances: instances}},
	}, nil
}

func (s *stubEC2) DescribeLaunchTemplates(_ context.Context, params *ec2.DescribeLaunchTemplatesInput, _ ...func(*ec2.Options)) (*ec2.DescribeLaunchTemplatesOutput, error) {
	return &ec2.DescribeLaunchTemplatesOutput{
		LaunchTemplates: []ec2types.LaunchTemplate{
			{
				LaunchTemplateId:     awssdk.String(params.LaunchTemplateIds[0]),
				LatestVersionNumber:  awssdk.Int64(7),
				DefaultVersionNumber: awssdk.Int64(5),
			},
		},
	}, nil
}

type stubELB struct {
	states map[string]string
}

func (s *stubELB) DescribeInstanceHealth(_ context.Context, _ *elasticloadbalancing.DescribeInstanceHealthInput, _ ...func(*elasticloadbalancing.Options)) (*elasticloadbalancing.DescribeInstanceHealthOutput, error) {
	var states []elbtypes.InstanceState
	for id, state := range s.states {
		states = append(states, elbtypes.InstanceState{
			InstanceId: awssdk.String(id),
			State:      awssdk.String(state),
			ReasonCode: awssdk.String("ELB"),
		})
	}
	return &elasticloadbalancing.DescribeInstanceHealthOutput{InstanceStates: states}, nil
}

type stubELBV2 struct {
	states map[string]elbv2types.TargetHealthStateEnum
}

func (s *stubELBV2) DescribeTargetHealth(_ context.Context, params *elasticloadbalancingv2.DescribeTargetHealthInput, _ ...func(*elasticloadbalancingv2.Options)) (*elasticloadbalancingv2.DescribeTargetHealthOutput, error) {
	var descs []elbv2types.TargetHealthDescription
	for _, target := range params.Targets {
		state, ok := s.states[awssdk.ToString(target.Id)]
		if !ok {
			state = elbv2types.TargetHealthStateEnumHealthy
		}
		descs = append(descs, elbv2types.TargetHealthDescription{
			Target: &elbv2types.TargetDescription{Id: target.Id},
			TargetHealth: &elbv2types.TargetHealth{
				State:  state,
				Reason: elbv2types.TargetHealthReasonEnumFailedHealthChecks,
			},
		})
	}
	return &elasticloadbalancingv2.DescribeTargetHealthOutput{TargetHealthDescriptions: descs}, nil
}

func newTestClient(as *stubAutoScaling, launchTimes map[string]time.Time) *Client {
	return &Client{
		autoscaling:        as,
		ec2:                &stubEC2{launchTimes: launchTimes},
		elb:                &stubELB{},
		elbv2:              &stubELBV2{},
		savedMaxSizeTagKey: "roller:saved-max-size",
	}
}

// TestDescribeGroups tests snapshot construction from ASG records
func TestDescribeGroups(t *testing.T) {
	oldLaunch := time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)
	newLaunch := time.Date(2026, 2, 20, 9, 0, 0, 0, time.UTC)

	as := &stubAutoScaling{
		describeGroups: func(params *autoscaling.DescribeAutoScalingGroupsInput) (*autoscaling.DescribeAutoScalingGroupsOutput, error) {
			return &autoscaling.DescribeAutoScalingGroupsOutput{
				AutoScalingGroups: []astypes.AutoScalingGroup{
					{
						AutoScalingGroupName:    awssdk.String("web"),
						MinSize:                 awssdk.Int32(1),
						MaxSize:                 awssdk.Int32(4),
						DesiredCapacity:         awssdk.Int32(2),
						LaunchConfigurationName: awssdk.String("web-lc-v2"),
						Tags: []astypes.TagDescription{
							{Key: awssdk.String("InstanceReplacement"), Value: awssdk.String("")},
						},
						Instances: []astypes.Instance{
							{
								InstanceId:              awssdk.String("i-old"),
								LifecycleState:          astypes.LifecycleStateInService,
								HealthStatus:            awssdk.String("Healthy"),
								LaunchConfigurationName: awssdk.String("web-lc-v1"),
							},
							{
								InstanceId:              awssdk.String("i-new"),
								LifecycleState:          astypes.LifecycleStateInService,
								HealthStatus:            awssdk.String("Healthy"),
								LaunchConfigurationName: awssdk.String("web-lc-v2"),
							},
						},
					},
				},
			}, nil
		},
	}

	client := newTestClient(as, map[string]time.Time{
		"i-old": oldLaunch,
		"i-new": newLaunch,
	})

	groups, failed, err := client.DescribeGroups(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, failed)
	require.Len(t, groups, 1)

	group := groups[0]
	assert.Equal(t, "web", group.Name)
	assert.Equal(t, 1, group.MinSize)
	assert.Equal(t, 4, group.MaxSize)
	assert.Equal(t, 2, group.DesiredCapacity)
	assert.Equal(t, "web-lc-v2", group.TargetFingerprint)
	assert.Equal(t, []string{"drain-connections"}, group.LifecycleHooks)
	assert.Contains(t, group.Tags, "InstanceReplacement")

	require.Len(t, group.Instances, 2)
	assert.True(t, group.Instances[0].Stale(group.TargetFingerprint))
	assert.False(t, group.Instances[1].Stale(group.TargetFingerprint))
	assert.Equal(t, oldLaunch, group.Instances[0].LaunchTime)
	assert.Equal(t, types.LifecycleStateInService, group.Instances[0].Lifecycle)
	assert.True(t, group.Instances[0].Ready())
}

// TestDescribeGroupsResolvesTemplateVersion tests symbolic launch template
// version resolution
func TestDescribeGroupsResolvesTemplateVersion(t *testing.T) {
	as := &stubAutoScaling{
		describeGroups: func(*autoscaling.DescribeAutoScalingGroupsInput) (*autoscaling.DescribeAutoScalingGroupsOutput, error) {
			return &autoscaling.DescribeAutoScalingGroupsOutput{
				AutoScalingGroups: []astypes.AutoScalingGroup{
					{
						AutoScalingGroupName: awssdk.String("api"),
						MinSize:              awssdk.Int32(1),
						MaxSize:              awssdk.Int32(2),
						DesiredCapacity:      awssdk.Int32(1),
						LaunchTemplate: &astypes.LaunchTemplateSpecification{
							LaunchTemplateId: awssdk.String("lt-123"),
							Version:          awssdk.String("$Latest"),
						},
						Instances: []astypes.Instance{
							{
								InstanceId:     awssdk.String("i-1"),
								LifecycleState: astypes.LifecycleStateInService,
								HealthStatus:   awssdk.String("Healthy"),
								LaunchTemplate: &astypes.LaunchTemplateSpecification{
									LaunchTemplateId: awssdk.String("lt-123"),
									Version:          awssdk.String("6"),
								},
							},
						},
					},
				},
			}, nil
		},
	}

	client := newTestClient(as, map[string]time.Time{"i-1": time.Now()})

	groups, _, err := client.DescribeGroups(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, groups, 1)

	// $Latest resolves to version 7; the member on version 6 is stale
	assert.Equal(t, "lt-123:7", groups[0].TargetFingerprint)
	assert.True(t, groups[0].Instances[0].Stale(groups[0].TargetFingerprint))
}

// TestDescribeGroupsIsolatesSnapshotFailures tests that one group's
// unresolvable snapshot does not withhold the other groups
func TestDescribeGroupsIsolatesSnapshotFailures(t *testing.T) {
	asgRecord := func(name string) astypes.AutoScalingGroup {
		return astypes.AutoScalingGroup{
			AutoScalingGroupName:    awssdk.String(name),
			MinSize:                 awssdk.Int32(1),
			MaxSize:                 awssdk.Int32(2),
			DesiredCapacity:         awssdk.Int32(1),
			LaunchConfigurationName: awssdk.String(name + "-lc"),
		}
	}

	as := &stubAutoScaling{
		describeGroups: func(*autoscaling.DescribeAutoScalingGroupsInput) (*autoscaling.DescribeAutoScalingGroupsOutput, error) {
			return &autoscaling.DescribeAutoScalingGroupsOutput{
				AutoScalingGroups: []astypes.AutoScalingGroup{
					asgRecord("good"),
					asgRecord("bad"),
				},
			}, nil
		},
		describeHooks: func(params *autoscaling.DescribeLifecycleHooksInput) (*autoscaling.DescribeLifecycleHooksOutput, error) {
			if awssdk.ToString(params.AutoScalingGroupName) == "bad" {
				return nil, errors.New("RequestLimitExceeded")
			}
			return &autoscaling.DescribeLifecycleHooksOutput{}, nil
		},
	}
	client := newTestClient(as, nil)

	groups, failed, err := client.DescribeGroups(context.Background(), nil)
	require.NoError(t, err)

	require.Len(t, groups, 1)
	assert.Equal(t, "good", groups[0].Name)

	require.Contains(t, failed, "bad")
	assert.ErrorContains(t, failed["bad"], "RequestLimitExceeded")
}

// TestDescribeLaunchTimesVanishedInstance tests that a terminated instance
// is absent from the result, not an error
func TestDescribeLaunchTimesVanishedInstance(t *testing.T) {
	client := newTestClient(&stubAutoScaling{}, map[string]time.Time{
		"i-alive": time.Now(),
	})

	launchTimes, err := client.DescribeLaunchTimes(context.Background(), []string{"i-alive", "i-gone"})
	require.NoError(t, err)

	assert.Contains(t, launchTimes, "i-alive")
	assert.NotContains(t, launchTimes, "i-gone")
}

// TestGroupForInstance tests resolving an instance's group
func TestGroupForInstance(t *testing.T) {
	as := &stubAutoScaling{
		describeInstances: func(params *autoscaling.DescribeAutoScalingInstancesInput) (*autoscaling.DescribeAutoScalingInstancesOutput, error) {
			if params.InstanceIds[0] == "i-known" {
				return &autoscaling.DescribeAutoScalingInstancesOutput{
					AutoScalingInstances: []astypes.AutoScalingInstanceDetails{
						{AutoScalingGroupName: awssdk.String("web")},
					},
				}, nil
			}
			return &autoscaling.DescribeAutoScalingInstancesOutput{}, nil
		},
	}
	client := newTestClient(as, nil)

	group, err := client.GroupForInstance(context.Background(), "i-known")
	require.NoError(t, err)
	assert.Equal(t, "web", group)

	_, err = client.GroupForInstance(context.Background(), "i-unknown")
	assert.ErrorIs(t, err, provider.ErrInstanceNotFound)
}
