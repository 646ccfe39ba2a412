package provider

import (
	"context"
	"errors"
	"time"

	"github.com/cuemby/roller/pkg/types"
)

var (
	// ErrGroupNotFound is returned when a named group does not exist
	ErrGroupNotFound = errors.New("group not found")

	// ErrInstanceNotFound is returned when an instance does not exist or
	// does not belong to any group
	ErrInstanceNotFound = errors.New("instance not found")

	// ErrThrottled is returned when the provider rejected a call for rate
	// limiting and bounded retries were exhausted
	ErrThrottled = errors.New("provider throttled")
)

// Provider is the narrow gateway to the cloud provider's compute-group and
// load balancer services. Implementations must be safe for concurrent use:
// the reconciler calls them from one goroutine per group.
//
// All reads return snapshots; no method blocks waiting for provider state
// to change.
type Provider interface {
	// DescribeGroups returns snapshots of the named groups including
	// member instances with lifecycle, health, launch time, and load
	// balancer health resolved. Nil or empty names means all groups.
	// A named group that does not exist is simply absent from the result.
	//
	// A group whose snapshot could not be fully resolved is returned in
	// the failed map instead of the slice, so one group's read failure
	// never withholds the others. The error return covers only the group
	// listing itself.
	DescribeGroups(ctx context.Context, names []string) (groups []*types.Group, failed map[string]error, err error)

	// GroupForInstance resolves the group an instance belongs to.
	// Returns ErrInstanceNotFound for unknown or ungrouped instances.
	GroupForInstance(ctx context.Context, instanceID string) (string, error)

	// DescribeLaunchTimes returns launch times for the given instances.
	// Instances that vanished between calls are absent from the result,
	// never an error.
	DescribeLaunchTimes(ctx context.Context, instanceIDs []string) (map[string]time.Time, error)

	// SetCapacity updates the group's desired capacity and max size in a
	// single call. Implementations leave max untouched when it equals the
	// group's current value.
	SetCapacity(ctx context.Context, group string, desired, max int) error

	// MarkInstanceUnhealthy overrides the instance's health status so the
	// group service terminates and replaces it. The grace period is not
	// respected: the planner only ever targets instances that finished
	// starting up.
	MarkInstanceUnhealthy(ctx context.Context, instanceID string) error

	// SaveMaxSize writes the saved-max-size marker tag on the group
	SaveMaxSize(ctx context.Context, group string, max int) error

	// ClearSavedMaxSize deletes the saved-max-size marker tag
	ClearSavedMaxSize(ctx context.Context, group string) error
}
