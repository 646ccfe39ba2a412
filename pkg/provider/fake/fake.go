package fake

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/roller/pkg/provider"
	"github.com/cuemby/roller/pkg/types"
)

// CapacityUpdate records one SetCapacity call
type CapacityUpdate struct {
	Group   string
	Desired int
	Max     int
}

// Provider is an in-memory provider implementation for tests. It applies
// mutations to its held group state and records every call; tests advance
// provider-side dynamics (instances launching, terminating) by editing the
// groups between passes, the same way the real provider changes state
// between invocations.
type Provider struct {
	mu sync.Mutex

	SavedMaxSizeTagKey string

	groups map[string]*types.Group

	// Injected failures, keyed by group or instance id. DescribeErr fails
	// the whole listing; SnapshotErrs fails only the named group, which
	// lands in the failed map instead of the result.
	DescribeErr   error
	SnapshotErrs  map[string]error
	CapacityErrs  map[string]error
	UnhealthyErrs map[string]error

	// Call records
	DescribeCalls   int
	CapacityUpdates []CapacityUpdate
	UnhealthyMarks  []string
	MarkersWritten  map[string]int
	MarkersCleared  []string
}

// New creates a fake provider holding the given groups
func New(groups ...*types.Group) *Provider {
	p := &Provider{
		SavedMaxSizeTagKey: "roller:saved-max-size",
		groups:             make(map[string]*types.Group),
		SnapshotErrs:       make(map[string]error),
		CapacityErrs:       make(map[string]error),
		UnhealthyErrs:      make(map[string]error),
		MarkersWritten:     make(map[string]int),
	}
	for _, g := range groups {
		p.groups[g.Name] = g
	}
	return p
}

var _ provider.Provider = (*Provider)(nil)

// Group returns the live group state for test inspection and mutation
func (p *Provider) Group(name string) *types.Group {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.groups[name]
}

// RemoveInstance simulates an instance terminating between passes
func (p *Provider) RemoveInstance(group, instanceID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	g, ok := p.groups[group]
	if !ok {
		return
	}
	kept := g.Instances[:0]
	for _, inst := range g.Instances {
		if inst.ID != instanceID {
			kept = append(kept, inst)
		}
	}
	g.Instances = kept
}

func (p *Provider) DescribeGroups(_ context.Context, names []string) ([]*types.Group, map[string]error, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.DescribeCalls++
	if p.DescribeErr != nil {
		return nil, nil, p.DescribeErr
	}

	var result []*types.Group
	failed := make(map[string]error)
	collect := func(g *types.Group) {
		if err := p.SnapshotErrs[g.Name]; err != nil {
			failed[g.Name] = err
			return
		}
		result = append(result, copyGroup(g))
	}

	if len(names) == 0 {
		for _, g := range p.groups {
			collect(g)
		}
		return result, failed, nil
	}
	for _, name := range names {
		if g, ok := p.groups[name]; ok {
			collect(g)
		}
	}
	return result, failed, nil
}

func (p *Provider) GroupForInstance(_ context.Context, instanceID string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, g := range p.groups {
		for _, inst := range g.Instances {
			if inst.ID == instanceID {
				return g.Name, nil
			}
		}
	}
	return "", fmt.Errorf("%w: %s", provider.ErrInstanceNotFound, instanceID)
}

func (p *Provider) DescribeLaunchTimes(_ context.Context, instanceIDs []string) (map[string]time.Time, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	launchTimes := make(map[string]time.Time)
	for _, g := range p.groups {
		for _, inst := range g.Instances {
			launchTimes[inst.ID] = inst.LaunchTime
		}
	}
	result := make(map[string]time.Time, len(instanceIDs))
	for _, id := range instanceIDs {
		if lt, ok := launchTimes[id]; ok {
			result[id] = lt
		}
	}
	return result, nil
}

func (p *Provider) SetCapacity(_ context.Context, group string, desired, max int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.CapacityErrs[group]; err != nil {
		return err
	}
	g, ok := p.groups[group]
	if !ok {
		return fmt.Errorf("%w: %s", provider.ErrGroupNotFound, group)
	}

	p.CapacityUpdates = append(p.CapacityUpdates, CapacityUpdate{Group: group, Desired: desired, Max: max})
	g.DesiredCapacity = desired
	g.MaxSize = max
	return nil
}

func (p *Provider) MarkInstanceUnhealthy(_ context.Context, instanceID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.UnhealthyErrs[instanceID]; err != nil {
		return err
	}

	p.UnhealthyMarks = append(p.UnhealthyMarks, instanceID)
	for _, g := range p.groups {
		for _, inst := range g.Instances {
			if inst.ID == instanceID {
				inst.Health = types.HealthStatusUnhealthy
			}
		}
	}
	// Marking an absent instance is a harmless no-op, matching the
	// provider's behavior for already-terminated instances.
	return nil
}

func (p *Provider) SaveMaxSize(_ context.Context, group string, max int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	g, ok := p.groups[group]
	if !ok {
		return fmt.Errorf("%w: %s", provider.ErrGroupNotFound, group)
	}
	if g.Tags == nil {
		g.Tags = make(map[string]string)
	}
	g.Tags[p.SavedMaxSizeTagKey] = fmt.Sprintf("%d", max)
	p.MarkersWritten[group] = max
	return nil
}

func (p *Provider) ClearSavedMaxSize(_ context.Context, group string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	g, ok := p.groups[group]
	if !ok {
		return fmt.Errorf("%w: %s", provider.ErrGroupNotFound, group)
	}
	delete(g.Tags, p.SavedMaxSizeTagKey)
	p.MarkersCleared = append(p.MarkersCleared, group)
	return nil
}

// copyGroup returns a deep copy so callers observe a snapshot, not the
// fake's live state
func copyGroup(g *types.Group) *types.Group {
	cp := *g
	cp.Tags = make(map[string]string, len(g.Tags))
	for k, v := range g.Tags {
		cp.Tags[k] = v
	}
	cp.Instances = make([]*types.Instance, len(g.Instances))
	for i, inst := range g.Instances {
		instCp := *inst
		cp.Instances[i] = &instCp
	}
	return &cp
}
