package vpack

import (
	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/vkngwrapper/packing/memutils"
	"golang.org/x/exp/slices"
)

// AssignedGroup is the set of resources that will share one pool allocation
type AssignedGroup struct {
	PoolIndex int
	// Preference is the index of the preference entry the group was first formed under
	Preference int
	// Candidates is every pool that all members of the group are compatible with under
	// Preference. It always contains PoolIndex.
	Candidates PoolMask
	// Resources lists the ids of the members in batch order
	Resources []int
}

// Assignment maps every resource in a batch to exactly one pool
type Assignment struct {
	// Pools holds the assigned pool for each resource id
	Pools []int
	// Groups holds one entry per distinct pool, ordered by the first resource assigned to it
	Groups []AssignedGroup
}

// UniquePoolCount returns the number of distinct pools used by the assignment
func (a *Assignment) UniquePoolCount() int {
	return len(a.Groups)
}

// Validate checks that every resource is assigned to a pool it is compatible with, exactly once
func (a *Assignment) Validate(requirements []ResourceRequirement) error {
	if len(a.Pools) != len(requirements) {
		return errors.AssertionFailedf("assignment covers %d resources, but %d were requested", len(a.Pools), len(requirements))
	}

	seen := make([]bool, len(requirements))
	for groupIndex, group := range a.Groups {
		if !group.Candidates.Has(group.PoolIndex) {
			return errors.AssertionFailedf("group %d is assigned pool %d, which is missing from its candidates %s", groupIndex, group.PoolIndex, group.Candidates)
		}

		for _, resourceID := range group.Resources {
			if seen[resourceID] {
				return errors.AssertionFailedf("resource %d was assigned more than once", resourceID)
			}
			seen[resourceID] = true

			if a.Pools[resourceID] != group.PoolIndex {
				return errors.AssertionFailedf("resource %d is listed in group for pool %d but assigned pool %d", resourceID, group.PoolIndex, a.Pools[resourceID])
			}
			if !requirements[resourceID].MemoryTypeBits.Has(group.PoolIndex) {
				return errors.AssertionFailedf("resource %d was assigned incompatible pool %d", resourceID, group.PoolIndex)
			}
		}
	}

	for resourceID, ok := range seen {
		if !ok {
			return errors.AssertionFailedf("resource %d was never assigned", resourceID)
		}
	}

	return nil
}

type validateFunc func() error

func (f validateFunc) Validate() error { return f() }

// Assign picks a pool for every resource in requirements. Preferences are evaluated in order
// and each resource is placed under the first preference it is compatible with. Within a
// preference, resources sharing a common pool are placed in the lowest such pool together;
// otherwise strategy decides the grouping. A nil strategy uses GreedyGrouping.
//
// Assign returns ErrAllPropertiesUnsupported if no pool satisfies any preference, and an
// *IncompatibleResourceError for the first resource in batch order that cannot be placed
// under any preference.
func Assign(catalog *Catalog, preferences PropertyPreference, requirements []ResourceRequirement, strategy GroupingStrategy) (*Assignment, error) {
	err := validateRequirements(requirements)
	if err != nil {
		return nil, err
	}

	if strategy == nil {
		strategy = GreedyGrouping{}
	}

	supported := SupportedPools(catalog, preferences)

	var anySupported PoolMask
	for _, mask := range supported {
		anySupported |= mask
	}
	if anySupported == 0 {
		return nil, ErrAllPropertiesUnsupported
	}

	for resourceID, requirement := range requirements {
		if requirement.MemoryTypeBits&anySupported == 0 {
			return nil, &IncompatibleResourceError{
				ResourceID:  resourceID,
				Label:       requirement.Label,
				Diagnostics: RenderAssignmentTable(catalog, preferences, requirements, nil),
			}
		}
	}

	pools := make([]int, len(requirements))
	for resourceID := range pools {
		pools[resourceID] = -1
	}

	builder := newAssignmentBuilder(pools)
	remaining := len(requirements)

	for preferenceIndex := 0; preferenceIndex < len(preferences) && remaining > 0; preferenceIndex++ {
		supportedMask := supported[preferenceIndex]
		if supportedMask == 0 {
			continue
		}

		var candidates []GroupCandidate
		common := PoolMask(^uint32(0))
		for resourceID, requirement := range requirements {
			if pools[resourceID] >= 0 {
				continue
			}

			mask := requirement.MemoryTypeBits & supportedMask
			if mask == 0 {
				continue
			}

			candidates = append(candidates, GroupCandidate{ResourceID: resourceID, Mask: mask})
			common &= mask
		}

		if len(candidates) == 0 {
			continue
		}

		if common != 0 {
			group := CandidateGroup{
				PoolIndex:  common.Lowest(),
				Candidates: common,
				Resources:  make([]int, 0, len(candidates)),
			}
			for _, candidate := range candidates {
				group.Resources = append(group.Resources, candidate.ResourceID)
			}
			builder.add(preferenceIndex, group)
		} else {
			for _, group := range strategy.Group(candidates) {
				builder.add(preferenceIndex, group)
			}
		}

		remaining -= len(candidates)
	}

	assignment, err := builder.build()
	if err != nil {
		return nil, err
	}

	memutils.DebugValidate(validateFunc(func() error {
		return assignment.Validate(requirements)
	}))

	return assignment, nil
}

type assignmentBuilder struct {
	pools       []int
	groups      []AssignedGroup
	poolToGroup *swiss.Map[int, int]
}

func newAssignmentBuilder(pools []int) *assignmentBuilder {
	return &assignmentBuilder{
		pools:       pools,
		poolToGroup: swiss.NewMap[int, int](8),
	}
}

// add records a group, merging it into an existing group on the same pool
func (b *assignmentBuilder) add(preference int, group CandidateGroup) {
	for _, resourceID := range group.Resources {
		b.pools[resourceID] = group.PoolIndex
	}

	groupIndex, exists := b.poolToGroup.Get(group.PoolIndex)
	if !exists {
		b.poolToGroup.Put(group.PoolIndex, len(b.groups))
		b.groups = append(b.groups, AssignedGroup{
			PoolIndex:  group.PoolIndex,
			Preference: preference,
			Candidates: group.Candidates,
			Resources:  slices.Clone(group.Resources),
		})
		return
	}

	existing := &b.groups[groupIndex]
	existing.Candidates &= group.Candidates
	existing.Resources = append(existing.Resources, group.Resources...)
}

func (b *assignmentBuilder) build() (*Assignment, error) {
	for resourceID, poolIndex := range b.pools {
		if poolIndex < 0 {
			return nil, errors.AssertionFailedf("resource %d was left unassigned", resourceID)
		}
	}

	// Order groups by the first resource that landed in each
	order := make([]int, 0, len(b.groups))
	for _, poolIndex := range b.pools {
		groupIndex, _ := b.poolToGroup.Get(poolIndex)
		if !slices.Contains(order, groupIndex) {
			order = append(order, groupIndex)
		}
	}

	groups := make([]AssignedGroup, 0, len(order))
	for _, groupIndex := range order {
		group := b.groups[groupIndex]
		slices.Sort(group.Resources)
		groups = append(groups, group)
	}

	return &Assignment{
		Pools:  b.pools,
		Groups: groups,
	}, nil
}
