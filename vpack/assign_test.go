package vpack

import (
	"math/rand"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v2/core1_0"
)

func TestAssign_SharedLowestPool(t *testing.T) {
	catalog := threePoolCatalog(t)

	assignment, err := Assign(catalog, PropertyPreference{core1_0.MemoryPropertyDeviceLocal}, []ResourceRequirement{
		{Size: 1000, Alignment: 256, MemoryTypeBits: 0b111},
		{Size: 500, Alignment: 64, MemoryTypeBits: 0b111},
	}, nil)
	require.NoError(t, err)

	require.Equal(t, 1, assignment.UniquePoolCount())
	require.Equal(t, []int{0, 0}, assignment.Pools)
	require.Equal(t, []AssignedGroup{
		{PoolIndex: 0, Preference: 0, Candidates: 0b101, Resources: []int{0, 1}},
	}, assignment.Groups)
}

func TestAssign_IncompatibleResource(t *testing.T) {
	catalog := threePoolCatalog(t)

	_, err := Assign(catalog, PropertyPreference{core1_0.MemoryPropertyDeviceLocal}, []ResourceRequirement{
		{Size: 1000, Alignment: 256, MemoryTypeBits: 0b010, Label: "staging"},
		{Size: 500, Alignment: 64, MemoryTypeBits: 0b100},
	}, nil)

	var incompatible *IncompatibleResourceError
	require.True(t, errors.As(err, &incompatible))
	require.Equal(t, 0, incompatible.ResourceID)
	require.Equal(t, "staging", incompatible.Label)
	require.Contains(t, incompatible.Diagnostics, "o0: \"staging\"")
}

func TestAssign_SingleIncompatibleAmongSatisfiable(t *testing.T) {
	catalog := threePoolCatalog(t)

	_, err := Assign(catalog, PropertyPreference{core1_0.MemoryPropertyDeviceLocal}, []ResourceRequirement{
		{Size: 16, Alignment: 16, MemoryTypeBits: 0b111},
		{Size: 16, Alignment: 16, MemoryTypeBits: 0b101},
		{Size: 16, Alignment: 16, MemoryTypeBits: 0b010},
		{Size: 16, Alignment: 16, MemoryTypeBits: 0b001},
	}, nil)

	var incompatible *IncompatibleResourceError
	require.True(t, errors.As(err, &incompatible))
	require.Equal(t, 2, incompatible.ResourceID)
}

func TestAssign_AllPropertiesUnsupported(t *testing.T) {
	catalog := threePoolCatalog(t)
	requirements := []ResourceRequirement{{Size: 16, Alignment: 16, MemoryTypeBits: 0b111}}

	testCases := map[string]PropertyPreference{
		"Unsupported": {core1_0.MemoryPropertyHostCached, core1_0.MemoryPropertyLazilyAllocated},
		"Empty":       {},
	}

	for name, preferences := range testCases {
		t.Run(name, func(t *testing.T) {
			assignment, err := Assign(catalog, preferences, requirements, nil)
			require.Nil(t, assignment)
			require.ErrorIs(t, err, ErrAllPropertiesUnsupported)
		})
	}
}

func TestAssign_InvalidRequirements(t *testing.T) {
	catalog := threePoolCatalog(t)
	preferences := PropertyPreference{core1_0.MemoryPropertyDeviceLocal}

	testCases := map[string][]ResourceRequirement{
		"Empty":             {},
		"ZeroSize":          {{Size: 0, Alignment: 16, MemoryTypeBits: 0b111}},
		"ZeroAlignment":     {{Size: 16, Alignment: 0, MemoryTypeBits: 0b111}},
		"NonPow2Alignment":  {{Size: 16, Alignment: 48, MemoryTypeBits: 0b111}},
		"SecondIsNegative":  {{Size: 16, Alignment: 16, MemoryTypeBits: 0b111}, {Size: -4, Alignment: 16, MemoryTypeBits: 0b111}},
	}

	for name, requirements := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := Assign(catalog, preferences, requirements, nil)
			require.Error(t, err)
		})
	}
}

func TestAssign_FallsThroughPreferences(t *testing.T) {
	catalog := threePoolCatalog(t)

	assignment, err := Assign(catalog, PropertyPreference{
		core1_0.MemoryPropertyDeviceLocal | core1_0.MemoryPropertyHostVisible,
		core1_0.MemoryPropertyDeviceLocal,
		core1_0.MemoryPropertyHostVisible,
	}, []ResourceRequirement{
		{Size: 64, Alignment: 16, MemoryTypeBits: 0b001},
		{Size: 64, Alignment: 16, MemoryTypeBits: 0b010},
		{Size: 64, Alignment: 16, MemoryTypeBits: 0b111},
	}, nil)
	require.NoError(t, err)

	require.Equal(t, []int{0, 1, 2}, assignment.Pools)
	require.Equal(t, []AssignedGroup{
		{PoolIndex: 0, Preference: 1, Candidates: 0b001, Resources: []int{0}},
		{PoolIndex: 1, Preference: 2, Candidates: 0b010, Resources: []int{1}},
		{PoolIndex: 2, Preference: 0, Candidates: 0b100, Resources: []int{2}},
	}, assignment.Groups)
}

func TestAssign_GreedyCover(t *testing.T) {
	catalog := uniformCatalog(t, 4)

	assignment, err := Assign(catalog, PropertyPreference{core1_0.MemoryPropertyDeviceLocal}, []ResourceRequirement{
		{Size: 64, Alignment: 16, MemoryTypeBits: 0b0011},
		{Size: 64, Alignment: 16, MemoryTypeBits: 0b0110},
		{Size: 64, Alignment: 16, MemoryTypeBits: 0b1100},
		{Size: 64, Alignment: 16, MemoryTypeBits: 0b0001},
	}, GreedyGrouping{})
	require.NoError(t, err)

	// Pools 0, 1 and 2 tie with two supporters each, so pool 0 is taken first
	require.Equal(t, []int{0, 2, 2, 0}, assignment.Pools)
	require.Equal(t, []AssignedGroup{
		{PoolIndex: 0, Candidates: 0b0001, Resources: []int{0, 3}},
		{PoolIndex: 2, Candidates: 0b0100, Resources: []int{1, 2}},
	}, assignment.Groups)
	require.Equal(t, 2, assignment.UniquePoolCount())
}

func TestAssign_ExhaustiveCover(t *testing.T) {
	catalog := uniformCatalog(t, 3)
	requirements := []ResourceRequirement{
		{Size: 64, Alignment: 16, MemoryTypeBits: 0b011},
		{Size: 64, Alignment: 16, MemoryTypeBits: 0b011},
		{Size: 64, Alignment: 16, MemoryTypeBits: 0b101},
		{Size: 64, Alignment: 16, MemoryTypeBits: 0b101},
		{Size: 64, Alignment: 16, MemoryTypeBits: 0b010},
		{Size: 64, Alignment: 16, MemoryTypeBits: 0b100},
	}
	preferences := PropertyPreference{core1_0.MemoryPropertyDeviceLocal}

	greedy, err := Assign(catalog, preferences, requirements, GreedyGrouping{})
	require.NoError(t, err)
	require.Equal(t, 3, greedy.UniquePoolCount())

	exhaustive, err := Assign(catalog, preferences, requirements, ExhaustiveGrouping{})
	require.NoError(t, err)
	require.Equal(t, 2, exhaustive.UniquePoolCount())
	require.Equal(t, []int{1, 1, 2, 2, 1, 2}, exhaustive.Pools)
	require.NoError(t, exhaustive.Validate(requirements))
}

// oneGroupEach places every candidate in its own group on its lowest pool
type oneGroupEach struct{}

func (oneGroupEach) Group(candidates []GroupCandidate) []CandidateGroup {
	var groups []CandidateGroup
	for _, candidate := range candidates {
		groups = append(groups, CandidateGroup{
			PoolIndex:  candidate.Mask.Lowest(),
			Candidates: candidate.Mask,
			Resources:  []int{candidate.ResourceID},
		})
	}
	return groups
}

func TestAssign_MergesGroupsOnSamePool(t *testing.T) {
	catalog := uniformCatalog(t, 3)

	assignment, err := Assign(catalog, PropertyPreference{core1_0.MemoryPropertyDeviceLocal}, []ResourceRequirement{
		{Size: 64, Alignment: 16, MemoryTypeBits: 0b011},
		{Size: 64, Alignment: 16, MemoryTypeBits: 0b100},
		{Size: 64, Alignment: 16, MemoryTypeBits: 0b001},
	}, oneGroupEach{})
	require.NoError(t, err)

	require.Equal(t, []int{0, 2, 0}, assignment.Pools)
	require.Equal(t, []AssignedGroup{
		{PoolIndex: 0, Candidates: 0b001, Resources: []int{0, 2}},
		{PoolIndex: 2, Candidates: 0b100, Resources: []int{1}},
	}, assignment.Groups)
}

func randomBatch(rng *rand.Rand, poolCount int) []ResourceRequirement {
	count := rng.Intn(20) + 1
	requirements := make([]ResourceRequirement, count)
	for i := range requirements {
		requirements[i] = ResourceRequirement{
			Size:           rng.Intn(4096) + 1,
			Alignment:      1 << rng.Intn(10),
			MemoryTypeBits: PoolMask(rng.Uint32()) & AllPools(poolCount),
		}
		if requirements[i].MemoryTypeBits == 0 {
			requirements[i].MemoryTypeBits = PoolBit(rng.Intn(poolCount))
		}
	}
	return requirements
}

func TestAssign_RandomBatches(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	catalog := uniformCatalog(t, 8)
	preferences := PropertyPreference{core1_0.MemoryPropertyDeviceLocal}

	for i := 0; i < 200; i++ {
		requirements := randomBatch(rng, 8)

		for _, strategy := range []GroupingStrategy{GreedyGrouping{}, ExhaustiveGrouping{MaxSearchNodes: 500}} {
			assignment, err := Assign(catalog, preferences, requirements, strategy)
			require.NoError(t, err)
			require.Len(t, assignment.Pools, len(requirements))
			require.NoError(t, assignment.Validate(requirements))

			again, err := Assign(catalog, preferences, requirements, strategy)
			require.NoError(t, err)
			require.Equal(t, assignment, again)

			for _, group := range Pack(assignment, requirements) {
				require.NoError(t, group.Validate(requirements))
			}
		}
	}
}

func TestAssignment_Validate(t *testing.T) {
	requirements := []ResourceRequirement{
		{Size: 64, Alignment: 16, MemoryTypeBits: 0b01},
		{Size: 64, Alignment: 16, MemoryTypeBits: 0b10},
	}

	testCases := map[string]*Assignment{
		"IncompatiblePool": {
			Pools:  []int{1, 1},
			Groups: []AssignedGroup{{PoolIndex: 1, Candidates: 0b10, Resources: []int{0, 1}}},
		},
		"Unassigned": {
			Pools:  []int{0, 1},
			Groups: []AssignedGroup{{PoolIndex: 0, Candidates: 0b01, Resources: []int{0}}},
		},
		"PoolMissingFromCandidates": {
			Pools: []int{0, 1},
			Groups: []AssignedGroup{
				{PoolIndex: 0, Candidates: 0b10, Resources: []int{0}},
				{PoolIndex: 1, Candidates: 0b10, Resources: []int{1}},
			},
		},
		"WrongLength": {
			Pools: []int{0},
		},
	}

	for name, assignment := range testCases {
		t.Run(name, func(t *testing.T) {
			require.Error(t, assignment.Validate(requirements))
		})
	}
}
