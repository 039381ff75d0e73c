package vpack

import "github.com/vkngwrapper/core/v2/common"

// GroupCandidate is a resource awaiting a pool, along with the pools it may be placed in
// under the preference currently being evaluated
type GroupCandidate struct {
	ResourceID int
	Mask       PoolMask
}

// CandidateGroup is a set of resources that a GroupingStrategy placed together in one pool
type CandidateGroup struct {
	PoolIndex int
	// Candidates is the intersection of the masks of every member. It always contains PoolIndex.
	Candidates PoolMask
	Resources  []int
}

// GroupingStrategy partitions resources that share no common pool into groups that each
// share one. Implementations must place every candidate in exactly one group, on a pool
// present in the candidate's mask, and must be deterministic. Every candidate mask passed
// to Group is non-empty.
type GroupingStrategy interface {
	Group(candidates []GroupCandidate) []CandidateGroup
}

// GreedyGrouping repeatedly picks the pool supported by the most unplaced candidates, with
// ties going to the lowest pool index, and places every unplaced candidate supporting it
// there. It does not guarantee the fewest possible groups.
type GreedyGrouping struct{}

var _ GroupingStrategy = GreedyGrouping{}

func (GreedyGrouping) Group(candidates []GroupCandidate) []CandidateGroup {
	var counts [common.MaxMemoryTypes]int
	for _, candidate := range candidates {
		candidate.Mask.ForEach(func(poolIndex int) {
			counts[poolIndex]++
		})
	}

	placed := make([]bool, len(candidates))
	remaining := len(candidates)
	var groups []CandidateGroup

	for remaining > 0 {
		bestPool := -1
		bestCount := 0
		for poolIndex := 0; poolIndex < len(counts); poolIndex++ {
			if counts[poolIndex] > bestCount {
				bestPool = poolIndex
				bestCount = counts[poolIndex]
			}
		}

		group := CandidateGroup{
			PoolIndex:  bestPool,
			Candidates: PoolMask(^uint32(0)),
		}

		for candidateIndex, candidate := range candidates {
			if placed[candidateIndex] || !candidate.Mask.Has(bestPool) {
				continue
			}

			placed[candidateIndex] = true
			remaining--
			group.Candidates &= candidate.Mask
			group.Resources = append(group.Resources, candidate.ResourceID)
			candidate.Mask.ForEach(func(poolIndex int) {
				counts[poolIndex]--
			})
		}

		groups = append(groups, group)
	}

	return groups
}

const defaultMaxSearchNodes = 100000

// ExhaustiveGrouping searches for a partition using the fewest possible pools. The search
// starts from the GreedyGrouping result and stops after MaxSearchNodes branches, returning
// the best partition found so far; the result is never worse than GreedyGrouping.
type ExhaustiveGrouping struct {
	// MaxSearchNodes caps the number of branches explored. 0 uses a default of 100000.
	MaxSearchNodes int
}

var _ GroupingStrategy = ExhaustiveGrouping{}

type coverSearch struct {
	candidates []GroupCandidate
	nodesLeft  int

	chosen []int
	best   []int
}

func (g ExhaustiveGrouping) Group(candidates []GroupCandidate) []CandidateGroup {
	greedy := GreedyGrouping{}.Group(candidates)
	if len(greedy) <= 1 {
		return greedy
	}

	search := &coverSearch{
		candidates: candidates,
		nodesLeft:  g.MaxSearchNodes,
	}
	if search.nodesLeft <= 0 {
		search.nodesLeft = defaultMaxSearchNodes
	}

	for _, group := range greedy {
		search.best = append(search.best, group.PoolIndex)
	}

	search.visit(0)

	if len(search.best) >= len(greedy) {
		return greedy
	}

	return groupsFromPools(candidates, search.best)
}

func (s *coverSearch) visit(covered PoolMask) {
	if s.nodesLeft <= 0 {
		return
	}
	s.nodesLeft--

	// Find the first candidate not yet covered by any chosen pool
	next := -1
	for candidateIndex, candidate := range s.candidates {
		if candidate.Mask&covered == 0 {
			next = candidateIndex
			break
		}
	}

	if next < 0 {
		if len(s.chosen) < len(s.best) {
			s.best = append(s.best[:0], s.chosen...)
		}
		return
	}

	// Any completion needs at least one more pool
	if len(s.chosen)+1 >= len(s.best) {
		return
	}

	s.candidates[next].Mask.ForEach(func(poolIndex int) {
		s.chosen = append(s.chosen, poolIndex)
		s.visit(covered.With(poolIndex))
		s.chosen = s.chosen[:len(s.chosen)-1]
	})
}

// groupsFromPools places each candidate in the first pool of the list that it supports
func groupsFromPools(candidates []GroupCandidate, pools []int) []CandidateGroup {
	groups := make([]CandidateGroup, len(pools))
	for groupIndex, poolIndex := range pools {
		groups[groupIndex].PoolIndex = poolIndex
		groups[groupIndex].Candidates = PoolMask(^uint32(0))
	}

	for _, candidate := range candidates {
		for groupIndex, poolIndex := range pools {
			if candidate.Mask.Has(poolIndex) {
				groups[groupIndex].Candidates &= candidate.Mask
				groups[groupIndex].Resources = append(groups[groupIndex].Resources, candidate.ResourceID)
				break
			}
		}
	}

	// Pools that ended up with no members are dropped
	result := groups[:0]
	for _, group := range groups {
		if len(group.Resources) > 0 {
			result = append(result, group)
		}
	}

	return result
}
