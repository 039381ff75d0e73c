package vpack

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/packing/memutils"
)

// PackedGroup is one pool allocation request: the resources of an AssignedGroup laid out
// back to back at aligned offsets
type PackedGroup struct {
	PoolIndex  int
	Candidates PoolMask
	TotalSize  int
	// Resources lists the ids of the members in batch order
	Resources []int
	// Offsets holds the byte offset of each member, parallel to Resources
	Offsets []int
}

// Validate checks that every offset is aligned, that members do not overlap and that
// TotalSize ends exactly at the end of the last member
func (g *PackedGroup) Validate(requirements []ResourceRequirement) error {
	if len(g.Resources) != len(g.Offsets) {
		return errors.AssertionFailedf("packed group has %d resources but %d offsets", len(g.Resources), len(g.Offsets))
	}
	if len(g.Resources) == 0 {
		return errors.AssertionFailedf("packed group for pool %d is empty", g.PoolIndex)
	}

	end := 0
	for memberIndex, resourceID := range g.Resources {
		requirement := requirements[resourceID]
		offset := g.Offsets[memberIndex]

		if !memutils.IsAligned(offset, uint(requirement.Alignment)) {
			return errors.AssertionFailedf("resource %d is placed at offset %d, which does not meet alignment %d", resourceID, offset, requirement.Alignment)
		}
		if offset < end {
			return errors.Wrapf(memutils.OverlapError, "resource %d at offset %d overlaps the previous resource ending at %d", resourceID, offset, end)
		}

		end = offset + requirement.Size
	}

	if end != g.TotalSize {
		return errors.AssertionFailedf("packed group for pool %d has total size %d, but its last resource ends at %d", g.PoolIndex, g.TotalSize, end)
	}

	return nil
}

// Pack lays out the resources of each assigned group. Members are placed in batch order, each
// at the first offset at or after the end of the previous member that meets its alignment.
func Pack(assignment *Assignment, requirements []ResourceRequirement) []PackedGroup {
	groups := make([]PackedGroup, 0, len(assignment.Groups))

	for _, assigned := range assignment.Groups {
		group := PackedGroup{
			PoolIndex:  assigned.PoolIndex,
			Candidates: assigned.Candidates,
			Resources:  assigned.Resources,
			Offsets:    make([]int, 0, len(assigned.Resources)),
		}

		offset := 0
		for _, resourceID := range assigned.Resources {
			requirement := requirements[resourceID]
			memutils.DebugCheckPow2(requirement.Alignment, "alignment")

			aligned := memutils.AlignUp(offset, uint(requirement.Alignment))
			group.Offsets = append(group.Offsets, aligned)
			offset = aligned + requirement.Size
		}
		group.TotalSize = offset

		memutils.DebugValidate(validateFunc(func() error {
			return group.Validate(requirements)
		}))

		groups = append(groups, group)
	}

	return groups
}
