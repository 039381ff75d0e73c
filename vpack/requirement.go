package vpack

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/packing/memutils"
)

// ResourceRequirement describes the memory needs of one buffer or image. A requirement is
// identified by its position in the batch it is submitted with.
type ResourceRequirement struct {
	Size           int
	Alignment      int
	MemoryTypeBits PoolMask
	// Label is optional and only used for diagnostics
	Label string
}

// RequirementFromVulkan converts the memory requirements reported for a buffer or image
func RequirementFromVulkan(requirements *core1_0.MemoryRequirements, label string) ResourceRequirement {
	return ResourceRequirement{
		Size:           requirements.Size,
		Alignment:      requirements.Alignment,
		MemoryTypeBits: PoolMask(requirements.MemoryTypeBits),
		Label:          label,
	}
}

func (r ResourceRequirement) validate(id int) error {
	if r.Size <= 0 {
		return errors.Newf("resource %d has invalid size %d", id, r.Size)
	}

	err := memutils.CheckPow2(r.Alignment, "alignment")
	if err != nil {
		return errors.Wrapf(err, "resource %d has invalid alignment", id)
	}

	return nil
}

func validateRequirements(requirements []ResourceRequirement) error {
	if len(requirements) == 0 {
		return errors.New("at least one resource requirement must be provided")
	}

	for id, requirement := range requirements {
		err := requirement.validate(id)
		if err != nil {
			return err
		}
	}

	return nil
}

// PropertyPreference is an ordered list of property flag combinations. The first entry is the
// most desired. A pool satisfies an entry when its flags contain every flag in the entry.
type PropertyPreference []core1_0.MemoryPropertyFlags

// SupportedPools computes, for each preference entry, the set of pools in the catalog whose
// property flags are a superset of the entry
func SupportedPools(catalog *Catalog, preferences PropertyPreference) []PoolMask {
	supported := make([]PoolMask, len(preferences))

	for preferenceIndex, required := range preferences {
		for poolIndex := 0; poolIndex < catalog.PoolCount(); poolIndex++ {
			if catalog.Pool(poolIndex).PropertyFlags&required == required {
				supported[preferenceIndex] = supported[preferenceIndex].With(poolIndex)
			}
		}
	}

	return supported
}
