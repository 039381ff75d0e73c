package vulkan

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/packing/vpack"
	"github.com/vkngwrapper/packing/vpack/internal/vulkan"
	"golang.org/x/exp/slog"
)

// PackedAllocation owns the device memories a batch of resources was placed in
type PackedAllocation = vpack.PackedAllocation[core1_0.DeviceMemory]

// Budget describes the usage of one memory heap
type Budget = vulkan.Budget

// Allocator places batches of buffers and images into as few device memories as it can,
// binding each resource at an aligned offset
type Allocator struct {
	logger        *slog.Logger
	device        core1_0.Device
	deviceMemory  *vulkan.DeviceMemoryProperties
	extensionData *vulkan.ExtensionData

	globalMemoryTypeBits vpack.PoolMask

	core *vpack.Allocator[core1_0.DeviceMemory]
}

func (a *Allocator) Catalog() *vpack.Catalog { return a.core.Catalog() }
func (a *Allocator) Logger() *slog.Logger { return a.logger }
func (a *Allocator) Device() core1_0.Device { return a.device }

func (a *Allocator) requirements(resources []Resource) ([]vpack.ResourceRequirement, error) {
	requirements := make([]vpack.ResourceRequirement, len(resources))

	for resourceID, resource := range resources {
		if resource == nil {
			return nil, errors.Newf("resource %d is nil", resourceID)
		}

		memReqs, requiresDedicated, err := resource.memoryRequirements(a.extensionData)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read the memory requirements of resource %d", resourceID)
		}

		if requiresDedicated {
			return nil, errors.Newf("resource %d requires a dedicated allocation and cannot share memory with other resources", resourceID)
		}

		requirements[resourceID] = vpack.RequirementFromVulkan(&memReqs, resource.label())
		requirements[resourceID].MemoryTypeBits &= a.globalMemoryTypeBits
	}

	return requirements, nil
}

// Assign reports the memory type each resource would be placed in without allocating anything
func (a *Allocator) Assign(preferences vpack.PropertyPreference, resources ...Resource) (*vpack.Assignment, error) {
	requirements, err := a.requirements(resources)
	if err != nil {
		return nil, err
	}

	return a.core.Assign(preferences, requirements)
}

// AllocateAndBind allocates device memory for every resource and binds each one. Either every
// resource is bound or nothing allocated by this call remains allocated.
func (a *Allocator) AllocateAndBind(createInfo vpack.AllocationCreateInfo, resources ...Resource) (*PackedAllocation, error) {
	a.logger.Debug("Allocator::AllocateAndBind", slog.Int("ResourceCount", len(resources)))

	if createInfo.Flags&vpack.AllocationCreateDontBind != 0 {
		return nil, errors.New("AllocateAndBind does not accept vpack.AllocationCreateDontBind, use Allocate instead")
	}

	requirements, err := a.requirements(resources)
	if err != nil {
		return nil, err
	}

	if a.extensionData.BindMemory2 != nil {
		return a.allocateAndBindBatched(createInfo, requirements, resources)
	}

	allocation, err := a.core.Allocate(createInfo, requirements, func(resourceID int, memory core1_0.DeviceMemory, offset int) (common.VkResult, error) {
		return resources[resourceID].bind(memory, offset)
	})
	if err != nil {
		return nil, err
	}

	a.trackResources(allocation, true)
	return allocation, nil
}

func (a *Allocator) allocateAndBindBatched(createInfo vpack.AllocationCreateInfo, requirements []vpack.ResourceRequirement, resources []Resource) (*PackedAllocation, error) {
	createInfo.Flags |= vpack.AllocationCreateDontBind

	allocation, err := a.core.Allocate(createInfo, requirements, nil)
	if err != nil {
		return nil, err
	}

	var batch bindBatch
	for resourceID, resource := range resources {
		memory, offset := allocation.Memory(resourceID)
		resource.addBindInfo(&batch, memory, offset)
	}

	res, err := a.bindBatch(&batch)
	if err != nil {
		a.core.Free(allocation)
		return nil, errors.Wrap(vpack.ResultError(res, err), "failed to bind resources")
	}

	allocation.MarkBound()
	a.trackResources(allocation, true)
	return allocation, nil
}

func (a *Allocator) bindBatch(batch *bindBatch) (common.VkResult, error) {
	if len(batch.buffers) > 0 {
		res, err := a.extensionData.BindMemory2.BindBufferMemory2(batch.buffers)
		if err != nil {
			return res, err
		}
	}

	if len(batch.images) > 0 {
		res, err := a.extensionData.BindMemory2.BindImageMemory2(batch.images)
		if err != nil {
			return res, err
		}
	}

	return core1_0.VKSuccess, nil
}

// Allocate allocates device memory for every resource without binding anything. The caller
// binds each resource at the memory and offset reported by PackedAllocation.Memory. The
// resources are not counted in HeapStatistics.
func (a *Allocator) Allocate(createInfo vpack.AllocationCreateInfo, resources ...Resource) (*PackedAllocation, error) {
	a.logger.Debug("Allocator::Allocate", slog.Int("ResourceCount", len(resources)))

	requirements, err := a.requirements(resources)
	if err != nil {
		return nil, err
	}

	createInfo.Flags |= vpack.AllocationCreateDontBind
	return a.core.Allocate(createInfo, requirements, nil)
}

// Free releases every device memory owned by allocation. Freeing an allocation twice has no
// effect. Resources only stop being counted in HeapStatistics when they were bound by
// AllocateAndBind.
func (a *Allocator) Free(allocation *PackedAllocation) {
	if allocation == nil || !a.core.Free(allocation) {
		return
	}

	if allocation.Bound() {
		a.trackResources(allocation, false)
	}
}

func (a *Allocator) trackResources(allocation *PackedAllocation, add bool) {
	for _, memory := range allocation.Memories {
		heapIndex := a.deviceMemory.MemoryTypeIndexToHeapIndex(memory.PoolIndex)

		size := 0
		for _, resourceID := range memory.Resources {
			size += allocation.Bindings[resourceID].Size
		}

		if add {
			a.deviceMemory.AddResources(heapIndex, len(memory.Resources), size)
		} else {
			a.deviceMemory.RemoveResources(heapIndex, len(memory.Resources), size)
		}
	}
}

// HeapStatistics returns the current usage and budget of every memory heap
func (a *Allocator) HeapStatistics() ([]Budget, error) {
	budgets := make([]Budget, a.deviceMemory.MemoryHeapCount())

	err := a.deviceMemory.HeapBudgets(0, budgets)
	if err != nil {
		return nil, err
	}

	return budgets, nil
}
