package vulkan

import (
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/core/v2/core1_1"
	"github.com/vkngwrapper/extensions/v2/khr_dedicated_allocation"
	"github.com/vkngwrapper/packing/vpack/internal/vulkan"
)

// Resource is a buffer or image to be placed in memory. Use BufferResource or ImageResource.
type Resource interface {
	label() string
	memoryRequirements(extensionData *vulkan.ExtensionData) (requirements core1_0.MemoryRequirements, requiresDedicated bool, err error)
	bind(memory core1_0.DeviceMemory, offset int) (common.VkResult, error)
	addBindInfo(batch *bindBatch, memory core1_0.DeviceMemory, offset int)
}

// bindBatch collects binds so they can be submitted with khr_bind_memory2 in one call per
// resource kind
type bindBatch struct {
	buffers []core1_1.BindBufferMemoryInfo
	images  []core1_1.BindImageMemoryInfo
}

// BufferResource places a buffer in memory
type BufferResource struct {
	Buffer core1_0.Buffer
	// Label is optional and shows up in diagnostics
	Label string
}

func (r BufferResource) label() string { return r.Label }

func (r BufferResource) memoryRequirements(extensionData *vulkan.ExtensionData) (core1_0.MemoryRequirements, bool, error) {
	if extensionData.DedicatedAllocations && extensionData.GetMemoryRequirements != nil {
		dedicatedReqs := khr_dedicated_allocation.MemoryDedicatedRequirements{}
		memReqs := core1_1.MemoryRequirements2{
			NextOutData: common.NextOutData{
				Next: &dedicatedReqs,
			},
		}

		err := extensionData.GetMemoryRequirements.BufferMemoryRequirements2(
			core1_1.BufferMemoryRequirementsInfo2{
				Buffer: r.Buffer,
			},
			&memReqs)
		if err != nil {
			return core1_0.MemoryRequirements{}, false, err
		}

		return memReqs.MemoryRequirements, dedicatedReqs.RequiresDedicatedAllocation, nil
	}

	return *r.Buffer.MemoryRequirements(), false, nil
}

func (r BufferResource) bind(memory core1_0.DeviceMemory, offset int) (common.VkResult, error) {
	return r.Buffer.BindBufferMemory(memory, offset)
}

func (r BufferResource) addBindInfo(batch *bindBatch, memory core1_0.DeviceMemory, offset int) {
	batch.buffers = append(batch.buffers, core1_1.BindBufferMemoryInfo{
		Buffer:       r.Buffer,
		Memory:       memory,
		MemoryOffset: offset,
	})
}

// ImageResource places an image in memory
type ImageResource struct {
	Image core1_0.Image
	// Label is optional and shows up in diagnostics
	Label string
}

func (r ImageResource) label() string { return r.Label }

func (r ImageResource) memoryRequirements(extensionData *vulkan.ExtensionData) (core1_0.MemoryRequirements, bool, error) {
	if extensionData.DedicatedAllocations && extensionData.GetMemoryRequirements != nil {
		dedicatedReqs := khr_dedicated_allocation.MemoryDedicatedRequirements{}
		memReqs := core1_1.MemoryRequirements2{
			NextOutData: common.NextOutData{
				Next: &dedicatedReqs,
			},
		}

		err := extensionData.GetMemoryRequirements.ImageMemoryRequirements2(
			core1_1.ImageMemoryRequirementsInfo2{
				Image: r.Image,
			},
			&memReqs)
		if err != nil {
			return core1_0.MemoryRequirements{}, false, err
		}

		return memReqs.MemoryRequirements, dedicatedReqs.RequiresDedicatedAllocation, nil
	}

	return *r.Image.MemoryRequirements(), false, nil
}

func (r ImageResource) bind(memory core1_0.DeviceMemory, offset int) (common.VkResult, error) {
	return r.Image.BindImageMemory(memory, offset)
}

func (r ImageResource) addBindInfo(batch *bindBatch, memory core1_0.DeviceMemory, offset int) {
	batch.images = append(batch.images, core1_1.BindImageMemoryInfo{
		Image:        r.Image,
		Memory:       memory,
		MemoryOffset: uint64(offset),
	})
}
