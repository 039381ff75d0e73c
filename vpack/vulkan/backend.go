package vulkan

import (
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/core/v2/core1_1"
	"github.com/vkngwrapper/core/v2/core1_2"
	"github.com/vkngwrapper/extensions/v2/ext_memory_priority"
	"github.com/vkngwrapper/extensions/v2/khr_external_memory"
	"github.com/vkngwrapper/extensions/v2/khr_external_memory_capabilities"
	"github.com/vkngwrapper/packing/vpack"
	"github.com/vkngwrapper/packing/vpack/internal/vulkan"
)

// deviceBackend allocates pool memory as real device memory
type deviceBackend struct {
	deviceMemory        *vulkan.DeviceMemoryProperties
	extensionData       *vulkan.ExtensionData
	bufferDeviceAddress bool
	externalMemoryTypes []khr_external_memory_capabilities.ExternalMemoryHandleTypeFlags
}

var _ vpack.MemoryBackend[core1_0.DeviceMemory] = &deviceBackend{}

func (b *deviceBackend) AllocateMemory(request vpack.AllocateRequest) (core1_0.DeviceMemory, common.VkResult, error) {
	allocInfo := core1_0.MemoryAllocateInfo{
		AllocationSize:  request.Size,
		MemoryTypeIndex: request.PoolIndex,
	}

	if b.bufferDeviceAddress {
		var allocFlagsInfo core1_1.MemoryAllocateFlagsInfo
		allocFlagsInfo.Flags = core1_2.MemoryAllocateDeviceAddress
		allocFlagsInfo.Next = allocInfo.Next
		allocInfo.Next = allocFlagsInfo
	}

	if request.UsePriority {
		priorityInfo := ext_memory_priority.MemoryPriorityAllocateInfo{
			Priority: request.Priority,
		}
		priorityInfo.Next = allocInfo.Next
		allocInfo.Next = priorityInfo
	}

	if len(b.externalMemoryTypes) > 0 {
		externalMemoryType := b.externalMemoryTypes[request.PoolIndex]
		if externalMemoryType != 0 {
			var exportMemoryAllocInfo khr_external_memory.ExportMemoryAllocateInfo
			exportMemoryAllocInfo.HandleTypes = externalMemoryType
			exportMemoryAllocInfo.Next = allocInfo.Next
			allocInfo.Next = exportMemoryAllocInfo
		}
	}

	return b.deviceMemory.AllocateVulkanMemory(allocInfo)
}

func (b *deviceBackend) FreeMemory(poolIndex int, size int, memory core1_0.DeviceMemory) {
	b.deviceMemory.FreeVulkanMemory(poolIndex, size, memory)
}

func (b *deviceBackend) SupportsPriority() bool {
	return b.extensionData.UseMemoryPriority
}
