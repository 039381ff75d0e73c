package vulkan

import (
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/core/v2/core1_1"
	"github.com/vkngwrapper/core/v2/core1_2"
	"github.com/vkngwrapper/extensions/v2/amd_device_coherent_memory"
	"github.com/vkngwrapper/extensions/v2/ext_memory_budget"
	"github.com/vkngwrapper/extensions/v2/ext_memory_priority"
	"github.com/vkngwrapper/extensions/v2/khr_bind_memory2"
	khr_bind_memory2_shim "github.com/vkngwrapper/extensions/v2/khr_bind_memory2/shim"
	"github.com/vkngwrapper/extensions/v2/khr_buffer_device_address"
	"github.com/vkngwrapper/extensions/v2/khr_dedicated_allocation"
	"github.com/vkngwrapper/extensions/v2/khr_external_memory"
	"github.com/vkngwrapper/extensions/v2/khr_get_memory_requirements2"
	khr_get_memory_requirements2_shim "github.com/vkngwrapper/extensions/v2/khr_get_memory_requirements2/shim"
	"github.com/vkngwrapper/extensions/v2/khr_get_physical_device_properties2"
	khr_get_physical_device_properties2_shim "github.com/vkngwrapper/extensions/v2/khr_get_physical_device_properties2/shim"
)

// ExtensionData records which optional device capabilities the allocator may use
type ExtensionData struct {
	DedicatedAllocations         bool
	ExternalMemory               bool
	BufferDeviceAddress          bool
	GetMemoryRequirements        khr_get_memory_requirements2_shim.Shim
	BindMemory2                  khr_bind_memory2_shim.Shim
	GetPhysicalDeviceProperties2 khr_get_physical_device_properties2_shim.Shim
	UseMemoryBudget              bool
	UseAMDDeviceCoherentMemory   bool
	UseMemoryPriority            bool
	// Maintenance3 is set when the device reports its maximum single allocation size
	Maintenance3 bool
}

func NewExtensionData(device core1_0.Device, physicalDevice core1_0.PhysicalDevice, instance core1_0.Instance) *ExtensionData {
	data := &ExtensionData{}

	device11 := core1_1.PromoteDevice(device)
	if device11 != nil {
		// Core 1.1 brings khr_get_memory_requirements2, khr_bind_memory2, khr_dedicated_allocation,
		// khr_external_memory and khr_maintenance3
		data.DedicatedAllocations = true
		data.ExternalMemory = true
		data.BindMemory2 = device11
		data.GetMemoryRequirements = device11
	}

	if core1_2.PromoteDevice(device) != nil {
		data.BufferDeviceAddress = true
	}

	physicalDevice11 := core1_1.PromoteInstanceScopedPhysicalDevice(physicalDevice)
	if physicalDevice11 != nil {
		data.GetPhysicalDeviceProperties2 = physicalDevice11
	}

	// khr_bind_memory2 if core 1.1 is not active
	if data.BindMemory2 == nil && device.IsDeviceExtensionActive(khr_bind_memory2.ExtensionName) {
		extension := khr_bind_memory2.CreateExtensionFromDevice(device)
		data.BindMemory2 = khr_bind_memory2_shim.NewShim(device, extension)
	}

	// khr_get_memory_requirements2 if core 1.1 is not active
	if data.GetMemoryRequirements == nil && device.IsDeviceExtensionActive(khr_get_memory_requirements2.ExtensionName) {
		extension := khr_get_memory_requirements2.CreateExtensionFromDevice(device)
		data.GetMemoryRequirements = khr_get_memory_requirements2_shim.NewShim(extension, device)
	}

	// khr_dedicated_allocation is only readable through khr_get_memory_requirements2
	if data.GetMemoryRequirements != nil && !data.DedicatedAllocations &&
		device.IsDeviceExtensionActive(khr_dedicated_allocation.ExtensionName) {
		data.DedicatedAllocations = true
	}

	if !data.ExternalMemory && device.IsDeviceExtensionActive(khr_external_memory.ExtensionName) {
		data.ExternalMemory = true
	}

	if !data.BufferDeviceAddress && device.IsDeviceExtensionActive(khr_buffer_device_address.ExtensionName) {
		data.BufferDeviceAddress = true
	}

	// khr_get_physical_device_properties2 if core 1.1 is not active
	if data.GetPhysicalDeviceProperties2 == nil && instance.IsInstanceExtensionActive(khr_get_physical_device_properties2.ExtensionName) {
		extension := khr_get_physical_device_properties2.CreateExtensionFromInstance(instance)
		data.GetPhysicalDeviceProperties2 = khr_get_physical_device_properties2_shim.NewShim(extension, physicalDevice)
	}

	if data.GetPhysicalDeviceProperties2 != nil && device.IsDeviceExtensionActive(ext_memory_budget.ExtensionName) {
		data.UseMemoryBudget = true
	}

	if device.IsDeviceExtensionActive(ext_memory_priority.ExtensionName) {
		data.UseMemoryPriority = true
	}

	if device.IsDeviceExtensionActive(amd_device_coherent_memory.ExtensionName) {
		data.UseAMDDeviceCoherentMemory = true
	}

	// maintenance3 properties are core in 1.1 and need the properties2 query to read
	if device11 != nil && physicalDevice11 != nil {
		data.Maintenance3 = true
	}

	return data
}
