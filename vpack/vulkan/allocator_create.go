package vulkan

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/core/v2/driver"
	"github.com/vkngwrapper/extensions/v2/amd_device_coherent_memory"
	"github.com/vkngwrapper/extensions/v2/khr_external_memory_capabilities"
	"github.com/vkngwrapper/packing/vpack"
	"github.com/vkngwrapper/packing/vpack/internal/vulkan"
	"golang.org/x/exp/slog"
)

// CreateFlags indicate specific allocator behaviors to activate or deactivate
type CreateFlags int32

var allocatorCreateFlagsMapping = common.NewFlagStringMapping[CreateFlags]()

func (f CreateFlags) Register(str string) {
	allocatorCreateFlagsMapping.Register(f, str)
}
func (f CreateFlags) String() string {
	return allocatorCreateFlagsMapping.FlagsToString(f)
}

const (
	// AllocatorCreateExternallySynchronized ensures that this allocator will not be synchronized
	// internally. The consumer must guarantee it is used from only one thread at a time or is
	// synchronized by some other mechanism, but performance may improve because internal mutexes
	// are not used.
	AllocatorCreateExternallySynchronized CreateFlags = 1 << iota
	// AllocatorCreateBufferDeviceAddress indicates that buffers bound by this allocator may be
	// created with BufferUsageShaderDeviceAddress. Every memory is allocated with
	// MemoryAllocateDeviceAddress. Core 1.2 or khr_buffer_device_address must be active.
	AllocatorCreateBufferDeviceAddress
)

func init() {
	AllocatorCreateExternallySynchronized.Register("AllocatorCreateExternallySynchronized")
	AllocatorCreateBufferDeviceAddress.Register("AllocatorCreateBufferDeviceAddress")
}

// CreateOptions contains optional settings when creating an allocator
type CreateOptions struct {
	// Flags indicates specific allocator behaviors to activate or deactivate
	Flags CreateFlags

	// VulkanCallbacks is an optional set of callbacks that will be passed to Vulkan whenever
	// device memory is allocated or freed
	VulkanCallbacks *driver.AllocationCallbacks

	// MemoryCallbackOptions is an optional set of callbacks that will be executed when Vulkan memory
	// is allocated or freed by this allocator
	MemoryCallbackOptions *MemoryCallbackOptions

	// HeapSizeLimits can be left empty. If it is provided, though, it must be a slice
	// with a number of entries corresponding to the number of heaps in the PhysicalDevice
	// used to create this Allocator. Each entry must be either the maximum number of bytes
	// that should be allocated from the corresponding device memory heap, or 0 indicating
	// no limit.
	//
	// Heap memory limits will be enforced at runtime (the allocator will go so far as to
	// return an out of memory error when attempting to allocate beyond the limit). Limited
	// heaps are also treated as being the size of their limit when choosing where a batch fits.
	HeapSizeLimits []int

	// ExternalMemoryHandleTypes can be left empty. If it is provided though, it must be a slice
	// with a number of entries corresponding to the number of memory types in the PhysicalDevice
	// used to create this Allocator. Each entry must be either 0, indicating not to use external
	// memory, or a memory handle type, indicating which type of memory handles to export for
	// the memory type
	ExternalMemoryHandleTypes []khr_external_memory_capabilities.ExternalMemoryHandleTypeFlags

	// MaxMemoryAllocationSize can be left 0. When it is provided, no single memory larger than
	// this will be allocated. When the device reports its own limit through maintenance3, the
	// smaller of the two is used.
	MaxMemoryAllocationSize int

	// Strategy decides how resources with no common memory type are grouped. It defaults to
	// vpack.GreedyGrouping.
	Strategy vpack.GroupingStrategy
}

// New creates a new Allocator
//
// instance - The instance that owns the provided Device
//
// physicalDevice - The PhysicalDevice that owns the provided Device
//
// device - The Device that memory will be allocated into
//
// options - Optional parameters: it is valid to leave all the fields blank
func New(logger *slog.Logger, instance core1_0.Instance, physicalDevice core1_0.PhysicalDevice, device core1_0.Device, options CreateOptions) (*Allocator, error) {
	if instance == nil {
		return nil, errors.New("attempted to create an allocator with a nil instance")
	}
	if physicalDevice == nil {
		return nil, errors.New("attempted to create an allocator with a nil physical device")
	}
	if device == nil {
		return nil, errors.New("attempted to create an allocator with a nil device")
	}

	return newAllocator(logger, physicalDevice, device, vulkan.NewExtensionData(device, physicalDevice, instance), options)
}

func newAllocator(logger *slog.Logger, physicalDevice core1_0.PhysicalDevice, device core1_0.Device, extensionData *vulkan.ExtensionData, options CreateOptions) (*Allocator, error) {
	if logger == nil {
		return nil, errors.New("attempted to create an allocator with a nil logger")
	}

	bufferDeviceAddress := options.Flags&AllocatorCreateBufferDeviceAddress != 0
	if bufferDeviceAddress && !extensionData.BufferDeviceAddress {
		return nil, errors.New("vulkan.AllocatorCreateBufferDeviceAddress was provided, but neither core 1.2 nor the extension khr_buffer_device_address are active")
	}

	if len(options.ExternalMemoryHandleTypes) > 0 && !extensionData.ExternalMemory {
		return nil, errors.New("vulkan.CreateOptions.ExternalMemoryHandleTypes was provided, but neither core 1.1 nor the extension khr_external_memory are active")
	}

	if options.MaxMemoryAllocationSize < 0 {
		return nil, errors.Newf("vulkan.CreateOptions.MaxMemoryAllocationSize must not be negative, but was %d", options.MaxMemoryAllocationSize)
	}

	allocator := &Allocator{
		logger:        logger,
		device:        device,
		extensionData: extensionData,
	}

	var err error
	allocator.deviceMemory, err = vulkan.NewDeviceMemoryProperties(
		options.VulkanCallbacks,
		&memoryCallbacks{
			Callbacks: options.MemoryCallbackOptions,
			Allocator: allocator,
		},
		extensionData,
		device,
		physicalDevice,
		options.HeapSizeLimits,
	)
	if err != nil {
		return nil, err
	}

	typeCount := allocator.deviceMemory.MemoryTypeCount()
	if len(options.ExternalMemoryHandleTypes) > 0 && len(options.ExternalMemoryHandleTypes) != typeCount {
		return nil, errors.New("vulkan.CreateOptions.ExternalMemoryHandleTypes was provided, but the length does not equal the number of PhysicalDevice memory types")
	}

	maxAllocationSize, err := allocator.calculateMaxAllocationSize(options.MaxMemoryAllocationSize)
	if err != nil {
		return nil, err
	}

	catalog, err := allocator.deviceMemory.Catalog(maxAllocationSize)
	if err != nil {
		return nil, err
	}
	allocator.globalMemoryTypeBits = allocator.calculateGlobalMemoryTypeBits(catalog)

	var coreFlags vpack.AllocatorCreateFlags
	if options.Flags&AllocatorCreateExternallySynchronized != 0 {
		coreFlags |= vpack.AllocatorCreateExternallySynchronized
	}

	logger.Debug("vulkan.New",
		slog.String("Flags", options.Flags.String()),
		slog.Int("MaxMemoryAllocationSize", maxAllocationSize),
		slog.Bool("MemoryPriority", extensionData.UseMemoryPriority),
		slog.Bool("BindMemory2", extensionData.BindMemory2 != nil),
	)

	allocator.core, err = vpack.NewAllocator[core1_0.DeviceMemory](logger, catalog, &deviceBackend{
		deviceMemory:        allocator.deviceMemory,
		extensionData:       extensionData,
		bufferDeviceAddress: bufferDeviceAddress,
		externalMemoryTypes: options.ExternalMemoryHandleTypes,
	}, vpack.AllocatorCreateOptions{
		Flags:    coreFlags,
		Strategy: options.Strategy,
	})
	if err != nil {
		return nil, err
	}

	return allocator, nil
}

func (a *Allocator) calculateMaxAllocationSize(configured int) (int, error) {
	deviceLimit, err := a.deviceMemory.MaxMemoryAllocationSize()
	if err != nil {
		return 0, err
	}

	if configured > 0 && (deviceLimit <= 0 || configured < deviceLimit) {
		return configured, nil
	}
	return deviceLimit, nil
}

func (a *Allocator) calculateGlobalMemoryTypeBits(catalog *vpack.Catalog) vpack.PoolMask {
	typeBits := catalog.AllPools()

	if !a.extensionData.UseAMDDeviceCoherentMemory {
		// Exclude memory types that are only usable with amd_device_coherent_memory
		typeBits.ForEach(func(poolIndex int) {
			if catalog.Pool(poolIndex).PropertyFlags&amd_device_coherent_memory.MemoryPropertyDeviceCoherentAMD != 0 {
				typeBits = typeBits.Without(poolIndex)
			}
		})
	}

	return typeBits
}
