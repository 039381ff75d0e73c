package vulkan

import (
	"fmt"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/core/v2/core1_1"
	"github.com/vkngwrapper/core/v2/driver"
	"github.com/vkngwrapper/extensions/v2/ext_memory_budget"
	"github.com/vkngwrapper/packing/memutils"
	"github.com/vkngwrapper/packing/vpack"
)

type Budget struct {
	Statistics memutils.Statistics
	Usage      int
	Budget     int
}

type MemoryCallbacks interface {
	Allocate(memoryType int, memory core1_0.DeviceMemory, size int)
	Free(memoryType int, memory core1_0.DeviceMemory, size int)
}

type DeviceMemoryProperties struct {
	// Number of real allocations that have been made from each heap
	memoryCount [common.MaxMemoryHeaps]int32
	// Size of real allocations that have been made from each heap
	memoryBytes [common.MaxMemoryHeaps]int64
	// Number of resources bound into memory from each heap. Allocations made without binding
	// are not counted.
	resourceCount [common.MaxMemoryHeaps]int32
	// Size of resources bound into memory from each heap
	resourceBytes [common.MaxMemoryHeaps]int64

	// Number of live allocations across every heap, checked against maxMemoryAllocationCount
	allocationCount uint32

	allocationCallbacks *driver.AllocationCallbacks
	memoryCallbacks     MemoryCallbacks
	heapLimits          []int
	extensionData       *ExtensionData

	device           core1_0.Device
	deviceProperties *core1_0.PhysicalDeviceProperties
	memoryProperties *core1_0.PhysicalDeviceMemoryProperties
}

func NewDeviceMemoryProperties(
	allocationCallbacks *driver.AllocationCallbacks,
	memoryCallbacks MemoryCallbacks,
	extensionData *ExtensionData,
	device core1_0.Device,
	physicalDevice core1_0.PhysicalDevice,
	heapSizeLimits []int,
) (*DeviceMemoryProperties, error) {
	deviceProperties := &DeviceMemoryProperties{
		allocationCallbacks: allocationCallbacks,
		memoryCallbacks:     memoryCallbacks,
		extensionData:       extensionData,

		device: device,
	}

	var err error
	deviceProperties.deviceProperties, err = physicalDevice.Properties()
	if err != nil {
		return nil, err
	}

	deviceProperties.memoryProperties = physicalDevice.MemoryProperties()

	heapCount := deviceProperties.MemoryHeapCount()
	heapLimitCount := len(heapSizeLimits)

	if heapLimitCount > 0 && heapLimitCount != heapCount {
		return nil, errors.New("vulkan.CreateOptions.HeapSizeLimits was provided, but the length does not equal the number of PhysicalDevice heaps")
	}

	deviceProperties.heapLimits = make([]int, heapCount)
	copy(deviceProperties.heapLimits, heapSizeLimits)

	return deviceProperties, nil
}

func (m *DeviceMemoryProperties) MemoryTypeCount() int {
	return len(m.memoryProperties.MemoryTypes)
}

func (m *DeviceMemoryProperties) MemoryHeapCount() int {
	return len(m.memoryProperties.MemoryHeaps)
}

func (m *DeviceMemoryProperties) MemoryTypeIndexToHeapIndex(memTypeIndex int) int {
	return m.memoryProperties.MemoryTypes[memTypeIndex].HeapIndex
}

func (m *DeviceMemoryProperties) DeviceProperties() *core1_0.PhysicalDeviceProperties {
	return m.deviceProperties
}

// HeapSize returns the number of bytes that may be allocated from a heap: the smaller of the
// heap's real size and its configured limit
func (m *DeviceMemoryProperties) HeapSize(heapIndex int) int {
	heapSize := m.memoryProperties.MemoryHeaps[heapIndex].Size
	heapLimit := m.heapLimits[heapIndex]

	if heapLimit > 0 && heapLimit < heapSize {
		return heapLimit
	}
	return heapSize
}

// Catalog snapshots the device's memory types and heaps. Heaps with a configured limit are
// reported at their limited size.
func (m *DeviceMemoryProperties) Catalog(maxAllocationSize int) (*vpack.Catalog, error) {
	pools := make([]vpack.MemoryPool, 0, m.MemoryTypeCount())
	for _, memoryType := range m.memoryProperties.MemoryTypes {
		pools = append(pools, vpack.MemoryPool{
			PropertyFlags: memoryType.PropertyFlags,
			HeapIndex:     memoryType.HeapIndex,
		})
	}

	heaps := make([]vpack.MemoryHeap, 0, m.MemoryHeapCount())
	for heapIndex, heap := range m.memoryProperties.MemoryHeaps {
		heaps = append(heaps, vpack.MemoryHeap{
			Size:  m.HeapSize(heapIndex),
			Flags: heap.Flags,
		})
	}

	return vpack.NewCatalog(pools, heaps, maxAllocationSize)
}

func (m *DeviceMemoryProperties) addMemory(heapIndex int, allocationSize int) {
	atomic.AddInt64(&m.memoryBytes[heapIndex], int64(allocationSize))
	atomic.AddInt32(&m.memoryCount[heapIndex], 1)
}

func (m *DeviceMemoryProperties) addMemoryWithLimit(heapIndex, allocationSize, maxAllocatable int) (common.VkResult, error) {
	for {
		currentVal := atomic.LoadInt64(&m.memoryBytes[heapIndex])
		targetVal := currentVal + int64(allocationSize)

		if targetVal > int64(maxAllocatable) {
			return core1_0.VKErrorOutOfDeviceMemory, core1_0.VKErrorOutOfDeviceMemory.ToError()
		}

		if atomic.CompareAndSwapInt64(&m.memoryBytes[heapIndex], currentVal, targetVal) {
			break
		}
	}

	atomic.AddInt32(&m.memoryCount[heapIndex], 1)
	return core1_0.VKSuccess, nil
}

func (m *DeviceMemoryProperties) removeMemory(heapIndex, allocationSize int) {
	newVal := atomic.AddInt64(&m.memoryBytes[heapIndex], int64(-allocationSize))
	if newVal < 0 {
		panic(fmt.Sprintf("memory bytes for heapIndex %d went negative", heapIndex))
	}

	newCountVal := atomic.AddInt32(&m.memoryCount[heapIndex], -1)
	if newCountVal < 0 {
		panic(fmt.Sprintf("memory count for heapIndex %d went negative", heapIndex))
	}
}

// AllocateVulkanMemory allocates device memory, enforcing the device's allocation count limit
// and any heap size limit before the driver is called
func (m *DeviceMemoryProperties) AllocateVulkanMemory(
	allocateInfo core1_0.MemoryAllocateInfo,
) (memory core1_0.DeviceMemory, res common.VkResult, err error) {
	newDeviceCount := atomic.AddUint32(&m.allocationCount, 1)
	defer func() {
		if err != nil {
			// Decrement
			atomic.AddUint32(&m.allocationCount, ^uint32(0))
		}
	}()

	if int(newDeviceCount) > m.deviceProperties.Limits.MaxMemoryAllocationCount {
		return nil, core1_0.VKErrorTooManyObjects, core1_0.VKErrorTooManyObjects.ToError()
	}

	heapIndex := m.MemoryTypeIndexToHeapIndex(allocateInfo.MemoryTypeIndex)
	if m.heapLimits[heapIndex] <= 0 {
		m.addMemory(heapIndex, allocateInfo.AllocationSize)
	} else {
		res, err = m.addMemoryWithLimit(heapIndex, allocateInfo.AllocationSize, m.HeapSize(heapIndex))
		if err != nil {
			return nil, res, err
		}
	}
	defer func() {
		if err != nil {
			m.removeMemory(heapIndex, allocateInfo.AllocationSize)
		}
	}()

	memory, res, err = m.device.AllocateMemory(m.allocationCallbacks, allocateInfo)
	if err != nil {
		return nil, res, err
	}

	if m.memoryCallbacks != nil {
		m.memoryCallbacks.Allocate(
			allocateInfo.MemoryTypeIndex,
			memory,
			allocateInfo.AllocationSize,
		)
	}

	return memory, res, nil
}

func (m *DeviceMemoryProperties) FreeVulkanMemory(memoryType int, size int, memory core1_0.DeviceMemory) {
	if m.memoryCallbacks != nil {
		m.memoryCallbacks.Free(memoryType, memory, size)
	}

	memory.Free(m.allocationCallbacks)

	heapIndex := m.MemoryTypeIndexToHeapIndex(memoryType)
	m.removeMemory(heapIndex, size)
	// Decrement
	atomic.AddUint32(&m.allocationCount, ^uint32(0))
}

// AddResources records resources bound into memory from a heap
func (m *DeviceMemoryProperties) AddResources(heapIndex int, count int, size int) {
	atomic.AddInt64(&m.resourceBytes[heapIndex], int64(size))
	atomic.AddInt32(&m.resourceCount[heapIndex], int32(count))
}

func (m *DeviceMemoryProperties) RemoveResources(heapIndex int, count int, size int) {
	newSizeVal := atomic.AddInt64(&m.resourceBytes[heapIndex], int64(-size))
	if newSizeVal < 0 {
		panic(fmt.Sprintf("resource bytes for heapIndex %d went negative", heapIndex))
	}

	newCountVal := atomic.AddInt32(&m.resourceCount[heapIndex], int32(-count))
	if newCountVal < 0 {
		panic(fmt.Sprintf("resource count for heapIndex %d went negative", heapIndex))
	}
}

func (m *DeviceMemoryProperties) heapStatistics(heapIndex int, stats *memutils.Statistics) {
	stats.MemoryCount = int(atomic.LoadInt32(&m.memoryCount[heapIndex]))
	stats.MemoryBytes = int(atomic.LoadInt64(&m.memoryBytes[heapIndex]))
	stats.ResourceCount = int(atomic.LoadInt32(&m.resourceCount[heapIndex]))
	stats.ResourceBytes = int(atomic.LoadInt64(&m.resourceBytes[heapIndex]))
}

// HeapBudgets writes the usage and budget of each heap starting at firstHeap into budgets.
// When ext_memory_budget is active the usage and budget reported by the driver are used;
// otherwise usage is the memory allocated through this allocator and the budget is 80% of the
// heap.
func (m *DeviceMemoryProperties) HeapBudgets(firstHeap int, budgets []Budget) error {
	var budgetProperties *ext_memory_budget.PhysicalDeviceMemoryBudgetProperties
	if m.extensionData.UseMemoryBudget {
		budgetProperties = &ext_memory_budget.PhysicalDeviceMemoryBudgetProperties{}
		memoryProperties := core1_1.PhysicalDeviceMemoryProperties2{
			NextOutData: common.NextOutData{Next: budgetProperties},
		}

		err := m.extensionData.GetPhysicalDeviceProperties2.MemoryProperties2(&memoryProperties)
		if err != nil {
			return errors.Wrap(err, "failed to query the memory budget")
		}
	}

	for i := 0; i < len(budgets); i++ {
		heapIndex := firstHeap + i
		m.heapStatistics(heapIndex, &budgets[i].Statistics)

		if budgetProperties != nil {
			budgets[i].Usage = int(budgetProperties.HeapUsage[heapIndex])
			budgets[i].Budget = int(budgetProperties.HeapBudget[heapIndex])
			continue
		}

		budgets[i].Usage = budgets[i].Statistics.MemoryBytes
		budgets[i].Budget = m.HeapSize(heapIndex) * 8 / 10
	}

	return nil
}

func (m *DeviceMemoryProperties) AllocationCount() uint32 {
	return atomic.LoadUint32(&m.allocationCount)
}

// MaxMemoryAllocationSize returns the largest single allocation the device reports through
// maintenance3, or 0 when the limit cannot be read
func (m *DeviceMemoryProperties) MaxMemoryAllocationSize() (int, error) {
	if !m.extensionData.Maintenance3 {
		return 0, nil
	}

	maintenance3 := &core1_1.PhysicalDeviceMaintenance3Properties{}
	properties := core1_1.PhysicalDeviceProperties2{
		NextOutData: common.NextOutData{Next: maintenance3},
	}

	err := m.extensionData.GetPhysicalDeviceProperties2.Properties2(&properties)
	if err != nil {
		return 0, errors.Wrap(err, "failed to query maintenance3 properties")
	}

	return maintenance3.MaxMemoryAllocationSize, nil
}
