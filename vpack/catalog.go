package vpack

import (
	"math"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
)

const catalogUnlimited = math.MaxInt

// MemoryPool is a single device memory type: a set of property flags backed by one heap
type MemoryPool struct {
	Index         int
	PropertyFlags core1_0.MemoryPropertyFlags
	HeapIndex     int
}

// MemoryHeap is a physical memory region that one or more pools draw from
type MemoryHeap struct {
	Index int
	Size  int
	Flags core1_0.MemoryHeapFlags
}

// Catalog is an immutable snapshot of the memory capabilities of a device. The allocator
// never re-queries the device, so a Catalog describes the device at the moment it was built.
type Catalog struct {
	pools             []MemoryPool
	heaps             []MemoryHeap
	maxAllocationSize int
}

// NewCatalog validates and snapshots the provided pools and heaps. The Index fields of the
// provided pools and heaps are overwritten with their slice positions.
//
// maxAllocationSize is the largest single allocation the device permits. 0 indicates that
// the device has no limit beyond heap size.
func NewCatalog(pools []MemoryPool, heaps []MemoryHeap, maxAllocationSize int) (*Catalog, error) {
	if len(pools) == 0 {
		return nil, errors.New("a memory catalog requires at least one memory pool")
	}
	if len(pools) > common.MaxMemoryTypes {
		return nil, errors.Newf("a memory catalog may contain at most %d memory pools, but %d were provided", common.MaxMemoryTypes, len(pools))
	}
	if len(heaps) == 0 {
		return nil, errors.New("a memory catalog requires at least one memory heap")
	}
	if len(heaps) > common.MaxMemoryHeaps {
		return nil, errors.Newf("a memory catalog may contain at most %d memory heaps, but %d were provided", common.MaxMemoryHeaps, len(heaps))
	}
	if maxAllocationSize < 0 {
		return nil, errors.Newf("maxAllocationSize must not be negative, but was %d", maxAllocationSize)
	}

	catalog := &Catalog{
		pools:             make([]MemoryPool, len(pools)),
		heaps:             make([]MemoryHeap, len(heaps)),
		maxAllocationSize: maxAllocationSize,
	}
	if catalog.maxAllocationSize == 0 {
		catalog.maxAllocationSize = catalogUnlimited
	}

	for heapIndex, heap := range heaps {
		if heap.Size <= 0 {
			return nil, errors.Newf("memory heap %d has invalid size %d", heapIndex, heap.Size)
		}
		heap.Index = heapIndex
		catalog.heaps[heapIndex] = heap
	}

	for poolIndex, pool := range pools {
		if pool.HeapIndex < 0 || pool.HeapIndex >= len(heaps) {
			return nil, errors.Newf("memory pool %d refers to heap %d, but only %d heaps are present", poolIndex, pool.HeapIndex, len(heaps))
		}
		pool.Index = poolIndex
		catalog.pools[poolIndex] = pool
	}

	return catalog, nil
}

// NewCatalogFromProperties builds a Catalog from the memory properties reported by a physical device
func NewCatalogFromProperties(properties *core1_0.PhysicalDeviceMemoryProperties, maxAllocationSize int) (*Catalog, error) {
	if properties == nil {
		return nil, errors.New("physical device memory properties were nil")
	}

	pools := make([]MemoryPool, 0, len(properties.MemoryTypes))
	for _, memoryType := range properties.MemoryTypes {
		pools = append(pools, MemoryPool{
			PropertyFlags: memoryType.PropertyFlags,
			HeapIndex:     memoryType.HeapIndex,
		})
	}

	heaps := make([]MemoryHeap, 0, len(properties.MemoryHeaps))
	for _, memoryHeap := range properties.MemoryHeaps {
		heaps = append(heaps, MemoryHeap{
			Size:  memoryHeap.Size,
			Flags: memoryHeap.Flags,
		})
	}

	return NewCatalog(pools, heaps, maxAllocationSize)
}

func (c *Catalog) PoolCount() int { return len(c.pools) }
func (c *Catalog) HeapCount() int { return len(c.heaps) }

// MaxAllocationSize is the largest single allocation the device permits. It is math.MaxInt
// when the device reported no limit.
func (c *Catalog) MaxAllocationSize() int { return c.maxAllocationSize }

func (c *Catalog) Pool(poolIndex int) MemoryPool {
	return c.pools[poolIndex]
}

func (c *Catalog) Heap(heapIndex int) MemoryHeap {
	return c.heaps[heapIndex]
}

// PoolHeap returns the heap that the provided pool draws from
func (c *Catalog) PoolHeap(poolIndex int) MemoryHeap {
	return c.heaps[c.pools[poolIndex].HeapIndex]
}

// AllPools returns a mask containing every pool in the catalog
func (c *Catalog) AllPools() PoolMask {
	return AllPools(len(c.pools))
}

// PoolsInHeap returns a mask of every pool drawing from the provided heap
func (c *Catalog) PoolsInHeap(heapIndex int) PoolMask {
	var mask PoolMask
	for _, pool := range c.pools {
		if pool.HeapIndex == heapIndex {
			mask = mask.With(pool.Index)
		}
	}
	return mask
}
