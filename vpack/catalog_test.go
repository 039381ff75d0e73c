package vpack

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v2/core1_0"
)

const testHeapSize = 1024 * 1024 * 1024

// threePoolCatalog returns pools {DeviceLocal}, {HostVisible} and {DeviceLocal, HostVisible}
func threePoolCatalog(t *testing.T) *Catalog {
	catalog, err := NewCatalog([]MemoryPool{
		{PropertyFlags: core1_0.MemoryPropertyDeviceLocal, HeapIndex: 0},
		{PropertyFlags: core1_0.MemoryPropertyHostVisible, HeapIndex: 1},
		{PropertyFlags: core1_0.MemoryPropertyDeviceLocal | core1_0.MemoryPropertyHostVisible, HeapIndex: 0},
	}, []MemoryHeap{
		{Size: testHeapSize, Flags: core1_0.MemoryHeapDeviceLocal},
		{Size: testHeapSize},
	}, 0)
	require.NoError(t, err)
	return catalog
}

func uniformCatalog(t *testing.T, poolCount int) *Catalog {
	pools := make([]MemoryPool, poolCount)
	for i := range pools {
		pools[i] = MemoryPool{PropertyFlags: core1_0.MemoryPropertyDeviceLocal}
	}

	catalog, err := NewCatalog(pools, []MemoryHeap{{Size: testHeapSize}}, 0)
	require.NoError(t, err)
	return catalog
}

func TestNewCatalog(t *testing.T) {
	catalog := threePoolCatalog(t)

	require.Equal(t, 3, catalog.PoolCount())
	require.Equal(t, 2, catalog.HeapCount())
	require.Equal(t, math.MaxInt, catalog.MaxAllocationSize())
	require.Equal(t, 2, catalog.Pool(2).Index)
	require.Equal(t, 1, catalog.PoolHeap(1).Index)
	require.Equal(t, PoolMask(0b101), catalog.PoolsInHeap(0))
	require.Equal(t, PoolMask(0b111), catalog.AllPools())
}

func TestNewCatalog_Invalid(t *testing.T) {
	heaps := []MemoryHeap{{Size: testHeapSize}}

	testCases := map[string]struct {
		pools             []MemoryPool
		heaps             []MemoryHeap
		maxAllocationSize int
	}{
		"NoPools": {
			heaps: heaps,
		},
		"NoHeaps": {
			pools: []MemoryPool{{}},
		},
		"TooManyPools": {
			pools: make([]MemoryPool, 33),
			heaps: heaps,
		},
		"BadHeapIndex": {
			pools: []MemoryPool{{HeapIndex: 1}},
			heaps: heaps,
		},
		"EmptyHeap": {
			pools: []MemoryPool{{}},
			heaps: []MemoryHeap{{Size: 0}},
		},
		"NegativeMaxAllocation": {
			pools:             []MemoryPool{{}},
			heaps:             heaps,
			maxAllocationSize: -1,
		},
	}

	for name, testCase := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := NewCatalog(testCase.pools, testCase.heaps, testCase.maxAllocationSize)
			require.Error(t, err)
		})
	}
}

func TestNewCatalogFromProperties(t *testing.T) {
	catalog, err := NewCatalogFromProperties(&core1_0.PhysicalDeviceMemoryProperties{
		MemoryTypes: []core1_0.MemoryType{
			{PropertyFlags: core1_0.MemoryPropertyDeviceLocal, HeapIndex: 0},
			{PropertyFlags: core1_0.MemoryPropertyHostVisible | core1_0.MemoryPropertyHostCoherent, HeapIndex: 1},
		},
		MemoryHeaps: []core1_0.MemoryHeap{
			{Size: 8000000, Flags: core1_0.MemoryHeapDeviceLocal},
			{Size: 4000000},
		},
	}, 1000000)
	require.NoError(t, err)

	require.Equal(t, 2, catalog.PoolCount())
	require.Equal(t, core1_0.MemoryPropertyHostVisible|core1_0.MemoryPropertyHostCoherent, catalog.Pool(1).PropertyFlags)
	require.Equal(t, 4000000, catalog.PoolHeap(1).Size)
	require.Equal(t, 1000000, catalog.MaxAllocationSize())
}

func TestSupportedPools(t *testing.T) {
	catalog := threePoolCatalog(t)

	supported := SupportedPools(catalog, PropertyPreference{
		core1_0.MemoryPropertyDeviceLocal,
		core1_0.MemoryPropertyHostVisible,
		core1_0.MemoryPropertyDeviceLocal | core1_0.MemoryPropertyHostVisible,
		core1_0.MemoryPropertyHostCached,
		0,
	})

	require.Equal(t, []PoolMask{0b101, 0b110, 0b100, 0, 0b111}, supported)
}
