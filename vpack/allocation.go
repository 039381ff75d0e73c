package vpack

import (
	"strconv"
	"sync/atomic"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/packing/memutils"
)

// PoolMemory is one memory allocation made from a pool
type PoolMemory[M any] struct {
	PoolIndex int
	Size      int
	Memory    M
	// Resources lists the ids of the resources placed in this memory, in batch order
	Resources []int
	// Offsets holds the byte offset of each resource, parallel to Resources
	Offsets []int
}

// Binding locates one resource inside a PackedAllocation
type Binding struct {
	// MemoryIndex indexes PackedAllocation.Memories
	MemoryIndex int
	Offset      int
	Size        int
}

// PackedAllocation is the result of a successful batch allocation. It owns every pool memory
// in Memories; the caller must call Free exactly once when the resources are destroyed.
type PackedAllocation[M any] struct {
	Memories []PoolMemory[M]
	// Bindings holds one entry per resource id
	Bindings []Binding

	backend MemoryBackend[M]
	freed   atomic.Bool
	bound   bool
}

// Memory returns the memory and offset that the provided resource was placed at
func (a *PackedAllocation[M]) Memory(resourceID int) (M, int) {
	binding := a.Bindings[resourceID]
	return a.Memories[binding.MemoryIndex].Memory, binding.Offset
}

// UniquePoolCount returns the number of distinct pools memory was allocated from
func (a *PackedAllocation[M]) UniquePoolCount() int {
	var pools PoolMask
	for _, memory := range a.Memories {
		pools = pools.With(memory.PoolIndex)
	}
	return pools.Count()
}

// Freed reports whether Free has been called
func (a *PackedAllocation[M]) Freed() bool {
	return a.freed.Load()
}

// Bound reports whether every resource in the allocation has been bound to its memory
func (a *PackedAllocation[M]) Bound() bool {
	return a.bound
}

// MarkBound records that the caller bound every resource of an allocation made with
// AllocationCreateDontBind
func (a *PackedAllocation[M]) MarkBound() {
	a.bound = true
}

// Free releases every pool memory owned by the allocation. Calling Free more than once has
// no effect.
func (a *PackedAllocation[M]) Free() {
	a.release()
}

// release frees the pool memories and reports whether this call was the one that freed them
func (a *PackedAllocation[M]) release() bool {
	if !a.freed.CompareAndSwap(false, true) {
		return false
	}

	for memoryIndex := len(a.Memories) - 1; memoryIndex >= 0; memoryIndex-- {
		memory := a.Memories[memoryIndex]
		a.backend.FreeMemory(memory.PoolIndex, memory.Size, memory.Memory)
	}
	return true
}

// AddStatistics adds the memories and resources of this allocation to stats. Gaps left
// between resources to satisfy alignment are reported as padding.
func (a *PackedAllocation[M]) AddStatistics(stats *memutils.DetailedStatistics) {
	for _, memory := range a.Memories {
		stats.AddMemory(memory.Size)

		end := 0
		for memberIndex, resourceID := range memory.Resources {
			offset := memory.Offsets[memberIndex]
			size := a.Bindings[resourceID].Size

			stats.AddPadding(offset - end)
			stats.AddResource(size)
			end = offset + size
		}
	}
}

// PrintDetailedMap writes a json object describing every memory in the allocation and the
// resources placed in it
func (a *PackedAllocation[M]) PrintDetailedMap(writer *jwriter.Writer) {
	objState := writer.Object()
	defer objState.End()

	var stats memutils.DetailedStatistics
	stats.Clear()
	a.AddStatistics(&stats)

	totalObj := objState.Name("Total").Object()
	stats.PrintJson(&totalObj)
	totalObj.End()

	memoriesObj := objState.Name("Memories").Object()
	defer memoriesObj.End()

	for memoryIndex, memory := range a.Memories {
		memoryObj := memoriesObj.Name(strconv.Itoa(memoryIndex)).Object()
		memoryObj.Name("PoolIndex").Int(memory.PoolIndex)
		memoryObj.Name("TotalBytes").Int(memory.Size)

		resourceArray := memoryObj.Name("Resources").Array()
		for memberIndex, resourceID := range memory.Resources {
			resourceObj := resourceArray.Object()
			resourceObj.Name("Id").Int(resourceID)
			resourceObj.Name("Offset").Int(memory.Offsets[memberIndex])
			resourceObj.Name("Size").Int(a.Bindings[resourceID].Size)
			resourceObj.End()
		}
		resourceArray.End()

		memoryObj.End()
	}
}

// BuildStatsString returns the json written by PrintDetailedMap
func (a *PackedAllocation[M]) BuildStatsString() string {
	writer := jwriter.NewWriter()
	a.PrintDetailedMap(&writer)
	return string(writer.Bytes())
}

type allocationBuilder[M any] struct {
	backend  MemoryBackend[M]
	memories []PoolMemory[M]
	bindings []Binding
}

func newAllocationBuilder[M any](backend MemoryBackend[M], resourceCount int) *allocationBuilder[M] {
	return &allocationBuilder[M]{
		backend:  backend,
		bindings: make([]Binding, resourceCount),
	}
}

func (b *allocationBuilder[M]) addMemory(memory PoolMemory[M]) int {
	b.memories = append(b.memories, memory)
	return len(b.memories) - 1
}

// release frees every memory the builder owns, most recent first
func (b *allocationBuilder[M]) release() {
	for memoryIndex := len(b.memories) - 1; memoryIndex >= 0; memoryIndex-- {
		memory := b.memories[memoryIndex]
		b.backend.FreeMemory(memory.PoolIndex, memory.Size, memory.Memory)
	}
	b.memories = nil
}

// finish hands ownership of every memory to a new PackedAllocation
func (b *allocationBuilder[M]) finish(bound bool) *PackedAllocation[M] {
	allocation := &PackedAllocation[M]{
		Memories: b.memories,
		Bindings: b.bindings,
		backend:  b.backend,
		bound:    bound,
	}
	b.memories = nil
	return allocation
}
