package vpack

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/common"
	"golang.org/x/exp/slog"
)

// AllocateRequest describes one pool allocation the executor needs from a MemoryBackend
type AllocateRequest struct {
	PoolIndex int
	Size      int
	// Priority is only meaningful when UsePriority is true
	Priority    float32
	UsePriority bool
}

//go:generate mockgen -source execute.go -destination ./mocks/backend.go -package mocks

// MemoryBackend performs the real device memory operations on behalf of Execute. M is the
// handle type the backend hands out for an allocation.
type MemoryBackend[M any] interface {
	// AllocateMemory allocates request.Size bytes from request.PoolIndex. On failure it must
	// return the result code reported by the device along with a non-nil error.
	AllocateMemory(request AllocateRequest) (M, common.VkResult, error)
	// FreeMemory releases memory previously returned by AllocateMemory
	FreeMemory(poolIndex int, size int, memory M)
	// SupportsPriority reports whether AllocateRequest.Priority will be passed to the device
	SupportsPriority() bool
}

// BindFunc binds the resource with the provided id to memory at offset
type BindFunc[M any] func(resourceID int, memory M, offset int) (common.VkResult, error)

// Execute allocates one pool memory per packed group and binds every resource into it.
//
// Execute is all-or-nothing. If any allocation or bind fails, every memory allocated during
// this call is freed, in reverse order, before the error is returned. On success the caller
// owns the returned PackedAllocation.
//
// bind may be nil when createInfo.Flags contains AllocationCreateDontBind.
func Execute[M any](
	logger *slog.Logger,
	catalog *Catalog,
	requirements []ResourceRequirement,
	groups []PackedGroup,
	backend MemoryBackend[M],
	createInfo AllocationCreateInfo,
	bind BindFunc[M],
) (allocation *PackedAllocation[M], err error) {
	if !(createInfo.Priority >= 0 && createInfo.Priority <= 1) {
		return nil, errors.Newf("allocation priority must be between 0 and 1, but was %f", createInfo.Priority)
	}

	dontBind := createInfo.Flags&AllocationCreateDontBind != 0
	if bind == nil && !dontBind {
		return nil, errors.New("a bind function must be provided unless AllocationCreateDontBind is set")
	}

	usePriority := backend.SupportsPriority()

	builder := newAllocationBuilder[M](backend, len(requirements))
	defer func() {
		if err != nil {
			logger.Debug("vpack::Execute rolling back", slog.Int("MemoryCount", len(builder.memories)))
			builder.release()
		}
	}()

	for _, group := range groups {
		if group.TotalSize >= catalog.MaxAllocationSize() {
			return nil, &TotalSizeExceedsAllowedError{
				Size:              group.TotalSize,
				MaxAllocationSize: catalog.MaxAllocationSize(),
			}
		}

		memory, poolIndex, err := allocateGroup(logger, catalog, group, backend, createInfo, usePriority)
		if err != nil {
			return nil, err
		}

		memoryIndex := builder.addMemory(PoolMemory[M]{
			PoolIndex: poolIndex,
			Size:      group.TotalSize,
			Memory:    memory,
			Resources: group.Resources,
			Offsets:   group.Offsets,
		})

		for memberIndex, resourceID := range group.Resources {
			offset := group.Offsets[memberIndex]
			builder.bindings[resourceID] = Binding{
				MemoryIndex: memoryIndex,
				Offset:      offset,
				Size:        requirements[resourceID].Size,
			}

			if dontBind {
				continue
			}

			res, err := bind(resourceID, memory, offset)
			if err != nil {
				return nil, errors.Wrapf(ResultError(res, err), "failed to bind resource %d at offset %d in memory pool %d", resourceID, offset, poolIndex)
			}
		}
	}

	return builder.finish(!dontBind), nil
}

func candidatePools(group PackedGroup, strict bool) []int {
	pools := []int{group.PoolIndex}
	if strict {
		return pools
	}

	group.Candidates.Without(group.PoolIndex).ForEach(func(poolIndex int) {
		pools = append(pools, poolIndex)
	})
	return pools
}

// allocateGroup tries the assigned pool of group first and then its other candidates in
// ascending order, skipping pools whose heap cannot hold the group. The first pool with a
// large enough heap is the only one allocated from; its failure is returned as-is.
func allocateGroup[M any](
	logger *slog.Logger,
	catalog *Catalog,
	group PackedGroup,
	backend MemoryBackend[M],
	createInfo AllocationCreateInfo,
	usePriority bool,
) (M, int, error) {
	var noMemory M

	for _, poolIndex := range candidatePools(group, createInfo.Flags&AllocationCreateStrictPool != 0) {
		heap := catalog.PoolHeap(poolIndex)
		if group.TotalSize >= heap.Size {
			logger.Debug("vpack::Execute heap too small",
				slog.Int("PoolIndex", poolIndex),
				slog.Int("HeapIndex", heap.Index),
				slog.Int("Size", group.TotalSize),
			)
			continue
		}

		if poolIndex != group.PoolIndex {
			logger.Debug("vpack::Execute fell back to candidate pool",
				slog.Int("AssignedPool", group.PoolIndex),
				slog.Int("PoolIndex", poolIndex),
			)
		}

		memory, res, err := backend.AllocateMemory(AllocateRequest{
			PoolIndex:   poolIndex,
			Size:        group.TotalSize,
			Priority:    createInfo.Priority,
			UsePriority: usePriority,
		})
		if err != nil {
			return noMemory, -1, errors.Wrapf(ResultError(res, err), "failed to allocate %d bytes from memory pool %d", group.TotalSize, poolIndex)
		}

		return memory, poolIndex, nil
	}

	return noMemory, -1, &TooBigForAllSupportedHeapsError{Size: group.TotalSize}
}
