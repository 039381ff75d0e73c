package vpack

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/packing/vpack/internal/utils"
	"golang.org/x/exp/slog"
)

// AllocatorCreateOptions contains optional settings when creating an Allocator
type AllocatorCreateOptions struct {
	// Flags indicates specific allocator behaviors to activate or deactivate
	Flags AllocatorCreateFlags
	// Strategy decides how resources that share no common pool are grouped. It defaults to
	// GreedyGrouping.
	Strategy GroupingStrategy
}

// Allocator runs the full placement pipeline for batches of resources against one catalog:
// pools are assigned, resources are packed into one allocation request per pool, and the
// requests are allocated and bound through a MemoryBackend
type Allocator[M any] struct {
	logger   *slog.Logger
	catalog  *Catalog
	backend  MemoryBackend[M]
	strategy GroupingStrategy

	mutex utils.OptionalMutex
}

// NewAllocator creates a new Allocator
//
// catalog - The memory capabilities of the device that backend allocates from
//
// backend - Performs the real allocations and frees
//
// options - Optional parameters: it is valid to leave all the fields blank
func NewAllocator[M any](logger *slog.Logger, catalog *Catalog, backend MemoryBackend[M], options AllocatorCreateOptions) (*Allocator[M], error) {
	if logger == nil {
		return nil, errors.New("attempted to create an allocator with a nil logger")
	}
	if catalog == nil {
		return nil, errors.New("attempted to create an allocator with a nil catalog")
	}
	if backend == nil {
		return nil, errors.New("attempted to create an allocator with a nil backend")
	}

	strategy := options.Strategy
	if strategy == nil {
		strategy = GreedyGrouping{}
	}

	allocator := &Allocator[M]{
		logger:   logger,
		catalog:  catalog,
		backend:  backend,
		strategy: strategy,
		mutex: utils.OptionalMutex{
			UseMutex: options.Flags&AllocatorCreateExternallySynchronized == 0,
		},
	}

	logger.Debug("Allocator::New", slog.String("Catalog", DescribeCatalog(catalog)))

	return allocator, nil
}

func (a *Allocator[M]) Catalog() *Catalog { return a.catalog }
func (a *Allocator[M]) Logger() *slog.Logger { return a.logger }

// Assign picks a pool for each resource without allocating anything. It is useful for
// checking in advance how a batch would be placed.
func (a *Allocator[M]) Assign(preferences PropertyPreference, requirements []ResourceRequirement) (*Assignment, error) {
	a.logger.Debug("Allocator::Assign", slog.Int("ResourceCount", len(requirements)))

	assignment, err := Assign(a.catalog, preferences, requirements, a.strategy)
	a.logAssignment("", preferences, requirements, assignment, err)
	return assignment, err
}

func (a *Allocator[M]) logAssignment(name string, preferences PropertyPreference, requirements []ResourceRequirement, assignment *Assignment, err error) {
	if err != nil {
		attrs := []any{
			slog.String("Error", err.Error()),
			slog.String("Diagnostics", DescribeAssignmentResult(a.catalog, preferences, requirements, nil, err)),
		}
		if name != "" {
			attrs = append(attrs, slog.String("Name", name))
		}
		a.logger.Error("Allocator::Assign failed", attrs...)
		return
	}

	if a.logger.Enabled(context.Background(), slog.LevelDebug) {
		attrs := []any{
			slog.String("Diagnostics", DescribeAssignmentResult(a.catalog, preferences, requirements, assignment, nil)),
		}
		if name != "" {
			attrs = append(attrs, slog.String("Name", name))
		}
		a.logger.Debug("Allocator::Assign succeeded", attrs...)
	}
}

// Allocate places every resource in requirements, allocates the pool memories and binds each
// resource with bind. On failure nothing allocated by this call remains allocated.
//
// bind may be nil when createInfo.Flags contains AllocationCreateDontBind.
func (a *Allocator[M]) Allocate(createInfo AllocationCreateInfo, requirements []ResourceRequirement, bind BindFunc[M]) (*PackedAllocation[M], error) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	a.logger.Debug("Allocator::Allocate",
		slog.String("Name", createInfo.Name),
		slog.Int("ResourceCount", len(requirements)),
		slog.String("Flags", createInfo.Flags.String()),
	)

	assignment, err := Assign(a.catalog, createInfo.Preferences, requirements, a.strategy)
	a.logAssignment(createInfo.Name, createInfo.Preferences, requirements, assignment, err)
	if err != nil {
		return nil, err
	}

	groups := Pack(assignment, requirements)

	allocation, err := Execute[M](a.logger, a.catalog, requirements, groups, a.backend, createInfo, bind)
	if err != nil {
		a.logger.Error("Allocator::Allocate failed",
			slog.String("Name", createInfo.Name),
			slog.String("Error", err.Error()),
		)
		return nil, err
	}

	for _, memory := range allocation.Memories {
		a.logger.Debug("Allocator::Allocate memory",
			slog.Int("PoolIndex", memory.PoolIndex),
			slog.Int("Size", memory.Size),
			slog.Int("ResourceCount", len(memory.Resources)),
		)
	}

	return allocation, nil
}

// Free releases every memory owned by allocation. It returns false without doing anything when
// the allocation was already freed.
func (a *Allocator[M]) Free(allocation *PackedAllocation[M]) bool {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if !allocation.release() {
		return false
	}

	a.logger.Debug("Allocator::Free", slog.Int("MemoryCount", len(allocation.Memories)))
	return true
}
