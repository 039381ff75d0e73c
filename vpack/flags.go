package vpack

import "github.com/vkngwrapper/core/v2/common"

// AllocationCreateFlags exposes several options for allocation behavior that can be applied.
type AllocationCreateFlags int32

var allocationCreateFlagsMapping = common.NewFlagStringMapping[AllocationCreateFlags]()

func (f AllocationCreateFlags) Register(str string) {
	allocationCreateFlagsMapping.Register(f, str)
}
func (f AllocationCreateFlags) String() string {
	return allocationCreateFlagsMapping.FlagsToString(f)
}

const (
	// AllocationCreateDontBind instructs the allocator to allocate pool memory and compute offsets
	// for every resource, but not bind them. The caller is expected to bind each resource at
	// PackedAllocation.Bindings itself.
	AllocationCreateDontBind AllocationCreateFlags = 1 << iota
	// AllocationCreateStrictPool instructs the allocator to only ever allocate a group from the
	// pool it was assigned. Without this flag, a group too large for its assigned pool's heap is
	// placed in the lowest-indexed other pool that every member is compatible with and whose heap
	// can hold it.
	AllocationCreateStrictPool
)

func init() {
	AllocationCreateDontBind.Register("AllocationCreateDontBind")
	AllocationCreateStrictPool.Register("AllocationCreateStrictPool")
}

// AllocatorCreateFlags indicate specific allocator behaviors to activate or deactivate
type AllocatorCreateFlags int32

var allocatorCreateFlagsMapping = common.NewFlagStringMapping[AllocatorCreateFlags]()

func (f AllocatorCreateFlags) Register(str string) {
	allocatorCreateFlagsMapping.Register(f, str)
}
func (f AllocatorCreateFlags) String() string {
	return allocatorCreateFlagsMapping.FlagsToString(f)
}

const (
	// AllocatorCreateExternallySynchronized ensures that this allocator will not be synchronized
	// internally. The consumer must guarantee it is used from only one thread at a time or is
	// synchronized by some other mechanism.
	AllocatorCreateExternallySynchronized AllocatorCreateFlags = 1 << iota
)

func init() {
	AllocatorCreateExternallySynchronized.Register("AllocatorCreateExternallySynchronized")
}

// AllocationCreateInfo describes how a batch of resources should be placed
type AllocationCreateInfo struct {
	Flags AllocationCreateFlags
	// Preferences is the ordered list of property flag combinations to try
	Preferences PropertyPreference
	// Priority is forwarded to the device as a residency hint when the device supports it. It
	// must be between 0 and 1.
	Priority float32
	// Name is optional and only used to identify the batch in logs
	Name string
}
