package vpack

import (
	"math/bits"
	"strconv"
	"strings"
)

// PoolMask is a set of memory pools. Bit i is set when pool i is a member, which is the same
// convention Vulkan uses for core1_0.MemoryRequirements.MemoryTypeBits
type PoolMask uint32

// AllPools returns a mask containing pools 0 through count-1
func AllPools(count int) PoolMask {
	if count >= 32 {
		return PoolMask(^uint32(0))
	}
	return PoolMask(uint32(1)<<count - 1)
}

// PoolBit returns a mask containing only the provided pool
func PoolBit(poolIndex int) PoolMask {
	return PoolMask(uint32(1) << poolIndex)
}

func (m PoolMask) Has(poolIndex int) bool {
	return m&PoolBit(poolIndex) != 0
}

func (m PoolMask) With(poolIndex int) PoolMask {
	return m | PoolBit(poolIndex)
}

func (m PoolMask) Without(poolIndex int) PoolMask {
	return m &^ PoolBit(poolIndex)
}

func (m PoolMask) IsEmpty() bool {
	return m == 0
}

// Lowest returns the lowest pool index in the mask, or -1 if the mask is empty
func (m PoolMask) Lowest() int {
	if m == 0 {
		return -1
	}
	return bits.TrailingZeros32(uint32(m))
}

// Count returns the number of pools in the mask
func (m PoolMask) Count() int {
	return bits.OnesCount32(uint32(m))
}

// ForEach calls visit with every pool index in the mask, lowest first
func (m PoolMask) ForEach(visit func(poolIndex int)) {
	remaining := uint32(m)
	for remaining != 0 {
		index := bits.TrailingZeros32(remaining)
		visit(index)
		remaining &= remaining - 1
	}
}

// Indices returns every pool index in the mask, lowest first
func (m PoolMask) Indices() []int {
	indices := make([]int, 0, m.Count())
	m.ForEach(func(poolIndex int) {
		indices = append(indices, poolIndex)
	})
	return indices
}

func (m PoolMask) String() string {
	if m == 0 {
		return "{}"
	}

	var sb strings.Builder
	sb.WriteRune('{')
	first := true
	m.ForEach(func(poolIndex int) {
		if !first {
			sb.WriteString(", ")
		}
		first = false
		sb.WriteString(strconv.Itoa(poolIndex))
	})
	sb.WriteRune('}')
	return sb.String()
}
