package memutils

import (
	"math"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
)

// Statistics summarizes a set of packed memory allocations: how many pool memories were
// allocated and how many resources were bound into them
type Statistics struct {
	MemoryCount   int
	ResourceCount int
	MemoryBytes   int
	ResourceBytes int
}

func (s *Statistics) Clear() {
	s.MemoryCount = 0
	s.ResourceCount = 0
	s.MemoryBytes = 0
	s.ResourceBytes = 0
}

func (s *Statistics) AddStatistics(other *Statistics) {
	s.MemoryCount += other.MemoryCount
	s.ResourceCount += other.ResourceCount
	s.MemoryBytes += other.MemoryBytes
	s.ResourceBytes += other.ResourceBytes
}

// DetailedStatistics extends Statistics with size extremes and the alignment padding left
// between resources
type DetailedStatistics struct {
	Statistics
	PaddingCount    int
	PaddingBytes    int
	ResourceSizeMin int
	ResourceSizeMax int
	PaddingSizeMin  int
	PaddingSizeMax  int
}

func (s *DetailedStatistics) Clear() {
	s.Statistics.Clear()
	s.PaddingCount = 0
	s.PaddingBytes = 0
	s.ResourceSizeMin = math.MaxInt
	s.ResourceSizeMax = 0
	s.PaddingSizeMin = math.MaxInt
	s.PaddingSizeMax = 0
}

func (s *DetailedStatistics) AddMemory(size int) {
	s.MemoryCount++
	s.MemoryBytes += size
}

// AddPadding records a gap of size bytes. Zero-sized gaps are ignored.
func (s *DetailedStatistics) AddPadding(size int) {
	if size <= 0 {
		return
	}

	s.PaddingCount++
	s.PaddingBytes += size

	if size < s.PaddingSizeMin {
		s.PaddingSizeMin = size
	}

	if size > s.PaddingSizeMax {
		s.PaddingSizeMax = size
	}
}

func (s *DetailedStatistics) AddResource(size int) {
	s.ResourceCount++
	s.ResourceBytes += size

	if size < s.ResourceSizeMin {
		s.ResourceSizeMin = size
	}

	if size > s.ResourceSizeMax {
		s.ResourceSizeMax = size
	}
}

func (s *DetailedStatistics) AddDetailedStatistics(other *DetailedStatistics) {
	s.Statistics.AddStatistics(&other.Statistics)
	s.PaddingCount += other.PaddingCount
	s.PaddingBytes += other.PaddingBytes

	if other.PaddingSizeMin < s.PaddingSizeMin {
		s.PaddingSizeMin = other.PaddingSizeMin
	}

	if other.PaddingSizeMax > s.PaddingSizeMax {
		s.PaddingSizeMax = other.PaddingSizeMax
	}

	if other.ResourceSizeMin < s.ResourceSizeMin {
		s.ResourceSizeMin = other.ResourceSizeMin
	}

	if other.ResourceSizeMax > s.ResourceSizeMax {
		s.ResourceSizeMax = other.ResourceSizeMax
	}
}

// PrintJson writes the statistics into an open json object
func (s *DetailedStatistics) PrintJson(json *jwriter.ObjectState) {
	json.Name("MemoryCount").Int(s.MemoryCount)
	json.Name("ResourceCount").Int(s.ResourceCount)
	json.Name("MemoryBytes").Int(s.MemoryBytes)
	json.Name("ResourceBytes").Int(s.ResourceBytes)
	json.Name("PaddingCount").Int(s.PaddingCount)
	json.Name("PaddingBytes").Int(s.PaddingBytes)

	if s.ResourceCount > 0 {
		json.Name("ResourceSizeMin").Int(s.ResourceSizeMin)
		json.Name("ResourceSizeMax").Int(s.ResourceSizeMax)
	}

	if s.PaddingCount > 0 {
		json.Name("PaddingSizeMin").Int(s.PaddingSizeMin)
		json.Name("PaddingSizeMax").Int(s.PaddingSizeMax)
	}
}
