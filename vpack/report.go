package vpack

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

func digitCount(n int) int {
	return len(strconv.Itoa(n))
}

// WriteAssignmentTable renders a table of the pools in catalog against the preference entries
// they satisfy and the resources they are compatible with.
//
// Each pool is one row. A "#" in a preference column means the pool satisfies that entry, and
// a "#" in a resource column means the resource may be placed in the pool. When assigned is
// not nil, the pool each resource was assigned to is marked with "A". Entries of -1 in
// assigned are treated as unassigned, so partial results can be rendered.
func WriteAssignmentTable(w io.Writer, catalog *Catalog, preferences PropertyPreference, requirements []ResourceRequirement, assigned []int) error {
	_, err := io.WriteString(w, RenderAssignmentTable(catalog, preferences, requirements, assigned))
	return err
}

// RenderAssignmentTable returns the table written by WriteAssignmentTable
func RenderAssignmentTable(catalog *Catalog, preferences PropertyPreference, requirements []ResourceRequirement, assigned []int) string {
	if len(preferences) == 0 && len(requirements) == 0 {
		return ""
	}

	poolWidth := digitCount(catalog.PoolCount())
	preferenceWidth := digitCount(len(preferences))
	resourceWidth := digitCount(len(requirements))

	var sb strings.Builder
	sb.WriteString("Label:\n")
	sb.WriteString("    <mi>: memory pool <i>\n")
	if len(preferences) > 0 {
		sb.WriteString("    <px>: property <i>\n")
	}
	if len(requirements) > 0 {
		sb.WriteString("    <oi>: object <i>\n")
	}
	if assigned != nil {
		sb.WriteString("    \"A\": assigned\n")
	}
	sb.WriteString("    \"#\": supported\n")
	sb.WriteString("    \".\": not supported\n")

	var line strings.Builder
	for preferenceIndex := range preferences {
		fmt.Fprintf(&line, "p%-*d ", preferenceWidth, preferenceIndex)
	}

	padding := 2 + poolWidth
	if len(preferences) > 0 {
		padding += 2
	}
	if len(requirements) > 0 {
		padding += 2
	}
	line.WriteString(strings.Repeat(" ", padding))

	for resourceID := range requirements {
		fmt.Fprintf(&line, "o%-*d ", resourceWidth, resourceID)
	}
	sb.WriteString(strings.TrimRight(line.String(), " "))
	sb.WriteRune('\n')

	for poolIndex := 0; poolIndex < catalog.PoolCount(); poolIndex++ {
		line.Reset()
		flags := catalog.Pool(poolIndex).PropertyFlags

		for _, required := range preferences {
			mark := '.'
			if flags&required == required {
				mark = '#'
			}
			fmt.Fprintf(&line, "%-*c ", preferenceWidth+1, mark)
		}
		if len(preferences) > 0 {
			line.WriteString("| ")
		}

		fmt.Fprintf(&line, "m%-*d ", poolWidth, poolIndex)
		if len(requirements) > 0 {
			line.WriteString("| ")
		}

		for resourceID, requirement := range requirements {
			mark := '.'
			if assigned != nil && resourceID < len(assigned) && assigned[resourceID] == poolIndex {
				mark = 'A'
			} else if requirement.MemoryTypeBits.Has(poolIndex) {
				mark = '#'
			}
			fmt.Fprintf(&line, "%-*c ", resourceWidth+1, mark)
		}

		sb.WriteString(strings.TrimRight(line.String(), " "))
		sb.WriteRune('\n')
	}

	hasLabels := false
	for _, requirement := range requirements {
		if requirement.Label != "" {
			hasLabels = true
			break
		}
	}

	if hasLabels {
		for resourceID, requirement := range requirements {
			fmt.Fprintf(&sb, "o%d: %q\n", resourceID, requirement.Label)
		}
	}

	return sb.String()
}

// DescribeAssignmentResult renders the outcome of Assign. On success it reports the number of
// distinct pools used followed by the assignment table. On failure it reports the error
// followed by the table of what could have been supported.
func DescribeAssignmentResult(catalog *Catalog, preferences PropertyPreference, requirements []ResourceRequirement, assignment *Assignment, err error) string {
	var sb strings.Builder

	if err != nil {
		fmt.Fprintf(&sb, "Assignment result: failure\n%s\n", err.Error())

		var incompatible *IncompatibleResourceError
		if errors.As(err, &incompatible) && incompatible.Diagnostics != "" {
			sb.WriteString(incompatible.Diagnostics)
			return sb.String()
		}

		sb.WriteString(RenderAssignmentTable(catalog, preferences, requirements, nil))
		return sb.String()
	}

	count := assignment.UniquePoolCount()
	plural := "s"
	if count == 1 {
		plural = ""
	}
	fmt.Fprintf(&sb, "Assignment result: success. Objects got assigned to %d unique memory pool%s.\n", count, plural)
	sb.WriteString(RenderAssignmentTable(catalog, preferences, requirements, assignment.Pools))

	return sb.String()
}

const mebibyte = 1024 * 1024

// DescribeCatalog lists every heap in catalog along with the pools that draw from it
func DescribeCatalog(catalog *Catalog) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Available memory heaps: (%d heaps, %d memory pools)\n", catalog.HeapCount(), catalog.PoolCount())
	for heapIndex := 0; heapIndex < catalog.HeapCount(); heapIndex++ {
		heap := catalog.Heap(heapIndex)

		heapFlags := "no heap flags"
		if heap.Flags != 0 {
			heapFlags = fmt.Sprintf("heap flags [%s]", heap.Flags.String())
		}

		fmt.Fprintf(&sb, "    %d -> %dMiB with %s and attributed memory pools:\n", heapIndex, heap.Size/mebibyte, heapFlags)

		catalog.PoolsInHeap(heapIndex).ForEach(func(poolIndex int) {
			flags := catalog.Pool(poolIndex).PropertyFlags
			if flags == 0 {
				fmt.Fprintf(&sb, "        %d -> <no flags>\n", poolIndex)
			} else {
				fmt.Fprintf(&sb, "        %d -> [%s]\n", poolIndex, flags.String())
			}
		})
	}

	if catalog.MaxAllocationSize() < catalogUnlimited {
		fmt.Fprintf(&sb, "Maximum allocation size: %d bytes\n", catalog.MaxAllocationSize())
	}

	return sb.String()
}
