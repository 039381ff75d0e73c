package vpack

import (
	"bytes"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v2/core1_0"
)

func TestWriteAssignmentTable_Assigned(t *testing.T) {
	catalog := threePoolCatalog(t)

	var buf bytes.Buffer
	err := WriteAssignmentTable(&buf, catalog, PropertyPreference{core1_0.MemoryPropertyDeviceLocal}, []ResourceRequirement{
		{Size: 1000, Alignment: 256, MemoryTypeBits: 0b111},
		{Size: 500, Alignment: 64, MemoryTypeBits: 0b111},
	}, []int{0, 0})
	require.NoError(t, err)

	require.Equal(t, `Label:
    <mi>: memory pool <i>
    <px>: property <i>
    <oi>: object <i>
    "A": assigned
    "#": supported
    ".": not supported
p0        o0 o1
#  | m0 | A  A
.  | m1 | #  #
#  | m2 | #  #
`, buf.String())
}

func TestRenderAssignmentTable_Unassigned(t *testing.T) {
	catalog := threePoolCatalog(t)

	table := RenderAssignmentTable(catalog, PropertyPreference{
		core1_0.MemoryPropertyDeviceLocal,
		core1_0.MemoryPropertyHostVisible,
	}, []ResourceRequirement{
		{Size: 1000, Alignment: 256, MemoryTypeBits: 0b010, Label: "staging"},
		{Size: 500, Alignment: 64, MemoryTypeBits: 0b100, Label: "vertices"},
	}, nil)

	require.Equal(t, `Label:
    <mi>: memory pool <i>
    <px>: property <i>
    <oi>: object <i>
    "#": supported
    ".": not supported
p0 p1        o0 o1
#  .  | m0 | .  .
.  #  | m1 | #  .
#  #  | m2 | .  #
o0: "staging"
o1: "vertices"
`, table)
}

func TestRenderAssignmentTable_Partial(t *testing.T) {
	catalog := threePoolCatalog(t)

	table := RenderAssignmentTable(catalog, PropertyPreference{core1_0.MemoryPropertyHostVisible}, []ResourceRequirement{
		{Size: 16, Alignment: 16, MemoryTypeBits: 0b110},
		{Size: 16, Alignment: 16, MemoryTypeBits: 0b001},
	}, []int{1, -1})

	require.Contains(t, table, ".  | m0 | .  #\n")
	require.Contains(t, table, "#  | m1 | A  .\n")
}

func TestRenderAssignmentTable_Empty(t *testing.T) {
	catalog := threePoolCatalog(t)
	require.Equal(t, "", RenderAssignmentTable(catalog, nil, nil, nil))
}

func TestDescribeAssignmentResult(t *testing.T) {
	catalog := threePoolCatalog(t)
	preferences := PropertyPreference{core1_0.MemoryPropertyDeviceLocal}
	requirements := []ResourceRequirement{
		{Size: 1000, Alignment: 256, MemoryTypeBits: 0b111},
		{Size: 500, Alignment: 64, MemoryTypeBits: 0b111},
	}

	assignment, err := Assign(catalog, preferences, requirements, nil)
	require.NoError(t, err)

	success := DescribeAssignmentResult(catalog, preferences, requirements, assignment, nil)
	require.Contains(t, success, "Assignment result: success. Objects got assigned to 1 unique memory pool.\n")
	require.Contains(t, success, "#  | m0 | A  A\n")

	failure := DescribeAssignmentResult(catalog, preferences, requirements, nil, errors.Wrap(ErrAllPropertiesUnsupported, "assigning"))
	require.Contains(t, failure, "Assignment result: failure\n")
	require.Contains(t, failure, "no memory pool supports any of the requested property sets")
	require.Contains(t, failure, "#  | m0 | #  #\n")
}

func TestDescribeCatalog(t *testing.T) {
	catalog, err := NewCatalog([]MemoryPool{
		{PropertyFlags: core1_0.MemoryPropertyDeviceLocal, HeapIndex: 0},
		{PropertyFlags: 0, HeapIndex: 1},
		{PropertyFlags: core1_0.MemoryPropertyHostVisible, HeapIndex: 1},
	}, []MemoryHeap{
		{Size: 2048 * 1024 * 1024, Flags: core1_0.MemoryHeapDeviceLocal},
		{Size: 512 * 1024 * 1024},
	}, 1024*1024)
	require.NoError(t, err)

	description := DescribeCatalog(catalog)
	require.Contains(t, description, "Available memory heaps: (2 heaps, 3 memory pools)\n")
	require.Contains(t, description, "    0 -> 2048MiB with heap flags [")
	require.Contains(t, description, "    1 -> 512MiB with no heap flags and attributed memory pools:\n")
	require.Contains(t, description, "        1 -> <no flags>\n")
	require.Contains(t, description, "Maximum allocation size: 1048576 bytes\n")
}
