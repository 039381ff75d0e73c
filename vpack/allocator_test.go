package vpack_test

import (
	"bytes"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/packing/vpack"
	"github.com/vkngwrapper/packing/vpack/mocks"
	"golang.org/x/exp/slog"
)

func TestNewAllocator_NilArguments(t *testing.T) {
	ctrl := gomock.NewController(t)
	backend := mocks.NewMockMemoryBackend[*testMemory](ctrl)
	catalog := readyCatalog(t, catalogSetup{})

	_, err := vpack.NewAllocator[*testMemory](nil, catalog, backend, vpack.AllocatorCreateOptions{})
	require.Error(t, err)

	_, err = vpack.NewAllocator[*testMemory](discardLogger(), nil, backend, vpack.AllocatorCreateOptions{})
	require.Error(t, err)

	_, err = vpack.NewAllocator[*testMemory](discardLogger(), catalog, nil, vpack.AllocatorCreateOptions{})
	require.Error(t, err)

	allocator, err := vpack.NewAllocator[*testMemory](discardLogger(), catalog, backend, vpack.AllocatorCreateOptions{})
	require.NoError(t, err)
	require.Same(t, catalog, allocator.Catalog())
}

func TestAllocator_AllocateAndFree(t *testing.T) {
	ctrl := gomock.NewController(t)
	backend := mocks.NewMockMemoryBackend[*testMemory](ctrl)
	catalog := readyCatalog(t, catalogSetup{})

	allocator, err := vpack.NewAllocator[*testMemory](discardLogger(), catalog, backend, vpack.AllocatorCreateOptions{
		Flags: vpack.AllocatorCreateExternallySynchronized,
	})
	require.NoError(t, err)

	deviceMemory := &testMemory{id: 1}
	hostMemory := &testMemory{id: 2}

	backend.EXPECT().SupportsPriority().Return(true)
	gomock.InOrder(
		backend.EXPECT().AllocateMemory(vpack.AllocateRequest{PoolIndex: 0, Size: 1000, Priority: 1, UsePriority: true}).Return(deviceMemory, core1_0.VKSuccess, nil),
		backend.EXPECT().AllocateMemory(vpack.AllocateRequest{PoolIndex: 1, Size: 300, Priority: 1, UsePriority: true}).Return(hostMemory, core1_0.VKSuccess, nil),
	)

	binds := newBindRecorder()
	allocation, err := allocator.Allocate(vpack.AllocationCreateInfo{
		Preferences: deviceThenHost,
		Priority:    1,
	}, deviceAndHostBatch, binds.Bind)
	require.NoError(t, err)
	require.Len(t, allocation.Memories, 2)
	require.Same(t, deviceMemory, binds.bound[0].memory)
	require.Same(t, hostMemory, binds.bound[1].memory)

	gomock.InOrder(
		backend.EXPECT().FreeMemory(1, 300, hostMemory),
		backend.EXPECT().FreeMemory(0, 1000, deviceMemory),
	)
	require.True(t, allocator.Free(allocation))
	require.False(t, allocator.Free(allocation))
}

func TestAllocator_AssignmentFailureIsLogged(t *testing.T) {
	ctrl := gomock.NewController(t)
	backend := mocks.NewMockMemoryBackend[*testMemory](ctrl)
	catalog := readyCatalog(t, catalogSetup{})

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs))

	allocator, err := vpack.NewAllocator[*testMemory](logger, catalog, backend, vpack.AllocatorCreateOptions{})
	require.NoError(t, err)

	// Nothing reaches the backend when no pool can be assigned
	_, err = allocator.Allocate(vpack.AllocationCreateInfo{
		Preferences: vpack.PropertyPreference{core1_0.MemoryPropertyDeviceLocal},
	}, deviceAndHostBatch, newBindRecorder().Bind)

	var incompatible *vpack.IncompatibleResourceError
	require.ErrorAs(t, err, &incompatible)
	require.Equal(t, 1, incompatible.ResourceID)
	require.True(t, vpack.IsRetryable(err))

	require.Contains(t, logs.String(), "Allocator::Assign failed")
}

func TestAllocator_Assign(t *testing.T) {
	ctrl := gomock.NewController(t)
	backend := mocks.NewMockMemoryBackend[*testMemory](ctrl)
	catalog := readyCatalog(t, catalogSetup{})

	var logs bytes.Buffer
	logger := slog.New(slog.HandlerOptions{Level: slog.LevelDebug}.NewTextHandler(&logs))

	allocator, err := vpack.NewAllocator[*testMemory](logger, catalog, backend, vpack.AllocatorCreateOptions{
		Strategy: vpack.ExhaustiveGrouping{},
	})
	require.NoError(t, err)

	assignment, err := allocator.Assign(deviceThenHost, deviceAndHostBatch)
	require.NoError(t, err)
	require.Equal(t, []int{0, 1}, assignment.Pools)
	require.Equal(t, 2, assignment.UniquePoolCount())

	require.Contains(t, logs.String(), "Allocator::Assign succeeded")
	require.Contains(t, logs.String(), "Objects got assigned to 2 unique memory pools.")
}

func TestAllocator_NameIsLogged(t *testing.T) {
	ctrl := gomock.NewController(t)
	backend := mocks.NewMockMemoryBackend[*testMemory](ctrl)
	catalog := readyCatalog(t, catalogSetup{})

	var logs bytes.Buffer
	logger := slog.New(slog.HandlerOptions{Level: slog.LevelDebug}.NewTextHandler(&logs))

	allocator, err := vpack.NewAllocator[*testMemory](logger, catalog, backend, vpack.AllocatorCreateOptions{})
	require.NoError(t, err)

	_, err = allocator.Allocate(vpack.AllocationCreateInfo{
		Preferences: vpack.PropertyPreference{core1_0.MemoryPropertyDeviceLocal},
		Name:        "terrain",
	}, deviceAndHostBatch, newBindRecorder().Bind)
	require.Error(t, err)

	require.Contains(t, logs.String(), "Allocator::Assign failed")
	require.Contains(t, logs.String(), "Name=terrain")
}
