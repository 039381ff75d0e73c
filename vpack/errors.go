package vpack

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
)

// ErrAllPropertiesUnsupported is returned when no memory pool satisfies any entry of the
// property preference list
var ErrAllPropertiesUnsupported = errors.New("no memory pool supports any of the requested property sets")

// ErrMemoryMapFailed is returned when the device reported core1_0.VKErrorMemoryMapFailed
// while allocating
var ErrMemoryMapFailed = errors.New("memory map failed")

// ErrDeviceLost is returned when the device reported core1_0.VKErrorDeviceLost
var ErrDeviceLost = errors.New("device is lost")

// IncompatibleResourceError is returned when a resource's MemoryTypeBits do not intersect
// the pools supported by any preference entry
type IncompatibleResourceError struct {
	ResourceID int
	Label      string
	// Diagnostics is the rendered assignment table at the point of failure
	Diagnostics string
}

func (e *IncompatibleResourceError) Error() string {
	if e.Label != "" {
		return fmt.Sprintf("resource %d (%q) is incompatible with all requested property sets", e.ResourceID, e.Label)
	}
	return fmt.Sprintf("resource %d is incompatible with all requested property sets", e.ResourceID)
}

// TotalSizeExceedsAllowedError is returned when a packed group is at least as large as the
// device's maximum single allocation size. The caller must split the batch.
type TotalSizeExceedsAllowedError struct {
	Size              int
	MaxAllocationSize int
}

func (e *TotalSizeExceedsAllowedError) Error() string {
	return fmt.Sprintf("the total size of %d bytes exceeds the maximum allocation size of %d bytes", e.Size, e.MaxAllocationSize)
}

// TooBigForAllSupportedHeapsError is returned when a packed group is at least as large as the
// heap of every pool that could hold it
type TooBigForAllSupportedHeapsError struct {
	Size int
}

func (e *TooBigForAllSupportedHeapsError) Error() string {
	return fmt.Sprintf("the total size of %d bytes is too big for every supported memory heap", e.Size)
}

// OutOfMemoryKind indicates which memory was exhausted
type OutOfMemoryKind int32

var outOfMemoryKindMapping = make(map[OutOfMemoryKind]string)

func (k OutOfMemoryKind) String() string {
	return outOfMemoryKindMapping[k]
}

const (
	OutOfDeviceMemory OutOfMemoryKind = iota
	OutOfHostMemory
)

func init() {
	outOfMemoryKindMapping[OutOfDeviceMemory] = "OutOfDeviceMemory"
	outOfMemoryKindMapping[OutOfHostMemory] = "OutOfHostMemory"
}

// NotEnoughMemoryError is returned when the device could not satisfy an allocation on any
// candidate pool
type NotEnoughMemoryError struct {
	Kind OutOfMemoryKind
}

func (e *NotEnoughMemoryError) Error() string {
	if e.Kind == OutOfHostMemory {
		return "not enough memory: out of host memory"
	}
	return "not enough memory: out of device memory"
}

// UnknownResultError is returned for any failure result code the allocator does not
// classify more precisely
type UnknownResultError struct {
	Result common.VkResult
	Cause  error
}

func (e *UnknownResultError) Error() string {
	return fmt.Sprintf("unexpected result from the device: %s", e.Result.String())
}

func (e *UnknownResultError) Unwrap() error {
	return e.Cause
}

// ResultError converts a failing result code and the error that accompanied it into one of
// this package's error kinds. It returns nil when err is nil.
func ResultError(res common.VkResult, err error) error {
	if err == nil {
		return nil
	}

	// The driver error stays attached to the classified kinds and shows up with %+v
	switch res {
	case core1_0.VKErrorOutOfDeviceMemory:
		return errors.WithSecondaryError(&NotEnoughMemoryError{Kind: OutOfDeviceMemory}, err)
	case core1_0.VKErrorOutOfHostMemory:
		return errors.WithSecondaryError(&NotEnoughMemoryError{Kind: OutOfHostMemory}, err)
	case core1_0.VKErrorDeviceLost:
		return errors.WithSecondaryError(ErrDeviceLost, err)
	case core1_0.VKErrorMemoryMapFailed:
		return errors.WithSecondaryError(ErrMemoryMapFailed, err)
	}

	return &UnknownResultError{Result: res, Cause: err}
}

func isOutOfMemory(err error) bool {
	var notEnough *NotEnoughMemoryError
	return errors.As(err, &notEnough)
}

// IsRetryable reports whether a failed allocation may succeed if the caller frees memory or
// relaxes the preference list and tries again. Device loss, map failures, unknown results and
// batches that exceed the device's maximum allocation size are not retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrAllPropertiesUnsupported) {
		return true
	}

	var incompatible *IncompatibleResourceError
	var tooBig *TooBigForAllSupportedHeapsError
	return isOutOfMemory(err) || errors.As(err, &incompatible) || errors.As(err, &tooBig)
}
