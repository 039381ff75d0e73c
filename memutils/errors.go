package memutils

import "github.com/pkg/errors"

// PowerOfTwoError is the error returned from CheckPow2 or other methods if the number being tested is not a power of two
var PowerOfTwoError error = errors.New("number must be a power of two")

// OverlapError is returned from range validation when two ranges placed in the same memory intersect
var OverlapError error = errors.New("ranges overlap")
