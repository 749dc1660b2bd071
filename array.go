package landcover

import (
	"cmp"
	"fmt"
	"math"
	"slices"
)

// A DataType is the element type of an Array when it is written.
type DataType int

// Data types.
const (
	Int32 DataType = iota
	Int64
)

func (t DataType) String() string {
	switch t {
	case Int32:
		return "Int32"
	case Int64:
		return "Int64"
	default:
		return fmt.Sprintf("DataType(%d)", int(t))
	}
}

// An Array is a row-major grid of integer pixel values.
type Array struct {
	Width    int
	Height   int
	DataType DataType
	Data     []int64
}

// A ValueCount is a pixel value and the number of times it occurs.
type ValueCount struct {
	Value int64
	Count int
}

// NewArray returns a new zero-filled Array.
func NewArray(width, height int) *Array {
	return &Array{
		Width:  width,
		Height: height,
		Data:   make([]int64, width*height),
	}
}

// At returns the value at (x, y).
func (a *Array) At(x, y int) int64 {
	return a.Data[y*a.Width+x]
}

// Set sets the value at (x, y).
func (a *Array) Set(x, y int, value int64) {
	a.Data[y*a.Width+x] = value
}

// Clone returns a deep copy of a.
func (a *Array) Clone() *Array {
	return &Array{
		Width:    a.Width,
		Height:   a.Height,
		DataType: a.DataType,
		Data:     slices.Clone(a.Data),
	}
}

// Keep returns a copy of a with every value not in values replaced by zero.
func (a *Array) Keep(values ...int64) *Array {
	result := a.Clone()
	for i, value := range result.Data {
		if !slices.Contains(values, value) {
			result.Data[i] = 0
		}
	}
	return result
}

// Replace replaces every occurrence of from with to.
func (a *Array) Replace(from, to int64) {
	for i, value := range a.Data {
		if value == from {
			a.Data[i] = to
		}
	}
}

// ClampNegative replaces every negative value with zero.
func (a *Array) ClampNegative() {
	for i, value := range a.Data {
		if value < 0 {
			a.Data[i] = 0
		}
	}
}

// Unique returns the distinct values in a and their counts, sorted by value.
func (a *Array) Unique() []ValueCount {
	counts := make(map[int64]int)
	for _, value := range a.Data {
		counts[value]++
	}
	result := make([]ValueCount, 0, len(counts))
	for value, count := range counts {
		result = append(result, ValueCount{Value: value, Count: count})
	}
	slices.SortFunc(result, func(a, b ValueCount) int {
		return cmp.Compare(a.Value, b.Value)
	})
	return result
}

// fitsInt32 returns whether every value in a can be represented as an int32.
func (a *Array) fitsInt32() bool {
	for _, value := range a.Data {
		if value < math.MinInt32 || math.MaxInt32 < value {
			return false
		}
	}
	return true
}
