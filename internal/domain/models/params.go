package models

import (
	"fmt"
	"hash/fnv"
	"math"
	"sort"
	"strconv"
)

// ParameterSet maps parameter name to value. Booleans are encoded as 0/1.
// Compared by value for dedup during optimization.
type ParameterSet map[string]float64

// Clone returns a deep copy.
func (ps ParameterSet) Clone() ParameterSet {
	out := make(ParameterSet, len(ps))
	for k, v := range ps {
		out[k] = v
	}
	return out
}

// Get returns the value for name or def when absent.
func (ps ParameterSet) Get(name string, def float64) float64 {
	if v, ok := ps[name]; ok {
		return v
	}
	return def
}

// Bool interprets a parameter as a boolean flag.
func (ps ParameterSet) Bool(name string) bool { return ps[name] != 0 }

// Int returns the value rounded to the nearest integer.
func (ps ParameterSet) Int(name string, def int) int {
	if v, ok := ps[name]; ok {
		return int(math.Round(v))
	}
	return def
}

// Hash returns a stable value hash for caching and dedup.
func (ps ParameterSet) Hash() uint64 {
	keys := make([]string, 0, len(ps))
	for k := range ps {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	h := fnv.New64a()
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{'='})
		h.Write([]byte(strconv.FormatFloat(ps[k], 'g', -1, 64)))
		h.Write([]byte{';'})
	}
	return h.Sum64()
}

// ParameterRange declares the valid range (and grid step) of one parameter.
type ParameterRange struct {
	Name string  `json:"name" validate:"required"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Step float64 `json:"step"`
	Bool bool    `json:"bool,omitempty"`
}

// ParameterSpace is a declared search space.
type ParameterSpace []ParameterRange

// Validate checks that a set lies inside the declared space. Values outside
// their range are rejected, never clamped.
func (sp ParameterSpace) Validate(ps ParameterSet) error {
	byName := make(map[string]ParameterRange, len(sp))
	for _, r := range sp {
		if r.Bool {
			continue
		}
		if r.Max < r.Min {
			return &InvalidParameterError{Name: r.Name, Reason: fmt.Sprintf("range max %v < min %v", r.Max, r.Min)}
		}
		byName[r.Name] = r
	}
	for name, v := range ps {
		r, ok := byName[name]
		if !ok {
			continue // undeclared params are the setup's business, not the space's
		}
		if v < r.Min || v > r.Max {
			return &InvalidParameterError{Name: name, Value: v, Reason: fmt.Sprintf("outside [%v, %v]", r.Min, r.Max)}
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &InvalidParameterError{Name: name, Value: v, Reason: "not finite"}
		}
	}
	return nil
}

// GridSize returns the number of grid points the space spans.
func (sp ParameterSpace) GridSize() int {
	n := 1
	for _, r := range sp {
		n *= r.gridPoints()
	}
	return n
}

func (r ParameterRange) gridPoints() int {
	if r.Bool {
		return 2
	}
	if r.Step <= 0 || r.Max <= r.Min {
		return 1
	}
	return int(math.Floor((r.Max-r.Min)/r.Step)) + 1
}
