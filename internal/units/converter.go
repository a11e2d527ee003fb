// Package units converts between base units and packaging units. Packaging
// conversion always rounds up: under-ordering material is never acceptable.
package units

import (
	"errors"
	"fmt"
	"math"
	"sync"
)

var (
	ErrIncompatibleUnits   = errors.New("incompatible units")
	ErrInvalidPackagingQty = errors.New("packaging size must be positive")
)

// Conversion registers that 1 FromUnit equals Factor ToUnit for a material.
// An empty MaterialCode registers a material-independent conversion.
type Conversion struct {
	MaterialCode string  `json:"material_code,omitempty"`
	FromUnit     string  `json:"from_unit"`
	ToUnit       string  `json:"to_unit"`
	Factor       float64 `json:"factor"`
}

type Converter struct {
	mu      sync.RWMutex
	factors map[string]float64
}

func NewConverter() *Converter {
	return &Converter{factors: make(map[string]float64)}
}

func key(materialCode, from, to string) string {
	return materialCode + "|" + from + "|" + to
}

// Register adds a conversion and its inverse.
func (c *Converter) Register(conv Conversion) {
	if conv.Factor == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.factors[key(conv.MaterialCode, conv.FromUnit, conv.ToUnit)] = conv.Factor
	c.factors[key(conv.MaterialCode, conv.ToUnit, conv.FromUnit)] = 1 / conv.Factor
}

// Convert maps quantity from one unit to another. Material-specific factors
// win over material-independent ones; converting a unit to itself is the
// identity.
func (c *Converter) Convert(materialCode string, quantity float64, fromUnit, toUnit string) (float64, error) {
	if fromUnit == toUnit {
		return quantity, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if f, ok := c.factors[key(materialCode, fromUnit, toUnit)]; ok {
		return quantity * f, nil
	}
	if f, ok := c.factors[key("", fromUnit, toUnit)]; ok {
		return quantity * f, nil
	}
	return 0, fmt.Errorf("%w: %s -> %s for material %q", ErrIncompatibleUnits, fromUnit, toUnit, materialCode)
}

// ToPackaging returns the whole package count covering quantity.
func ToPackaging(quantity, packagingSize float64) (int64, error) {
	if packagingSize <= 0 {
		return 0, ErrInvalidPackagingQty
	}
	if quantity <= 0 {
		return 0, nil
	}
	return int64(math.Ceil(quantity / packagingSize)), nil
}
