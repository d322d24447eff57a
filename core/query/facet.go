package query

import (
	"fmt"
	"strconv"
	"strings"
)

const DefaultFacetLimit = 25

type FacetType string

const (
	// FacetTypeValue buckets on the textual value of the field.
	FacetTypeValue FacetType = "value"
	// FacetTypeResource buckets on the id of the linked resource and labels
	// the bucket with the linked resource title.
	FacetTypeResource FacetType = "resource"
)

type FacetOrder string

const (
	FacetOrderTotalDesc FacetOrder = "total_desc"
	FacetOrderTotalAsc  FacetOrder = "total_asc"
	FacetOrderValueAsc  FacetOrder = "value_asc"
	FacetOrderValueDesc FacetOrder = "value_desc"
)

// FirstDigits controls numeric extraction of facet values. The zero value
// keeps the raw string.
type FirstDigits struct {
	// Full extracts the whole leading signed integer.
	Full bool
	// N truncates the extracted integer to its first N significant digits.
	N int
}

func (fd FirstDigits) Enabled() bool { return fd.Full || fd.N > 0 }

// ParseFirstDigits accepts "true", "false", "" or a positive integer.
func ParseFirstDigits(s string) (FirstDigits, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "false", "0":
		return FirstDigits{}, nil
	case "true":
		return FirstDigits{Full: true}, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return FirstDigits{}, fmt.Errorf("invalid first_digits %q", s)
	}
	return FirstDigits{N: n}, nil
}

type FacetConfig struct {
	Type        FacetType   `json:"type,omitempty"`
	Order       FacetOrder  `json:"order,omitempty"`
	Limit       int         `json:"limit,omitempty"`
	FirstDigits FirstDigits `json:"first_digits"`
	Languages   []string    `json:"languages,omitempty"`
}

// Normalize fills unspecified values with defaults.
func (c FacetConfig) Normalize() FacetConfig {
	if c.Type == "" {
		c.Type = FacetTypeValue
	}
	switch c.Order {
	case FacetOrderTotalDesc, FacetOrderTotalAsc, FacetOrderValueAsc, FacetOrderValueDesc:
	default:
		c.Order = FacetOrderTotalDesc
	}
	if c.Limit == 0 {
		c.Limit = DefaultFacetLimit
	}
	return c
}
