package market

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// RayDecimals is the number of fractional digits of a ray.
const RayDecimals = 27

var (
	rayUnit = uint256.MustFromDecimal("1000000000000000000000000000")

	ErrInvalidRay = errors.New("market: invalid ray")
)

// Ray is an unsigned fixed-point number with 27 decimals, carried
// as a 256-bit integer. 1e27 represents 1.0.
type Ray struct {
	v uint256.Int
}

// RayOne returns 1.0 in ray units.
func RayOne() Ray {
	return Ray{v: *rayUnit}
}

// NewRay wraps a raw 256-bit integer.
func NewRay(v *uint256.Int) Ray {
	if v == nil {
		return Ray{}
	}
	return Ray{v: *v}
}

// ParseRay parses a base-10 integer string already expressed in ray units.
func ParseRay(s string) (Ray, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Ray{}, fmt.Errorf("%w: empty", ErrInvalidRay)
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return Ray{}, fmt.Errorf("%w: %q: %v", ErrInvalidRay, s, err)
	}
	return Ray{v: *v}, nil
}

// MustParseRay is like ParseRay but panics on malformed input.
func MustParseRay(s string) Ray {
	r, err := ParseRay(s)
	if err != nil {
		panic(err)
	}
	return r
}

// RayFromDecimal converts a plain fraction (0.8 = 80%) to ray units.
// Precision finer than 1e-27 is rejected rather than truncated.
func RayFromDecimal(d decimal.Decimal) (Ray, error) {
	if d.IsNegative() {
		return Ray{}, fmt.Errorf("%w: negative value %s", ErrInvalidRay, d)
	}
	shifted := d.Shift(RayDecimals)
	if !shifted.Equal(shifted.Truncate(0)) {
		return Ray{}, fmt.Errorf("%w: %s has more than %d decimals", ErrInvalidRay, d, RayDecimals)
	}
	v, overflow := uint256.FromBig(shifted.BigInt())
	if overflow {
		return Ray{}, fmt.Errorf("%w: %s overflows 256 bits", ErrInvalidRay, d)
	}
	return Ray{v: *v}, nil
}

// RayFromPercent converts a percentage string such as "4.5" to ray units.
func RayFromPercent(p string) (Ray, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(p))
	if err != nil {
		return Ray{}, fmt.Errorf("%w: %q: %v", ErrInvalidRay, p, err)
	}
	return RayFromDecimal(d.Shift(-2))
}

// String returns the base-10 integer representation used on the wire.
func (r Ray) String() string {
	return r.v.Dec()
}

// Int returns a copy of the underlying integer.
func (r Ray) Int() *uint256.Int {
	c := r.v
	return &c
}

func (r Ray) Big() *big.Int {
	return r.v.ToBig()
}

// Decimal returns the ray as a plain fraction.
func (r Ray) Decimal() decimal.Decimal {
	return decimal.NewFromBigInt(r.v.ToBig(), -RayDecimals)
}

// Percent formats the ray as a human readable percentage.
func (r Ray) Percent() string {
	return r.Decimal().Shift(2).String() + "%"
}

func (r Ray) IsZero() bool {
	return r.v.IsZero()
}

func (r Ray) Equal(o Ray) bool {
	return r.v.Eq(&o.v)
}

func (r Ray) Cmp(o Ray) int {
	return r.v.Cmp(&o.v)
}

// MarshalText encodes the ray as its integer string.
func (r Ray) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText accepts three notations: "80%" as a percentage, "0.8" as
// a fraction, and a bare integer as raw ray units.
func (r *Ray) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	var (
		parsed Ray
		err    error
	)
	switch {
	case strings.HasSuffix(s, "%"):
		parsed, err = RayFromPercent(strings.TrimSuffix(s, "%"))
	case strings.Contains(s, "."):
		var d decimal.Decimal
		d, err = decimal.NewFromString(s)
		if err == nil {
			parsed, err = RayFromDecimal(d)
		}
	default:
		parsed, err = ParseRay(s)
	}
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
