package imf

import (
	"strings"

	"github.com/google/uuid"
)

// UUID is a 16-byte identifier, used for CPL ids, track ids, and asset ids.
type UUID = uuid.UUID

// parseUUID parses the IMF urn:uuid: form ("urn:uuid:" + 8-4-4-4-12 hex
// groups). google/uuid.Parse already accepts the bare 8-4-4-4-12 form
// case-insensitively, so only the urn prefix needs stripping here.
func parseUUID(text string) (UUID, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "urn:uuid:")
	text = strings.TrimPrefix(text, "URN:UUID:")
	id, err := uuid.Parse(text)
	if err != nil {
		return UUID{}, err
	}
	return id, nil
}

// EditUnits is a non-negative count of edit units (frames, samples, ...) at
// a resource's declared edit rate.
type EditUnits = uint64

// Rational is an exact numerator/denominator pair with Den > 0. All
// track-level time comparisons use this type; control-flow decisions never
// convert to floating point (floats are fine for debug logging only).
type Rational struct {
	Num int64
	Den int64
}

// NewRational builds a normalized Rational, reducing by the GCD and
// canonicalizing the sign onto Num. den == 0 is a programmer error in every
// call site in this package (callers validate first), so it is not
// defended against here beyond returning the degenerate {0,0}.
func NewRational(num, den int64) Rational {
	if den == 0 {
		return Rational{}
	}
	if den < 0 {
		num, den = -num, -den
	}
	if g := gcd(abs64(num), den); g > 1 {
		num /= g
		den /= g
	}
	return Rational{Num: num, Den: den}
}

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	if a == 0 {
		return 1
	}
	return a
}

func abs64(x int64) int64 {
	if x < 0 {
		return -x
	}
	return x
}

// Add returns r + o, exact.
func (r Rational) Add(o Rational) Rational {
	return NewRational(r.Num*o.Den+o.Num*r.Den, r.Den*o.Den)
}

// Mul returns r * o, exact.
func (r Rational) Mul(o Rational) Rational {
	return NewRational(r.Num*o.Num, r.Den*o.Den)
}

// Inv returns 1/r, exact. Callers guarantee r.Num != 0 (an edit rate's
// numerator is validated to be positive at parse time).
func (r Rational) Inv() Rational {
	return NewRational(r.Den, r.Num)
}

// Cmp returns -1, 0, or 1 as r is less than, equal to, or greater than o.
func (r Rational) Cmp(o Rational) int {
	l := r.Num * o.Den
	rr := o.Num * r.Den
	switch {
	case l < rr:
		return -1
	case l > rr:
		return 1
	default:
		return 0
	}
}

func (r Rational) Float64() float64 {
	return float64(r.Num) / float64(r.Den)
}

// Timestamp is a Rational expressed in seconds.
type Timestamp = Rational
