package types

import (
	"fmt"
	"strings"
)

// Selector picks one lane by letter.
type Selector uint8

const (
	SelX Selector = iota + 1
	SelY
	SelZ
	SelW
)

const selectorLetters = "xyzw"

func (s Selector) Valid() bool { return s >= SelX && s <= SelW }

func (s Selector) Lane() int { return int(s) - 1 }

func (s Selector) String() string {
	if !s.Valid() {
		return fmt.Sprintf("Selector(%d)", s)
	}
	return selectorLetters[s.Lane() : s.Lane()+1]
}

// Property identifies a swizzle or a named aggregate selection.
//
// Swizzles of one to four letters are base-5 numbers, first letter most
// significant, with x=1 y=2 z=3 w=4. Lo, Hi, Even and Odd sit directly
// above the largest swizzle (wwww).
type Property uint16

const (
	NoProperty Property = 0

	propertyBase = 5
	MaxSwizzle   = Property(4*125 + 4*25 + 4*5 + 4)
)

const (
	Lo Property = MaxSwizzle + 1 + iota
	Hi
	Even
	Odd
)

// Swizzle encodes a lane selection.
func Swizzle(sel ...Selector) (Property, error) {
	if len(sel) == 0 || len(sel) > 4 {
		return NoProperty, fmt.Errorf("swizzle takes 1 to 4 selectors, got %d", len(sel))
	}
	var p Property
	for _, s := range sel {
		if !s.Valid() {
			return NoProperty, fmt.Errorf("invalid selector %d", s)
		}
		p = p*propertyBase + Property(s)
	}
	return p, nil
}

// ParseProperty accepts "x".."wwww", "lo", "hi", "even" and "odd".
func ParseProperty(name string) (Property, error) {
	switch name {
	case "lo":
		return Lo, nil
	case "hi":
		return Hi, nil
	case "even":
		return Even, nil
	case "odd":
		return Odd, nil
	}
	sel := make([]Selector, 0, len(name))
	for _, r := range name {
		idx := strings.IndexRune(selectorLetters, r)
		if idx < 0 {
			return NoProperty, fmt.Errorf("unknown property %q", name)
		}
		sel = append(sel, Selector(idx+1))
	}
	p, err := Swizzle(sel...)
	if err != nil {
		return NoProperty, fmt.Errorf("property %q: %w", name, err)
	}
	return p, nil
}

func (p Property) IsAggregate() bool { return p >= Lo && p <= Odd }

func (p Property) IsSwizzle() bool {
	_, ok := p.decode()
	return ok
}

func (p Property) Valid() bool { return p.IsAggregate() || p.IsSwizzle() }

func (p Property) decode() ([]Selector, bool) {
	if p == NoProperty || p > MaxSwizzle {
		return nil, false
	}
	var rev []Selector
	for v := p; v > 0; v /= propertyBase {
		digit := Selector(v % propertyBase)
		if !digit.Valid() {
			return nil, false
		}
		rev = append(rev, digit)
	}
	out := make([]Selector, len(rev))
	for i, s := range rev {
		out[len(rev)-1-i] = s
	}
	return out, true
}

// Selectors returns the lanes of a swizzle, most significant first; nil for aggregates.
func (p Property) Selectors() []Selector {
	sel, _ := p.decode()
	return sel
}

func (p Property) String() string {
	switch p {
	case Lo:
		return "lo"
	case Hi:
		return "hi"
	case Even:
		return "even"
	case Odd:
		return "odd"
	}
	sel, ok := p.decode()
	if !ok {
		return fmt.Sprintf("Property(%d)", uint16(p))
	}
	var sb strings.Builder
	for _, s := range sel {
		sb.WriteString(s.String())
	}
	return sb.String()
}

// Access checks p against a source lane class and returns the lane class
// of the selection.
func (p Property) Access(src Components) (Components, error) {
	lanes := src.Lanes()
	if lanes < 2 && p.IsAggregate() {
		return CompNone, fmt.Errorf(".%s needs a vector, have %s", p, src)
	}
	if p.IsAggregate() {
		half, _ := ComponentsFor(lanes / 2)
		return half, nil
	}
	sel, ok := p.decode()
	if !ok {
		return CompNone, fmt.Errorf("invalid property %d", uint16(p))
	}
	if lanes == 0 {
		return CompNone, fmt.Errorf(".%s on a value without lanes", p)
	}
	for _, s := range sel {
		if s.Lane() >= lanes {
			return CompNone, fmt.Errorf(".%s selects lane %s of a %s value", p, s, src)
		}
	}
	out, ok := ComponentsFor(len(sel))
	if !ok {
		return CompNone, fmt.Errorf(".%s yields %d lanes, which has no vector type", p, len(sel))
	}
	return out, nil
}

// Lanes maps a property onto source lane indexes. Aggregates expand against
// the source lane count.
func (p Property) Lanes(src int) []int {
	switch p {
	case Lo:
		return laneRange(0, src/2, 1)
	case Hi:
		return laneRange(src/2, src, 1)
	case Even:
		return laneRange(0, src, 2)
	case Odd:
		return laneRange(1, src, 2)
	}
	sel, _ := p.decode()
	out := make([]int, len(sel))
	for i, s := range sel {
		out[i] = s.Lane()
	}
	return out
}

func laneRange(from, to, step int) []int {
	var out []int
	for i := from; i < to; i += step {
		out = append(out, i)
	}
	return out
}
