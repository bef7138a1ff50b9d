package types

import "testing"

func TestSwizzleKnownValues(t *testing.T) {
	cases := map[string]Property{
		"x":    1,
		"w":    4,
		"xx":   6,
		"xy":   7,
		"wx":   21,
		"xyz":  38,
		"xyzw": 194,
		"wwww": 624,
		"lo":   625,
		"hi":   626,
		"even": 627,
		"odd":  628,
	}
	for name, want := range cases {
		got, err := ParseProperty(name)
		if err != nil {
			t.Fatalf("ParseProperty(%q): %v", name, err)
		}
		if got != want {
			t.Errorf("ParseProperty(%q) = %d, want %d", name, got, want)
		}
		if got.String() != name {
			t.Errorf("Property(%d).String() = %q, want %q", got, got.String(), name)
		}
	}
}

func TestSwizzleRoundTripAllSelections(t *testing.T) {
	seen := make(map[Property]bool)
	var walk func(prefix []Selector)
	walk = func(prefix []Selector) {
		if len(prefix) > 0 {
			p, err := Swizzle(prefix...)
			if err != nil {
				t.Fatalf("Swizzle(%v): %v", prefix, err)
			}
			if seen[p] {
				t.Fatalf("duplicate encoding %d for %v", p, prefix)
			}
			seen[p] = true
			got := p.Selectors()
			if len(got) != len(prefix) {
				t.Fatalf("Selectors(%d) = %v, want %v", p, got, prefix)
			}
			for i := range got {
				if got[i] != prefix[i] {
					t.Fatalf("Selectors(%d) = %v, want %v", p, got, prefix)
				}
			}
			back, err := ParseProperty(p.String())
			if err != nil || back != p {
				t.Fatalf("ParseProperty(%q) = %d, %v; want %d", p.String(), back, err, p)
			}
		}
		if len(prefix) == 4 {
			return
		}
		for s := SelX; s <= SelW; s++ {
			walk(append(append([]Selector(nil), prefix...), s))
		}
	}
	walk(nil)
	if want := 4 + 16 + 64 + 256; len(seen) != want {
		t.Fatalf("encoded %d swizzles, want %d", len(seen), want)
	}
	for p := range seen {
		if p > MaxSwizzle || p.IsAggregate() {
			t.Errorf("swizzle %d overlaps the aggregate range", p)
		}
	}
}

func TestPropertyRejectsGaps(t *testing.T) {
	for _, p := range []Property{0, 5, 10, 25, 125} {
		if p.Valid() {
			t.Errorf("Property(%d) contains a zero digit and must be invalid", p)
		}
	}
	if _, err := ParseProperty("xq"); err == nil {
		t.Errorf("ParseProperty accepted an unknown letter")
	}
	if _, err := ParseProperty("xyzwx"); err == nil {
		t.Errorf("ParseProperty accepted five selectors")
	}
}

func TestPropertyAccess(t *testing.T) {
	mustProp := func(s string) Property {
		p, err := ParseProperty(s)
		if err != nil {
			t.Fatalf("ParseProperty(%q): %v", s, err)
		}
		return p
	}
	ok := []struct {
		prop string
		src  Components
		want Components
	}{
		{"x", CompVec2, CompScalar},
		{"yx", CompVec2, CompVec2},
		{"wzyx", CompVec4, CompVec4},
		{"lo", CompVec4, CompVec2},
		{"hi", CompVec2, CompScalar},
		{"even", CompVec16, CompVec8},
		{"x", CompScalar, CompScalar},
	}
	for _, tc := range ok {
		got, err := mustProp(tc.prop).Access(tc.src)
		if err != nil {
			t.Errorf(".%s on %s: %v", tc.prop, tc.src, err)
			continue
		}
		if got != tc.want {
			t.Errorf(".%s on %s = %s, want %s", tc.prop, tc.src, got, tc.want)
		}
	}
	bad := []struct {
		prop string
		src  Components
	}{
		{"z", CompVec2},
		{"xyz", CompVec4},
		{"lo", CompScalar},
		{"x", CompNone},
	}
	for _, tc := range bad {
		if _, err := mustProp(tc.prop).Access(tc.src); err == nil {
			t.Errorf(".%s on %s must be rejected", tc.prop, tc.src)
		}
	}
}

func TestPropertyLanes(t *testing.T) {
	if got := Odd.Lanes(8); len(got) != 4 || got[0] != 1 || got[3] != 7 {
		t.Errorf("Odd.Lanes(8) = %v", got)
	}
	if got := Hi.Lanes(4); len(got) != 2 || got[0] != 2 {
		t.Errorf("Hi.Lanes(4) = %v", got)
	}
	p, _ := ParseProperty("wy")
	if got := p.Lanes(4); len(got) != 2 || got[0] != 3 || got[1] != 1 {
		t.Errorf("wy.Lanes(4) = %v", got)
	}
}
