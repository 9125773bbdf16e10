package crdt

import "testing"

func TestCompare(t *testing.T) {
	tests := []struct {
		description string
		a           Identifier
		b           Identifier
		expected    int
	}{
		{
			description: "position decides",
			a:           Identifier{Levels: []Level{{Pos: 3, Site: 1}}},
			b:           Identifier{Levels: []Level{{Pos: 5, Site: 1}}},
			expected:    -1,
		},
		{
			description: "site breaks position tie",
			a:           Identifier{Levels: []Level{{Pos: 3, Site: 1}}},
			b:           Identifier{Levels: []Level{{Pos: 3, Site: 2}}},
			expected:    -1,
		},
		{
			description: "strict prefix sorts lower",
			a:           Identifier{Levels: []Level{{Pos: 3, Site: 1}}},
			b:           Identifier{Levels: []Level{{Pos: 3, Site: 1}, {Pos: 7, Site: 2}}},
			expected:    -1,
		},
		{
			description: "counter breaks level tie",
			a:           Identifier{Levels: []Level{{Pos: 3, Site: 1}}, Counter: 1},
			b:           Identifier{Levels: []Level{{Pos: 3, Site: 1}}, Counter: 2},
			expected:    -1,
		},
		{
			description: "identical identifiers are equal",
			a:           Identifier{Levels: []Level{{Pos: 3, Site: 1}, {Pos: 7, Site: 2}}, Counter: 4},
			b:           Identifier{Levels: []Level{{Pos: 3, Site: 1}, {Pos: 7, Site: 2}}, Counter: 4},
			expected:    0,
		},
	}

	for _, tc := range tests {
		got := tc.a.Compare(tc.b)
		if got != tc.expected {
			t.Errorf("(%s) got = %v, expected = %v", tc.description, got, tc.expected)
		}

		// Comparison must be antisymmetric.
		if rev := tc.b.Compare(tc.a); rev != -tc.expected {
			t.Errorf("(%s) reverse got = %v, expected = %v", tc.description, rev, -tc.expected)
		}
	}
}

func TestSentinelsBoundEverything(t *testing.T) {
	ids := []Identifier{
		{Levels: []Level{{Pos: 1, Site: 0}}},
		{Levels: []Level{{Pos: 1, Site: 9}}, Counter: 3},
		{Levels: []Level{{Pos: posEnd - 1, Site: 42}}},
		{Levels: []Level{{Pos: 5, Site: 1}, {Pos: posEnd - 1, Site: 2}}},
	}

	for _, id := range ids {
		if !Begin.Less(id) {
			t.Errorf("Begin must sort below %v", id)
		}
		if !id.Less(End) {
			t.Errorf("%v must sort below End", id)
		}
	}

	if !Begin.Less(End) {
		t.Error("Begin must sort below End")
	}
}

func TestKeyMatchesEquality(t *testing.T) {
	a := Identifier{Levels: []Level{{Pos: 3, Site: 1}, {Pos: 7, Site: 2}}, Counter: 4}
	b := a.clone()
	c := Identifier{Levels: []Level{{Pos: 3, Site: 1}, {Pos: 7, Site: 2}}, Counter: 5}

	if a.Key() != b.Key() {
		t.Errorf("equal identifiers must share a key; got %q and %q", a.Key(), b.Key())
	}
	if a.Key() == c.Key() {
		t.Errorf("distinct identifiers must not share a key: %q", a.Key())
	}
}

func TestCloneDoesNotAlias(t *testing.T) {
	a := Identifier{Levels: []Level{{Pos: 3, Site: 1}}}
	b := a.clone()
	b.Levels[0].Pos = 9

	if a.Levels[0].Pos != 3 {
		t.Error("clone must not share level storage")
	}
}
