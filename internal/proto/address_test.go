package proto

import "testing"

func TestTagFormatting(t *testing.T) {
	cases := []struct {
		name string
		addr Address
		want string
	}{
		{"full", RTAddr(1, 2, 3, 4), "N01H02A03R04"},
		{"net only", NetAddr(0), "N00"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.addr.Tag(); got != c.want {
				t.Errorf("Tag() = %q, want %q", got, c.want)
			}
		})
	}
}

func TestHierarchyInvariant(t *testing.T) {
	one := 1
	four := 4
	if _, err := New(&one, nil, nil, &four); err == nil {
		t.Fatal("expected error constructing {net:1, rt:4} without hub/ap")
	}
}

func TestAddressEqualityIsByTag(t *testing.T) {
	a := APAddr(1, 2, 3)
	b := APAddr(1, 2, 3)
	if !a.Equal(b) {
		t.Fatal("expected equal addresses to compare equal by tag")
	}
	c := APAddr(1, 2, 4)
	if a.Equal(c) {
		t.Fatal("expected different addresses to compare unequal")
	}
}

func TestHasPrefix(t *testing.T) {
	hub := HubAddr(0, 3)
	rt := RTAddr(0, 3, 2, 5)
	if !hub.HasPrefix(rt) {
		t.Fatalf("expected hub tag %q to be a prefix of rt tag %q", hub.Tag(), rt.Tag())
	}
	other := HubAddr(0, 4)
	if other.HasPrefix(rt) {
		t.Fatal("expected unrelated hub not to match")
	}
}

func TestChild(t *testing.T) {
	net := NetAddr(0)
	hub, err := net.Child(3)
	if err != nil {
		t.Fatal(err)
	}
	if hub.Tag() != "N00H03" {
		t.Fatalf("got %q", hub.Tag())
	}
	rt := RTAddr(0, 0, 0, 0)
	if _, err := rt.Child(0); err == nil {
		t.Fatal("expected error minting a child below rt level")
	}
}
