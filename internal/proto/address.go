// Package proto defines the address and message envelope shared between
// the controller and hub worker processes.
package proto

import (
	"encoding/json"
	"fmt"
)

// Address identifies a node anywhere in the Network -> Hub -> AP -> RT
// hierarchy. A field may only be set if every shallower field is also set;
// Net is validated eagerly by New.
type Address struct {
	Net *int `json:"net,omitempty"`
	Hub *int `json:"hub,omitempty"`
	AP  *int `json:"ap,omitempty"`
	RT  *int `json:"rt,omitempty"`

	tag string
}

// intPtr is a small helper for tests and callers building addresses inline.
func intPtr(v int) *int { return &v }

// New validates the hierarchy invariant (a field may be set only if all
// shallower fields are set) and returns the address with its tag
// precomputed.
func New(net, hub, ap, rt *int) (Address, error) {
	if rt != nil && ap == nil {
		return Address{}, fmt.Errorf("proto: rt set without ap")
	}
	if ap != nil && hub == nil {
		return Address{}, fmt.Errorf("proto: ap set without hub")
	}
	if hub != nil && net == nil {
		return Address{}, fmt.Errorf("proto: hub set without net")
	}
	a := Address{Net: net, Hub: hub, AP: ap, RT: rt}
	a.tag = buildTag(a)
	return a, nil
}

// NetAddr builds a network-level address.
func NetAddr(net int) Address {
	a, _ := New(intPtr(net), nil, nil, nil)
	return a
}

// HubAddr builds a hub-level address.
func HubAddr(net, hub int) Address {
	a, _ := New(intPtr(net), intPtr(hub), nil, nil)
	return a
}

// APAddr builds an AP-level address.
func APAddr(net, hub, ap int) Address {
	a, _ := New(intPtr(net), intPtr(hub), intPtr(ap), nil)
	return a
}

// RTAddr builds an RT-level address.
func RTAddr(net, hub, ap, rt int) Address {
	a, _ := New(intPtr(net), intPtr(hub), intPtr(ap), intPtr(rt))
	return a
}

// Child returns a new address one level deeper than a, with the given
// index set at the next unpopulated field. It is the caller's
// responsibility to call it at the correct level (e.g. only call Child
// with a hub-level address to mint an AP address).
func (a Address) Child(index int) (Address, error) {
	switch {
	case a.Net == nil:
		return New(intPtr(index), nil, nil, nil)
	case a.Hub == nil:
		return New(a.Net, intPtr(index), nil, nil)
	case a.AP == nil:
		return New(a.Net, a.Hub, intPtr(index), nil)
	case a.RT == nil:
		return New(a.Net, a.Hub, a.AP, intPtr(index))
	default:
		return Address{}, fmt.Errorf("proto: address %s has no deeper child level", a.Tag())
	}
}

func buildTag(a Address) string {
	tag := ""
	if a.Net != nil {
		tag += fmt.Sprintf("N%02x", *a.Net)
	}
	if a.Hub != nil {
		tag += fmt.Sprintf("H%02x", *a.Hub)
	}
	if a.AP != nil {
		tag += fmt.Sprintf("A%02x", *a.AP)
	}
	if a.RT != nil {
		tag += fmt.Sprintf("R%02x", *a.RT)
	}
	return tag
}

// Tag returns the short, hierarchy-prefixed routing key used both as the
// pub/sub subscription filter and the controller tree's primary key.
func (a Address) Tag() string {
	if a.tag == "" {
		a.tag = buildTag(a)
	}
	return a.tag
}

// String implements fmt.Stringer via the tag representation.
func (a Address) String() string { return a.Tag() }

// Equal reports whether two addresses identify the same node. Addresses
// are compared by tag, per the spec's "equality- and hash-comparable by
// tag" rule.
func (a Address) Equal(b Address) bool { return a.Tag() == b.Tag() }

// HasPrefix reports whether a's tag is a prefix of b's tag, i.e. whether a
// routes frames addressed to b (the same rule the bus's subscription
// filter applies to raw tags).
func (a Address) HasPrefix(b Address) bool {
	t := a.Tag()
	return len(b.Tag()) >= len(t) && b.Tag()[:len(t)] == t
}

// UnmarshalJSON implements custom decoding so the tag is recomputed (and
// the hierarchy invariant re-validated) after every decode.
func (a *Address) UnmarshalJSON(data []byte) error {
	type raw struct {
		Net *int `json:"net,omitempty"`
		Hub *int `json:"hub,omitempty"`
		AP  *int `json:"ap,omitempty"`
		RT  *int `json:"rt,omitempty"`
	}
	var r raw
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	addr, err := New(r.Net, r.Hub, r.AP, r.RT)
	if err != nil {
		return err
	}
	*a = addr
	return nil
}
