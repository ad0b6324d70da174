// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package device

import "testing"

var typeForNameTests = []struct {
	name string
	want Type
}{
	{name: "NeuroPlay", want: All},
	{name: "NeuroPlay-6C", want: Model6C},
	{name: "NeuroPlay-8Cap", want: Model8Cap},
	{name: "NeuroPlay-6c", want: Undefined},
	{name: "NeuroPlay-6C ", want: Undefined},
	{name: "Polar H10", want: Undefined},
	{name: "", want: Undefined},
	{name: "neuroplay", want: Undefined},
}

func TestTypeForName(t *testing.T) {
	for _, test := range typeForNameTests {
		got := TypeForName(test.name)
		if got != test.want {
			t.Errorf("unexpected type for %q: got:%v want:%v", test.name, got, test.want)
		}
	}
}

var parseNameTests = []struct {
	name    string
	want    Descriptor
	wantErr bool
}{
	{
		name: "NeuroPlay-6C (1232)",
		want: Descriptor{Type: Model6C, ID: 1232, Addr: "addr", FullName: "NeuroPlay-6C (1232)"},
	},
	{
		name: "NeuroPlay-8Cap (7)",
		want: Descriptor{Type: Model8Cap, ID: 7, Addr: "addr", FullName: "NeuroPlay-8Cap (7)"},
	},
	{name: "NeuroPlay-6C", wantErr: true},
	{name: "NeuroPlay-6C (x1)", wantErr: true},
	{name: "NeuroPlay (12)", wantErr: true},
	{name: "Polar H10 (12)", wantErr: true},
	{name: "", wantErr: true},
}

func TestParseName(t *testing.T) {
	for _, test := range parseNameTests {
		got, err := ParseName(test.name, "addr")
		if (err != nil) != test.wantErr {
			t.Errorf("unexpected error for %q: %v", test.name, err)
			continue
		}
		if got != test.want {
			t.Errorf("unexpected descriptor for %q: got:%+v want:%+v", test.name, got, test.want)
		}
	}
}

func TestChannels(t *testing.T) {
	if n := len(Model6C.Channels()); n != 6 {
		t.Errorf("unexpected channel count for 6C: got:%d want:6", n)
	}
	if n := len(Model8Cap.Channels()); n != 8 {
		t.Errorf("unexpected channel count for 8Cap: got:%d want:8", n)
	}
	if c := All.Channels(); c != nil {
		t.Errorf("unexpected channels for All: %v", c)
	}
}

var matchesTests = []struct {
	filter, typ Type
	want        bool
}{
	{filter: All, typ: Model6C, want: true},
	{filter: All, typ: Model8Cap, want: true},
	{filter: Model6C, typ: Model6C, want: true},
	{filter: Model6C, typ: Model8Cap, want: false},
	{filter: All, typ: Undefined, want: false},
	{filter: All, typ: All, want: false},
}

func TestMatches(t *testing.T) {
	for _, test := range matchesTests {
		got := test.filter.Matches(test.typ)
		if got != test.want {
			t.Errorf("unexpected match for %v/%v: got:%t want:%t", test.filter, test.typ, got, test.want)
		}
	}
}
