// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package device

import (
	"context"
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/gridslice/comm"
)

func TestParse(t *testing.T) {
	for _, c := range []struct {
		in   string
		want []int
	}{
		{"", nil},
		{"0", []int{0}},
		{"0, 2,3", []int{0, 2, 3}},
		{"1,-1,2", []int{1}},
		{"-1", nil},
	} {
		got, err := Parse(c.in)
		if err != nil {
			t.Errorf("%q: %v", c.in, err)
			continue
		}
		if !cmp.Equal(got, c.want) {
			t.Errorf("%q: got %v, want %v", c.in, got, c.want)
		}
	}
	if _, err := Parse("0,gpu1"); !errors.Is(errors.Invalid, err) {
		t.Errorf("got %v, want Invalid", err)
	}
}

func TestShare(t *testing.T) {
	devices := []int{0, 1, 2, 3, 4}
	if got, want := Share(devices, 1, 2), []int{1, 3}; !cmp.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := Share(devices, 0, 1), devices; !cmp.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := Share([]int{7, 8}, 3, 4), []int{8}; !cmp.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	if got := Share(nil, 0, 4); got != nil {
		t.Errorf("got %v, want nil", got)
	}
}

func TestEnv(t *testing.T) {
	const name = "GRIDSLICE_TEST_DEVICES"
	os.Setenv(name, "0,1,2,3")
	defer os.Unsetenv(name)
	comms := comm.Local(2)
	got, err := Env(name).Devices(context.Background(), comms[1])
	if err != nil {
		t.Fatal(err)
	}
	if want := []int{1, 3}; !cmp.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	got, err = Fixed{5, 6}.Devices(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if want := []int{5, 6}; !cmp.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}
