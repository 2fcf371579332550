// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package flags

import (
	"flag"
	"fmt"
	"strings"
	"time"
)

// StringFlag implements the flag.Value interface and allows multiple
// calls to the same variable to append a list.
type StringFlag []string

func (s *StringFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *StringFlag) Set(value string) error {
	*s = append(*s, value)
	return nil
}

// FuncDurationVar is a type of flag that accepts a function that is the
// duration parsed from the flag value.
type FuncDurationVar func(d time.Duration) error

func (f FuncDurationVar) Set(s string) error {
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	return f(v)
}
func (f FuncDurationVar) String() string { return "" }

// FuncIntVar is a type of flag that accepts a function that is the integer
// parsed from the flag value.
type FuncIntVar func(i int) error

func (f FuncIntVar) Set(s string) error {
	var v int
	if _, err := fmt.Sscan(s, &v); err != nil {
		return fmt.Errorf("%q is not an integer", s)
	}
	return f(v)
}
func (f FuncIntVar) String() string { return "" }

var (
	_ flag.Value = (*StringFlag)(nil)
	_ flag.Value = FuncDurationVar(nil)
	_ flag.Value = FuncIntVar(nil)
)
