// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package pointer

import (
	"testing"

	"github.com/shoenig/test/must"
)

func Test_Of(t *testing.T) {
	s := "hello"
	sPtr := Of(s)

	must.Eq(t, s, *sPtr)

	b := "bye"
	sPtr = &b
	must.NotEq(t, s, *sPtr)
}

func Test_Copy(t *testing.T) {
	must.Nil(t, Copy[int](nil))

	orig := Of(5)
	cp := Copy(orig)
	must.Eq(t, 5, *cp)

	*orig = 6
	must.Eq(t, 5, *cp)
}
