// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package ci

import (
	"fmt"

	"github.com/shoenig/test/portal"
)

type fatalTester struct{}

func (t *fatalTester) Fatalf(msg string, args ...any) {
	panic(fmt.Sprintf(msg, args...))
}

// PortAllocator hands out unused loopback ports for agent HTTP listeners in
// tests.
var PortAllocator = portal.New(
	new(fatalTester),
	portal.WithAddress("127.0.0.1"),
)
