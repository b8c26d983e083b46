// Copyright 2025 Brioche Project Contributors
//
// SPDX-License-Identifier: MIT

package bootstrap

import (
	"fmt"
	"runtime"
)

// bootstrapVendor is the vendor token substituted into the host triple so
// build scripts can tell bootstrap toolchains apart from system ones.
const bootstrapVendor = "brioche_bootstrap"

var archTokens = map[string]string{
	"amd64": "x86_64",
	"arm64": "aarch64",
}

// BootstrapTarget returns an LLVM target triple for the host architecture
// with the bootstrap vendor token, e.g. "x86_64-brioche_bootstrap-linux-musl".
// The OS and environment fields are always "linux-musl"; the host's own
// libc is not detected. Exposed to build scripts as BRIOCHE_BOOTSTRAP_TARGET.
func BootstrapTarget() string {
	arch, ok := archTokens[runtime.GOARCH]
	if !ok {
		arch = runtime.GOARCH
	}
	return fmt.Sprintf("%s-%s-linux-musl", arch, bootstrapVendor)
}
