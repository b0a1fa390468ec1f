// Copyright 2020-2025 Consensys Software Inc.
// Licensed under the Apache License, Version 2.0. See the LICENSE file for details.

//go:build debug

// Package debug toggles costly assertions and verbose logging at build time.
package debug

const Debug = true
