/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package version provides build version information.
package version

import "runtime/debug"

// Version is the current version of Speak Easy.
// This is set at build time via ldflags:
//
//	-X github.com/kvn147/Speak-Easy-Copy/internal/version.Version=X.Y.Z
var Version = "0.1.0-dev"

// Commit returns the VCS revision embedded by the Go toolchain, or "unknown".
func Commit() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" {
			if len(s.Value) > 12 {
				return s.Value[:12]
			}
			return s.Value
		}
	}
	return "unknown"
}
