package main

import "github.com/launchpad-dev/launchpad/internal/platform"

// target is detected once in main's init() (platform.DetectTarget),
// giving every subcommand the same os/arch/linux-family/libc view
// instead of each querying runtime.GOOS/GOARCH on its own.
var target platform.Target

func currentPlatform() string { return target.OS() }
func currentArch() string     { return target.Arch() }
