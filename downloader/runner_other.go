//go:build !unix

package downloader

import "os/exec"

// setProcessGroup is a no-op; WaitDelay still bounds Run after a kill.
func setProcessGroup(*exec.Cmd) {}
