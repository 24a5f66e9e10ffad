//go:build !unix

package trigger

import "os/exec"

func detachProcessGroup(*exec.Cmd) {}
