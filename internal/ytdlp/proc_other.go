//go:build !unix

package ytdlp

import "os/exec"

func configureProcess(_ *exec.Cmd) {}
