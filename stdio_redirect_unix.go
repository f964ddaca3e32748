//go:build unix

package main

import (
	"os"

	"golang.org/x/sys/unix"
)

// redirectStdIO points fds 1 and 2 at the log file so runtime panics from any
// goroutine land there too. banner is written first to separate boots.
func redirectStdIO(path, banner string) error {
	if path == "" {
		return nil
	}
	f, err := openStdIOLog(path, banner)
	if err != nil {
		return err
	}
	defer f.Close()

	fd := int(f.Fd())
	if err := unix.Dup2(fd, int(os.Stdout.Fd())); err != nil {
		return err
	}
	return unix.Dup2(fd, int(os.Stderr.Fd()))
}
