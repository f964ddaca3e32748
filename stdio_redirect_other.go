//go:build !unix

package main

import "os"

// Without dup2 only Go-level writes are captured, not runtime panics.
func redirectStdIO(path, banner string) error {
	if path == "" {
		return nil
	}
	f, err := openStdIOLog(path, banner)
	if err != nil {
		return err
	}
	os.Stdout = f
	os.Stderr = f
	return nil
}
