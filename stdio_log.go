package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

func openStdIOLog(path, banner string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("stdio log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	if banner != "" {
		fmt.Fprintf(f, "=== %s %s ===\n", time.Now().Format(time.RFC3339), banner)
	}
	return f, nil
}
