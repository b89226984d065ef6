package ioapi

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
)

// ConnectionFilePath is the well-known location clients read to find
// the daemon. Discovery only; it carries no authentication.
func ConnectionFilePath() string {
	return filepath.Join(os.TempDir(), "comp-gate.txt")
}

// WriteConnectionFile publishes the daemon's listen address.
func WriteConnectionFile(path, addr string) error {
	if err := os.WriteFile(path, []byte(addr+"\n"), 0o644); err != nil {
		return fmt.Errorf("write connection file: %w", err)
	}
	return nil
}

// ResolveCoreAddr reads the daemon address ("<ip>:<port>") from the
// first non-empty line of the connection file.
func ResolveCoreAddr(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read connection file: %w", err)
	}
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if _, _, err := net.SplitHostPort(line); err != nil {
			return "", fmt.Errorf("malformed address %q in connection file: %w", line, err)
		}
		return line, nil
	}
	return "", fmt.Errorf("connection file %s is empty", path)
}
