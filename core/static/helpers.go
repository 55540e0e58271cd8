package static

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrOutsideRoot = errors.New("static: path outside root directory")
	ErrNotDir      = errors.New("static: root is not a directory")
)

// validatePathSecurity ensures the resolved path stays within root.
func validatePathSecurity(root, resolved string) error {
	cleanPath := filepath.Clean(resolved)
	cleanRoot := filepath.Clean(root)

	if cleanPath != cleanRoot && !strings.HasPrefix(cleanPath, cleanRoot+string(filepath.Separator)) {
		return ErrOutsideRoot
	}
	return nil
}

// validateRoot checks at construction time that root is an accessible directory.
func validateRoot(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("static: accessing root %s: %w", root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotDir, root)
	}
	return nil
}

// normalizePrefix turns "assets/" into "/assets"; "/" and "" mean no prefix.
func normalizePrefix(prefix string) string {
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		return ""
	}
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	return prefix
}
