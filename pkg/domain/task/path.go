package task

import (
	"fmt"
	"strings"
)

// PathSeparator delimits hierarchy segments in a task path.
const PathSeparator = "/"

// ValidatePath checks that path is non-empty and has no empty segments.
func ValidatePath(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("task path cannot be empty")
	}
	for _, seg := range strings.Split(path, PathSeparator) {
		if strings.TrimSpace(seg) == "" {
			return fmt.Errorf("invalid task path %q: empty segment", path)
		}
	}
	return nil
}

// ProjectOf returns the owning project, the first path segment.
func ProjectOf(path string) string {
	project, _, _ := strings.Cut(path, PathSeparator)
	return project
}

// ParentOf returns the path one level up, or "" for a project root.
func ParentOf(path string) string {
	i := strings.LastIndex(path, PathSeparator)
	if i < 0 {
		return ""
	}
	return path[:i]
}

// IsWithin reports whether path equals root or lies beneath it.
func IsWithin(path, root string) bool {
	return path == root || strings.HasPrefix(path, root+PathSeparator)
}
