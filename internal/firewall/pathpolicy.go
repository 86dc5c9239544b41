package firewall

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PolicyErrorKind classifies a path policy violation.
type PolicyErrorKind int

const (
	ErrInvalidPath PolicyErrorKind = iota + 1
	ErrPathOutsideAllowlist
	ErrBlockedExtension
	ErrFileTooLarge
)

// PolicyError is the typed failure returned by PathPolicy.Validate.
type PolicyError struct {
	Kind PolicyErrorKind
	Path string
	Msg  string
}

func (e *PolicyError) Error() string {
	return e.Msg
}

// PathPolicy validates filesystem paths against an allowlist, an extension
// blocklist, and a size ceiling. Built from a config snapshot and never
// mutated; a config reload builds a fresh policy.
type PathPolicy struct {
	allowedRoots  []string // canonicalized at construction
	blockedExts   map[string]struct{}
	maxFileSizeMB float64
}

// NewPathPolicy canonicalizes the allowed roots and builds the policy.
// Roots that cannot be resolved are kept as absolute paths so a transient
// resolution failure does not silently widen the allowlist.
func NewPathPolicy(allowedPaths []string, blockedExtensions []string, maxFileSizeMB float64) *PathPolicy {
	roots := make([]string, 0, len(allowedPaths))
	for _, p := range allowedPaths {
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		if resolved, err := filepath.EvalSymlinks(abs); err == nil {
			abs = resolved
		}
		roots = append(roots, abs)
	}

	exts := make(map[string]struct{}, len(blockedExtensions))
	for _, e := range blockedExtensions {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts[e] = struct{}{}
	}

	return &PathPolicy{
		allowedRoots:  roots,
		blockedExts:   exts,
		maxFileSizeMB: maxFileSizeMB,
	}
}

// Validate checks a path in order: canonical resolution, allowlist
// containment, extension blocklist, size ceiling. Order matters — the later
// checks assume a valid, in-scope path.
func (p *PathPolicy) Validate(path string) error {
	resolved, err := canonicalize(path)
	if err != nil {
		return &PolicyError{
			Kind: ErrInvalidPath,
			Path: path,
			Msg:  fmt.Sprintf("invalid file path %q: %v", path, err),
		}
	}

	if !p.contained(resolved) {
		return &PolicyError{
			Kind: ErrPathOutsideAllowlist,
			Path: path,
			Msg:  fmt.Sprintf("path %q is outside allowed directories", path),
		}
	}

	if ext := strings.ToLower(filepath.Ext(resolved)); ext != "" {
		if _, blocked := p.blockedExts[ext]; blocked {
			return &PolicyError{
				Kind: ErrBlockedExtension,
				Path: path,
				Msg:  fmt.Sprintf("file extension %q is blocked", ext),
			}
		}
	}

	if info, err := os.Stat(resolved); err == nil && info.Mode().IsRegular() {
		sizeMB := float64(info.Size()) / (1024 * 1024)
		if sizeMB > p.maxFileSizeMB {
			return &PolicyError{
				Kind: ErrFileTooLarge,
				Path: path,
				Msg:  fmt.Sprintf("file size (%.2fMB) exceeds limit (%.2fMB)", sizeMB, p.maxFileSizeMB),
			}
		}
	}

	return nil
}

// canonicalize resolves path to an absolute, symlink-free form. For paths
// that do not exist yet (write targets), the nearest existing ancestor is
// resolved and the missing suffix re-joined, so symlinked parents cannot
// escape the allowlist.
func canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	current := abs
	var suffix []string
	for {
		resolved, err := filepath.EvalSymlinks(current)
		if err == nil {
			for i := len(suffix) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, suffix[i])
			}
			return resolved, nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", err
		}
		suffix = append(suffix, filepath.Base(current))
		current = parent
	}
}

// contained reports whether resolved is a descendant of (or equal to) any
// allowed root. Uses filepath.Rel rather than string prefixes so that
// /home/user-evil does not pass for an allowlisted /home/user.
func (p *PathPolicy) contained(resolved string) bool {
	for _, root := range p.allowedRoots {
		rel, err := filepath.Rel(root, resolved)
		if err != nil {
			continue
		}
		if rel == "." {
			return true
		}
		if rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
