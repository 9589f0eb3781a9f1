// Package workspace confines all tool filesystem access to a single project
// root. Every operation takes a relative path, resolves it against the root,
// and rejects anything that would escape it.
package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// PathEscapeError reports a path that resolves outside the workspace root.
type PathEscapeError struct {
	Path string
}

func (e *PathEscapeError) Error() string {
	return fmt.Sprintf("path escapes workspace root: %s", e.Path)
}

// EditConflictError reports an edit whose expected original content no longer
// matches the file. The file is left unchanged.
type EditConflictError struct {
	Path string
}

func (e *EditConflictError) Error() string {
	return fmt.Sprintf("edit conflict: expected content not found in %s", e.Path)
}

// Option configures a Workspace.
type Option func(*Workspace)

// WithParentCreation controls whether WriteFile creates missing parent
// directories. Default is true; when disabled, writing into a missing
// directory fails explicitly.
func WithParentCreation(enabled bool) Option {
	return func(w *Workspace) {
		w.createParents = enabled
	}
}

// Workspace roots all file operations at a single project directory.
type Workspace struct {
	root          string
	createParents bool
}

// New creates a Workspace rooted at dir. An empty dir means the current
// working directory. The root is made absolute and symlink-resolved so later
// boundary checks are reliable.
func New(dir string, opts ...Option) (*Workspace, error) {
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("getwd: %w", err)
		}
		dir = cwd
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("abs(%s): %w", dir, err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("workspace root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("workspace root is not a directory: %s", abs)
	}

	w := &Workspace{root: abs, createParents: true}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Root returns the absolute workspace root.
func (w *Workspace) Root() string { return w.root }

// Resolve maps a relative path to an absolute path inside the workspace.
// Absolute inputs, parent traversal, and symlink escapes all fail with a
// PathEscapeError before any filesystem mutation happens.
func (w *Workspace) Resolve(relPath string) (string, error) {
	if filepath.IsAbs(relPath) {
		return "", &PathEscapeError{Path: relPath}
	}

	cleaned := filepath.Clean(relPath)
	if cleaned == "" {
		cleaned = "."
	}
	candidate := filepath.Join(w.root, cleaned)

	// Resolve symlinks where possible. When the leaf does not exist yet,
	// resolve the deepest existing ancestor and rejoin so an escape via a
	// symlinked parent is still caught.
	if resolved, err := filepath.EvalSymlinks(candidate); err == nil {
		candidate = resolved
	} else {
		parent := filepath.Dir(candidate)
		if resolvedParent, err2 := filepath.EvalSymlinks(parent); err2 == nil {
			candidate = filepath.Join(resolvedParent, filepath.Base(candidate))
		}
	}

	rel, err := filepath.Rel(w.root, candidate)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return "", &PathEscapeError{Path: relPath}
	}
	return candidate, nil
}

// ReadFile returns the full text content of a file.
func (w *Workspace) ReadFile(relPath string) (string, error) {
	abs, err := w.Resolve(relPath)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("expected a file, found a directory: %s", relPath)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// WriteFile writes content to a file, overwriting any existing content.
// Missing parent directories are created when parent creation is enabled,
// otherwise the write fails.
func (w *Workspace) WriteFile(relPath, content string) error {
	abs, err := w.Resolve(relPath)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)
	if _, statErr := os.Stat(dir); os.IsNotExist(statErr) {
		if !w.createParents {
			return fmt.Errorf("parent directory does not exist: %s", filepath.Dir(relPath))
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create parent directory: %w", err)
		}
	}
	return os.WriteFile(abs, []byte(content), 0o644)
}

// Edit replaces every occurrence of old with new in the file at relPath.
// When the file does not exist and old is empty, the file is created with
// new as its content. A non-empty old that is absent from the current
// content is a conflict: the file is left byte-for-byte unchanged and an
// EditConflictError is returned.
func (w *Workspace) Edit(relPath, old, new string) (created bool, replaced int, err error) {
	abs, err := w.Resolve(relPath)
	if err != nil {
		return false, 0, err
	}

	if _, statErr := os.Stat(abs); os.IsNotExist(statErr) {
		if old != "" {
			return false, 0, fmt.Errorf("no such file: %s", relPath)
		}
		if err := w.WriteFile(relPath, new); err != nil {
			return false, 0, err
		}
		return true, 0, nil
	}

	content, err := w.ReadFile(relPath)
	if err != nil {
		return false, 0, err
	}
	if old == "" {
		return false, 0, fmt.Errorf("old_str must be provided when editing an existing file: %s", relPath)
	}
	count := strings.Count(content, old)
	if count == 0 {
		return false, 0, &EditConflictError{Path: relPath}
	}
	updated := strings.ReplaceAll(content, old, new)
	if err := os.WriteFile(abs, []byte(updated), 0o644); err != nil {
		return false, 0, err
	}
	return false, count, nil
}

// ListFiles recursively lists entries under relPath, honoring the project's
// gitignore rules. Directories carry a trailing slash. Results are sorted
// and relative to the listed directory.
func (w *Workspace) ListFiles(ctx context.Context, relPath string) ([]string, error) {
	if relPath == "" {
		relPath = "."
	}
	abs, err := w.Resolve(relPath)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{}, nil
	}

	ignore := w.loadIgnore()

	var results []string
	err = filepath.WalkDir(abs, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path == abs {
			return nil
		}
		rel, relErr := filepath.Rel(abs, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if d.Name() == ".git" || (ignore != nil && ignore.MatchesPath(rel+"/")) {
				return filepath.SkipDir
			}
			results = append(results, rel+"/")
			return nil
		}
		if ignore != nil && ignore.MatchesPath(rel) {
			return nil
		}
		results = append(results, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(results)
	return results, nil
}

// Match is one search hit.
type Match struct {
	Path string
	Line int
	Text string
}

// maxSearchFileSize skips files unlikely to be source text.
const maxSearchFileSize = 1 << 20

// Search scans files under relPath for a regular expression and returns up
// to maxResults matching lines. Gitignored files and .git are skipped.
func (w *Workspace) Search(ctx context.Context, pattern, relPath string, maxResults int) ([]Match, error) {
	if relPath == "" {
		relPath = "."
	}
	abs, err := w.Resolve(relPath)
	if err != nil {
		return nil, err
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern: %w", err)
	}
	if maxResults <= 0 {
		maxResults = 100
	}

	ignore := w.loadIgnore()

	var matches []Match
	err = filepath.WalkDir(abs, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, relErr := filepath.Rel(abs, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if d.Name() == ".git" || (ignore != nil && rel != "." && ignore.MatchesPath(rel+"/")) {
				return filepath.SkipDir
			}
			return nil
		}
		if ignore != nil && ignore.MatchesPath(rel) {
			return nil
		}
		info, infoErr := d.Info()
		if infoErr != nil || info.Size() > maxSearchFileSize {
			return nil
		}
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil
		}
		if strings.IndexByte(string(data), 0) >= 0 {
			return nil // binary
		}
		for i, line := range strings.Split(string(data), "\n") {
			if re.MatchString(line) {
				matches = append(matches, Match{Path: rel, Line: i + 1, Text: line})
				if len(matches) >= maxResults {
					return filepath.SkipAll
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return matches, nil
}

// loadIgnore compiles gitignore patterns from the repository's .gitignore
// and .git/info/exclude. A nil return means nothing is ignored.
func (w *Workspace) loadIgnore() *gitignore.GitIgnore {
	var patterns []string
	for _, name := range []string{".gitignore", filepath.Join(".git", "info", "exclude")} {
		data, err := os.ReadFile(filepath.Join(w.root, name))
		if err != nil {
			continue
		}
		patterns = append(patterns, strings.Split(string(data), "\n")...)
	}
	if len(patterns) == 0 {
		return nil
	}
	return gitignore.CompileIgnoreLines(patterns...)
}
