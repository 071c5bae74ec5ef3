package resource

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ClassPathEnv lists the class path roots, separated by os.PathListSeparator
const ClassPathEnv = "GOBOOT_CLASSPATH"

// DefaultClassPath returns the class path roots from GOBOOT_CLASSPATH,
// falling back to "resources" and the working directory.
func DefaultClassPath() []string {
	if env := os.Getenv(ClassPathEnv); env != "" {
		var roots []string
		for _, root := range filepath.SplitList(env) {
			if root = strings.TrimSpace(root); root != "" {
				roots = append(roots, root)
			}
		}
		if len(roots) > 0 {
			return roots
		}
	}
	return []string{"resources", "."}
}

// ClassPathResource is a resource addressed by a path relative to a set of
// class path roots. The first root that contains the path wins.
type ClassPathResource struct {
	path  string
	roots []string
}

// NewClassPathResource creates a class path resource. With no roots the
// DefaultClassPath is used.
func NewClassPathResource(p string, roots ...string) *ClassPathResource {
	if len(roots) == 0 {
		roots = DefaultClassPath()
	}
	return &ClassPathResource{
		path:  cleanPath(p),
		roots: append([]string(nil), roots...),
	}
}

// cleanPath normalizes a class path location; the result never starts with "/"
func cleanPath(p string) string {
	p = filepath.ToSlash(p)
	p = strings.TrimLeft(p, "/")
	if p == "" {
		return ""
	}
	return path.Clean(p)
}

// Path returns the normalized class path location
func (r *ClassPathResource) Path() string {
	return r.path
}

// Name returns the class path location; its extension selects the reader
func (r *ClassPathResource) Name() string {
	return r.path
}

// Roots returns the roots searched by this resource
func (r *ClassPathResource) Roots() []string {
	return append([]string(nil), r.roots...)
}

func (r *ClassPathResource) escapesRoot() bool {
	return r.path == ".." || strings.HasPrefix(r.path, "../")
}

// locate returns the first existing file for the resource
func (r *ClassPathResource) locate() (string, bool) {
	if r.path == "" || r.path == "." || r.escapesRoot() {
		return "", false
	}
	for _, root := range r.roots {
		candidate := filepath.Join(root, filepath.FromSlash(r.path))
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true
		}
	}
	return "", false
}

func (r *ClassPathResource) Exists() bool {
	_, ok := r.locate()
	return ok
}

func (r *ClassPathResource) Open() (io.ReadCloser, error) {
	if r.escapesRoot() {
		return nil, fmt.Errorf("%s escapes the class path roots: %w", r.Description(), fs.ErrInvalid)
	}
	file, ok := r.locate()
	if !ok {
		return nil, fmt.Errorf("%s cannot be opened because it does not exist: %w", r.Description(), fs.ErrNotExist)
	}
	f, err := os.Open(file)
	if err != nil {
		return nil, fmt.Errorf("%s cannot be opened: %w", r.Description(), err)
	}
	return f, nil
}

func (r *ClassPathResource) Filename() string {
	file, _ := r.locate()
	return file
}

func (r *ClassPathResource) Description() string {
	return "class path resource [" + r.path + "]"
}

func (r *ClassPathResource) CreateRelative(relativePath string) (Resource, error) {
	rel := filepath.ToSlash(relativePath)
	if strings.HasPrefix(rel, "/") {
		return NewClassPathResource(rel, r.roots...), nil
	}
	return NewClassPathResource(path.Join(path.Dir(r.path), rel), r.roots...), nil
}
