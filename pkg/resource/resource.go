// Package resource locates the declarative files a bean factory is loaded from.
package resource

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

const (
	// ClassPathPrefix marks a location resolved against the class path roots
	ClassPathPrefix = "classpath:"
	// FilePrefix marks a plain filesystem location
	FilePrefix = "file:"
)

// Resource is a readable source of bean definitions
type Resource interface {
	// Exists reports whether the underlying content can be opened
	Exists() bool
	// Open returns a reader for the content; callers must close it
	Open() (io.ReadCloser, error)
	// Filename returns the backing file path, or "" when not file-backed
	Filename() string
	// Description is a human readable identifier used in errors and logs
	Description() string
	// CreateRelative resolves a path relative to this resource
	CreateRelative(relativePath string) (Resource, error)
}

// Resolve turns a location string into a Resource.
// Locations without a prefix are treated as class path locations.
func Resolve(location string, roots []string) Resource {
	switch {
	case strings.HasPrefix(location, ClassPathPrefix):
		return NewClassPathResource(strings.TrimPrefix(location, ClassPathPrefix), roots...)
	case strings.HasPrefix(location, FilePrefix):
		return NewFileResource(strings.TrimPrefix(location, FilePrefix))
	default:
		return NewClassPathResource(location, roots...)
	}
}

// ReadAll opens the resource and reads its full content
func ReadAll(r Resource) ([]byte, error) {
	rc, err := r.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", r.Description(), err)
	}
	return data, nil
}

// Ext returns the lower-cased extension of the resource name, including the dot
func Ext(r Resource) string {
	name := r.Filename()
	if named, ok := r.(interface{ Name() string }); ok {
		name = named.Name()
	}
	return strings.ToLower(filepath.Ext(name))
}

// FileResource is a resource backed by a filesystem path
type FileResource struct {
	path string
}

// NewFileResource creates a resource for the given filesystem path
func NewFileResource(p string) *FileResource {
	return &FileResource{path: filepath.Clean(p)}
}

func (r *FileResource) Exists() bool {
	info, err := os.Stat(r.path)
	return err == nil && !info.IsDir()
}

func (r *FileResource) Open() (io.ReadCloser, error) {
	f, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("%s cannot be opened: %w", r.Description(), err)
	}
	return f, nil
}

func (r *FileResource) Filename() string {
	return r.path
}

func (r *FileResource) Description() string {
	return "file [" + r.path + "]"
}

func (r *FileResource) CreateRelative(relativePath string) (Resource, error) {
	if filepath.IsAbs(relativePath) {
		return NewFileResource(relativePath), nil
	}
	return NewFileResource(filepath.Join(filepath.Dir(r.path), relativePath)), nil
}

// ByteResource is an in-memory resource
type ByteResource struct {
	name        string
	data        []byte
	description string
}

// NewByteResource creates an in-memory resource. The name carries the
// extension used to pick a definition format, e.g. "beans.xml".
func NewByteResource(name string, data []byte) *ByteResource {
	return &ByteResource{
		name:        name,
		data:        data,
		description: "byte array [" + name + "]",
	}
}

func (r *ByteResource) Exists() bool {
	return true
}

func (r *ByteResource) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(r.data)), nil
}

func (r *ByteResource) Filename() string {
	return ""
}

func (r *ByteResource) Description() string {
	return r.description
}

func (r *ByteResource) CreateRelative(relativePath string) (Resource, error) {
	return nil, fmt.Errorf("cannot create relative resource %q for %s: %w", relativePath, r.description, fs.ErrNotExist)
}

// Name returns the logical name of the in-memory resource
func (r *ByteResource) Name() string {
	return path.Base(r.name)
}

var (
	_ Resource = (*FileResource)(nil)
	_ Resource = (*ByteResource)(nil)
	_ Resource = (*ClassPathResource)(nil)
)
