package resource

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestClassPathResource_FirstRootWins(t *testing.T) {
	t.Parallel()

	first := t.TempDir()
	second := t.TempDir()
	writeFile(t, second, "applicationContext.xml", "second")
	want := writeFile(t, first, "applicationContext.xml", "first")

	r := NewClassPathResource("/applicationContext.xml", first, second)
	require.True(t, r.Exists())
	assert.Equal(t, "applicationContext.xml", r.Path())
	assert.Equal(t, want, r.Filename())

	data, err := ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))
}

func TestClassPathResource_FallsBackToLaterRoot(t *testing.T) {
	t.Parallel()

	first := t.TempDir()
	second := t.TempDir()
	writeFile(t, second, "conf/beans.yaml", "beans: []")

	r := NewClassPathResource("conf/beans.yaml", first, second)
	require.True(t, r.Exists())
	assert.Equal(t, ".yaml", Ext(r))
}

func TestClassPathResource_Missing(t *testing.T) {
	t.Parallel()

	r := NewClassPathResource("nope.xml", t.TempDir())
	assert.False(t, r.Exists())
	assert.Empty(t, r.Filename())

	_, err := r.Open()
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
	assert.Contains(t, err.Error(), "class path resource [nope.xml]")
}

func TestClassPathResource_RejectsEscape(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, filepath.Dir(root), "outside.xml", "x")

	r := NewClassPathResource("a/../../outside.xml", root)
	assert.False(t, r.Exists())

	_, err := r.Open()
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrInvalid))
}

func TestClassPathResource_CreateRelative(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, root, "conf/other.xml", "<beans/>")

	r := NewClassPathResource("conf/main.xml", root)
	rel, err := r.CreateRelative("other.xml")
	require.NoError(t, err)
	assert.Equal(t, "class path resource [conf/other.xml]", rel.Description())
	assert.True(t, rel.Exists())

	abs, err := r.CreateRelative("/conf/other.xml")
	require.NoError(t, err)
	assert.Equal(t, rel.Description(), abs.Description())
}

func TestDefaultClassPath_FromEnv(t *testing.T) {
	t.Setenv(ClassPathEnv, "a"+string(os.PathListSeparator)+" "+string(os.PathListSeparator)+"b")
	assert.Equal(t, []string{"a", "b"}, DefaultClassPath())

	t.Setenv(ClassPathEnv, "")
	assert.Equal(t, []string{"resources", "."}, DefaultClassPath())
}

func TestResolve_Prefixes(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	file := writeFile(t, root, "beans.xml", "<beans/>")

	cp := Resolve("classpath:beans.xml", []string{root})
	require.IsType(t, &ClassPathResource{}, cp)
	assert.True(t, cp.Exists())

	bare := Resolve("beans.xml", []string{root})
	require.IsType(t, &ClassPathResource{}, bare)

	fr := Resolve("file:"+file, nil)
	require.IsType(t, &FileResource{}, fr)
	assert.Equal(t, file, fr.Filename())
	assert.Equal(t, "file ["+file+"]", fr.Description())
}

func TestFileResource_CreateRelative(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, root, "nested/child.yaml", "beans: []")

	r := NewFileResource(filepath.Join(root, "main.yaml"))
	assert.False(t, r.Exists())

	child, err := r.CreateRelative("nested/child.yaml")
	require.NoError(t, err)
	assert.True(t, child.Exists())
}

func TestByteResource(t *testing.T) {
	t.Parallel()

	r := NewByteResource("inline/beans.xml", []byte("<beans/>"))
	assert.True(t, r.Exists())
	assert.Empty(t, r.Filename())
	assert.Equal(t, ".xml", Ext(r))
	assert.Equal(t, "beans.xml", r.Name())

	rc, err := r.Open()
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "<beans/>", string(data))

	_, err = r.CreateRelative("other.xml")
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}
