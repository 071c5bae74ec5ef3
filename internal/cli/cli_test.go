package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/01fortes/beanboot/pkg/container"
	"github.com/01fortes/beanboot/pkg/reader"
	"github.com/01fortes/beanboot/pkg/resource"
)

const resources = "../../resources"

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--classpath", resources, "--config-dir", resources}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestRoot_PrintsStudent(t *testing.T) {
	out, logs, err := run(t)
	require.NoError(t, err, logs)
	assert.Equal(t, "zhangsan\n20\n", out)
	assert.Contains(t, logs, "Loading bean definitions")
}

func TestRoot_YAMLResourceAndProfile(t *testing.T) {
	out, logs, err := run(t, "--resource", "applicationContext.yaml", "--profiles", "dev", "--quiet")
	require.NoError(t, err, logs)
	assert.Equal(t, "zhangsan (dev)\n20\n", out)
	assert.Empty(t, logs)
}

func TestRoot_OtherBean(t *testing.T) {
	out, _, err := run(t, "--bean", "monitor", "-q")
	require.NoError(t, err)
	assert.Equal(t, "lisi\n21\n", out)
}

func TestRoot_Errors(t *testing.T) {
	_, _, err := run(t, "--bean", "nobody", "-q")
	assert.ErrorIs(t, err, &container.BeanError{Code: container.CodeNoSuchBean})

	_, _, err = run(t, "--bean", "classroom", "-q")
	assert.ErrorIs(t, err, &container.BeanError{Code: container.CodeNotOfRequiredType})

	_, stderr, err := run(t, "--resource", "missing.xml", "-q")
	assert.ErrorIs(t, err, container.ErrDefinitionStore)
	assert.Contains(t, stderr, "class path resource [missing.xml]")

	_, _, err = run(t, "extra-arg")
	assert.Error(t, err)
}

// syncBuffer is written by a running command while the test reads it
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func studentXML(name string, age int) []byte {
	return []byte(fmt.Sprintf(`<beans>
  <bean id="student" class="bean.Student">
    <property name="name" value="%s"/>
    <property name="age" value="%d"/>
  </bean>
</beans>`, name, age))
}

func TestRoot_WatchPrintsAfterChange(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	dir := t.TempDir()
	path := filepath.Join(dir, "watched.xml")
	require.NoError(t, os.WriteFile(path, studentXML("zhangsan", 20), 0o644))

	var out syncBuffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"--classpath", dir, "--config-dir", resources, "--resource", "watched.xml", "--watch", "-q"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	require.Eventually(t, func() bool { return out.String() == "zhangsan\n20\n" }, 5*time.Second, 10*time.Millisecond)

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, studentXML("lisi", 21), 0o644))

	require.Eventually(t, func() bool {
		return strings.HasPrefix(out.String(), "zhangsan\n20\nlisi\n21\n")
	}, 5*time.Second, 20*time.Millisecond, "output so far: %q", out.String())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}

func TestBeans_ListsDefinitions(t *testing.T) {
	out, _, err := run(t, "beans", "-q")
	require.NoError(t, err)

	lines := bytes.Split(bytes.TrimSpace([]byte(out)), []byte("\n"))
	require.GreaterOrEqual(t, len(lines), 4)
	assert.Regexp(t, `^NAME\s+CLASS\s+SCOPE\s+LAZY\s+ALIASES$`, string(lines[0]))
	assert.Regexp(t, `^student\s+bean\.Student\s+singleton\s+false\s*$`, string(lines[1]))
	assert.Regexp(t, `^classroom\s+bean\.Classroom\s+singleton\s+true\s+room$`, string(lines[3]))
	assert.Contains(t, out, "3 definitions from class path resource [applicationContext.xml]")
}

func TestConvert_WritesLoadableYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "converted.yaml")
	_, _, err := run(t, "convert", "--out", path, "-q")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "beans:\n")

	factory := container.New(nil)
	n, err := reader.NewYAMLReader(factory, reader.Options{Logger: slog.Default()}).
		LoadBeanDefinitions(resource.NewFileResource(path))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"student", "monitor", "classroom"}, factory.BeanDefinitionNames())
	assert.Equal(t, []string{"room"}, factory.GetAliases("classroom"))

	def, err := factory.GetBeanDefinition("student")
	require.NoError(t, err)
	name, ok := def.Property("name")
	require.True(t, ok)
	assert.Equal(t, "${student.name:zhangsan}", name.Value.Literal)
}

func TestConvert_Stdout(t *testing.T) {
	out, _, err := run(t, "convert", "-q")
	require.NoError(t, err)
	assert.Contains(t, out, "beans:\n")
	assert.Contains(t, out, "class: bean.Student")
}

func TestWriteAtomic_KeepsFileOnFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	require.NoError(t, os.WriteFile(path, []byte("original"), 0o644))

	err := writeAtomic(path, func(w io.Writer) error {
		_, _ = w.Write([]byte("partial"))
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "original", string(data))
}
