package container

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvironment_Resolve(t *testing.T) {
	env := NewEnvironment("dev")
	env.RegisterVariable("app.name", "classroom")
	env.RegisterVariable("app.greeting", "hello ${app.name}")
	env.RegisterVariable("key", "name")
	env.RegisterVariable("loop.a", "${loop.b}")
	env.RegisterVariable("loop.b", "${loop.a}")
	env.RegisterVariable("app.port", 8080)

	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"${app.name}", "classroom"},
		{"[${app.greeting}]", "[hello classroom]"},
		{"${app.${key}}", "classroom"},
		{"${missing:fallback}", "fallback"},
		{"${missing:${app.name}}", "classroom"},
		{"${missing:}", ""},
		{"port=${app.port}", "port=8080"},
		{"${unterminated", "${unterminated"},
	}
	for _, tt := range tests {
		got, err := env.Resolve(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := env.Resolve("${missing}")
	assert.ErrorIs(t, err, ErrUnresolvableVariable)

	_, err = env.Resolve("${loop.a}")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circular placeholder")
}

func TestEnvironment_Profiles(t *testing.T) {
	t.Setenv(ActiveProfilesEnv, "dev, local")
	env := NewEnvironment()
	assert.Equal(t, []string{"dev", "local"}, env.ActiveProfiles())

	assert.True(t, env.AcceptsProfiles(""))
	assert.True(t, env.AcceptsProfiles("dev"))
	assert.True(t, env.AcceptsProfiles("prod,local"))
	assert.False(t, env.AcceptsProfiles("prod"))
	assert.True(t, env.AcceptsProfiles("!prod"))
	assert.False(t, env.AcceptsProfiles("!dev"))

	env.SetActiveProfiles("prod")
	assert.True(t, env.AcceptsProfiles("prod"))
	assert.Equal(t, []string{"prod"}, NewEnvironment("prod", "prod").ActiveProfiles())
}

func TestYamlVariableLoader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "application.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
student:
  name: zhangsan
  age: 20
servers:
  - alpha
  - beta
`), 0o644))

	env := NewEnvironment()
	require.NoError(t, env.Load(YamlVariableLoader{Path: path, Required: true}))
	assert.Equal(t, "zhangsan", env.GetVariable("student.name"))
	assert.Equal(t, "20", env.GetVariable("student.age"))
	assert.Equal(t, "beta", env.GetVariable("servers[1]"))
	assert.True(t, env.HasVariable("servers"))

	assert.NoError(t, env.Load(YamlVariableLoader{Path: filepath.Join(dir, "absent.yml")}))
	err := env.Load(YamlVariableLoader{Path: filepath.Join(dir, "absent.yml"), Required: true})
	assert.ErrorIs(t, err, &BeanError{Code: CodeConfigurationError})

	bad := filepath.Join(dir, "bad.yml")
	require.NoError(t, os.WriteFile(bad, []byte("a: [b"), 0o644))
	assert.Error(t, env.Load(YamlVariableLoader{Path: bad}))
}

func TestProfileYamlLoader(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "application.yml"), []byte(`
goboot:
  profiles:
    active: dev
student:
  name: base
  age: 20
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "application-dev.yaml"), []byte(`
student:
  name: dev
`), 0o644))

	env := NewEnvironment()
	env.SetActiveProfiles()
	require.NoError(t, env.Load(ProfileYamlLoader{ConfigPath: dir}))

	assert.Equal(t, []string{"dev"}, env.ActiveProfiles())
	assert.Equal(t, "dev", env.GetVariable("student.name"))
	assert.Equal(t, "20", env.GetVariable("student.age"))
}

func TestEnvAndPropertiesLoaders(t *testing.T) {
	t.Setenv("GOBOOT_STUDENT_NAME", "wangwu")

	env := NewEnvironment()
	require.NoError(t, env.Load(EnvVariableLoader{Prefix: "GOBOOT_"}))
	assert.Equal(t, "wangwu", env.GetVariable("student.name"))

	path := filepath.Join(t.TempDir(), "app.properties")
	require.NoError(t, os.WriteFile(path, []byte(`
# comment
! also a comment
student.name = lisi
student.age: 21
flag
`), 0o644))
	require.NoError(t, env.Load(PropertiesVariableLoader{Path: path}))
	assert.Equal(t, "lisi", env.GetVariable("student.name"))
	assert.Equal(t, "21", env.GetVariable("student.age"))
	assert.True(t, env.HasVariable("flag"))

	assert.NoError(t, env.Load(PropertiesVariableLoader{Path: filepath.Join(t.TempDir(), "none.properties")}))
}
