package reader

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/01fortes/beanboot/pkg/container"
	"github.com/01fortes/beanboot/pkg/resource"
)

type student struct {
	Name string
	Age  int
}

type classroom struct {
	Name       string
	Capacity   int
	Monitor    *student
	Students   []*student
	Tags       map[string]string
	Members    map[string]*student
	Props      map[string]string
	Substitute *student

	opened bool
	closed bool
}

func (c *classroom) Open() { c.opened = true }

func (c *classroom) Close() error {
	c.closed = true
	return nil
}

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func testFactory(t *testing.T) (*container.Factory, *container.TypeRegistry) {
	t.Helper()
	types := container.NewTypeRegistry()
	require.NoError(t, types.Register(student{}, "example.Student"))
	require.NoError(t, types.Register(classroom{}, "example.Classroom"))

	cfg := container.DefaultConfig()
	cfg.Logger = discard
	cfg.Types = types
	return container.New(cfg), types
}

func testOptions(types *container.TypeRegistry, profiles ...string) Options {
	return Options{
		Environment: container.NewEnvironment(profiles...),
		Types:       types,
		Logger:      discard,
	}
}

const classroomXML = `<?xml version="1.0" encoding="UTF-8"?>
<beans xmlns="http://www.springframework.org/schema/beans"
       xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance"
       default-init-method="Open" default-destroy-method="Close">
  <description>students and their classroom</description>

  <bean id="student" name="pupil,learner" class="example.Student">
    <property name="name" value="zhangsan"/>
    <property name="age"><value>20</value></property>
  </bean>

  <bean class="example.Student">
    <property name="name" value="anonymous"/>
  </bean>
  <bean class="example.Student"/>

  <bean id="classroom" class="example.Classroom" lazy-init="true">
    <description>
      Room 101
    </description>
    <property name="name" value="Room 101"/>
    <property name="capacity" value="30"/>
    <property name="monitor" ref="student"/>
    <property name="students">
      <list>
        <ref bean="student"/>
        <bean class="example.Student">
          <property name="name" value="inner"/>
        </bean>
      </list>
    </property>
    <property name="tags">
      <map>
        <entry key="floor" value="3"/>
        <entry key="wing"><value>east</value></entry>
      </map>
    </property>
    <property name="members">
      <map>
        <entry key="monitor" value-ref="pupil"/>
      </map>
    </property>
    <property name="props">
      <props>
        <prop key="projector">yes</prop>
      </props>
    </property>
    <property name="substitute"><null/></property>
  </bean>

  <alias name="classroom" alias="room"/>

  <beans profile="dev">
    <bean id="devOnly" class="example.Student"/>
  </beans>
  <beans profile="!dev" default-lazy-init="true">
    <bean id="notDev" class="example.Student"/>
  </beans>
</beans>
`

func TestXMLReader_LoadsDefinitions(t *testing.T) {
	f, types := testFactory(t)
	r := NewXMLReader(f, testOptions(types, "test"))

	n, err := r.LoadBeanDefinitions(resource.NewByteResource("applicationContext.xml", []byte(classroomXML)))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Same(t, container.DefinitionRegistry(f), r.Registry())

	assert.Equal(t, []string{"student", "example.Student#0", "example.Student#1", "classroom", "notDev"}, f.BeanDefinitionNames())
	assert.Equal(t, []string{"learner", "pupil"}, f.GetAliases("student"))
	assert.Equal(t, []string{"example.Student"}, f.GetAliases("example.Student#0"))
	assert.Empty(t, f.GetAliases("example.Student#1"))
	assert.Equal(t, []string{"room"}, f.GetAliases("classroom"))
	assert.False(t, f.ContainsBeanDefinition("devOnly"))

	studentDef, err := f.GetBeanDefinition("student")
	require.NoError(t, err)
	want := &container.BeanDefinition{
		ClassName: "example.Student",
		Properties: []container.PropertyValue{
			{Name: "name", Value: container.LiteralValue("zhangsan")},
			{Name: "age", Value: container.LiteralValue("20")},
		},
		Source: "byte array [applicationContext.xml]",
	}
	if diff := cmp.Diff(want, studentDef); diff != "" {
		t.Errorf("student definition mismatch (-want +got):\n%s", diff)
	}

	roomDef, err := f.GetBeanDefinition("classroom")
	require.NoError(t, err)
	assert.Equal(t, "Open", roomDef.InitMethod)
	assert.Equal(t, "Close", roomDef.DestroyMethod)
	assert.True(t, roomDef.LazyInit)
	assert.Equal(t, "Room 101", roomDef.Description)

	notDev, err := f.GetBeanDefinition("notDev")
	require.NoError(t, err)
	assert.True(t, notDev.LazyInit)
	assert.Empty(t, notDev.InitMethod)

	room, err := container.GetBeanAs[*classroom](f, "room")
	require.NoError(t, err)
	pupil, err := container.GetBeanAs[*student](f, "pupil")
	require.NoError(t, err)

	assert.Equal(t, "zhangsan", pupil.Name)
	assert.Equal(t, 20, pupil.Age)
	assert.Equal(t, "Room 101", room.Name)
	assert.Equal(t, 30, room.Capacity)
	assert.Same(t, pupil, room.Monitor)
	require.Len(t, room.Students, 2)
	assert.Same(t, pupil, room.Students[0])
	assert.Equal(t, "inner", room.Students[1].Name)
	assert.Equal(t, map[string]string{"floor": "3", "wing": "east"}, room.Tags)
	assert.Same(t, pupil, room.Members["monitor"])
	assert.Equal(t, map[string]string{"projector": "yes"}, room.Props)
	assert.Nil(t, room.Substitute)
	assert.True(t, room.opened)

	require.NoError(t, f.DestroySingletons())
	assert.True(t, room.closed)
}

func TestXMLReader_ActiveProfile(t *testing.T) {
	f, types := testFactory(t)
	r := NewXMLReader(f, testOptions(types, "dev"))

	_, err := r.LoadBeanDefinitions(resource.NewByteResource("applicationContext.xml", []byte(classroomXML)))
	require.NoError(t, err)
	assert.True(t, f.ContainsBeanDefinition("devOnly"))
	assert.False(t, f.ContainsBeanDefinition("notDev"))
}

func TestXMLReader_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		message string
	}{
		{"malformed", `<beans><bean id="a"`, "cannot parse"},
		{"wrong root", `<bean id="a"/>`, "root element must be <beans>"},
		{"empty", ``, "no <beans> element"},
		{"unknown element", `<beans><component id="a"/></beans>`, "unexpected element <component>"},
		{"two values", `<beans><bean id="a" class="example.Student"><property name="name" value="x"><value>y</value></property></bean></beans>`, "more than one value"},
		{"no value", `<beans><bean id="a" class="example.Student"><property name="name"/></bean></beans>`, "needs a value"},
		{"ctor name", `<beans><bean id="a" class="example.Student"><constructor-arg name="x" value="1"/></bean></beans>`, "index only"},
		{"bad bool", `<beans><bean id="a" class="example.Student" abstract="maybe"/></beans>`, "invalid boolean"},
		{"duplicate", `<beans><bean id="a" class="example.Student"/><bean name="b,a" class="example.Student"/></beans>`, "bean name 'a' is already used"},
		{"anonymous without class", `<beans><bean><property name="a" value="1"/></bean></beans>`, "needs a class or a parent"},
		{"bad scope", `<beans><bean id="a" class="example.Student" scope="session"/></beans>`, "unknown scope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, types := testFactory(t)
			r := NewXMLReader(f, testOptions(types))
			_, err := r.LoadBeanDefinitions(resource.NewByteResource("bad.xml", []byte(tt.content)))
			require.Error(t, err)
			assert.ErrorIs(t, err, container.ErrDefinitionStore)
			assert.Contains(t, err.Error(), tt.message)
			assert.Contains(t, err.Error(), "byte array [bad.xml]")
		})
	}
}

func TestReader_MissingResource(t *testing.T) {
	f, types := testFactory(t)
	r := NewXMLReader(f, testOptions(types))

	_, err := r.LoadBeanDefinitions(resource.NewClassPathResource("nope.xml", t.TempDir()))
	require.ErrorIs(t, err, container.ErrDefinitionStore)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, err.Error(), "class path resource [nope.xml]")
}

const classroomYAML = `
defaults:
  init-method: Open
  destroy-method: Close
beans:
  student:
    class: example.Student
    names: [pupil, learner]
    properties:
      name: zhangsan
      age: 20
  classroom:
    class: example.Classroom
    lazy-init: true
    properties:
      name: Room 101
      capacity: 30
      monitor: {ref: student}
      students:
        - ref: student
        - bean:
            class: example.Student
            properties:
              name: inner
      tags:
        floor: "3"
        wing: east
      members:
        monitor: {ref: pupil}
      props:
        map: {projector: "yes"}
      substitute: ~
aliases:
  classroom: room
---
profile: dev
beans:
  - id: devOnly
    class: example.Student
---
profile: "!dev"
defaults:
  lazy-init: true
beans:
  - class: example.Student
    properties:
      name: anonymous
`

func TestYAMLReader_LoadsDefinitions(t *testing.T) {
	f, types := testFactory(t)
	r := NewYAMLReader(f, testOptions(types))

	n, err := r.LoadBeanDefinitions(resource.NewByteResource("applicationContext.yaml", []byte(classroomYAML)))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	assert.Equal(t, []string{"student", "classroom", "example.Student#0"}, f.BeanDefinitionNames())
	assert.Equal(t, []string{"learner", "pupil"}, f.GetAliases("student"))
	assert.Equal(t, []string{"example.Student"}, f.GetAliases("example.Student#0"))

	anon, err := f.GetBeanDefinition("example.Student#0")
	require.NoError(t, err)
	assert.True(t, anon.LazyInit)

	room, err := container.GetBeanAs[*classroom](f, "room")
	require.NoError(t, err)
	pupil, err := container.GetBeanAs[*student](f, "pupil")
	require.NoError(t, err)

	assert.Equal(t, 20, pupil.Age)
	assert.Same(t, pupil, room.Monitor)
	require.Len(t, room.Students, 2)
	assert.Equal(t, "inner", room.Students[1].Name)
	assert.Equal(t, map[string]string{"floor": "3", "wing": "east"}, room.Tags)
	assert.Same(t, pupil, room.Members["monitor"])
	assert.Equal(t, map[string]string{"projector": "yes"}, room.Props)
	assert.Nil(t, room.Substitute)
	assert.True(t, room.opened)
}

func TestYAMLReader_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		message string
	}{
		{"not a mapping", "- a\n- b\n", "expected a mapping"},
		{"unknown key", "components: {}\n", "unknown key \"components\""},
		{"unknown bean key", "beans:\n  a:\n    klass: x\n", "unknown bean key \"klass\""},
		{"bad index", "beans:\n  a:\n    class: example.Student\n    constructor-args:\n      - {index: x, value: 1}\n", "invalid index"},
		{"empty ref", "beans:\n  a:\n    class: example.Student\n    properties:\n      b: {ref: \"\"}\n", "ref needs a bean name"},
		{"syntax", "beans: [\n", "cannot parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, types := testFactory(t)
			r := NewYAMLReader(f, testOptions(types))
			_, err := r.LoadBeanDefinitions(resource.NewByteResource("bad.yaml", []byte(tt.content)))
			require.ErrorIs(t, err, container.ErrDefinitionStore)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReader_Imports(t *testing.T) {
	dir := t.TempDir()
	main := writeFile(t, dir, "main.xml", `<beans>
  <import resource="sub/students.yaml"/>
  <import resource="classpath:shared.xml"/>
  <bean id="classroom" class="example.Classroom">
    <property name="monitor" ref="student"/>
  </bean>
</beans>`)
	writeFile(t, dir, "sub/students.yaml", `
beans:
  student:
    class: example.Student
    properties: {name: imported}
`)
	cp := t.TempDir()
	writeFile(t, cp, "shared.xml", `<beans><bean id="shared" class="example.Student"/></beans>`)

	f, types := testFactory(t)
	opts := testOptions(types)
	opts.ClassPath = []string{cp}
	r, err := ForResource(f, resource.NewFileResource(main), opts)
	require.NoError(t, err)

	n, err := r.LoadBeanDefinitions(resource.NewFileResource(main))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"student", "shared", "classroom"}, f.BeanDefinitionNames())

	room, err := container.GetBeanAs[*classroom](f, "classroom")
	require.NoError(t, err)
	assert.Equal(t, "imported", room.Monitor.Name)
}

func TestReader_ImportCycle(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.xml", `<beans><import resource="b.yaml"/></beans>`)
	writeFile(t, dir, "b.yaml", "imports:\n  - resource: a.xml\n")

	f, types := testFactory(t)
	_, err := NewXMLReader(f, testOptions(types)).LoadBeanDefinitions(resource.NewFileResource(a))
	require.ErrorIs(t, err, container.ErrDefinitionStore)
	assert.Contains(t, err.Error(), "cyclic loading")
}

func TestForResource_UnknownExtension(t *testing.T) {
	f, types := testFactory(t)
	_, err := ForResource(f, resource.NewByteResource("beans.json", nil), testOptions(types))
	assert.ErrorIs(t, err, container.ErrDefinitionStore)
}

func TestWriteYAML_ReloadsToSameDefinitions(t *testing.T) {
	f, types := testFactory(t)
	_, err := NewXMLReader(f, testOptions(types, "test")).
		LoadBeanDefinitions(resource.NewByteResource("applicationContext.xml", []byte(classroomXML)))
	require.NoError(t, err)
	require.NoError(t, f.RegisterBeanDefinition("greeter", &container.BeanDefinition{
		ClassName: "example.Greeter",
		Abstract:  true,
		DependsOn: []string{"student"},
		ConstructorArgs: []container.ConstructorArg{
			{Index: 1, Value: container.LiteralValue("null")},
			{Index: -1, Value: container.MapValue(container.MapEntry{Key: "ref", Value: container.LiteralValue("x")})},
		},
	}))

	var buf bytes.Buffer
	require.NoError(t, WriteYAML(&buf, f))

	reloaded, _ := testFactory(t)
	_, err = NewYAMLReader(reloaded, testOptions(types)).
		LoadBeanDefinitions(resource.NewByteResource("converted.yaml", buf.Bytes()))
	require.NoError(t, err, buf.String())

	assert.Equal(t, f.BeanDefinitionNames(), reloaded.BeanDefinitionNames())
	for _, name := range f.BeanDefinitionNames() {
		want, err := f.GetBeanDefinition(name)
		require.NoError(t, err)
		got, err := reloaded.GetBeanDefinition(name)
		require.NoError(t, err)

		if diff := cmp.Diff(want, got,
			cmpopts.IgnoreFields(container.BeanDefinition{}, "Source"),
			cmpopts.EquateEmpty(),
		); diff != "" {
			t.Errorf("definition %s changed after conversion (-want +got):\n%s", name, diff)
		}
		assert.Equal(t, f.GetAliases(name), reloaded.GetAliases(name), name)
	}
}
