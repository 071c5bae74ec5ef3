package bean

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/01fortes/beanboot/pkg/container"
	"github.com/01fortes/beanboot/pkg/reader"
	"github.com/01fortes/beanboot/pkg/resource"
)

var roots = []string{"../../resources"}

func loadFactory(t *testing.T, location string, profiles ...string) *container.Factory {
	t.Helper()
	env := container.NewEnvironment(profiles...)
	cfg := container.DefaultConfig()
	cfg.Environment = env
	factory := container.New(cfg)

	res := resource.NewClassPathResource(location, roots...)
	r, err := reader.ForResource(factory, res, reader.Options{
		Environment: env,
		ClassPath:   roots,
	})
	require.NoError(t, err)
	_, err = r.LoadBeanDefinitions(res)
	require.NoError(t, err)
	return factory
}

func TestSampleResources(t *testing.T) {
	for _, location := range []string{"applicationContext.xml", "applicationContext.yaml"} {
		t.Run(location, func(t *testing.T) {
			factory := loadFactory(t, location, "test")

			student, err := container.GetBeanAs[*Student](factory, "student")
			require.NoError(t, err)
			if diff := cmp.Diff(&Student{Name: "zhangsan", Age: 20}, student); diff != "" {
				t.Errorf("student mismatch (-want +got):\n%s", diff)
			}
			assert.False(t, factory.ContainsBeanDefinition("transfer"))

			room, err := container.GetBeanAs[*Classroom](factory, "room")
			require.NoError(t, err)
			assert.True(t, room.IsOpen())
			assert.Same(t, student, room.Students[0])
			assert.Equal(t, []string{"lisi", "zhangsan"}, room.Roster())
			assert.Equal(t, "Class One (lisi, zhangsan)", room.String())
			assert.Equal(t, map[string]string{"grade": "1"}, room.Tags)

			require.NoError(t, factory.DestroySingletons())
			assert.False(t, room.IsOpen())
		})
	}
}

func TestSampleResources_DevProfile(t *testing.T) {
	factory := loadFactory(t, "applicationContext.xml", "dev")

	transfer, err := container.GetBeanAs[Student](factory, "transfer")
	require.NoError(t, err)
	assert.Equal(t, Student{Name: "wangwu", Age: 19}, transfer)
}

func TestClassroom_OpenOverCapacity(t *testing.T) {
	c := &Classroom{Name: "tiny", Capacity: 1, Students: []*Student{{Name: "a"}, {Name: "b"}}}
	err := c.Open()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "holds 1 students, 2 assigned")
	assert.False(t, c.IsOpen())
}
