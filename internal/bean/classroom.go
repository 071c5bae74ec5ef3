package bean

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// Classroom groups students. Open and Close serve as the init and destroy
// methods in the sample definitions.
type Classroom struct {
	Name     string
	Capacity int
	Monitor  *Student
	Students []*Student
	Tags     map[string]string

	open bool
}

// Open checks that the room can hold its students
func (c *Classroom) Open() error {
	if c.Capacity > 0 && len(c.Students) > c.Capacity {
		return fmt.Errorf("classroom %q holds %d students, %d assigned", c.Name, c.Capacity, len(c.Students))
	}
	c.open = true
	slog.Debug("Classroom opened", "classroom", c.Name, "students", len(c.Students))
	return nil
}

// Close releases the room
func (c *Classroom) Close() {
	c.open = false
	slog.Debug("Classroom closed", "classroom", c.Name)
}

// IsOpen reports whether Open succeeded and Close has not run yet
func (c *Classroom) IsOpen() bool {
	return c.open
}

// Roster returns the student names in alphabetical order
func (c *Classroom) Roster() []string {
	names := make([]string, 0, len(c.Students))
	for _, s := range c.Students {
		names = append(names, s.Name)
	}
	sort.Strings(names)
	return names
}

func (c *Classroom) String() string {
	return fmt.Sprintf("%s (%s)", c.Name, strings.Join(c.Roster(), ", "))
}
