// Package bean holds the application types that definition files refer to
// by class name.
package bean

import "github.com/01fortes/beanboot/pkg/container"

// Student is populated from the name and age properties of its definition
type Student struct {
	Name string
	Age  int
}

func init() {
	container.RegisterType(Student{}, "bean.Student")
	container.RegisterType(Classroom{}, "bean.Classroom")
}
