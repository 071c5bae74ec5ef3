package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/01fortes/beanboot/pkg/container"
)

func beansCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "beans",
		Short: "List the bean definitions loaded from the resource",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := opts.load(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			f := app.Factory()
			out := cmd.OutOrStdout()
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tCLASS\tSCOPE\tLAZY\tALIASES")
			for _, name := range f.BeanDefinitionNames() {
				def, err := f.GetBeanDefinition(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\n",
					name, className(def), scopeOf(def), def.LazyInit, strings.Join(f.GetAliases(name), ","))
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			fmt.Fprintf(out, "\n%d definitions from %s\n", app.Definitions(), app.Resource().Description())
			return nil
		},
	}
}

func className(def *container.BeanDefinition) string {
	switch {
	case def.ClassName != "":
		return def.ClassName
	case def.Parent != "":
		return "(parent " + def.Parent + ")"
	}
	return "-"
}

func scopeOf(def *container.BeanDefinition) string {
	scope := string(def.Scope)
	if scope == "" {
		scope = string(container.ScopeSingleton)
	}
	if def.Abstract {
		scope += ",abstract"
	}
	return scope
}
