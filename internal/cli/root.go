// Package cli implements the springclient command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/01fortes/beanboot/internal/bean"
	"github.com/01fortes/beanboot/internal/logging"
	"github.com/01fortes/beanboot/pkg/boot"
	"github.com/01fortes/beanboot/pkg/container"
)

// Execute runs the root command and exits 1 on failure
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

// options are the flags shared by every command
type options struct {
	resource  string
	classpath []string
	profiles  []string
	configDir string
	debug     bool
	quiet     bool
}

// load sets up logging and loads the application described by the flags
func (o *options) load(cmd *cobra.Command) (*boot.Application, error) {
	logger := logging.Setup(cmd.ErrOrStderr(), logging.Config{Debug: o.debug, Quiet: o.quiet})
	return boot.Load(cmd.Context(), boot.Options{
		Resource:  o.resource,
		ClassPath: o.classpath,
		Profiles:  o.profiles,
		ConfigDir: o.configDir,
		Logger:    logger,
	})
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	var (
		beanName string
		watch    bool
	)

	cmd := &cobra.Command{
		Use:          "springclient",
		Short:        "Load bean definitions and print a student",
		Long:         "Loads bean definitions from a class path resource into a bean factory, looks up a student bean and prints its name and age.",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			cmd.SetContext(ctx)

			app, err := opts.load(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			out := cmd.OutOrStdout()
			if err := printStudent(out, app.Factory(), beanName); err != nil {
				return err
			}
			if !watch {
				return nil
			}

			return app.Watch(ctx, func(f *container.Factory) {
				if err := printStudent(out, f, beanName); err != nil {
					f.Logger().Error("Cannot print student after refresh", "bean", beanName, "error", err)
				}
			})
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.resource, "resource", "r", boot.DefaultResource, "definition resource: a class path name, or a classpath: or file: URL")
	flags.StringSliceVar(&opts.classpath, "classpath", nil, "class path roots (default $GOBOOT_CLASSPATH, else resources and .)")
	flags.StringSliceVarP(&opts.profiles, "profiles", "p", nil, "active profiles (default $GO_BOOT_ACTIVE_PROFILES)")
	flags.StringVar(&opts.configDir, "config-dir", "resources", "directory holding application.yml and application-<profile>.yml")
	flags.BoolVar(&opts.debug, "debug", false, "enable debug logging")
	flags.BoolVarP(&opts.quiet, "quiet", "q", false, "only log warnings and errors")

	cmd.Flags().StringVarP(&beanName, "bean", "b", "student", "name of the student bean to print")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "reload and print again whenever the resource changes")

	cmd.AddCommand(beansCmd(opts), convertCmd(opts))
	return cmd
}

// printStudent prints the name and the age of a student bean on two lines
func printStudent(w io.Writer, f container.BeanFactory, name string) error {
	student, err := container.GetBeanAs[*bean.Student](f, name)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, student.Name)
	fmt.Fprintln(w, student.Age)
	return nil
}
