package cli

import (
	"fmt"
	"io"

	"github.com/google/renameio/v2"
	"github.com/spf13/cobra"

	"github.com/01fortes/beanboot/pkg/reader"
)

func convertCmd(opts *options) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Write the loaded bean definitions in the YAML format",
		Long:  "Loads the resource and writes the definitions registered for the active profiles as YAML. Placeholders are kept as written.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := opts.load(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			if out == "" || out == "-" {
				return reader.WriteYAML(cmd.OutOrStdout(), app.Factory())
			}
			return writeAtomic(out, func(w io.Writer) error {
				return reader.WriteYAML(w, app.Factory())
			})
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "-", "output file, - for stdout")
	return cmd
}

// writeAtomic replaces path with what write produces, or leaves it untouched
// when write fails
func writeAtomic(path string, write func(io.Writer) error) error {
	pending, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("create pending file: %w", err)
	}
	defer func() {
		_ = pending.Cleanup()
	}()

	if err := write(pending); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
