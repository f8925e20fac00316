package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/Shivanand-hulikatti/eventreg/internal/service"
	"github.com/spf13/cobra"
)

// ImportOptions holds flags for the import command.
type ImportOptions struct {
	*RootOptions
	EventID string
	File    string
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import participants for an event from a CSV file",
		Long: `Import participants for an event from a CSV file.

The file needs a header row with at least name and email columns; company
and category are optional. Rows are admitted in file order, so earlier rows
take the remaining seats and later ones join the waitlist.

Example:
  eventreg import --event 3f0c... --file guests.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.EventID, "event", "", "event id (required)")
	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "CSV file to import (required)")
	_ = cmd.MarkFlagRequired("event")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runImport(cmd *cobra.Command, opts *ImportOptions) error {
	f, err := os.Open(opts.File)
	if err != nil {
		return fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	ctx := service.WithActor(cmd.Context(), service.ActorImport)
	store, closeStore, err := openStore(ctx, opts.Config.Database, opts.Config.Database.AutoMigrate, opts.Log)
	if err != nil {
		return err
	}
	defer closeStore()

	svc := service.New(store, opts.Config.Import.MaxRows, opts.Log)
	res, err := svc.Importer.Import(ctx, opts.EventID, f)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
