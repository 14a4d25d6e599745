package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/bibliothecula/internal/paths"
)

type initResult struct {
	ConfigFile    string `json:"config_file" yaml:"config_file"`
	ConfigWritten bool   `json:"config_written" yaml:"config_written"`
	Database      string `json:"database" yaml:"database"`
}

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize a library",
		Long: `Create the configuration directory and a default config.yaml, then create
the database and apply the schema. Running init on an existing library is
safe: the config file is kept and the schema statements are idempotent.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.libraryConfig()
			if err != nil {
				return err
			}
			written, err := writeConfigIfMissing(a.configDir, cfg.DataDir)
			if err != nil {
				return err
			}
			store, err := a.store()
			if err != nil {
				return err
			}

			res := initResult{ConfigFile: paths.ConfigFile(a.configDir), ConfigWritten: written, Database: store.Path()}
			return a.emit(cmd, res, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Library initialized at %s\n", res.Database)
				return err
			})
		},
	}
}
