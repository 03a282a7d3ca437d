package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	var (
		configFiles []string
		strictMerge bool
	)

	validate := &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration without synchronizing anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configFiles, strictMerge)
			if err != nil {
				return err
			}

			for _, m := range cfg.SortedMirrors() {
				fmt.Fprintf(cmd.OutOrStdout(), "mirror %q: ok\n", m.Name)
			}
			return nil
		},
	}

	validate.Flags().StringArrayVarP(&configFiles, "config", "c", []string{"config.yaml"}, "path to configuration file or directory (can be repeated)")
	validate.Flags().BoolVar(&strictMerge, "strict-merge", false, "fail when configuration files conflict instead of letting later files win")

	rootCmd.AddCommand(validate)
}
