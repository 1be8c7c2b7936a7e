package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check [config]",
	Short: "Validate the configuration document and print a summary",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(args)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "configuration is valid")
		fmt.Fprint(cmd.OutOrStdout(), cfg.Summary())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
