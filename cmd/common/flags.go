package common

import "github.com/spf13/cobra"

// ConfigFlag returns the value of the root --config flag, or an empty
// string when it is unset or the command has no root flag set.
func ConfigFlag(cmd *cobra.Command) string {
	cfgFile, err := cmd.Root().PersistentFlags().GetString("config")
	if err != nil {
		return ""
	}
	return cfgFile
}
