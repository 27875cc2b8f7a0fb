package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

const version = "0.3.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  `Display the current version of the pulse CLI.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("pulse version %s\n", version)
		fmt.Println("A paper-trading execution desk for US equities")
		fmt.Println("https://github.com/rustyeddy/pulse")
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
