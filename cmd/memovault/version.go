package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/memovault"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of memovault",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("memovault version %s\n", strings.TrimSpace(memovault.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
