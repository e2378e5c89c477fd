package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/memovault"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Initialize a vault",
	Long: `Initialize a new vault in dir (default: the working directory). With
--adapter the choice is recorded in memovault.yaml so later commands pick it up.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		dir := vaultPath
		if len(args) == 1 {
			dir = args[0]
		}
		if dir == "" {
			cwd, err := os.Getwd()
			if err != nil {
				fatal("Failed to get CWD", err)
			}
			dir = cwd
		}

		if err := os.MkdirAll(dir, 0755); err != nil {
			fatal("Failed to create vault directory", err)
		}
		if adapterName != "" || dsn != "" {
			cfg := memovault.FileConfig{Adapter: adapterName, DSN: dsn}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				fatal("Failed to encode config", err)
			}
			if err := os.WriteFile(filepath.Join(dir, memovault.ConfigFileName), data, 0644); err != nil {
				fatal("Failed to write config", err)
			}
		}

		ctx := context.Background()
		v, err := memovault.Open(ctx, dir, vaultOptions(false)...)
		if err != nil {
			fatal("Failed to initialize vault", err)
		}
		if err := v.Close(ctx); err != nil {
			fatal("Failed to close vault", err)
		}
		fmt.Println("Initialized empty vault in", v.Path)
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
