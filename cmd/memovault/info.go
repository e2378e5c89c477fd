package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aretw0/memovault/pkg/core"
)

var autoSnapshots time.Duration

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Count notes and attachments",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		_, v := openVault(cmd)
		fmt.Println(v.Repository.Stats())
	},
}

var storageCmd = &cobra.Command{
	Use:   "storage",
	Short: "Estimate storage usage",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, v := openVault(cmd)
		info, err := v.Workspace.StorageInfo(ctx)
		if err != nil {
			fatal("Failed to estimate storage", err)
		}
		fmt.Println(info)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the state of the vault components as JSON",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		_, v := openVault(cmd)

		status := map[string]any{
			"path":      v.Path,
			"workspace": v.Workspace.State(),
		}
		if st, ok := v.Store.(interface{ State() any }); ok {
			status["store"] = st.State()
		}

		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(status); err != nil {
			fatal("Failed to encode status", err)
		}
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow changes other processes make to the vault",
	Long: `Watch prints every note created, modified or deleted by another process
until interrupted. With --auto-snapshot it also snapshots the collection
periodically.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		_, v := openVault(cmd)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if autoSnapshots > 0 {
			v.Workspace.StartAutoSnapshots(ctx, autoSnapshots)
		}

		fmt.Fprintln(os.Stderr, "Watching", v.Path, "(Ctrl+C to stop)")
		err := v.Follow(ctx, func(e core.Event) {
			fmt.Printf("%s  %-6s  %s\n", time.Unix(e.Timestamp, 0).Format(time.TimeOnly), e.Type, e.Key)
		})
		if err != nil {
			fatal("Failed to watch vault", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(statsCmd, storageCmd, statusCmd, watchCmd)

	watchCmd.Flags().DurationVar(&autoSnapshots, "auto-snapshot", 0, "Snapshot interval while watching (0 disables)")
}
