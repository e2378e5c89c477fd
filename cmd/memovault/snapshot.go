package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var snapshotJSON bool

var snapshotCmd = &cobra.Command{
	Use:     "snapshot",
	Aliases: []string{"snap"},
	Short:   "Manage snapshots of the whole collection",
}

var snapshotCreateCmd = &cobra.Command{
	Use:   "create [description]",
	Short: "Record the current collection",
	Args:  cobra.ArbitraryArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, v := openVault(cmd)
		description := strings.Join(args, " ")
		if description == "" {
			description = "Manual snapshot"
		}
		snap, _, err := v.Workspace.CreateSnapshot(ctx, description)
		if err != nil {
			fatal("Failed to create snapshot", err)
		}
		fmt.Println(snap.ID)
	},
}

var snapshotListCmd = &cobra.Command{
	Use:   "list",
	Short: "List snapshots, newest first",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, v := openVault(cmd)
		infos, err := v.Workspace.Snapshots(ctx)
		if err != nil {
			fatal("Failed to list snapshots", err)
		}

		if snapshotJSON {
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			if err := encoder.Encode(infos); err != nil {
				fatal("Failed to encode snapshots", err)
			}
			return
		}
		for _, info := range infos {
			fmt.Printf("%s  %-14s  %-30s  %d notes, %d images, %d files\n",
				info.ID, humanize.Time(info.Timestamp), info.Description,
				info.NoteCount, info.ImageCount, info.FileCount)
		}
	},
}

var snapshotRestoreCmd = &cobra.Command{
	Use:   "restore <id>",
	Short: "Replace the collection with a snapshot",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, v := openVault(cmd)
		if err := v.Workspace.RestoreSnapshot(ctx, args[0]); err != nil {
			fatal("Failed to restore snapshot", err)
		}
	},
}

var snapshotDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a snapshot",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, v := openVault(cmd)
		if err := v.Workspace.DeleteSnapshot(ctx, args[0]); err != nil {
			fatal("Failed to delete snapshot", err)
		}
	},
}

func init() {
	snapshotCmd.AddCommand(snapshotCreateCmd, snapshotListCmd, snapshotRestoreCmd, snapshotDeleteCmd)
	rootCmd.AddCommand(snapshotCmd)

	snapshotListCmd.Flags().BoolVar(&snapshotJSON, "json", false, "Output in JSON format")
}
