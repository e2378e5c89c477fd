package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var markersCmd = &cobra.Command{
	Use:   "markers",
	Short: "Inspect and repair attachment markers",
}

var markersReportCmd = &cobra.Command{
	Use:   "report <id>",
	Short: "Count markers and list broken ones and orphan attachments",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		_, v, note := loadNote(cmd, args[0])

		report := v.Session.Synchronizer().Report(&note)
		fmt.Printf("%d image markers, %d file markers, %d broken, %d orphans\n",
			report.ImageMarkers, report.FileMarkers, len(report.Broken), len(report.Orphans))
		for _, b := range report.Broken {
			fmt.Printf("  broken %s\n", b.Literal())
		}
		for _, o := range report.Orphans {
			fmt.Printf("  orphan %s #%d %q\n", o.Kind, o.Index, o.Attachment.TagName)
		}
		if report.Consistent() {
			fmt.Println("consistent")
		}
	},
}

var markersNormalizeCmd = &cobra.Command{
	Use:   "normalize <id>",
	Short: "Migrate legacy attachments and tidy separators around markers",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, v, _ := selectNote(cmd, args[0])
		changed, err := v.Session.Normalize(ctx)
		if err != nil {
			fatal("Failed to normalize", err)
		}
		if !changed {
			fmt.Println("Already normalized.")
		}
	},
}

var markersClearCmd = &cobra.Command{
	Use:   "clear <id>",
	Short: "Remove every marker from the content, keeping attachments",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, v, _ := selectNote(cmd, args[0])
		n, err := v.Session.ClearMarkers(ctx)
		if err != nil {
			fatal("Failed to clear markers", err)
		}
		fmt.Printf("Removed %d markers.\n", n)
	},
}

var markersCleanCmd = &cobra.Command{
	Use:   "clean <id>",
	Short: "Remove markers that resolve to no attachment",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, v, _ := selectNote(cmd, args[0])
		n, err := v.Session.CleanBrokenMarkers(ctx)
		if err != nil {
			fatal("Failed to clean markers", err)
		}
		fmt.Printf("Removed %d broken markers.\n", n)
	},
}

var orphansCmd = &cobra.Command{
	Use:   "orphans <id>",
	Short: "Delete attachments no marker references",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, v, _ := selectNote(cmd, args[0])
		n, err := v.Session.DeleteOrphanAttachments(ctx)
		if err != nil {
			fatal("Failed to delete orphans", err)
		}
		fmt.Printf("Deleted %d attachments.\n", n)
	},
}

func init() {
	markersCmd.AddCommand(markersReportCmd, markersNormalizeCmd, markersClearCmd, markersCleanCmd)
	rootCmd.AddCommand(markersCmd, orphansCmd)
}
