package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/aretw0/memovault/pkg/core"
)

var (
	noteTitle   string
	noteContent string
	contentFile string
	editAsHTML  bool
	listJSON    bool
	filterTag   string
	showJSON    bool
)

var newCmd = &cobra.Command{
	Use:   "new",
	Short: "Create a note",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, v := openVault(cmd)
		note, err := v.Session.NewNote(ctx)
		if err != nil {
			fatal("Failed to create note", err)
		}
		content, err := readContent(noteContent)
		if err != nil {
			fatal("Failed to read content", err)
		}
		if _, err := v.Session.Edit(ctx, noteTitle, content); err != nil {
			fatal("Failed to write note", err)
		}
		if err := v.Session.ClearSelection(ctx); err != nil {
			fatal("Failed to save note", err)
		}
		if !v.Repository.Exists(note.ID) {
			fmt.Fprintln(os.Stderr, "Empty note discarded.")
			return
		}
		fmt.Println(note.ID)
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List notes, newest first",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		_, v := openVault(cmd)

		notes := v.Repository.List()
		if filterTag != "" {
			notes = v.Repository.WithTag(filterTag)
		}
		printNotes(notes, listJSON)
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <keyword>",
	Short: "List notes whose title or content contains keyword",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		_, v := openVault(cmd)
		printNotes(v.Repository.Search(args[0]), listJSON)
	},
}

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a note with its attachments and marker report",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		_, v, note := loadNote(cmd, args[0])

		if showJSON {
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			if err := encoder.Encode(note); err != nil {
				fatal("Failed to encode note", err)
			}
			return
		}

		title := note.Title
		if title == "" {
			title = core.UntitledNote
		}
		fmt.Printf("# %s\n%s", title, note.DisplayDate)
		if len(note.Tags) > 0 {
			fmt.Printf("  [%s]", strings.Join(note.Tags, ", "))
		}
		fmt.Printf("\n\n%s\n", note.Content)

		for _, kind := range []core.MediaKind{core.MediaImage, core.MediaFile} {
			for i, a := range note.Attachments(kind) {
				fmt.Printf("%s #%d %s (%s)\n", kind, i, a.TagName, humanize.IBytes(uint64(max(a.SizeBytes, 0))))
			}
		}

		report := v.Session.Synchronizer().Report(&note)
		for _, b := range report.Broken {
			fmt.Printf("broken marker %s at byte %d\n", b.Literal(), b.Offset)
		}
		for _, o := range report.Orphans {
			fmt.Printf("orphan %s #%d %s\n", o.Kind, o.Index, o.Attachment.TagName)
		}
	},
}

var editCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Replace the title and/or content of a note",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, v, note := selectNote(cmd, args[0])

		title := note.Title
		if cmd.Flags().Changed("title") {
			title = noteTitle
		}
		content := note.Content
		if cmd.Flags().Changed("content") || contentFile != "" {
			var err error
			if content, err = readContent(noteContent); err != nil {
				fatal("Failed to read content", err)
			}
		}

		var err error
		if editAsHTML {
			_, err = v.Session.EditHTML(ctx, title, content)
		} else {
			_, err = v.Session.Edit(ctx, title, content)
		}
		if err != nil {
			fatal("Failed to edit note", err)
		}
		fmt.Printf("Note '%s' updated.\n", note.ID)
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a note (a snapshot is taken first)",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, v := openVault(cmd)
		if err := v.Workspace.DeleteNote(ctx, args[0]); err != nil {
			fatal("Failed to delete note", err)
		}
		fmt.Printf("Note '%s' deleted.\n", args[0])
	},
}

var tagCmd = &cobra.Command{
	Use:   "tag <add|remove> <id> <tag>",
	Short: "Add or remove a tag",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, v := openVault(cmd)

		var err error
		switch args[0] {
		case "add":
			_, err = v.Repository.AddTag(args[1], args[2])
		case "remove":
			_, err = v.Repository.RemoveTag(args[1], args[2])
		default:
			err = fmt.Errorf("unknown action %q", args[0])
		}
		if err != nil {
			fatal("Failed to update tags", err)
		}
		if err := v.Repository.FlushSaves(ctx); err != nil {
			fatal("Failed to save note", err)
		}
	},
}

// readContent returns --content-file (or stdin for "-") when given, else
// the inline value.
func readContent(inline string) (string, error) {
	switch contentFile {
	case "":
		return inline, nil
	case "-":
		data, err := io.ReadAll(os.Stdin)
		return string(data), err
	default:
		data, err := os.ReadFile(contentFile)
		return string(data), err
	}
}

func printNotes(notes []core.Note, asJSON bool) {
	if asJSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(notes); err != nil {
			fatal("Failed to encode notes", err)
		}
		return
	}
	for _, n := range notes {
		title := n.Title
		if title == "" {
			title = core.UntitledNote
		}
		fmt.Printf("%s  %s  %s", n.ID, n.DisplayDate, title)
		if att := len(n.Images) + len(n.Files); att > 0 {
			fmt.Printf("  (%d attachments)", att)
		}
		fmt.Println()
	}
}

func init() {
	rootCmd.AddCommand(newCmd, listCmd, searchCmd, showCmd, editCmd, deleteCmd, tagCmd)

	for _, c := range []*cobra.Command{newCmd, editCmd} {
		c.Flags().StringVar(&noteTitle, "title", "", "Note title")
		c.Flags().StringVar(&noteContent, "content", "", "Note content")
		c.Flags().StringVar(&contentFile, "content-file", "", "Read content from file (- for stdin)")
	}
	editCmd.Flags().BoolVar(&editAsHTML, "html", false, "Content is an HTML fragment from a rich editor")

	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output in JSON format")
	listCmd.Flags().StringVar(&filterTag, "tag", "", "Filter notes by tag")
	searchCmd.Flags().BoolVar(&listJSON, "json", false, "Output in JSON format")
	showCmd.Flags().BoolVar(&showJSON, "json", false, "Output in JSON format")
}
