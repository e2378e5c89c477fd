package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/aretw0/memovault/pkg/render"
)

var (
	outputPath  string
	renderTitle string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write every note to a JSON export document",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, v := openVault(cmd)

		out := outputPath
		if out == "" {
			out = v.Workspace.ExportFilename()
		}
		w, closeOut := createOutput(out)
		if err := v.Workspace.Export(ctx, w); err != nil {
			fatal("Failed to export", err)
		}
		closeOut()
		if out != "-" {
			fmt.Println("Exported to", out)
		}
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace every note with an export document (- for stdin)",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, v := openVault(cmd)

		var in io.Reader = os.Stdin
		if args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				fatal("Failed to open export", err)
			}
			defer f.Close()
			in = f
		}
		n, err := v.Workspace.Import(ctx, in)
		if err != nil {
			fatal("Failed to import", err)
		}
		fmt.Printf("Imported %d notes.\n", n)
	},
}

var renderCmd = &cobra.Command{
	Use:   "render [id...]",
	Short: "Render notes as a standalone HTML page",
	Long: `Render converts notes (all of them when no id is given) to HTML, with
images inlined at their markers and files listed as download links.`,
	Run: func(cmd *cobra.Command, args []string) {
		_, v := openVault(cmd)

		notes := v.Repository.List()
		if len(args) > 0 {
			notes = nil
			for _, id := range args {
				n, err := v.Repository.Get(id)
				if err != nil {
					fatal("Failed to load note", err)
				}
				notes = append(notes, n)
			}
		}

		title := renderTitle
		if title == "" {
			title = filepath.Base(v.Path)
			if len(notes) == 1 && notes[0].Title != "" {
				title = notes[0].Title
			}
		}

		out := outputPath
		if out == "" {
			out = "-"
		}
		w, closeOut := createOutput(out)
		if err := render.New().Document(w, title, notes); err != nil {
			fatal("Failed to render", err)
		}
		closeOut()
	},
}

// createOutput opens path for writing; "-" is stdout.
func createOutput(path string) (io.Writer, func()) {
	if path == "-" {
		return os.Stdout, func() {}
	}
	f, err := os.Create(path)
	if err != nil {
		fatal("Failed to create output", err)
	}
	return f, func() {
		if err := f.Close(); err != nil {
			fatal("Failed to write output", err)
		}
	}
}

func init() {
	rootCmd.AddCommand(exportCmd, importCmd, renderCmd)

	exportCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file (default: memos_export_<date>.json, - for stdout)")
	renderCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file (default: stdout)")
	renderCmd.Flags().StringVar(&renderTitle, "title", "", "Page title")
}
