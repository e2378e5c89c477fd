package main

import (
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/aretw0/memovault/pkg/core"
	"github.com/aretw0/memovault/pkg/reconcile"
	"github.com/aretw0/memovault/pkg/registry"
)

var (
	attachAsFile bool
	attachAnchor int
	extractOut   string
)

var attachCmd = &cobra.Command{
	Use:   "attach <id> <path>",
	Short: "Attach an image (or with --file any file) to a note",
	Long: `Attach reads path, stores it inside the note and inserts its marker into the
content. Images get their marker at --at (a character offset) or at the end.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, v, _ := selectNote(cmd, args[0])

		up, err := readUpload(args[1])
		if err != nil {
			fatal("Failed to read attachment", err)
		}
		if cmd.Flags().Changed("at") {
			up.TextAnchor = &attachAnchor
		}

		var a core.Attachment
		if attachAsFile {
			a, err = v.Session.AttachFile(ctx, up)
		} else {
			a, err = v.Session.AttachImage(ctx, up)
		}
		if err != nil {
			fatal("Failed to attach", err)
		}
		fmt.Printf("Attached %s as %q (%s).\n", a.MediaKind, a.TagName, humanize.IBytes(uint64(a.SizeBytes)))
	},
}

var detachCmd = &cobra.Command{
	Use:   "detach <id> <image|file> <index>",
	Short: "Delete an attachment and every marker referencing it",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, v, _ := selectNote(cmd, args[0])
		kind, index := parseRef(args[1], args[2])

		a, err := v.Session.DeleteAttachment(ctx, kind, index)
		if err != nil {
			fatal("Failed to delete attachment", err)
		}
		fmt.Printf("Deleted %s %q.\n", kind, a.TagName)
	},
}

var renameCmd = &cobra.Command{
	Use:   "rename <id> <image|file> <index> <tag>",
	Short: "Rename an attachment and rewrite its markers",
	Args:  cobra.ExactArgs(4),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, v, _ := selectNote(cmd, args[0])
		kind, index := parseRef(args[1], args[2])

		if err := v.Session.RenameAttachment(ctx, kind, index, args[3]); err != nil {
			fatal("Failed to rename attachment", err)
		}
		fmt.Printf("Renamed %s #%d to %q.\n", kind, index, args[3])
	},
}

var extractCmd = &cobra.Command{
	Use:   "extract <id> <image|file> <index>",
	Short: "Write an attachment's bytes to disk",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		_, v, note := loadNote(cmd, args[0])
		kind, index := parseRef(args[1], args[2])

		a, _, err := v.Session.Synchronizer().Lookup(&note, reconcile.Ref{Kind: kind, Index: index})
		if err != nil {
			fatal("Failed to find attachment", err)
		}
		_, data, err := core.DataURLEncoder{}.Decode(a.Payload)
		if err != nil {
			fatal("Failed to decode attachment", err)
		}

		out := extractOut
		if out == "" {
			out = filepath.Base(a.OriginalName)
		}
		if err := os.WriteFile(out, data, 0644); err != nil {
			fatal("Failed to write attachment", err)
		}
		fmt.Printf("Wrote %s (%s).\n", out, humanize.IBytes(uint64(len(data))))
	},
}

// readUpload loads path and encodes it as a data URL. The MIME type comes
// from the extension, falling back to content sniffing.
func readUpload(path string) (registry.Upload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return registry.Upload{}, err
	}
	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	payload, err := core.DataURLEncoder{}.Encode(mimeType, data)
	if err != nil {
		return registry.Upload{}, err
	}
	return registry.Upload{
		Payload:      payload,
		OriginalName: filepath.Base(path),
		MimeType:     mimeType,
		SizeBytes:    int64(len(data)),
	}, nil
}

func parseRef(kindArg, indexArg string) (core.MediaKind, int) {
	kind, err := core.ParseMediaKind(kindArg)
	if err != nil {
		fatal("Invalid kind", err)
	}
	index, err := strconv.Atoi(indexArg)
	if err != nil {
		fatal("Invalid index", err)
	}
	return kind, index
}

func init() {
	rootCmd.AddCommand(attachCmd, detachCmd, renameCmd, extractCmd)

	attachCmd.Flags().BoolVar(&attachAsFile, "file", false, "Attach as a file instead of an image")
	attachCmd.Flags().IntVar(&attachAnchor, "at", 0, "Character offset for the image marker")
	extractCmd.Flags().StringVarP(&extractOut, "output", "o", "", "Output path (default: the original file name)")
}
