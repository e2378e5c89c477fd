package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/aretw0/memovault"
	"github.com/aretw0/memovault/pkg/core"
)

var (
	verbose     bool
	vaultPath   string
	adapterName string
	dsn         string
	assumeYes   bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "memovault",
	Short: "Notes with inline image and file attachments",
	Long: `memovault keeps notes whose text references attachments through inline
markers such as [📷diagram] or [📎report.pdf]. Renaming or deleting an
attachment rewrites its markers; snapshots guard every destructive step.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}

		opts := &slog.HandlerOptions{
			Level: level,
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, opts))
		slog.SetDefault(logger)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&vaultPath, "vault", "", "Vault directory (default: nearest vault above the working directory)")
	rootCmd.PersistentFlags().StringVar(&adapterName, "adapter", "", "Storage adapter: fs, sqlite, postgres or memory")
	rootCmd.PersistentFlags().StringVar(&dsn, "dsn", "", "Database connection string for sqlite/postgres")
	rootCmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false, "Answer yes to every confirmation")
}

// resolveVaultPath picks --vault, else the nearest vault root, else the
// working directory.
func resolveVaultPath() string {
	if vaultPath != "" {
		return vaultPath
	}
	cwd, err := os.Getwd()
	if err != nil {
		fatal("Failed to get CWD", err)
	}
	if root, err := memovault.FindVaultRoot(cwd); err == nil {
		return root
	}
	return cwd
}

func vaultOptions(mustExist bool) []memovault.Option {
	opts := []memovault.Option{
		memovault.WithLogger(slog.Default()),
		memovault.WithNotifier(cliNotifier{out: os.Stderr}),
		memovault.WithConfirmer(termConfirmer{yes: assumeYes}),
		memovault.WithMustExist(mustExist),
	}
	if adapterName != "" {
		opts = append(opts, memovault.WithAdapter(adapterName))
	}
	if dsn != "" {
		opts = append(opts, memovault.WithDSN(dsn))
	}
	return opts
}

// openVault opens the vault and registers its Close on the command.
func openVault(cmd *cobra.Command) (context.Context, *memovault.Vault) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	v, err := memovault.Open(ctx, resolveVaultPath(), vaultOptions(true)...)
	if err != nil {
		fatal("Failed to open vault", err)
	}
	cmd.PostRun = func(*cobra.Command, []string) {
		if err := v.Close(context.Background()); err != nil {
			fatal("Failed to close vault", err)
		}
	}
	return ctx, v
}

// selectNote opens the vault with note id active.
func selectNote(cmd *cobra.Command, id string) (context.Context, *memovault.Vault, core.Note) {
	ctx, v := openVault(cmd)
	note, err := v.Session.Select(ctx, id)
	if err != nil {
		fatal("Failed to select note", err)
	}
	return ctx, v, note
}

// loadNote opens the vault and reads note id without selecting it.
func loadNote(cmd *cobra.Command, id string) (context.Context, *memovault.Vault, core.Note) {
	ctx, v := openVault(cmd)
	note, err := v.Repository.Get(id)
	if err != nil {
		fatal("Failed to load note", err)
	}
	return ctx, v, note
}

// cliNotifier prints notices to the terminal.
type cliNotifier struct {
	out io.Writer
}

func (n cliNotifier) Notify(_ context.Context, message string, severity core.Severity) {
	switch severity {
	case core.SeverityWarning, core.SeverityError:
		fmt.Fprintf(n.out, "%s: %s\n", severity, message)
	default:
		fmt.Fprintln(n.out, message)
	}
}

// termConfirmer asks on the terminal. Without a terminal it declines unless
// --yes was given.
type termConfirmer struct {
	yes bool
}

func (c termConfirmer) Confirm(_ context.Context, prompt string) bool {
	if c.yes {
		return true
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprintf(os.Stderr, "%s (declined: not a terminal, use --yes)\n", prompt)
		return false
	}
	fmt.Fprintf(os.Stderr, "%s [y/N] ", prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}
