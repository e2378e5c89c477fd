// Package memovault is the Composition Root of a note vault with
// attachments.
//
// A note is a title, a plain-text body and two attachment lists (images
// and files). The body references attachments through inline markers such
// as "[📷diagram]" or "[📎report.pdf]"; renaming or deleting an attachment
// rewrites every marker that points to it, and markers whose attachment is
// gone are reported as broken.
//
// Features:
//
//   - **Pluggable storage**: directory tree (default), SQLite, Postgres or memory, behind core.Store.
//   - **Debounced autosave**: edits are persisted after a quiet period, per note.
//   - **Undo/redo**: bursts of edits collapse into one history entry.
//   - **Snapshots**: manual, automatic and before every destructive operation, with retention.
//   - **Import/export**: a versioned JSON document validated against a JSON Schema.
//   - **Watch**: the fs store reports changes made by other processes.
//
// Usage:
//
//	vault, err := memovault.Open(ctx, "./notes",
//		memovault.WithLogger(logger),
//		memovault.WithKeepSnapshots(20),
//	)
//	defer vault.Close(ctx)
//
//	note, _ := vault.Session.NewNote(ctx)
//	vault.Session.Edit(ctx, "Groceries", "milk, [📷receipt]")
package memovault
