package main

import (
	"context"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/lifedeck/internal/app"
	"github.com/mschirtzinger/lifedeck/internal/schema"
	"github.com/mschirtzinger/lifedeck/internal/ui"
)

var noteCmd = &cobra.Command{
	Use:     "note",
	GroupID: "data",
	Short:   "Write and organize notes",
}

var noteAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Add a note",
	Long: `Add a note. The content comes from --content, or from stdin when
--content is "-".

Examples:
  lifedeck note add "Ideas" --content "Try the new cafe"
  pbpaste | lifedeck note add "Meeting" --content - --folder work`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		content, _ := cmd.Flags().GetString("content")
		if content == "-" {
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return err
			}
			content = string(data)
		}
		pinned, _ := cmd.Flags().GetBool("pin")
		tags, _ := cmd.Flags().GetStringSlice("tag")
		folder, _ := cmd.Flags().GetString("folder")

		return withApp(cmd, app.SyncAuto, func(ctx context.Context, a *app.App, p *ui.Printer) error {
			draft := schema.Note{Title: strings.Join(args, " "), Content: content, Pinned: pinned, Tags: tags}
			if folder != "" {
				id, err := resolveFolder(a, folder)
				if err != nil {
					return err
				}
				draft.FolderID = &id
			}
			n, err := a.Store.AddNote(ctx, draft)
			if err != nil {
				return err
			}
			p.Success("added note %s", n.ID)
			return nil
		})
	},
}

var noteListCmd = &cobra.Command{
	Use:   "list",
	Short: "List notes",
	RunE: func(cmd *cobra.Command, args []string) error {
		folder, _ := cmd.Flags().GetString("folder")
		return withApp(cmd, app.SyncOff, func(ctx context.Context, a *app.App, p *ui.Printer) error {
			snap := a.Store.Snapshot()
			notes := snap.Notes
			if folder != "" {
				id, err := resolveFolder(a, folder)
				if err != nil {
					return err
				}
				notes = snap.NotesIn(&id)
			}
			p.Notes(snap, notes)
			return nil
		})
	},
}

var noteShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a note's content",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, app.SyncOff, func(ctx context.Context, a *app.App, p *ui.Printer) error {
			notes := a.Store.Snapshot().Notes
			id, err := resolveID(notes, func(n *schema.Note) string { return n.ID }, "note", args[0])
			if err != nil {
				return err
			}
			for _, n := range notes {
				if n.ID == id {
					_, err := io.WriteString(cmd.OutOrStdout(), n.Content+"\n")
					return err
				}
			}
			return nil
		})
	},
}

var noteRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a note",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, app.SyncAuto, func(ctx context.Context, a *app.App, p *ui.Printer) error {
			id, err := resolveID(a.Store.Snapshot().Notes, func(n *schema.Note) string { return n.ID }, "note", args[0])
			if err != nil {
				return err
			}
			if err := a.Store.DeleteNote(ctx, id); err != nil {
				return err
			}
			p.Success("deleted note %s", id)
			return nil
		})
	},
}

var folderCmd = &cobra.Command{
	Use:     "folder",
	GroupID: "data",
	Short:   "Organize note folders",
}

var folderAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a folder",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		parent, _ := cmd.Flags().GetString("parent")
		return withApp(cmd, app.SyncAuto, func(ctx context.Context, a *app.App, p *ui.Printer) error {
			draft := schema.Folder{Name: strings.Join(args, " ")}
			if parent != "" {
				id, err := resolveFolder(a, parent)
				if err != nil {
					return err
				}
				draft.ParentID = &id
			}
			f, err := a.Store.AddFolder(ctx, draft)
			if err != nil {
				return err
			}
			p.Success("added folder %s", f.ID)
			return nil
		})
	},
}

var folderRmCmd = &cobra.Command{
	Use:   "rm <folder>",
	Short: "Delete a folder; its notes move to the top level",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, app.SyncAuto, func(ctx context.Context, a *app.App, p *ui.Printer) error {
			id, err := resolveFolder(a, args[0])
			if err != nil {
				return err
			}
			if err := a.Store.DeleteFolder(ctx, id); err != nil {
				return err
			}
			p.Success("deleted folder %s", id)
			return nil
		})
	},
}

// resolveFolder accepts a folder name (case-insensitive) or id prefix.
func resolveFolder(a *app.App, ref string) (string, error) {
	folders := a.Store.Snapshot().Folders
	for _, f := range folders {
		if strings.EqualFold(f.Name, ref) {
			return f.ID, nil
		}
	}
	return resolveID(folders, func(f *schema.Folder) string { return f.ID }, "folder", ref)
}

func init() {
	noteAddCmd.Flags().String("content", "", `Note content, or "-" to read stdin`)
	noteAddCmd.Flags().Bool("pin", false, "Pin the note")
	noteAddCmd.Flags().StringSlice("tag", nil, "Tag (repeatable)")
	noteAddCmd.Flags().String("folder", "", "Folder name or id")
	noteListCmd.Flags().String("folder", "", "Only notes in this folder")
	folderAddCmd.Flags().String("parent", "", "Parent folder name or id")

	noteCmd.AddCommand(noteAddCmd, noteListCmd, noteShowCmd, noteRmCmd)
	folderCmd.AddCommand(folderAddCmd, folderRmCmd)
	rootCmd.AddCommand(noteCmd, folderCmd)
}
