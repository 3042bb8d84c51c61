package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mschirtzinger/lifedeck/internal/app"
	"github.com/mschirtzinger/lifedeck/internal/store"
	"github.com/mschirtzinger/lifedeck/internal/ui"
)

var exportCmd = &cobra.Command{
	Use:     "export",
	GroupID: "data",
	Short:   "Export all local data",
	Long: `Write all local data to stdout or --output. The JSON format is the
same document the cloud backup stores.

Examples:
  lifedeck export > backup.json
  lifedeck export --format yaml --output lifedeck.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		output, _ := cmd.Flags().GetString("output")

		return withApp(cmd, app.SyncOff, func(ctx context.Context, a *app.App, p *ui.Printer) error {
			w := cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			if err := writeExport(w, a.Store.Snapshot(), format); err != nil {
				return err
			}
			if output != "" {
				p.Success("exported to %s", output)
			}
			return nil
		})
	},
}

func writeExport(w io.Writer, snap *store.Snapshot, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	case "yaml", "toml":
	default:
		return fmt.Errorf("unknown format %q (want json, yaml or toml)", format)
	}

	// Go through JSON so both encoders see the backup's field names.
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	pruneNulls(doc)

	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	}
	return toml.NewEncoder(w).Encode(doc)
}

// pruneNulls drops null values, which TOML cannot represent.
func pruneNulls(v any) {
	switch v := v.(type) {
	case map[string]any:
		for k, e := range v {
			if e == nil {
				delete(v, k)
				continue
			}
			pruneNulls(e)
		}
	case []any:
		for _, e := range v {
			pruneNulls(e)
		}
	}
}

func init() {
	exportCmd.Flags().StringP("format", "f", "json", "json, yaml or toml")
	exportCmd.Flags().StringP("output", "o", "", "Write to a file instead of stdout")
	rootCmd.AddCommand(exportCmd)
}
