package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"stemsync/internal/annotation"

	"github.com/spf13/cobra"
)

func newCommentsCommand() *cobra.Command {
	var dbPath string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "comments [media-id]",
		Short: "List persisted comment logs",
		Long:  "Without a media id, list every media identity that has a comment log. With one, print its comments.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if dbPath == "" {
				return errors.New("--db is required")
			}
			// Opening creates missing files; an inspection tool must not.
			if _, err := os.Stat(dbPath); err != nil {
				return fmt.Errorf("comment store %s: %w", dbPath, err)
			}
			store, err := annotation.OpenSQLite(dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := cmd.Context()
			if len(args) == 0 {
				keys, err := store.Keys(ctx)
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(keys))
				for _, key := range keys {
					id, ok := strings.CutPrefix(key, annotation.Key(""))
					if !ok {
						continue
					}
					data, _, err := store.Get(ctx, key)
					if err != nil {
						return err
					}
					n := "malformed"
					if comments, err := annotation.Decode(data); err == nil {
						n = strconv.Itoa(len(comments))
					}
					rows = append(rows, []string{id, n})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Media", "Comments"}, rows, []columnAlignment{alignLeft, alignRight}))
				return nil
			}

			data, ok, err := store.Get(ctx, annotation.Key(args[0]))
			if err != nil {
				return err
			}
			var comments []annotation.Comment
			if ok {
				if comments, err = annotation.Decode(data); err != nil {
					return fmt.Errorf("comment log for %s: %w", args[0], err)
				}
			}
			if comments == nil {
				comments = []annotation.Comment{}
			}
			if asJSON {
				return writeJSON(cmd, comments)
			}

			rows := make([][]string, 0, len(comments))
			for _, c := range comments {
				rows = append(rows, []string{
					formatAnchor(c.AnchorTime),
					c.Author,
					c.Message,
					c.CreatedAt.Local().Format(time.DateTime),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"At", "Author", "Message", "Created"}, rows,
				[]columnAlignment{alignRight}))
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "Path to the SQLite comment store")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print comments as JSON")
	return cmd
}

// formatAnchor renders seconds as m:ss.
func formatAnchor(sec float64) string {
	total := int(sec)
	if total < 0 {
		total = 0
	}
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
