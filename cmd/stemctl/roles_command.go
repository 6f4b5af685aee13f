package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"stemsync/internal/playback"
	"stemsync/internal/session"

	"github.com/spf13/cobra"
)

func newRolesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "roles <source.json>",
		Short: "Show how a media source's stems map onto roles",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := readSource(args[0])
			if err != nil {
				return err
			}

			assign := playback.Classify(src.Stems, playback.DefaultVocabulary())
			rows := make([][]string, 0, len(assign.Roles()))
			for _, spec := range assign.Roles() {
				stemID := "-"
				if st, ok := assign.Stem(spec.Role); ok && !spec.Embedded {
					stemID = st.ID
				}
				available := assign.Available(spec.Role, src.PrimaryVideoURL != "")
				rows = append(rows, []string{string(spec.Role), spec.Label, stemID, yesNo(available)})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Role", "Label", "Stem", "Available"}, rows, nil))

			for _, amb := range assign.Ambiguous {
				roles := make([]string, 0, len(amb.Roles))
				for _, r := range amb.Roles {
					roles = append(roles, string(r))
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: stem %q matches roles %s\n", amb.StemID, strings.Join(roles, ", "))
			}
			return nil
		},
	}
}

func readSource(path string) (session.MediaSource, error) {
	var src session.MediaSource
	data, err := os.ReadFile(path)
	if err != nil {
		return src, fmt.Errorf("read media source: %w", err)
	}
	if err := json.Unmarshal(data, &src); err != nil {
		return src, fmt.Errorf("parse media source %s: %w", path, err)
	}
	return src, nil
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
