package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/promptsentinel/sentinel/internal/config"
)

func newListCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the tests defined in the test file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(st.configPath)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tPROVIDER\tMODEL\tCASES\tASSERTIONS")
			for i := range cfg.Tests {
				t := &cfg.Tests[i]
				cases := fmt.Sprintf("%d inline", len(t.Cases))
				if t.CasesFile != "" {
					cases = "csv: " + t.CasesFile
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					t.ID, cfg.ProviderFor(t), cfg.ModelFor(t), cases, assertionKinds(t))
			}
			return tw.Flush()
		},
	}
}

// assertionKinds summarizes the distinct assertion kinds a test uses,
// in first-seen order.
func assertionKinds(t *config.TestDef) string {
	seen := make(map[string]struct{})
	var kinds []string
	add := func(as []config.Assertion) {
		for _, a := range as {
			if _, ok := seen[a.Kind]; ok {
				continue
			}
			seen[a.Kind] = struct{}{}
			kinds = append(kinds, a.Kind)
		}
	}
	add(t.Assertions)
	for _, c := range t.Cases {
		add(c.Assertions)
	}
	if len(kinds) == 0 {
		return "-"
	}
	return strings.Join(kinds, ", ")
}
