package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/promptsentinel/sentinel/internal/app"
)

func newValidateCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the test file without running anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			problems, err := app.Validate(st.configPath)
			if err != nil {
				return err
			}
			if len(problems) > 0 {
				printValidationProblems(cmd.OutOrStdout(), &app.ValidationError{
					Path:     st.configPath,
					Problems: problems,
				})
				return fmt.Errorf("validate: %d problem(s) found", len(problems))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s is valid\n", passMark("✓"), st.configPath)
			return nil
		},
	}
}
