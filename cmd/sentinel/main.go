package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/promptsentinel/sentinel/internal/config"
)

type cliState struct {
	configPath string
}

var (
	osExit                 = os.Exit
	stderrWriter io.Writer = os.Stderr
)

func main() {
	// Provider keys usually live in a local .env; absence is fine.
	_ = godotenv.Load()

	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		if errors.Is(err, errTestsFailed) {
			osExit(1)
			return
		}
		fmt.Fprintln(stderrWriter, err)
		osExit(1)
	}
}

func newRootCmd() *cobra.Command {
	st := &cliState{configPath: config.DefaultPath}

	root := &cobra.Command{
		Use:           "sentinel",
		Short:         "Regression-test LLM prompts",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVarP(&st.configPath, "file", "f", st.configPath, "path to test file")

	root.AddCommand(newInitCmd(st))
	root.AddCommand(newRunCmd(st))
	root.AddCommand(newWatchCmd(st))
	root.AddCommand(newValidateCmd(st))
	root.AddCommand(newListCmd(st))
	root.AddCommand(newHistoryCmd())
	root.AddCommand(newServeCmd(st))
	root.AddCommand(newVersionCmd())
	return root
}
