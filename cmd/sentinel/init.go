package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

const starterSuite = `version: "1.0"

defaults:
  provider: "openai"
  model: "gpt-4o-mini"
  temperature: 0.7

tests:
  - id: "hello-world"
    prompt: "Say hello to {{name}} in one short sentence."
    cases:
      - input:
          name: "Alice"
        assert:
          - type: "contains"
            value: "Alice"
          - type: "not-contains"
            value: "As an AI language model"
          - type: "latency_max"
            value: 10000
          - type: "min_length"
            value: 10
          - type: "max_length"
            value: 500
`

const starterEnv = `# Prompt Sentinel — API keys
# Copy this file to .env and fill in your keys.

# OpenAI (required if using provider: "openai")
OPENAI_API_KEY=sk-your-key-here

# Anthropic (required if using provider: "anthropic")
ANTHROPIC_API_KEY=sk-ant-your-key-here

# Custom webhook (required if using provider: "webhook")
# WEBHOOK_URL=http://localhost:8080/complete
`

// newInitCmd scaffolds a starter project: a tests.yaml with one
// passing example, an .env.example, a .env copy, and a .gitignore
// entry for it. Existing files are left alone.
func newInitCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Scaffold a starter test file and env files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			dir := filepath.Dir(st.configPath)

			if err := writeIfAbsent(out, st.configPath, starterSuite); err != nil {
				return err
			}

			envExample := filepath.Join(dir, ".env.example")
			if err := writeIfAbsent(out, envExample, starterEnv); err != nil {
				return err
			}

			envPath := filepath.Join(dir, ".env")
			if _, err := os.Stat(envPath); err == nil {
				fmt.Fprintf(out, "%s %s already exists, skipping\n", skipMark("-"), envPath)
			} else {
				b, err := os.ReadFile(envExample)
				if err != nil {
					return fmt.Errorf("init: read %q: %w", envExample, err)
				}
				if err := os.WriteFile(envPath, b, 0o600); err != nil {
					return fmt.Errorf("init: write %q: %w", envPath, err)
				}
				fmt.Fprintf(out, "%s created %s (copy of .env.example)\n", passMark("✓"), envPath)
			}

			return ensureGitignored(out, filepath.Join(dir, ".gitignore"))
		},
	}
}

func writeIfAbsent(out io.Writer, path, body string) error {
	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(out, "%s %s already exists, skipping\n", skipMark("-"), path)
		return nil
	}
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		return fmt.Errorf("init: write %q: %w", path, err)
	}
	fmt.Fprintf(out, "%s created %s\n", passMark("✓"), path)
	return nil
}

// ensureGitignored appends ".env" to the gitignore unless some line
// already names it.
func ensureGitignored(out io.Writer, path string) error {
	existing := ""
	if b, err := os.ReadFile(path); err == nil {
		existing = string(b)
	}
	for _, line := range strings.Split(existing, "\n") {
		if strings.TrimSpace(line) == ".env" {
			return nil
		}
	}

	content := existing
	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	content += ".env\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("init: write %q: %w", path, err)
	}
	fmt.Fprintf(out, "%s added .env to %s\n", passMark("✓"), path)
	return nil
}
