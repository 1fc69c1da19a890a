package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func Main() {
	_ = godotenv.Load() // best-effort: load .env if present

	root := &cobra.Command{
		Use:          "podclip",
		Short:        "Transcribe long-form audio and cut highlight clips",
		SilenceUsage: true,
	}
	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)
	root.SilenceErrors = true

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and job workers",
		RunE:  runServe,
	}
	serve.Flags().String("config", "", "Path to a YAML config file (optional)")
	serve.Flags().String("addr", "", "Listen address (overrides config)")
	serve.Flags().String("data-dir", "", "Data directory (overrides config)")
	serve.Flags().Int("workers", 0, "Worker count (overrides config)")
	root.AddCommand(serve)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
