package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dgallion1/mdkroki/internal/preprocess"
)

// Stdout carries the preprocessor protocol, so all logging goes to stderr.
var log = slog.New(slog.NewTextHandler(os.Stderr, nil))

var rootCmd = &cobra.Command{
	Use:   "mdbook-kroki",
	Short: "An mdbook preprocessor for rendering kroki diagrams",
	Long: `mdbook-kroki scans a book for kroki diagram directives (fenced code
blocks, <kroki> tags and kroki: image links), renders them through a kroki
service and splices the results back into the chapters.

Run with no arguments it speaks the mdbook preprocessor protocol on
stdin/stdout. Use "render" to process a book directory without mdbook.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		p := preprocess.New(log)
		return p.RunProtocol(ctx, os.Stdin, os.Stdout)
	},
	SilenceUsage: true,
}

func main() {
	rootCmd.AddCommand(supportsCmd)
	rootCmd.AddCommand(renderCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Error("run failed", "error", err)
		os.Exit(1)
	}
}
