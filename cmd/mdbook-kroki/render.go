package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dgallion1/mdkroki/internal/bookload"
	"github.com/dgallion1/mdkroki/internal/preprocess"
)

var renderDest string

// renderCmd processes a book directory without mdbook driving: book.toml
// supplies the configuration, the markdown tree under src/ becomes the book,
// and the processed chapters are written to the destination directory.
var renderCmd = &cobra.Command{
	Use:   "render [BOOK_DIR]",
	Short: "Render a book directory's diagrams without mdbook",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := "."
		if len(args) == 1 {
			root = args[0]
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		manifest, err := bookload.LoadManifest(root)
		if err != nil {
			return err
		}
		b, err := bookload.LoadBook(root, manifest.SrcDir())
		if err != nil {
			return err
		}

		p := preprocess.New(log)
		processed, err := p.Run(ctx, manifest.Context(root), b)
		if err != nil {
			return err
		}

		if err := bookload.WriteBook(processed, renderDest); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "rendered book written to", renderDest)
		return nil
	},
	SilenceUsage: true,
}

func init() {
	renderCmd.Flags().StringVarP(&renderDest, "dest", "d", "book-rendered", "output directory for processed chapters")
}
