package main

import (
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/contract-cli/internal/export"
	"github.com/sells-group/contract-cli/internal/model"
)

var (
	extractFile    string
	extractFormat  string
	extractOut     string
	extractXLSX    string
	extractNoStore bool
	extractDryRun  bool
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract structured terms from a single contract",
	Long:  "Loads a PDF or text contract, runs the extraction pipeline and writes the result as JSON or YAML. Runs are recorded in the store unless --no-store is set.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		format := export.Format(extractFormat)
		if format != export.FormatJSON && format != export.FormatYAML {
			return eris.Errorf("unsupported format %q (json or yaml)", extractFormat)
		}

		env, err := initPipeline(ctx, envOptions{
			Mode:    "extract",
			DryRun:  extractDryRun,
			NoStore: extractNoStore,
		})
		if err != nil {
			return err
		}
		defer env.Close()

		doc, err := env.Loader.Load(ctx, extractFile)
		if err != nil {
			return eris.Wrap(err, "load document")
		}

		runID, result, err := env.process(ctx, doc)
		if err != nil {
			return err
		}

		if err := writeResult(result, format, extractOut); err != nil {
			return err
		}

		if extractXLSX != "" {
			if err := export.SaveXLSX(extractXLSX, result); err != nil {
				return err
			}
			zap.L().Info("review workbook written", zap.String("path", extractXLSX))
		}

		if runID != "" {
			zap.L().Info("run recorded", zap.String("run_id", runID))
		}
		return nil
	},
}

// writeResult encodes result to path, or stdout when path is empty.
func writeResult(result *model.PipelineResult, format export.Format, path string) error {
	var w io.Writer = os.Stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return eris.Wrapf(err, "create %s", path)
		}
		defer f.Close() //nolint:errcheck
		w = f
	}
	return export.Write(w, result, format)
}

func init() {
	extractCmd.Flags().StringVar(&extractFile, "file", "", "contract file to extract (PDF or text)")
	extractCmd.Flags().StringVar(&extractFormat, "format", "json", "output format (json, yaml)")
	extractCmd.Flags().StringVarP(&extractOut, "out", "o", "", "write the result to this file instead of stdout")
	extractCmd.Flags().StringVar(&extractXLSX, "xlsx", "", "also write a review workbook to this path")
	extractCmd.Flags().BoolVar(&extractNoStore, "no-store", false, "do not record the run in the store")
	extractCmd.Flags().BoolVar(&extractDryRun, "dry-run", false, "use canned completions instead of calling Claude")
	_ = extractCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(extractCmd)
}
