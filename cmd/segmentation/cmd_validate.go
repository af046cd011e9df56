package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kbukum/segmentation/dag"
	"github.com/kbukum/segmentation/errors"
	"github.com/kbukum/segmentation/segmentation"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file>...",
	Short: "Check compiled pipeline documents",
	Long: "validate decodes each document and checks its wiring and every node against\n" +
		"the segmentation components. Nothing is contacted.",
	Args: cobra.MinimumNArgs(1),
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	failed := 0
	for _, path := range args {
		if err := validateFile(path); err != nil {
			failed++
			fmt.Fprintf(out, "FAIL %s\n", path)
			printProblems(cmd, err)
			continue
		}
		fmt.Fprintf(out, "ok   %s\n", path)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d documents are invalid", failed, len(args))
	}
	return nil
}

func validateFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	p, err := dag.Decode(data)
	if err != nil {
		return err
	}
	return segmentation.Check(p)
}

// printProblems lists the problems of an INVALID_GRAPH error one per line.
func printProblems(cmd *cobra.Command, err error) {
	out := cmd.OutOrStdout()
	if appErr, ok := errors.AsAppError(err); ok {
		if problems, ok := appErr.Details["problems"].([]string); ok {
			for _, p := range problems {
				fmt.Fprintf(out, "     - %s\n", p)
			}
			return
		}
	}
	fmt.Fprintf(out, "     - %v\n", err)
}
