package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kbukum/segmentation/dag"
	"github.com/kbukum/segmentation/errors"
	"github.com/kbukum/segmentation/segmentation"
)

var compileFlags struct {
	outputDir string
	unbound   bool
	set       map[string]string
}

var compileCmd = &cobra.Command{
	Use:   "compile [pipeline...]",
	Short: "Write pipeline documents with their configured parameters",
	Long: "compile writes <output>/<pipeline>.yaml for each named pipeline, or for both\n" +
		"when none is named. Parameters come from the pipelines section of the config\n" +
		"and are validated first; --unbound writes the bare templates instead and\n" +
		"cannot be combined with --set.",
	ValidArgs: segmentation.Names(),
	RunE:      runCompile,
}

func init() {
	f := compileCmd.Flags()
	f.StringVarP(&compileFlags.outputDir, "output", "o", "", "output directory (default: output_dir from config)")
	f.BoolVar(&compileFlags.unbound, "unbound", false, "write templates without parameter values")
	f.StringToStringVar(&compileFlags.set, "set", nil, "override a pipeline parameter (name=value)")
}

func runCompile(cmd *cobra.Command, args []string) error {
	if compileFlags.unbound && len(compileFlags.set) > 0 {
		return errors.Validation("--set cannot be combined with --unbound")
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dir := compileFlags.outputDir
	if dir == "" {
		dir = cfg.OutputDir
	}
	names := args
	if len(names) == 0 {
		names = segmentation.Names()
	}

	for _, name := range names {
		p, err := buildDocument(cfg, name)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		path, err := dag.WritePipeline(p, dir)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
	}
	return nil
}

// buildDocument returns the checked document of the named pipeline, bound
// to its configured parameters unless --unbound is set.
func buildDocument(cfg *segmentation.Config, name string) (*dag.Pipeline, error) {
	p, err := segmentation.Lookup(name)
	if err != nil {
		return nil, err
	}
	if !compileFlags.unbound {
		params, err := configuredParams(cfg, name, compileFlags.set)
		if err != nil {
			return nil, err
		}
		if p, err = segmentation.Bind(p, params); err != nil {
			return nil, err
		}
	}
	if err := segmentation.Check(p); err != nil {
		return nil, err
	}
	return p, nil
}

func configuredParams(cfg *segmentation.Config, name string, set map[string]string) (segmentation.Params, error) {
	params, err := cfg.Params(name)
	if err != nil {
		return nil, err
	}
	return segmentation.Override(params, set)
}
