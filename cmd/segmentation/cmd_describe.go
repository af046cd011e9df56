package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kbukum/segmentation/dag"
	"github.com/kbukum/segmentation/segmentation"
)

var describeCmd = &cobra.Command{
	Use:       "describe <pipeline>",
	Short:     "Show the parameters, nodes and execution order of a pipeline",
	Args:      cobra.ExactArgs(1),
	ValidArgs: segmentation.Names(),
	RunE:      runDescribe,
}

func runDescribe(cmd *cobra.Command, args []string) error {
	p, err := segmentation.Lookup(args[0])
	if err != nil {
		return err
	}
	levels, err := dag.PlanLevels(p)
	if err != nil {
		return err
	}
	describePipeline(cmd.OutOrStdout(), p, levels)
	return nil
}

func describePipeline(out io.Writer, p *dag.Pipeline, levels [][]string) {
	fmt.Fprintf(out, "%s\n  %s\n\n", p.Name, p.Description)

	fmt.Fprintln(out, "Parameters")
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, def := range p.Params {
		required := "required"
		if def.Optional {
			required = "optional"
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", def.Name, def.Type, required)
	}
	_ = tw.Flush()

	fmt.Fprintln(out, "\nNodes")
	tw = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, n := range p.Nodes {
		var outputs []string
		for _, o := range n.Outputs {
			outputs = append(outputs, fmt.Sprintf("%s:%s", o.Name, o.Type))
		}
		fmt.Fprintf(tw, "  %s\t%s\t-> %s\n", n.Title(), n.Component, strings.Join(outputs, ", "))
		for _, name := range n.InputNames() {
			fmt.Fprintf(tw, "    %s\t%s\t\n", name, n.Inputs[name])
		}
	}
	_ = tw.Flush()

	fmt.Fprintln(out, "\nExecution order")
	for i, level := range levels {
		fmt.Fprintf(out, "  %d. %s\n", i+1, strings.Join(level, ", "))
	}
}
