// segmentation compiles, checks and runs the k-means segmentation pipelines.
//
// Usage:
//
//	segmentation compile [pipeline...] [-o build] [--unbound]
//	segmentation validate <file>...
//	segmentation describe <pipeline>
//	segmentation run <pipeline> [--set name=value]...
//	segmentation health
//	segmentation version
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
