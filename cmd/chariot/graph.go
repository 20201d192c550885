package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chariot-build/chariot/internal/configparser"
)

var graphDotFlag bool

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Print the resolved recipe graph",
	Long: `graph loads and resolves the configuration file and prints every
recipe reference it contains. With --dot, it prints a Graphviz
description of the dependency and source edges instead.`,
	Args: cobra.NoArgs,
	RunE: runGraph,
}

func init() {
	graphCmd.Flags().StringVar(&configPath, "config", "./config.chariot", "configuration file path")
	graphCmd.Flags().BoolVar(&graphDotFlag, "dot", false, "print a Graphviz DOT description instead of a flat list")
}

func runGraph(cmd *cobra.Command, args []string) error {
	g, err := configparser.ParseFile(configPath)
	if err != nil {
		return err
	}

	if graphDotFlag {
		fmt.Println(g.DOT())
		return nil
	}

	for _, r := range g.All() {
		fmt.Printf("%s/%s\n", r.Namespace, r.Name)
		for _, dep := range r.Dependencies {
			marker := ""
			if dep.Runtime {
				marker = "*"
			}
			fmt.Printf("  -> %s%s/%s\n", marker, dep.Namespace, dep.Name)
		}
		if r.HostTarget.Source != nil {
			fmt.Printf("  source: %s\n", r.HostTarget.Source.Name)
		}
	}
	return nil
}
