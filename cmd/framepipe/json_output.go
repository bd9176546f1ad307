package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"framepipe/internal/queue"
)

func addJSONFlag(cmd *cobra.Command, target *bool, usage string) {
	if usage == "" {
		usage = "Output as JSON"
	}
	cmd.Flags().BoolVar(target, "json", false, usage)
}

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printJob writes one job either as its JSON view or as the detail block.
func printJob(cmd *cobra.Command, job *queue.Job, asJSON bool) error {
	if asJSON {
		return writeJSON(cmd, newJobView(job))
	}
	out := cmd.OutOrStdout()
	for _, line := range renderJobDetail(job, shouldColorize(out)) {
		fmt.Fprintln(out, line)
	}
	return nil
}
