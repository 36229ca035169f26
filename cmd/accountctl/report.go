package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/mordilloSan/accountctl/lifecycle"
	"github.com/mordilloSan/accountctl/provision"
)

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to encode JSON: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(data))
}

func printBatchSummary(summary *provision.BatchSummary, jsonOut bool) {
	if jsonOut {
		printJSON(summary)
		return
	}

	fmt.Printf("Processed %d records in %s: %d created, %d skipped, %d failed\n",
		summary.TotalProcessed, summary.Elapsed.Round(time.Millisecond),
		len(summary.Created), len(summary.Skipped), len(summary.Failed))

	for _, r := range summary.Created {
		fmt.Printf("  \033[32mcreated\033[0m %-20s shell=%s", r.Record.Username, r.Shell)
		if len(r.Groups) > 0 {
			fmt.Printf(" groups=%v", r.Groups)
		}
		fmt.Println()
		for _, w := range r.Warnings {
			fmt.Printf("          \033[33mwarning:\033[0m %s\n", w)
		}
	}
	for _, r := range summary.Skipped {
		fmt.Printf("  skipped %-20s %s\n", r.Record.Username, r.Reason)
	}
	for _, r := range summary.Failed {
		fmt.Printf("  \033[31mfailed\033[0m  %-20s %s\n", r.Record.Username, r.Reason)
	}
}

func printGroupSummary(summary *provision.GroupSummary, jsonOut bool) {
	if jsonOut {
		printJSON(summary)
		return
	}

	fmt.Printf("Processed %d group records in %s: %d applied, %d skipped, %d failed\n",
		summary.TotalProcessed, summary.Elapsed.Round(time.Millisecond),
		len(summary.Applied), len(summary.Skipped), len(summary.Failed))

	for _, r := range summary.Applied {
		action := "created"
		if r.Record.Action == provision.GroupDelete {
			action = "deleted"
		}
		fmt.Printf("  \033[32m%s\033[0m %s\n", action, r.Record.Name)
		for _, w := range r.Warnings {
			fmt.Printf("          \033[33mwarning:\033[0m %s\n", w)
		}
	}
	for _, r := range summary.Skipped {
		fmt.Printf("  skipped %-20s %s\n", r.Record.Name, r.Reason)
	}
	for _, r := range summary.Failed {
		fmt.Printf("  \033[31mfailed\033[0m  %-20s %s\n", r.Record.Name, r.Reason)
	}
}

func printSequenceResult(result *lifecycle.Result, jsonOut bool) {
	if jsonOut {
		printJSON(result)
		return
	}

	status := "\033[32msucceeded\033[0m"
	if !result.Succeeded {
		status = "\033[31mfailed\033[0m"
	}
	fmt.Printf("%s %s: %s (%d/%d steps)\n",
		result.Action, result.Username, status, result.StepsCompleted, result.StepsTotal)

	for _, st := range result.Steps {
		mark := "✓"
		switch st.Outcome {
		case "failed":
			mark = "\033[31m✗\033[0m"
		case "skipped":
			mark = "-"
		}
		fmt.Printf("  %s %s", mark, st.Name)
		if st.Detail != "" {
			fmt.Printf(" (%s)", st.Detail)
		}
		fmt.Println()
	}
}
