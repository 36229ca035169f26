package main

import (
	"fmt"
	"os"

	"github.com/mordilloSan/accountctl/common/version"
)

func main() {
	if len(os.Args) < 2 {
		showHelp()
		os.Exit(0)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "provision":
		runProvision(args)
	case "suspend":
		runSuspend(args)
	case "restore":
		runRestore(args)
	case "list":
		runList(args)
	case "config":
		runConfig(args)
	case "version":
		showVersion()
	case "help", "-h", "--help":
		showHelp()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		showHelp()
		os.Exit(1)
	}
}

func showHelp() {
	fmt.Printf("\033[1maccountctl - Bulk account provisioning and lifecycle management\033[0m\n")
	fmt.Println(`
Usage: accountctl <command> [options]

Commands:
  provision  Provision accounts or groups from a batch file
  suspend    Suspend a single account (lock, nologin, expire)
  restore    Restore a suspended account
  list       List users, groups or shells
  config     Manage the accountctl config file
  version    Show version information
  help       Show this help message

Use "accountctl <command> -h" for command flags.`)
}

func showVersion() {
	fmt.Printf("accountctl %s", version.Version)
	if version.CommitSHA != "untracked" {
		fmt.Printf(" (%s)", version.CommitSHA)
	}
	if version.BuildTime != "unknown" {
		fmt.Printf(" built %s", version.BuildTime)
	}
	fmt.Println()
}
