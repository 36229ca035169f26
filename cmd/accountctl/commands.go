package main

import (
	"fmt"
	"os"

	"github.com/mordilloSan/go-logger/logger"
	flag "github.com/spf13/pflag"

	"github.com/mordilloSan/accountctl/accounts"
	"github.com/mordilloSan/accountctl/audit"
	"github.com/mordilloSan/accountctl/common/config"
	"github.com/mordilloSan/accountctl/lifecycle"
	"github.com/mordilloSan/accountctl/provision"
	"github.com/mordilloSan/accountctl/secrets"
)

func initLogger(verbose bool) {
	var levels []logger.Level
	if verbose {
		levels = logger.AllLevels()
	} else {
		levels = []logger.Level{logger.InfoLevel, logger.WarnLevel, logger.ErrorLevel}
	}
	logger.Init(logger.Config{Levels: levels})
}

func loadContext(path string) *config.PolicyContext {
	ctx, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	return ctx
}

// buildSystem wires the identity-store primitives, honoring dry-run.
func buildSystem(ctx *config.PolicyContext, dryRun bool) accounts.System {
	var sys accounts.System = accounts.NewLocalSystem(ctx.Defaults.PrivilegedGroup)
	if dryRun {
		sys = accounts.NewDryRun(sys)
	}
	return sys
}

// buildSecretStore returns the secret-record collaborator, or nil when
// no recipient is configured (generated passwords then surface as
// warnings instead of being spooled).
func buildSecretStore(ctx *config.PolicyContext, dryRun bool) provision.SecretStore {
	if dryRun {
		return secrets.Discard{}
	}
	store, err := secrets.NewStore(ctx.Defaults.SecretSpoolDir, ctx.Defaults.SecretRecipient)
	if err != nil {
		logger.Warnf("secret spool disabled: %v", err)
		return nil
	}
	return store
}

func runProvision(args []string) {
	fs := flag.NewFlagSet("provision", flag.ExitOnError)
	file := fs.StringP("file", "f", "", "batch file (required)")
	format := fs.String("format", "auto", "batch format: auto|text|json|yaml")
	groups := fs.Bool("groups", false, "the batch file contains group records")
	role := fs.String("role", "", "role applied to records that do not name one")
	configPath := fs.StringP("config", "c", "", "config file path")
	dryRun := fs.Bool("dry-run", false, "resolve and classify without mutating the system")
	jsonOut := fs.Bool("json", false, "print the summary as JSON")
	verbose := fs.BoolP("verbose", "v", false, "verbose logging")
	_ = fs.Parse(args)

	initLogger(*verbose)

	if *file == "" {
		fmt.Fprintln(os.Stderr, "provision: -file is required")
		os.Exit(2)
	}

	ctx := loadContext(*configPath)
	sys := buildSystem(ctx, *dryRun)
	recorder := audit.NewRecorder()
	orch := provision.NewOrchestrator(sys, ctx, buildSecretStore(ctx, *dryRun), recorder)
	orch.Role = *role

	if *groups {
		records, err := provision.ParseGroupsFile(*file, provision.Format(*format))
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		summary := orch.ProvisionGroups(records)
		printGroupSummary(summary, *jsonOut)
		if len(summary.Failed) > 0 {
			os.Exit(1)
		}
		return
	}

	records, rejected, err := provision.ParseAccountsFile(*file, provision.Format(*format))
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	summary := orch.ProvisionBatch(records, rejected)
	printBatchSummary(summary, *jsonOut)
	if len(summary.Failed) > 0 {
		os.Exit(1)
	}
}

func runSuspend(args []string) {
	fs := flag.NewFlagSet("suspend", flag.ExitOnError)
	reason := fs.StringP("reason", "r", "", "reason recorded in the account comment (required)")
	configPath := fs.StringP("config", "c", "", "config file path")
	dryRun := fs.Bool("dry-run", false, "report the steps without mutating the system")
	jsonOut := fs.Bool("json", false, "print the result as JSON")
	verbose := fs.BoolP("verbose", "v", false, "verbose logging")
	_ = fs.Parse(args)

	initLogger(*verbose)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: accountctl suspend <username> -reason <text>")
		os.Exit(2)
	}
	if *reason == "" {
		fmt.Fprintln(os.Stderr, "suspend: -reason is required")
		os.Exit(2)
	}
	username := fs.Arg(0)

	ctx := loadContext(*configPath)
	seq := lifecycle.NewSequencer(buildSystem(ctx, *dryRun), ctx, nil, audit.NewRecorder())

	result, err := seq.Suspend(username, *reason)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	printSequenceResult(result, *jsonOut)
	if !result.Succeeded {
		os.Exit(1)
	}
}

func runRestore(args []string) {
	fs := flag.NewFlagSet("restore", flag.ExitOnError)
	shell := fs.String("shell", "", "explicit shell to restore")
	role := fs.String("role", "", "role supplying shell/sudo where unset")
	sudo := fs.String("sudo", "", "sudo stance to restore: allow|deny")
	expiry := fs.String("expiry", "", "account expiry: ISO date, day count, or 0 for never")
	configPath := fs.StringP("config", "c", "", "config file path")
	dryRun := fs.Bool("dry-run", false, "report the steps without mutating the system")
	jsonOut := fs.Bool("json", false, "print the result as JSON")
	verbose := fs.BoolP("verbose", "v", false, "verbose logging")
	_ = fs.Parse(args)

	initLogger(*verbose)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: accountctl restore <username> [flags]")
		os.Exit(2)
	}
	username := fs.Arg(0)

	ctx := loadContext(*configPath)
	var store lifecycle.SecretStore
	if s := buildSecretStore(ctx, *dryRun); s != nil {
		store = s
	}
	seq := lifecycle.NewSequencer(buildSystem(ctx, *dryRun), ctx, store, audit.NewRecorder())

	result, err := seq.Restore(username, lifecycle.RestoreOptions{
		Shell:  *shell,
		Role:   *role,
		Sudo:   *sudo,
		Expiry: *expiry,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	printSequenceResult(result, *jsonOut)
	if !result.Succeeded {
		os.Exit(1)
	}
}

func runList(args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	jsonOut := fs.Bool("json", false, "print as JSON")
	_ = fs.Parse(args)

	initLogger(false)

	what := "users"
	if fs.NArg() > 0 {
		what = fs.Arg(0)
	}

	switch what {
	case "users":
		users, err := accounts.ListUsers()
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		if *jsonOut {
			printJSON(users)
			return
		}
		for _, u := range users {
			state := ""
			if u.IsLocked {
				state = " [locked]"
			}
			fmt.Printf("%-20s uid=%-6d shell=%-20s %s%s\n", u.Username, u.UID, u.Shell, u.Gecos, state)
		}
	case "groups":
		groups, err := accounts.ListGroups()
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		if *jsonOut {
			printJSON(groups)
			return
		}
		for _, g := range groups {
			fmt.Printf("%-20s gid=%-6d members=%v\n", g.Name, g.GID, g.Members)
		}
	case "shells":
		shells, err := accounts.ListShells()
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		if *jsonOut {
			printJSON(shells)
			return
		}
		for _, s := range shells {
			fmt.Println(s)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown list target %q (users|groups|shells)\n", what)
		os.Exit(2)
	}
}

func runConfig(args []string) {
	if len(args) < 1 || args[0] != "init" {
		fmt.Fprintln(os.Stderr, "usage: accountctl config init [-path <file>]")
		os.Exit(2)
	}

	fs := flag.NewFlagSet("config init", flag.ExitOnError)
	path := fs.String("path", config.DefaultPath, "where to write the config file")
	_ = fs.Parse(args[1:])

	initLogger(false)

	if err := config.WriteDefault(*path); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s\n", *path)
}
