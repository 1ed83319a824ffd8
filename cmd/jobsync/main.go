// Command jobsync mirrors a job listings page into a local table and posts
// new listings to a Discourse category.
//
//	jobsync run     [-config path] [-data-dir dir] [-dry-run]
//	jobsync watch   [-config path] [-data-dir dir]
//	jobsync export  [-config path] [-data-dir dir] -out jobs.xlsx
//	jobsync secret  set|delete
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// exitFatal is returned by main for fatal run errors; usage errors use 2.
const exitFatal = 1

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, args := os.Args[1], os.Args[2:]
	var err error
	switch cmd {
	case "run":
		err = cmdRun(ctx, args)
	case "watch":
		err = cmdWatch(ctx, args)
	case "export":
		err = cmdExport(ctx, args)
	case "secret":
		err = cmdSecret(args)
	case "help", "-h", "--help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "jobsync: unknown command %q\n\n", cmd)
		usage()
		os.Exit(2)
	}

	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "jobsync:", err)
		stop()
		os.Exit(exitFatal)
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `usage: jobsync <command> [flags]

commands:
  run      scrape, reconcile and publish once
  watch    run on the configured cron schedule and serve /metrics
  export   write the job table to a spreadsheet (or another backend)
  secret   store or delete the Discourse API key in the OS keychain

run "jobsync <command> -h" for command flags
`)
}
