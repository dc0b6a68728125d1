// Licensed to Andrew Kroh under one or more agreements.
// Andrew Kroh licenses this file to you under the Apache 2.0 License.
// See the LICENSE file in the project root for more information.

// Command orgrepos lists the public repositories of one or more GitHub
// organizations, optionally filtered by license key.
//
// Usage:
//
//	orgrepos [-license KEY] [-timeout D] ORG...
//
// Each repository is printed as "org<TAB>repo". Organizations are fetched
// concurrently and printed in the order given.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/andrewkroh/github-org-explorer/internal/async"
	"github.com/andrewkroh/github-org-explorer/internal/github"
	"github.com/andrewkroh/github-org-explorer/internal/otelsetup"
	"github.com/andrewkroh/github-org-explorer/internal/utils"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

// options holds the parsed command line.
type options struct {
	License string
	Timeout time.Duration
	Orgs    []string
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("orgrepos", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: orgrepos [-license KEY] [-timeout D] ORG...")
		fs.PrintDefaults()
	}

	opts := &options{}
	fs.StringVar(&opts.License, "license", "", "Only list repositories with this license key (e.g. apache-2.0)")
	fs.DurationVar(&opts.Timeout, "timeout", 30*time.Second, "Overall time limit (0 disables)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	opts.Orgs = fs.Args()

	if len(opts.Orgs) == 0 {
		err := errors.New("at least one ORG is required")
		fmt.Fprintf(fs.Output(), "Error: %v\n\n", err)
		fs.Usage()
		return nil, err
	}
	if opts.Timeout < 0 {
		err := fmt.Errorf("flag -timeout must be non-negative, got %s", opts.Timeout)
		fmt.Fprintf(fs.Output(), "Error: %v\n\n", err)
		fs.Usage()
		return nil, err
	}
	return opts, nil
}

// run executes the command and returns the process exit code.
func run(ctx context.Context, args []string, getenv func(string) string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return exitOK
	}
	if err != nil {
		return exitUsage
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	logger := otelsetup.NewLoggerLevel(stderr, slog.LevelWarn)

	fetchOpts := []utils.FetcherOption{
		utils.WithLogger(logger),
		utils.WithAccept(github.AcceptHeader),
		utils.WithUserAgent("orgrepos"),
		utils.WithMaxTries(3),
	}
	if token := getenv("GITHUB_TOKEN"); token != "" {
		fetchOpts = append(fetchOpts, utils.WithToken(token))
	}
	fetcher := utils.NewFetcher(fetchOpts...)

	baseURL := github.DefaultBaseURL
	if v := getenv("GITHUB_API_BASE_URL"); v != "" {
		baseURL = v
	}

	tasks := make([]*async.Task[[]string], len(opts.Orgs))
	for i, org := range opts.Orgs {
		client := github.NewOrgClient(org, fetcher, github.WithBaseURL(baseURL), github.WithLogger(logger))
		tasks[i] = async.Go(ctx, func(ctx context.Context) ([]string, error) {
			return client.PublicRepos(ctx, opts.License)
		})
	}

	code := exitOK
	for i, task := range tasks {
		repos, err := task.Wait(ctx)
		if err != nil {
			fmt.Fprintf(stderr, "orgrepos: %s: %v\n", opts.Orgs[i], err)
			code = exitError
			continue
		}
		for _, repo := range repos {
			fmt.Fprintf(stdout, "%s\t%s\n", opts.Orgs[i], repo)
		}
	}
	return code
}

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Getenv, os.Stdout, os.Stderr))
}
