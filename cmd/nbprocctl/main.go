// Package main is the entry point for nbprocctl, a small command-line
// front end over the nbproc process I/O engine.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/nbproc/nbproc/internal/jobspec"
	"github.com/nbproc/nbproc/internal/obs"
	"github.com/nbproc/nbproc/internal/procio"
	"github.com/nbproc/nbproc/internal/stream"
	"github.com/nbproc/nbproc/internal/supervisor"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run())
}

type options struct {
	jobPath       string
	dir           string
	stderr        string
	printResolved bool
	monitor       bool
	logLevel      string
	shutdownGrace time.Duration
	showVersion   bool
	args          []string
}

func run() int {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "nbprocctl: %v\n", err)
		return 2
	}

	if opts.showVersion {
		fmt.Printf("nbprocctl %s (%s)\n", version, commit)
		return 0
	}

	log := obs.New(obs.Config{Level: obs.ParseLevel(opts.logLevel), Output: os.Stderr, Prefix: "nbprocctl"})
	procio.SetLogger(log)

	spec, err := resolveSpec(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "nbprocctl: %v\n", err)
		return 1
	}

	if opts.printResolved {
		out, err := jobspec.Resolved(spec)
		if err != nil {
			fmt.Fprintf(os.Stderr, "nbprocctl: %v\n", err)
			return 1
		}
		fmt.Println(out)
		return 0
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sup := supervisor.New(supervisor.WithLogger(log))

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signals
		cancel()
		sup.Shutdown(opts.shutdownGrace)
	}()

	entry, err := sup.Start(spec.Args[0], spec.Args, spec.Env, spec.Dir, spec.StderrMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "nbprocctl: %v\n", err)
		return 1
	}

	if opts.monitor {
		go func() {
			if err := runMonitor(ctx, sup); err != nil {
				log.Warn("monitor exited: %v", err)
			}
			cancel()
		}()
	}

	out := stream.New(ctx, entry.Handle)
	if _, err := io.Copy(os.Stdout, out); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "nbprocctl: %v\n", err)
	}

	<-entry.Done()
	status, _ := entry.ExitStatus()

	sup.Shutdown(opts.shutdownGrace)

	if status.Type == procio.ExitNormal {
		return status.Code
	}
	return 1
}

func resolveSpec(opts options) (jobspec.Spec, error) {
	if opts.jobPath != "" {
		spec, err := jobspec.Load(opts.jobPath)
		if err != nil {
			return jobspec.Spec{}, err
		}
		if opts.dir != "" {
			spec.Dir = opts.dir
		}
		if opts.stderr != "auto" {
			spec.StderrMode = parseStderrFlag(opts.stderr)
		}
		return spec, nil
	}

	if len(opts.args) == 0 {
		return jobspec.Spec{}, errors.New("no command given: pass -job PATH or trailing args after --")
	}

	mode := procio.StderrInherit
	switch opts.stderr {
	case "discard":
		mode = procio.StderrDiscard
	case "inherit":
		mode = procio.StderrInherit
	default: // auto
		if !term.IsTerminal(int(os.Stderr.Fd())) {
			mode = procio.StderrDiscard
		}
	}

	return jobspec.Spec{Args: opts.args, Dir: opts.dir, StderrMode: mode}, nil
}

func parseStderrFlag(s string) procio.StderrMode {
	if s == "discard" {
		return procio.StderrDiscard
	}
	return procio.StderrInherit
}

func parseFlags(args []string) (options, error) {
	fs := flag.NewFlagSet("nbprocctl", flag.ContinueOnError)
	var opts options

	fs.StringVar(&opts.jobPath, "job", "", "Path to a job spec file (.json or .lua)")
	fs.StringVar(&opts.dir, "dir", "", "Working directory override")
	fs.StringVar(&opts.stderr, "stderr", "auto", "Stderr disposition: inherit, discard, or auto (TTY-detected)")
	fs.BoolVar(&opts.printResolved, "print-resolved", false, "Print the resolved job spec as JSON and exit")
	fs.BoolVar(&opts.monitor, "monitor", false, "Open a live TUI listing supervised handles")
	fs.StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	fs.DurationVar(&opts.shutdownGrace, "shutdown-grace", 5*time.Second, "Grace period between SIGTERM and SIGKILL on shutdown")
	fs.BoolVar(&opts.showVersion, "version", false, "Show version information")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "nbprocctl - launch and supervise a non-blocking child process\n\n")
		fmt.Fprintf(os.Stderr, "Usage: nbprocctl [options] -- command [args...]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  nbprocctl -- /bin/echo hello\n")
		fmt.Fprintf(os.Stderr, "  nbprocctl -job job.json\n")
		fmt.Fprintf(os.Stderr, "  nbprocctl -job job.lua -monitor\n")
	}

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	opts.args = fs.Args()
	return opts, nil
}
