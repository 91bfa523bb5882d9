package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"

	"profileshot/internal/capture"
	"profileshot/internal/config"
	"profileshot/internal/logging"
	"profileshot/internal/profile"
)

var version = "dev"

const (
	exitOK          = 0
	exitFailure     = 1
	exitInterrupted = 130
	maxListed       = 10
)

// configPaths is a custom flag type that allows multiple -config flags.
type configPaths []string

func (c *configPaths) String() string { return fmt.Sprintf("%v", *c) }

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) > 0 {
		switch args[0] {
		case "profiles":
			return profilesCmd(args[1:], stdout, stderr)
		case "help", "-h", "-help", "--help":
			usage(stdout)
			return exitOK
		}
	}
	return captureCmd(args, stdin, stdout, stderr)
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "profileshot usage:")
	fmt.Fprintln(w, "  profileshot [flags] [profile] [url]   # capture a full-page screenshot")
	fmt.Fprintln(w, "  profileshot profiles [flags]          # list profiles under the user data root")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "flags must precede positional arguments:")
	fmt.Fprintln(w, "  -config <file.toml>  (repeatable)  -out <dir>  -engine playwright|chromedp|rod")
	fmt.Fprintln(w, "  -headless  -isolate  -version")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "environment: CHROMIUM_EXECUTABLE_PATH, CHROMIUM_USERDATA_PATH, PROFILESHOT_*")
}

// commonFlags registers the flags shared by every subcommand.
type commonFlags struct {
	configs  configPaths
	out      string
	engine   string
	headless bool
	isolate  bool
	version  bool
}

func newFlagSet(name string, stderr io.Writer) (*flag.FlagSet, *commonFlags) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	cf := &commonFlags{}
	fs.Var(&cf.configs, "config", "Configuration file path (can be specified multiple times)")
	fs.StringVar(&cf.out, "out", "", "Output directory (overrides config)")
	fs.StringVar(&cf.engine, "engine", "", "Automation engine: playwright, chromedp or rod")
	fs.BoolVar(&cf.headless, "headless", false, "Run the browser without a window")
	fs.BoolVar(&cf.isolate, "isolate", false, "Capture from a temporary copy of the profile")
	fs.BoolVar(&cf.version, "version", false, "Print version information")
	return fs, cf
}

// loadConfig applies defaults, files, env, then only the flags that were set.
func loadConfig(fs *flag.FlagSet, cf *commonFlags) (*config.Config, error) {
	cfg, err := config.LoadFromFiles(cf.configs...)
	if err != nil {
		return nil, err
	}
	overrides := config.FlagOverrides{OutputDir: cf.out, Engine: cf.engine}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "headless":
			overrides.Headless = &cf.headless
		case "isolate":
			overrides.Isolate = &cf.isolate
		}
	})
	config.ApplyFlagOverrides(cfg, overrides)
	return cfg, nil
}

func newTool(fs *flag.FlagSet, cf *commonFlags, stdout, stderr io.Writer) (*capture.Tool, *config.Config, bool) {
	cfg, err := loadConfig(fs, cf)
	if err != nil {
		fmt.Fprintf(stderr, "configuration error: %v\n", err)
		return nil, nil, false
	}
	fmt.Fprintln(stdout, "settings:")
	fmt.Fprintf(stdout, "  chromium executable: %s\n", cfg.Browser.ExecutablePath)
	fmt.Fprintf(stdout, "  user data:           %s\n", cfg.Browser.UserDataPath)
	fmt.Fprintf(stdout, "  engine:              %s\n", cfg.Browser.Engine)

	logger := logging.New(cfg.Logging)
	tool, err := capture.New(cfg, nil, logger)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return nil, nil, false
	}
	return tool, cfg, true
}

func profilesCmd(args []string, stdout, stderr io.Writer) int {
	fs, cf := newFlagSet("profiles", stderr)
	if err := fs.Parse(args); err != nil {
		return exitFailure
	}
	if cf.version {
		fmt.Fprintf(stdout, "profileshot version %s\n", version)
		return exitOK
	}
	tool, _, ok := newTool(fs, cf, stdout, stderr)
	if !ok {
		return exitFailure
	}
	if err := printInventory(stdout, tool.Profiles()); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitFailure
	}
	return exitOK
}

func captureCmd(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs, cf := newFlagSet("profileshot", stderr)
	if err := fs.Parse(args); err != nil {
		return exitFailure
	}
	if cf.version {
		fmt.Fprintf(stdout, "profileshot version %s\n", version)
		return exitOK
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tool, cfg, ok := newTool(fs, cf, stdout, stderr)
	if !ok {
		return exitFailure
	}
	if err := printInventory(stdout, tool.Profiles()); err != nil {
		fmt.Fprintf(stderr, "warning: %v\n", err)
	}

	req, err := readRequest(ctx, fs.Args(), bufio.NewReader(stdin), stdout, cfg.Capture.DefaultURL)
	if err != nil {
		return reportError(stdout, stderr, err)
	}

	fmt.Fprintf(stdout, "\ncapturing %s with profile %q\n", req.URL, req.Profile)
	res, err := tool.Capture(ctx, req)
	if err != nil {
		return reportError(stdout, stderr, err)
	}

	fmt.Fprintln(stdout, "\ndone")
	fmt.Fprintf(stdout, "  screenshot: %s\n", res.Path)
	fmt.Fprintf(stdout, "  title:      %s\n", res.Title)
	fmt.Fprintf(stdout, "  login:      %s\n", res.Login)
	fmt.Fprintf(stdout, "  size:       %s\n", humanize.Bytes(uint64(res.SizeBytes)))
	return exitOK
}

var errNoProfile = errors.New("no profile name given")

// readRequest takes the profile and URL from args, prompting for whichever is
// missing. An empty URL answer selects defaultURL.
func readRequest(ctx context.Context, args []string, in *bufio.Reader, out io.Writer, defaultURL string) (capture.Request, error) {
	var req capture.Request
	var err error

	if len(args) > 0 {
		req.Profile = strings.TrimSpace(args[0])
	} else if req.Profile, err = prompt(ctx, in, out, "\nprofile name to use: "); err != nil {
		return req, err
	}
	if req.Profile == "" {
		return req, errNoProfile
	}

	if len(args) > 1 {
		req.URL = strings.TrimSpace(args[1])
	} else if req.URL, err = prompt(ctx, in, out, fmt.Sprintf("URL to visit (default: %s): ", defaultURL)); err != nil {
		return req, err
	}
	if req.URL == "" {
		req.URL = defaultURL
	}
	return req, nil
}

// prompt reads one line, giving up when ctx is cancelled.
func prompt(ctx context.Context, in *bufio.Reader, out io.Writer, question string) (string, error) {
	fmt.Fprint(out, question)

	type answer struct {
		line string
		err  error
	}
	ch := make(chan answer, 1)
	go func() {
		line, err := in.ReadString('\n')
		ch <- answer{line, err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case a := <-ch:
		if a.err != nil && !errors.Is(a.err, io.EOF) {
			return "", a.err
		}
		return strings.TrimSpace(a.line), nil
	}
}

func printInventory(w io.Writer, store *profile.Store) error {
	infos, err := store.Inventory()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "\nprofiles in %s\n", store.Root())
	if len(infos) == 0 {
		fmt.Fprintln(w, "  no profiles available")
		return nil
	}
	fmt.Fprintf(w, "  %d available\n", len(infos))
	for i, info := range infos {
		if i == maxListed {
			fmt.Fprintf(w, "  ... and %d more\n", len(infos)-maxListed)
			break
		}
		marker := ""
		switch {
		case info.HasLoginData && info.HasCookies:
			marker = " [login]"
		case info.HasCookies:
			marker = " [cookies]"
		}
		fmt.Fprintf(w, "  %2d. %s (%s)%s\n", i+1, info.Name, humanize.Bytes(uint64(info.SizeBytes)), marker)
	}
	fmt.Fprintln(w, "  [login] = login data present, [cookies] = cookies only")
	return nil
}

func reportError(stdout, stderr io.Writer, err error) int {
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(stderr, "\ninterrupted")
		return exitInterrupted
	}
	fmt.Fprintf(stderr, "\nerror: %v\n", err)
	switch {
	case errors.Is(err, errNoProfile), errors.Is(err, profile.ErrNotFound):
		fmt.Fprintln(stdout, "hint: profile names are case sensitive, e.g. \"Profile 39\"")
	case errors.Is(err, profile.ErrInUse):
		fmt.Fprintln(stdout, "hint: quit the browser using this profile, or rerun with -isolate")
		fmt.Fprintln(stdout, "hint: if no browser is running, a crash left a stale SingletonLock in the user data dir; delete it")
	default:
		fmt.Fprintln(stdout, "hint: check network access, try another URL, and make sure the output directory is writable")
	}
	return exitFailure
}
