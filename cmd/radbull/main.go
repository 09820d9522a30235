package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/johnsonhungm/Rad-bull/cmd/radbull/prompt"
	"github.com/johnsonhungm/Rad-bull/internal/config"
	"github.com/johnsonhungm/Rad-bull/internal/inference"
	"github.com/johnsonhungm/Rad-bull/internal/report"
	"github.com/johnsonhungm/Rad-bull/internal/ris"
	"github.com/johnsonhungm/Rad-bull/internal/uiauto"
	"github.com/johnsonhungm/Rad-bull/internal/workflow"
	"github.com/johnsonhungm/Rad-bull/internal/worklog"
)

// version is set at build time via -ldflags
var version = "dev"

type options struct {
	date        string
	reports     int
	output      string
	layout      string
	noDICOM     bool
	interactive bool
}

func main() {
	// Define command-line flags
	date := flag.String("date", "", "Study date to search: YYYY/MM/DD or MM/DD (default: today)")
	reports := flag.Int("reports", 0, "Number of reports to process (default: 1)")
	output := flag.String("output", "", "Output directory for artifacts (default: directory of the executable)")
	layout := flag.String("layout", "", "YAML overlay for the RIS layout and timing tables")
	noDICOM := flag.Bool("no-dicom", false, "Disable the DICOM secondary-capture archive")

	interactive := flag.Bool("interactive", false, "Prompt for the date and report count")
	flag.BoolVar(interactive, "i", false, "Prompt for the date and report count (shortcut)")

	help := flag.Bool("help", false, "Show help message")
	showVersion := flag.Bool("version", false, "Show version")

	flag.Parse()

	if *showVersion {
		fmt.Printf("radbull version %s\n", version)
		os.Exit(0)
	}
	if *help {
		printHelp()
		os.Exit(0)
	}

	opts := options{
		date:        *date,
		reports:     *reports,
		output:      *output,
		layout:      *layout,
		noDICOM:     *noDICOM,
		interactive: *interactive,
	}
	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		pause(opts.interactive || stdinIsTerminal())
		os.Exit(1)
	}
}

func run(opts options) error {
	cfg := config.Load()
	if opts.output != "" {
		cfg.OutputDir = opts.output
	}
	if opts.layout != "" {
		cfg.LayoutFile = opts.layout
	}
	cfg.ArchiveDICOM = !opts.noDICOM

	fmt.Printf("Working directory: %s\n", cfg.OutputDir)
	fmt.Printf("Image will be saved to: %s\n", cfg.ImagePath())

	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	// One automation run at a time; a second instance fighting over the
	// keyboard would type into the wrong window.
	unlock, err := lockInstance(cfg.PIDPath())
	if err != nil {
		return err
	}
	defer unlock()

	logger, closeLog, err := worklog.New(os.Stderr, cfg.LogPath(), slog.LevelInfo)
	if err != nil {
		return err
	}
	defer closeLog()

	logger.Info(strings.Repeat("=", 60))
	logger.Info("WORKFLOW STARTED")
	logger.Info(strings.Repeat("=", 60))

	// Flags answer what they can; the prompts fill in the rest when a
	// human is on the other end. Piped stdin with no flags runs with
	// today's date and a single report.
	ask := opts.interactive || (stdinIsTerminal() && (opts.date == "" || opts.reports == 0))
	now := time.Now()

	searchDate := now
	if opts.date != "" {
		parsed, ok := prompt.ParseDate(opts.date, now)
		if !ok {
			return fmt.Errorf("invalid --date %q: use YYYY/MM/DD or MM/DD", opts.date)
		}
		searchDate = parsed
	} else if ask {
		searchDate, err = prompt.AskDate(now)
		if err != nil {
			return err
		}
	}

	count := 1
	if opts.reports != 0 {
		if opts.reports < 1 {
			return fmt.Errorf("invalid --reports %d: must be at least 1", opts.reports)
		}
		count = opts.reports
	} else if ask {
		count, err = prompt.AskCount()
		if err != nil {
			return err
		}
	}

	logger.Info(fmt.Sprintf("Search date: %d/%d/%d", searchDate.Year(), int(searchDate.Month()), searchDate.Day()))
	logger.Info(fmt.Sprintf("Reports to process: %d", count))

	tables := ris.DefaultTables()
	if cfg.LayoutFile != "" {
		if err := tables.ApplyOverlay(cfg.LayoutFile); err != nil {
			return err
		}
		logger.Info("Loaded layout overlay: " + cfg.LayoutFile)
	}

	driver, err := uiauto.NewDriver()
	if err != nil {
		return err
	}

	var archive workflow.Archiver
	if cfg.ArchiveDICOM {
		archive = report.NewArchive(cfg.CapturesDir())
	}

	runner := workflow.New(workflow.Options{
		Host:     ris.New(driver, tables, logger),
		Analyzer: inference.NewClient(cfg.Endpoint, cfg.Token, logger),
		Config:   cfg,
		Archive:  archive,
		Log:      logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := runBatch(ctx, runner, searchDate, count); err != nil {
		logger.Error(strings.Repeat("=", 60))
		logger.Error("ERROR: " + err.Error())
		logger.Error(strings.Repeat("=", 60))
		fmt.Println()
		fmt.Println("Make sure:")
		fmt.Println("  1. RIS application is open (main window visible)")
		fmt.Println("  2. You are logged in to the RIS system")
		fmt.Println("  3. The search screen is visible")
		return err
	}

	pause(ask)
	return nil
}

// runBatch converts a panic out of the automation layer into an error so
// the operator still gets the checklist and the log file gets the reason.
func runBatch(ctx context.Context, runner *workflow.Runner, date time.Time, reports int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unexpected failure: %v", r)
		}
	}()
	_, err = runner.Run(ctx, date, reports)
	return err
}

// lockInstance takes the single-instance PID file. It refuses to start
// when the file already exists; operators remove a stale file by hand
// rather than have a second run kill a batch that is mid-report.
func lockInstance(path string) (func(), error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		if os.IsExist(err) {
			holder := "unknown"
			if data, readErr := os.ReadFile(path); readErr == nil && len(data) > 0 {
				holder = strings.TrimSpace(string(data))
			}
			return nil, fmt.Errorf("another radbull run appears to be active (pid %s); if it crashed, delete %s and try again", holder, path)
		}
		return nil, fmt.Errorf("create pid file: %w", err)
	}
	fmt.Fprintf(f, "%d", os.Getpid())
	f.Close()
	return func() { os.Remove(path) }, nil
}

// pause keeps the console window open for double-click launches. Skipped
// for unattended runs so scheduled tasks never hang on stdin.
func pause(enabled bool) {
	if !enabled {
		return
	}
	fmt.Print("\nPress Enter to exit...")
	bufio.NewReader(os.Stdin).ReadString('\n')
}

func stdinIsTerminal() bool {
	fi, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func printHelp() {
	fmt.Println("radbull")
	fmt.Println("=======")
	fmt.Println()
	fmt.Println("Drive the RIS chest X-ray reporting workflow: search the worklist,")
	fmt.Println("open each study, capture the anonymized viewer image, send it to the")
	fmt.Println("inference endpoint and type the findings into the report editor.")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  radbull [options]")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --date <DATE>         Study date to search: YYYY/MM/DD or MM/DD (default: today)")
	fmt.Println("  --reports <N>         Number of reports to process (default: 1)")
	fmt.Println("  --output <DIR>        Output directory for artifacts (default: directory of the executable)")
	fmt.Println("  --layout <FILE>       YAML overlay for the RIS layout and timing tables")
	fmt.Println("  --no-dicom            Disable the DICOM secondary-capture archive")
	fmt.Println("  --interactive, -i     Prompt for the date and report count")
	fmt.Println("  --version             Show version")
	fmt.Println("  --help                Show this help message")
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Println("  HF_TOKEN              Bearer token for the inference endpoint")
	fmt.Println("  HF_ENDPOINT_URL       Inference endpoint base URL")
	fmt.Println()
	fmt.Println("Files (written to the output directory):")
	fmt.Println("  extracted_xray.png    Anonymized capture of the current study")
	fmt.Println("  report.txt            Cleaned findings for the last report")
	fmt.Println("  raw_output.txt        Append-only raw model output")
	fmt.Println("  workflow_log.txt      Append-only workflow log")
	fmt.Println("  captures/             DICOM secondary-capture archive")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  # Prompt for the date and report count")
	fmt.Println("  radbull -i")
	fmt.Println()
	fmt.Println("  # Process 5 reports from March 5th unattended")
	fmt.Println("  radbull --date 2024/03/05 --reports 5")
	fmt.Println()
	fmt.Println("  # Same-year shorthand, with a site layout overlay")
	fmt.Println("  radbull --date 3/5 --reports 2 --layout site.yaml")
}
