// czicheck validates CZI files and summarizes their series.
//
// Usage:
//
//	czicheck [-q|--quiet] [-s|--strict] [-c|--config file.yaml] <filename> [<filename> ...]
//
// Options:
//
//	-q, --quiet    Only output errors. Exit code indicates pass/fail.
//	-s, --strict   Decode every tile instead of sampling one plane per series.
//	-c, --config   Read reader options from a YAML file.
//	-v, --verbose  Log reader activity to stderr.
//	-h, --help     Show this help message.
//	--version      Show version information.
//
// Exit codes:
//
//	0: All files valid
//	1: One or more files invalid
//	2: Error (file not found, bad options, etc.)
package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mrjoshuak/go-czi/czi"
)

const version = "1.0.0"

func main() {
	quiet := false
	strict := false
	verbose := false
	configPath := ""
	files := []string{}

	args := os.Args[1:]
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch arg {
		case "-q", "--quiet":
			quiet = true
		case "-s", "--strict":
			strict = true
		case "-v", "--verbose":
			verbose = true
		case "-c", "--config":
			if i+1 >= len(args) {
				fmt.Fprintf(os.Stderr, "Option %s requires a file\n", arg)
				os.Exit(2)
			}
			i++
			configPath = args[i]
		case "-h", "--help":
			printUsage()
			os.Exit(0)
		case "--version":
			fmt.Printf("czicheck version %s\n", version)
			os.Exit(0)
		default:
			if strings.HasPrefix(arg, "-") {
				fmt.Fprintf(os.Stderr, "Unknown option: %s\n", arg)
				printUsage()
				os.Exit(2)
			}
			files = append(files, arg)
		}
	}

	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "Error: No input files specified")
		printUsage()
		os.Exit(2)
	}

	opts, err := loadOptions(configPath, verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	validCount := 0
	errorOccurred := false
	for _, filename := range files {
		result, err := checkFile(filename, opts, strict)
		if err != nil {
			if !quiet {
				fmt.Fprintf(os.Stderr, "%s: error: %v\n", filename, err)
			}
			errorOccurred = true
			continue
		}
		if result.IsValid() {
			validCount++
		}
		if !quiet {
			printResult(os.Stdout, result)
		} else {
			for _, issue := range result.Issues {
				if issue.Severity == severityError {
					fmt.Fprintf(os.Stderr, "%s: %s\n", filename, issue.Message)
				}
			}
		}
	}

	if len(files) > 1 && !quiet {
		fmt.Printf("\nSummary: %d of %d files valid\n", validCount, len(files))
	}
	if errorOccurred {
		os.Exit(2)
	}
	if validCount < len(files) {
		os.Exit(1)
	}
}

func loadOptions(path string, verbose bool) (czi.Options, error) {
	opts := czi.DefaultOptions()
	if path != "" {
		var err error
		if opts, err = czi.LoadOptions(path); err != nil {
			return opts, err
		}
	}
	if verbose {
		lvl := zerolog.DebugLevel
		if opts.LogLevel != "" {
			lvl = opts.Logger.GetLevel()
		}
		opts.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
			Level(lvl).
			With().Timestamp().Logger()
	}
	return opts, nil
}

func printUsage() {
	fmt.Println(`Usage: czicheck [options] <filename> [<filename> ...]

Validate CZI files and summarize their series and resolution levels.

Options:
  -q, --quiet    Only output errors. Exit code indicates pass/fail.
  -s, --strict   Decode every tile instead of sampling one plane per series.
  -c, --config   Read reader options from a YAML file.
  -v, --verbose  Log reader activity to stderr.
  -h, --help     Show this help message.
  --version      Show version information.

Exit codes:
  0: All files valid
  1: One or more files invalid
  2: Error (file not found, bad options, etc.)

Examples:
  czicheck slide.czi                  Summarize a single file
  czicheck -q *.czi                   Validate all CZI files silently
  czicheck -s -c reader.yaml slide.czi  Decode every tile with custom options`)
}
