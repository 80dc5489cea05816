package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/c1advanced/c1prep/internal/domain"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	args, opts := parseGlobalFlags(os.Args[1:])
	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch args[0] {
	case "practice":
		err = cmdPractice(args[1:], opts)
	case "exam":
		err = cmdExam(args[1:], opts)
	case "offline":
		err = cmdOffline(args[1:], opts)
	case "review":
		err = cmdReview(opts)
	case "flashcards":
		err = cmdFlashcards(opts)
	case "stats":
		err = cmdStats(opts)
	case "history":
		err = cmdHistory(args[1:], opts)
	case "coach":
		err = cmdCoach(opts)
	case "pdf":
		err = cmdPDF(args[1:], opts)
	case "login":
		err = cmdLogin(args[1:], opts)
	case "logout":
		err = cmdLogout(opts)
	case "whoami":
		err = cmdWhoami(opts)
	case "config":
		err = cmdConfig(args[1:])
	case "events":
		err = cmdEvents(args[1:], opts)
	case "mcp":
		err = cmdMCP(args[1:], opts)
	case "help", "-h", "--help":
		printUsage()
	case "version", "--version":
		fmt.Printf("c1prep %s\n", Version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", args[0])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", describeError(err))
		os.Exit(1)
	}
}

// globalOptions are flags accepted anywhere on the command line.
type globalOptions struct {
	verbose bool
	offline bool
}

func parseGlobalFlags(in []string) ([]string, globalOptions) {
	var opts globalOptions
	args := make([]string, 0, len(in))
	for _, a := range in {
		switch a {
		case "--verbose":
			opts.verbose = true
		case "--offline":
			opts.offline = true
		default:
			args = append(args, a)
		}
	}
	return args, opts
}

// flagValue extracts "--name value" from args.
func flagValue(args []string, name string) (string, []string) {
	rest := make([]string, 0, len(args))
	value := ""
	for i := 0; i < len(args); i++ {
		if args[i] == name && i+1 < len(args) {
			value = args[i+1]
			i++
			continue
		}
		if v, ok := strings.CutPrefix(args[i], name+"="); ok {
			value = v
			continue
		}
		rest = append(rest, args[i])
	}
	return value, rest
}

func hasFlag(args []string, name string) ([]string, bool) {
	rest := make([]string, 0, len(args))
	found := false
	for _, a := range args {
		if a == name {
			found = true
			continue
		}
		rest = append(rest, a)
	}
	return rest, found
}

// describeError turns an error into the one line shown to the user.
func describeError(err error) string {
	switch {
	case errors.Is(err, domain.ErrLimitReached):
		return "daily limit reached. Upgrade to premium for unlimited practice."
	case errors.Is(err, domain.ErrPremiumRequired):
		return "this feature needs a premium subscription."
	case errors.Is(err, domain.ErrNotAuthenticated):
		return "not signed in (run 'c1prep login' first)"
	case errors.Is(err, domain.ErrOfflineCacheEmpty):
		return "offline and no downloaded exercises left (run 'c1prep offline download' when online)"
	case errors.Is(err, domain.ErrNoMistakes):
		return "no mistakes to review yet. Keep practising!"
	}
	var ve domain.ValidationErrors
	if errors.As(err, &ve) {
		return ve.Error()
	}
	return err.Error()
}

func printUsage() {
	fmt.Println(`c1prep - C1 Advanced exam practice in the terminal

Usage:
  c1prep <command> [arguments] [--verbose] [--offline]

Practice Commands:
  practice <type>       Practise one exercise (e.g. reading_and_use_of_language1,
                        listening2, writing1, writing2, speaking1, speaking3)
  practice <type> --audio <file>
                        Answer a speaking task with a recorded audio file
  exam [--new]          Take a full mock exam (resumes an unfinished one)
  review                Practise a review built from your past mistakes
  flashcards            Review vocabulary flashcards
  pdf <type>            Download an exercise as a printable PDF

Offline Commands:
  offline download      Download a pack of exercises for offline use
  offline status        Show what is stored offline

Progress Commands:
  stats                 Show XP, streak and local scores
  history [n]           List recent attempts
  history export <file> Export attempts to an Excel workbook
  coach                 Get advice on your weak areas

Account Commands:
  login <id-token>      Sign in with an identity token
  logout                Sign out
  whoami                Show the signed-in user

Other:
  config [init|path]    Show or initialise the configuration
  events tail [--mine]  Follow published results (needs events.amqp_url)
  mcp [--http addr]     Start the MCP server on stdio or HTTP
  help                  Show this help message
  version               Show version information

Examples:
  c1prep practice reading_and_use_of_language2
  c1prep offline download
  c1prep --offline practice reading_and_use_of_language1
  c1prep history export ~/c1-progress.xlsx`)
}

// renderProgressBar creates a visual progress bar
func renderProgressBar(value float64, width int) string {
	filled := int(value * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	empty := width - filled

	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", empty) + "]"
}
