package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

const defaultRouterURL = "http://localhost:18000"

func main() {
	_ = godotenv.Load()

	args := positional(os.Args[1:])
	if len(args) == 0 {
		args = []string{"chat"}
	}

	var err error
	switch args[0] {
	case "--help", "-h", "help":
		showUsage()
		return
	case "chat":
		err = runChat()
	case "dashboard":
		err = runDashboard()
	case "cards":
		err = runCards(os.Stdout)
	case "status":
		err = runStatus(os.Stdout)
	case "send":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, `Usage: routerctl send "<text>"`)
			os.Exit(1)
		}
		err = runSend(os.Stdout, strings.Join(args[1:], " "))
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\nRun 'routerctl --help' for usage information.\n", args[0])
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", args[0], err)
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Println(`routerctl - client for the Main Agent router

USAGE:
    routerctl [COMMAND] [FLAGS]

COMMANDS:
    chat              Interactive chat with live routing (default)
    dashboard         Live view of agents, requests and events
    cards             List the router card and every registered agent card
    status            Print the router status snapshot
    send "<text>"     Route one request and print the reply

FLAGS:
    -h, --help         Show this help message
    --router URL       Router base URL (default: http://localhost:18000)
    --speed NAME       Reply streaming in chat: instant, fast, normal, slow
    --json             Machine-readable output for cards and status
    --log FILE         Write client logs to FILE

ENVIRONMENT:
    A2AROUTER_ROUTER_URL   Router base URL when --router is not given`)
}

// flags that take a value; positional skips them together with their value.
var valueFlags = map[string]bool{"--router": true, "--speed": true, "--log": true}

func flagValue(name string) string {
	for i, arg := range os.Args {
		if arg == name && i+1 < len(os.Args) {
			return os.Args[i+1]
		}
		if strings.HasPrefix(arg, name+"=") {
			return strings.TrimPrefix(arg, name+"=")
		}
	}
	return ""
}

func hasFlag(name string) bool {
	for _, arg := range os.Args[1:] {
		if arg == name {
			return true
		}
	}
	return false
}

// positional returns args with flags and their values removed. Help flags
// are kept so they can be dispatched like commands.
func positional(args []string) []string {
	var out []string
	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "-h" || a == "--help":
			out = append(out, a)
		case valueFlags[a]:
			i++
		case strings.HasPrefix(a, "--"):
		default:
			out = append(out, a)
		}
	}
	return out
}

func routerURL() string {
	if u := flagValue("--router"); u != "" {
		return strings.TrimRight(u, "/")
	}
	if u := os.Getenv("A2AROUTER_ROUTER_URL"); u != "" {
		return strings.TrimRight(u, "/")
	}
	return defaultRouterURL
}
