// Command ferryctl polls, commands and inspects a running ferrycast server,
// and reads recorded history back out of a database.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/zephyrus-green/ferrycast/internal/config"
)

const usage = `usage: ferryctl [-config DIR] [-server URL] <command> [flags]

global flags:
  -config DIR               read ferrycast.cfg.json from DIR
  -server URL               server base URL (default: api.serverUrl)

commands:
  poll [-n N] [-volume]     drain position (or volume) events
  volume up|down            publish a volume command
  watch [-frames N]         stream snapshot frames
  health                    check the server is reachable
  status                    print the server status
  history [-db FILE] [-session ID]
                            list sessions or export one from the history database
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "ferryctl: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("ferryctl", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.Usage = func() { fmt.Fprint(out, usage) }
	configDir := fs.String("config", "", "directory holding "+config.FileName)
	serverFlag := fs.String("server", "", "server base URL")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	args = fs.Args()

	if len(args) == 0 {
		fmt.Fprint(out, usage)
		return fmt.Errorf("no command provided")
	}

	if *configDir != "" {
		if err := config.Load(*configDir); err != nil {
			return err
		}
	} else {
		config.SetDefaults()
	}
	server := config.GetString("api.serverUrl")
	if *serverFlag != "" {
		server = *serverFlag
	}

	cmd, rest := strings.ToLower(args[0]), args[1:]
	switch cmd {
	case "poll":
		return pollCmd(server, rest, out)
	case "volume":
		return volumeCmd(server, rest, out)
	case "watch":
		return watchCmd(ctx, server, rest, out)
	case "health":
		return healthCmd(server, out)
	case "status":
		return statusCmd(server, out)
	case "history":
		return historyCmd(rest, out)
	case "help", "-h", "--help":
		fmt.Fprint(out, usage)
		return nil
	default:
		fmt.Fprint(out, usage)
		return fmt.Errorf("unknown command %q", args[0])
	}
}
