// Command portfolioctl administers users, wallet links and portfolio reports
// directly against the configured stores.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path"

	"github.com/google/subcommands"

	"github.com/wallet-portfolio/internal/app"
	"github.com/wallet-portfolio/internal/config"
	"github.com/wallet-portfolio/internal/logging"
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")
	register(commander)

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}

// register adds every portfolioctl command to c
func register(c *subcommands.Commander) {
	c.Register(&usersCmd{}, "users")
	c.Register(&registerCmd{}, "users")
	c.Register(&deleteUserCmd{}, "users")
	c.Register(&linkCmd{}, "users")
	c.Register(&unlinkCmd{}, "users")
	c.Register(&addressesCmd{}, "users")

	c.Register(&recomputeCmd{}, "reports")
	c.Register(&chainsCmd{}, "reports")
	c.Register(&tokensCmd{}, "reports")
	c.Register(&spamCmd{}, "reports")
	c.Register(&historyCmd{}, "reports")

	c.Register(&dumpCmd{}, "admin")
}

// openApp loads configuration and connects to the stores. Replaced in tests.
var openApp = func(ctx context.Context) (*app.App, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	logging.InitGlobalLogger(logging.ParseLogLevel(cfg.Logging.Level), logging.ParseLogFormat(cfg.Logging.Format))
	return app.Open(logging.WithLogger(ctx, logging.GetGlobalLogger()), cfg)
}

// withApp opens the stores, runs fn and maps its error to an exit status
func withApp(ctx context.Context, fn func(ctx context.Context, a *app.App) error) subcommands.ExitStatus {
	a, err := openApp(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	if err := fn(ctx, a); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// requireArgs checks the positional argument count before any store is opened
func requireArgs(f *flag.FlagSet, n int, usage string) bool {
	if f.NArg() != n {
		fmt.Fprintf(os.Stderr, "usage: %s\n", usage)
		return false
	}
	return true
}
