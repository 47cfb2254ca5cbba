package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"

	"github.com/wallet-portfolio/internal/app"
	"github.com/wallet-portfolio/internal/models"
)

var stdout io.Writer = os.Stdout

type usersCmd struct{}

func (*usersCmd) Name() string             { return "users" }
func (*usersCmd) Synopsis() string         { return "list registered users" }
func (*usersCmd) Usage() string            { return "portfolioctl users\n" }
func (*usersCmd) SetFlags(_ *flag.FlagSet) {}

func (*usersCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withApp(ctx, func(ctx context.Context, a *app.App) error {
		users, err := a.UserService.ListUsers(ctx)
		if err != nil {
			return err
		}
		return writeLines(stdout, users)
	})
}

type registerCmd struct{}

func (*registerCmd) Name() string             { return "register" }
func (*registerCmd) Synopsis() string         { return "register a user" }
func (*registerCmd) Usage() string            { return "portfolioctl register <user>\n" }
func (*registerCmd) SetFlags(_ *flag.FlagSet) {}

func (c *registerCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if !requireArgs(f, 1, c.Usage()) {
		return subcommands.ExitUsageError
	}
	return withApp(ctx, func(ctx context.Context, a *app.App) error {
		return a.UserService.RegisterUser(ctx, f.Arg(0))
	})
}

type deleteUserCmd struct{}

func (*deleteUserCmd) Name() string             { return "delete-user" }
func (*deleteUserCmd) Synopsis() string         { return "delete a user with its links and rollup rows" }
func (*deleteUserCmd) Usage() string            { return "portfolioctl delete-user <user>\n" }
func (*deleteUserCmd) SetFlags(_ *flag.FlagSet) {}

func (c *deleteUserCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if !requireArgs(f, 1, c.Usage()) {
		return subcommands.ExitUsageError
	}
	return withApp(ctx, func(ctx context.Context, a *app.App) error {
		return a.UserService.DeleteUser(ctx, f.Arg(0))
	})
}

type linkCmd struct{}

func (*linkCmd) Name() string             { return "link" }
func (*linkCmd) Synopsis() string         { return "link a wallet address to a user" }
func (*linkCmd) Usage() string            { return "portfolioctl link <user> <address>\n" }
func (*linkCmd) SetFlags(_ *flag.FlagSet) {}

func (c *linkCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if !requireArgs(f, 2, c.Usage()) {
		return subcommands.ExitUsageError
	}
	return withApp(ctx, func(ctx context.Context, a *app.App) error {
		addr, err := a.UserService.LinkAddress(ctx, f.Arg(0), f.Arg(1))
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(stdout, "linked %s to %s\n", addr, f.Arg(0))
		return err
	})
}

type unlinkCmd struct{}

func (*unlinkCmd) Name() string             { return "unlink" }
func (*unlinkCmd) Synopsis() string         { return "remove a wallet address from a user" }
func (*unlinkCmd) Usage() string            { return "portfolioctl unlink <user> <address>\n" }
func (*unlinkCmd) SetFlags(_ *flag.FlagSet) {}

func (c *unlinkCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if !requireArgs(f, 2, c.Usage()) {
		return subcommands.ExitUsageError
	}
	return withApp(ctx, func(ctx context.Context, a *app.App) error {
		return a.UserService.UnlinkAddress(ctx, f.Arg(0), f.Arg(1))
	})
}

type addressesCmd struct{}

func (*addressesCmd) Name() string             { return "addresses" }
func (*addressesCmd) Synopsis() string         { return "list the wallet addresses linked to a user" }
func (*addressesCmd) Usage() string            { return "portfolioctl addresses <user>\n" }
func (*addressesCmd) SetFlags(_ *flag.FlagSet) {}

func (c *addressesCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if !requireArgs(f, 1, c.Usage()) {
		return subcommands.ExitUsageError
	}
	return withApp(ctx, func(ctx context.Context, a *app.App) error {
		addrs, err := a.UserService.ListAddresses(ctx, f.Arg(0))
		if err != nil {
			return err
		}
		return writeLines(stdout, addrs)
	})
}

type recomputeCmd struct {
	all bool
}

func (*recomputeCmd) Name() string     { return "recompute" }
func (*recomputeCmd) Synopsis() string { return "rebuild the portfolio rollup of a user" }
func (*recomputeCmd) Usage() string {
	return `portfolioctl recompute <user>
portfolioctl recompute -all

  Replaces the user's rollup rows with fresh aggregates of the token and
  solana holdings of every linked wallet.
`
}

func (c *recomputeCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.all, "all", false, "Recompute every registered user")
}

func (c *recomputeCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if !c.all && !requireArgs(f, 1, "portfolioctl recompute <user>") {
		return subcommands.ExitUsageError
	}
	return withApp(ctx, func(ctx context.Context, a *app.App) error {
		users := f.Args()
		if c.all {
			var err error
			if users, err = a.UserService.ListUsers(ctx); err != nil {
				return err
			}
		}
		for _, user := range users {
			res, err := a.PortfolioService.Recompute(ctx, user)
			if err != nil {
				return fmt.Errorf("recompute %s: %w", user, err)
			}
			fmt.Fprintf(stdout, "%s: %d upserted, %d removed\n", user, res.Upserted, res.Removed)
		}
		return nil
	})
}

type chainsCmd struct{}

func (*chainsCmd) Name() string             { return "chains" }
func (*chainsCmd) Synopsis() string         { return "compare reported and computed usd value per wallet and chain" }
func (*chainsCmd) Usage() string            { return "portfolioctl chains <user>\n" }
func (*chainsCmd) SetFlags(_ *flag.FlagSet) {}

func (c *chainsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if !requireArgs(f, 1, c.Usage()) {
		return subcommands.ExitUsageError
	}
	return withApp(ctx, func(ctx context.Context, a *app.App) error {
		rows, err := a.PortfolioService.ChainBreakdown(ctx, f.Arg(0))
		if err != nil {
			return err
		}
		return writeChains(stdout, rows)
	})
}

type tokensCmd struct {
	excludeSpam bool
	minUSD      string
	chain       string
	wallet      string
	namesOnly   bool
}

func (*tokensCmd) Name() string     { return "tokens" }
func (*tokensCmd) Synopsis() string { return "list the rollup rows of a user with token flags" }
func (*tokensCmd) Usage() string {
	return "portfolioctl tokens [-exclude-spam] [-min-usd <usd>] [-chain <id>] [-wallet <address>] [-names] <user>\n"
}

func (c *tokensCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.excludeSpam, "exclude-spam", false, "Hide likely spam tokens and the user's spam list")
	f.StringVar(&c.minUSD, "min-usd", "", "Hide rows worth less than this many dollars")
	f.StringVar(&c.chain, "chain", "", "Only show this chain")
	f.StringVar(&c.wallet, "wallet", "", "Only show this wallet")
	f.BoolVar(&c.namesOnly, "names", false, "Print distinct token names only")
}

func (c *tokensCmd) filter() (models.TokenFilter, error) {
	filter := models.TokenFilter{ExcludeSpam: c.excludeSpam, Chain: c.chain, Wallet: c.wallet}
	if c.minUSD != "" {
		minUSD, err := decimal.NewFromString(c.minUSD)
		if err != nil {
			return filter, fmt.Errorf("invalid -min-usd %q: %w", c.minUSD, err)
		}
		filter.MinUSD = decimal.NewNullDecimal(minUSD)
	}
	return filter, nil
}

func (c *tokensCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if !requireArgs(f, 1, c.Usage()) {
		return subcommands.ExitUsageError
	}
	filter, err := c.filter()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	return withApp(ctx, func(ctx context.Context, a *app.App) error {
		if c.namesOnly {
			names, err := a.PortfolioService.TokenNames(ctx, f.Arg(0), c.excludeSpam)
			if err != nil {
				return err
			}
			return writeLines(stdout, names)
		}
		rows, err := a.PortfolioService.TokenBreakdown(ctx, f.Arg(0), filter)
		if err != nil {
			return err
		}
		return writeTokens(stdout, rows)
	})
}

type spamCmd struct {
	set string
}

func (*spamCmd) Name() string     { return "spam" }
func (*spamCmd) Synopsis() string { return "show or replace the spam token list of a user" }
func (*spamCmd) Usage() string {
	return `portfolioctl spam <user>
portfolioctl spam -set "SCAM,FREE AIRDROP" <user>

  Names must match tokens the user currently holds.
`
}

func (c *spamCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.set, "set", "", "Comma separated token names replacing the list (\"-\" clears it)")
}

func (c *spamCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if !requireArgs(f, 1, "portfolioctl spam [-set names] <user>") {
		return subcommands.ExitUsageError
	}
	return withApp(ctx, func(ctx context.Context, a *app.App) error {
		if c.set == "" {
			names, err := a.PortfolioService.SpamTokens(ctx, f.Arg(0))
			if err != nil {
				return err
			}
			return writeLines(stdout, names)
		}
		names, err := a.PortfolioService.SetSpamTokens(ctx, f.Arg(0), splitNames(c.set))
		if err != nil {
			return err
		}
		return writeLines(stdout, names)
	})
}

// splitNames parses the -set flag. "-" is the empty list.
func splitNames(s string) []string {
	if s == "-" {
		return []string{}
	}
	return strings.Split(s, ",")
}

type historyCmd struct {
	limit int
}

func (*historyCmd) Name() string     { return "history" }
func (*historyCmd) Synopsis() string { return "list portfolio snapshot totals of a user" }
func (*historyCmd) Usage() string    { return "portfolioctl history [-n <count>] <user>\n" }

func (c *historyCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.limit, "n", 30, "Number of snapshots to show")
}

func (c *historyCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if !requireArgs(f, 1, c.Usage()) {
		return subcommands.ExitUsageError
	}
	return withApp(ctx, func(ctx context.Context, a *app.App) error {
		rows, err := a.PortfolioService.History(ctx, f.Arg(0), c.limit)
		if err != nil {
			return err
		}
		return writeHistory(stdout, rows)
	})
}

type dumpCmd struct {
	limit  int
	toS3   bool
	indent bool
}

func (*dumpCmd) Name() string     { return "dump" }
func (*dumpCmd) Synopsis() string { return "dump the rows of a named table" }
func (*dumpCmd) Usage() string {
	return `portfolioctl dump [-limit <n>] [-s3] <table>

  Writes the table as JSON to stdout, or uploads it to the configured
  EXPORT_BUCKET with -s3.
`
}

func (c *dumpCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.limit, "limit", 100, "Maximum number of rows")
	f.BoolVar(&c.toS3, "s3", false, "Upload the dump to object storage instead of printing it")
	f.BoolVar(&c.indent, "indent", true, "Indent JSON output")
}

func (c *dumpCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if !requireArgs(f, 1, "portfolioctl dump [-limit n] [-s3] <table>") {
		return subcommands.ExitUsageError
	}
	return withApp(ctx, func(ctx context.Context, a *app.App) error {
		dump, err := a.PortfolioService.DumpTable(ctx, f.Arg(0), c.limit)
		if err != nil {
			return err
		}
		if !c.toS3 {
			enc := json.NewEncoder(stdout)
			if c.indent {
				enc.SetIndent("", "  ")
			}
			return enc.Encode(dump)
		}
		exporter, err := a.Exporter(ctx)
		if err != nil {
			return err
		}
		key, err := exporter.Export(ctx, dump)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(stdout, "uploaded %d rows to %s\n", len(dump.Rows), key)
		return err
	})
}
