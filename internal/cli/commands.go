package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/radieske/pool-market-poc/internal/market-service/dto"
)

func newCreateCommand(opts *RootOptions) *cobra.Command {
	var options []string
	var duration time.Duration

	cmd := &cobra.Command{
		Use:   "create <question>",
		Short: "Create a market; the caller becomes its resolver",
		Example: `  marketctl create "Will it rain tomorrow?" --user alice --option yes --option no --duration 24h`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.requireUser(); err != nil {
				return err
			}
			ctx, cancel := opts.ctx(cmd)
			defer cancel()
			id, err := opts.client.CreateMarket(ctx, dto.CreateMarketRequest{
				UserID:          opts.User,
				Question:        args[0],
				Options:         options,
				DurationSeconds: int64(duration / time.Second),
			})
			if err != nil {
				return err
			}
			return opts.print(cmd.OutOrStdout(), dto.CreateMarketResponse{MarketID: id}, fmt.Sprintf("market %d created", id))
		},
	}
	cmd.Flags().StringArrayVarP(&options, "option", "o", nil, "outcome label (repeat for each option)")
	cmd.Flags().DurationVarP(&duration, "duration", "d", time.Hour, "betting window")
	return cmd
}

func newBetCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "bet <market-id> <option> <amount-cents>",
		Short: "Stake an amount on an option",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.requireUser(); err != nil {
				return err
			}
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			option, err := parseOption(args[1])
			if err != nil {
				return err
			}
			var amount int64
			if _, err := fmt.Sscan(args[2], &amount); err != nil {
				return fmt.Errorf("invalid amount %q", args[2])
			}
			ctx, cancel := opts.ctx(cmd)
			defer cancel()
			out, err := opts.client.PlaceBet(ctx, id, dto.PlaceBetRequest{UserID: opts.User, Option: option, AmountCents: amount})
			if err != nil {
				return err
			}
			return opts.print(cmd.OutOrStdout(), out, fmt.Sprintf("bet %d on option %d of market %d accepted", amount, option, id))
		},
	}
}

func newResolveCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <market-id> <winning-option>",
		Short: "Declare the winning option (creator only, after the end time)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.requireUser(); err != nil {
				return err
			}
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			option, err := parseOption(args[1])
			if err != nil {
				return err
			}
			ctx, cancel := opts.ctx(cmd)
			defer cancel()
			m, err := opts.client.Resolve(ctx, id, dto.ResolveRequest{UserID: opts.User, WinningOption: option})
			if err != nil {
				return err
			}
			return opts.print(cmd.OutOrStdout(), m, fmt.Sprintf("market %d resolved: %s", id, m.Options[option]))
		},
	}
}

func newWithdrawCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "withdraw <market-id>",
		Short: "Collect winnings from a resolved market",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.requireUser(); err != nil {
				return err
			}
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := opts.ctx(cmd)
			defer cancel()
			paid, err := opts.client.Withdraw(ctx, id, opts.User)
			if err != nil {
				return err
			}
			return opts.print(cmd.OutOrStdout(), dto.AmountResponse{MarketID: id, UserID: opts.User, AmountCents: paid},
				fmt.Sprintf("paid %d to %s", paid, opts.User))
		},
	}
}

func newGetCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <market-id>",
		Short: "Show a market",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := opts.ctx(cmd)
			defer cancel()
			m, err := opts.client.GetMarket(ctx, id)
			if err != nil {
				return err
			}
			return opts.print(cmd.OutOrStdout(), m, formatMarket(m))
		},
	}
}

func formatMarket(m dto.MarketResponse) string {
	var b strings.Builder
	fmt.Fprintf(&b, "#%d %s [%s]\n", m.MarketID, m.Question, m.Status)
	fmt.Fprintf(&b, "  creator: %s  ends: %s  pool: %d\n", m.Creator, m.EndTime.Format(time.RFC3339), m.TotalPool)
	for i, label := range m.Options {
		mark := " "
		if m.WinningOption != nil && *m.WinningOption == i {
			mark = "*"
		}
		fmt.Fprintf(&b, "  %s[%d] %-20s %d\n", mark, i, label, m.OptionPools[i])
	}
	return strings.TrimRight(b.String(), "\n")
}

func newPoolCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pool <market-id> <option>",
		Short: "Show the total staked on an option",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			option, err := parseOption(args[1])
			if err != nil {
				return err
			}
			ctx, cancel := opts.ctx(cmd)
			defer cancel()
			amount, err := opts.client.OptionPool(ctx, id, option)
			if err != nil {
				return err
			}
			return opts.print(cmd.OutOrStdout(), dto.AmountResponse{MarketID: id, Option: &option, AmountCents: amount},
				fmt.Sprintf("%d", amount))
		},
	}
}

func newUserBetCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "user-bet <market-id> <option>",
		Short: "Show the caller's stake on an option",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.requireUser(); err != nil {
				return err
			}
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			option, err := parseOption(args[1])
			if err != nil {
				return err
			}
			ctx, cancel := opts.ctx(cmd)
			defer cancel()
			amount, err := opts.client.UserBet(ctx, id, opts.User, option)
			if err != nil {
				return err
			}
			return opts.print(cmd.OutOrStdout(), dto.AmountResponse{MarketID: id, UserID: opts.User, Option: &option, AmountCents: amount},
				fmt.Sprintf("%d", amount))
		},
	}
}

func newClaimableCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "claimable <market-id>",
		Short: "Preview what withdraw would pay the caller now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.requireUser(); err != nil {
				return err
			}
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := opts.ctx(cmd)
			defer cancel()
			amount, err := opts.client.Claimable(ctx, id, opts.User)
			if err != nil {
				return err
			}
			return opts.print(cmd.OutOrStdout(), dto.AmountResponse{MarketID: id, UserID: opts.User, AmountCents: amount},
				fmt.Sprintf("%d", amount))
		},
	}
}

func newUserMarketsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "user-markets",
		Short: "List markets created by the caller",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.requireUser(); err != nil {
				return err
			}
			ctx, cancel := opts.ctx(cmd)
			defer cancel()
			ids, err := opts.client.UserMarkets(ctx, opts.User)
			if err != nil {
				return err
			}
			parts := make([]string, len(ids))
			for i, id := range ids {
				parts[i] = fmt.Sprintf("%d", id)
			}
			return opts.print(cmd.OutOrStdout(), dto.UserMarketsResponse{UserID: opts.User, MarketIDs: ids}, strings.Join(parts, "\n"))
		},
	}
}
