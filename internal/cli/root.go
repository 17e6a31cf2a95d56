package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

// RootOptions guarda as flags globais
type RootOptions struct {
	URL     string
	User    string
	Format  string // "json" | "text"
	Timeout time.Duration

	client *Client
}

var ValidFormats = []string{"text", "json"}

// NewRootCommand monta o marketctl
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "marketctl",
		Short:         "Operate pooled prediction markets",
		Long:          "marketctl talks to the market-service HTTP API: create markets, place bets, resolve and withdraw.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.Format != "text" && opts.Format != "json" {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			opts.client = NewClient(opts.URL, opts.Timeout)
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if opts.client != nil {
				return opts.client.Close()
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.URL, "url", "http://localhost:8083", "market-service base URL")
	cmd.PersistentFlags().StringVarP(&opts.User, "user", "u", "", "caller identity")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 5*time.Second, "request timeout")

	cmd.AddCommand(
		newCreateCommand(opts),
		newBetCommand(opts),
		newResolveCommand(opts),
		newWithdrawCommand(opts),
		newGetCommand(opts),
		newPoolCommand(opts),
		newUserBetCommand(opts),
		newClaimableCommand(opts),
		newUserMarketsCommand(opts),
	)
	return cmd
}

func (o *RootOptions) ctx(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, o.Timeout)
}

// print escreve v como JSON ou a linha de texto pronta
func (o *RootOptions) print(w io.Writer, v any, text string) error {
	if o.Format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	_, err := fmt.Fprintln(w, text)
	return err
}

func (o *RootOptions) requireUser() error {
	if o.User == "" {
		return fmt.Errorf("--user is required")
	}
	return nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid market id %q", s)
	}
	return id, nil
}

func parseOption(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid option index %q", s)
	}
	return n, nil
}
