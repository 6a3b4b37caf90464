package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/twinsim/twinsim/internal/handshake"
	gonet "github.com/twinsim/twinsim/internal/net"
)

// clientOptions are the connection flags of the controller commands.
type clientOptions struct {
	password string
	timeout  time.Duration
}

func (o *clientOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.password, "password", os.Getenv("TWINSIM_PASSWORD"), "endpoint password (default $TWINSIM_PASSWORD)")
	cmd.Flags().DurationVar(&o.timeout, "timeout", 5*time.Second, "per request timeout")
}

func (o *clientOptions) dial(ctx context.Context, root *rootOptions, endpoint string) (*gonet.Client, *zap.Logger, error) {
	cfg, err := root.config()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	c, err := gonet.Dial(ctx, endpoint, o.password, o.timeout, log)
	if err != nil {
		return nil, nil, err
	}
	return c, log, nil
}

func newOrderCommand(root *rootOptions) *cobra.Command {
	var (
		conn  clientOptions
		poll  time.Duration
		wait  time.Duration
		reset bool
	)
	cmd := &cobra.Command{
		Use:   "order <endpoint> [order]",
		Short: "Place an order on a module and wait for it to complete",
		Long: `Act as the module's controller: write the order, raise start, wait for
the acknowledge, release start and wait until the module is no longer busy.
The module's message is printed when the handshake is complete.

With --reset the order variable is set to the reset order instead, which
returns the module side of the handshake to idle.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !reset && len(args) != 2 {
				return fmt.Errorf("order: need an order number or --reset")
			}
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			c, log, err := conn.dial(ctx, root, args[0])
			if err != nil {
				return err
			}
			defer c.Close()
			defer log.Sync()

			if reset {
				if err := resetHandshake(ctx, c); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: reset sent\n", args[0])
				return nil
			}

			order, err := strconv.ParseInt(args[1], 10, 32)
			if err != nil {
				return fmt.Errorf("order %q: %w", args[1], err)
			}
			if wait > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, wait)
				defer cancel()
			}
			msg, err := placeOrder(ctx, c, int32(order), poll, log)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: order %d done, msg %d\n", args[0], order, msg)
			return nil
		},
	}
	conn.bind(cmd)
	cmd.Flags().DurationVar(&poll, "poll", 100*time.Millisecond, "controller poll interval")
	cmd.Flags().DurationVar(&wait, "wait", 0, "give up after this long (0 waits forever)")
	cmd.Flags().BoolVar(&reset, "reset", false, "send the reset order")
	return cmd
}

// placeOrder runs one controller handshake to completion and returns the
// module message seen on the final poll.
func placeOrder(ctx context.Context, ep handshake.Endpoint, order int32, poll time.Duration, log *zap.Logger) (int32, error) {
	ctrl := handshake.NewController(ep, log)
	if err := ctrl.Place(order); err != nil {
		return 0, err
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		if err := ctrl.Poll(ctx); err != nil {
			return 0, err
		}
		if ctrl.Idle() {
			return ctrl.Msg(), nil
		}
		select {
		case <-ctx.Done():
			return 0, fmt.Errorf("order %d stopped in state %s: %w", order, ctrl.State(), ctx.Err())
		case <-ticker.C:
		}
	}
}

// resetHandshake writes the reset order and drops start.
func resetHandshake(ctx context.Context, ep handshake.Endpoint) error {
	if err := ep.Write(ctx, handshake.VarStart, 0); err != nil {
		return fmt.Errorf("clear start: %w", err)
	}
	if err := ep.Write(ctx, handshake.VarOrder, handshake.ResetOrder); err != nil {
		return fmt.Errorf("write reset order: %w", err)
	}
	return nil
}

func newStatusCommand(root *rootOptions) *cobra.Command {
	var conn clientOptions
	cmd := &cobra.Command{
		Use:   "status <endpoint>",
		Short: "Print every handshake variable of a module",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			c, log, err := conn.dial(ctx, root, args[0])
			if err != nil {
				return err
			}
			defer c.Close()
			defer log.Sync()

			vals, err := c.ReadAll(ctx)
			if err != nil {
				return err
			}
			printVariables(cmd.OutOrStdout(), vals)
			return nil
		},
	}
	conn.bind(cmd)
	return cmd
}

func printVariables(out io.Writer, vals map[handshake.VarID]int32) {
	for _, id := range handshake.AllVars {
		fmt.Fprintf(out, "%-6s %d\n", id, vals[id])
	}
}
