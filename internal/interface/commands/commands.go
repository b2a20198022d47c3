package commands

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/bitonicnl/fireworks/internal/config"
	"github.com/bitonicnl/fireworks/internal/core/application"
	"github.com/bitonicnl/fireworks/internal/core/domain"
	service_interface "github.com/bitonicnl/fireworks/internal/interface"
	"github.com/bitonicnl/fireworks/internal/interface/web"
	"github.com/lightningnetwork/lnd/fn/v2"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

type actionFunc func(
	ctx context.Context, c *cli.Context, svc *application.Service, cfg *config.Config,
) error

func (a *app) action(polling bool, f actionFunc) cli.ActionFunc {
	return func(c *cli.Context) error {
		return a.withService(c, polling, func(
			ctx context.Context, svc *application.Service, cfg *config.Config,
		) error {
			return f(ctx, c, svc, cfg)
		})
	}
}

func (a *app) commands() []cli.Command {
	return []cli.Command{
		{
			Name:   "info",
			Usage:  "Show the node name, currency and links.",
			Action: a.action(false, a.info),
		},
		{
			Name:   "funds",
			Usage:  "Show the on-chain and channel funds.",
			Action: a.action(false, a.funds),
		},
		{
			Name:   "channels",
			Usage:  "List the channels.",
			Action: a.action(false, a.channels),
		},
		{
			Name:   "peers",
			Usage:  "List the peers and their channels.",
			Action: a.action(false, a.peers),
		},
		{
			Name:   "invoices",
			Usage:  "List the invoices.",
			Action: a.action(false, a.invoices),
		},
		{
			Name:   "payments",
			Usage:  "List the outgoing payments.",
			Action: a.action(false, a.payments),
		},
		{
			Name:      "newinvoice",
			Usage:     "Create an invoice.",
			ArgsUsage: "amount_msat [description]",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "label",
					Usage: "the invoice label, ignored by LND",
				},
				cli.DurationFlag{
					Name:  "expiry",
					Value: time.Hour,
					Usage: "time after which the invoice can't be paid anymore",
				},
			},
			Action: a.action(false, a.newInvoice),
		},
		{
			Name:      "decode",
			Usage:     "Decode an invoice.",
			ArgsUsage: "bolt11",
			Action:    a.action(false, a.decode),
		},
		{
			Name:      "pay",
			Usage:     "Pay an invoice.",
			ArgsUsage: "bolt11",
			Action:    a.action(false, a.pay),
		},
		{
			Name:      "connect",
			Usage:     "Connect to a peer.",
			ArgsUsage: "pubkey@host[:port]",
			Action:    a.action(false, a.connect),
		},
		{
			Name:      "openchannel",
			Usage:     "Open a channel with a connected peer.",
			ArgsUsage: "pubkey amount_msat",
			Action:    a.action(false, a.openChannel),
		},
		{
			Name:      "closechannel",
			Usage:     "Close a channel.",
			ArgsUsage: "channel_id",
			Action:    a.action(false, a.closeChannel),
		},
		{
			Name:      "run",
			Usage:     "Run a raw node command, the reply is printed as JSON.",
			ArgsUsage: "command [name=value...]",
			Action:    a.action(false, a.run),
		},
		{
			Name:   "watch",
			Usage:  "Poll the node and print a summary each time something changes.",
			Action: a.action(true, a.watch),
		},
		{
			Name:   "serve",
			Usage:  "Serve the JSON HTTP API.",
			Action: a.action(true, a.serve),
		},
	}
}

func requireArgs(c *cli.Context, n int) error {
	if c.NArg() < n {
		return domain.CommandFailed("expected %s", c.Command.ArgsUsage)
	}
	return nil
}

func (a *app) info(
	ctx context.Context, _ *cli.Context, svc *application.Service, _ *config.Config,
) error {
	if !svc.IsConnected(ctx) {
		return domain.ErrNotConnected
	}
	node, err := svc.GetNodeSummary(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Backend:  %s\n", node.BackendName)
	fmt.Fprintf(a.out, "Currency: %s\n", node.Currency)
	for _, link := range node.Links {
		fmt.Fprintf(a.out, "Link:     %s\n", link)
	}
	return nil
}

func (a *app) funds(
	ctx context.Context, _ *cli.Context, svc *application.Service, _ *config.Config,
) error {
	currency, err := nativeCurrency(ctx, svc)
	if err != nil {
		return err
	}
	onchain, err := svc.GetNonChannelFunds(ctx)
	if err != nil {
		return err
	}
	channels, err := svc.GetChannelFunds(ctx)
	if err != nil {
		return err
	}
	total := printOnchainFunds(a.out, onchain, currency)
	total += printChannels(a.out, channels, currency)
	fmt.Fprintf(a.out, "Total: %s\n", formatAmount(total, currency))
	return nil
}

func (a *app) channels(
	ctx context.Context, _ *cli.Context, svc *application.Service, _ *config.Config,
) error {
	currency, err := nativeCurrency(ctx, svc)
	if err != nil {
		return err
	}
	channels, err := svc.GetChannelFunds(ctx)
	if err != nil {
		return err
	}
	printChannels(a.out, channels, currency)
	return nil
}

func (a *app) peers(
	ctx context.Context, _ *cli.Context, svc *application.Service, _ *config.Config,
) error {
	peers, err := svc.GetPeers(ctx)
	if err != nil {
		return err
	}
	printPeers(a.out, peers)
	return nil
}

func (a *app) invoices(
	ctx context.Context, _ *cli.Context, svc *application.Service, _ *config.Config,
) error {
	invoices, err := svc.GetInvoices(ctx)
	if err != nil {
		return err
	}
	printInvoices(a.out, invoices)
	return nil
}

func (a *app) payments(
	ctx context.Context, _ *cli.Context, svc *application.Service, _ *config.Config,
) error {
	payments, err := svc.GetPayments(ctx)
	if err != nil {
		return err
	}
	printPayments(a.out, payments)
	return nil
}

func (a *app) newInvoice(
	ctx context.Context, c *cli.Context, svc *application.Service, _ *config.Config,
) error {
	if err := requireArgs(c, 1); err != nil {
		return err
	}
	amount, err := strconv.ParseInt(c.Args().First(), 10, 64)
	if err != nil {
		return domain.CommandFailed("invalid amount '%s'", c.Args().First())
	}
	label := fn.None[string]()
	if c.IsSet("label") {
		label = fn.Some(c.String("label"))
	}

	bolt11, err := svc.MakeNewInvoice(ctx, label, c.Args().Get(1), amount, c.Duration("expiry"))
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, bolt11)
	return nil
}

func (a *app) decode(
	ctx context.Context, c *cli.Context, svc *application.Service, _ *config.Config,
) error {
	if err := requireArgs(c, 1); err != nil {
		return err
	}
	detail, err := svc.DecodeInvoice(ctx, c.Args().First())
	if err != nil {
		return err
	}
	printInvoiceDetail(a.out, detail)
	return nil
}

func (a *app) pay(
	ctx context.Context, c *cli.Context, svc *application.Service, _ *config.Config,
) error {
	if err := requireArgs(c, 1); err != nil {
		return err
	}
	if err := svc.Pay(ctx, c.Args().First()); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Payment sent")
	return nil
}

func (a *app) connect(
	ctx context.Context, c *cli.Context, svc *application.Service, _ *config.Config,
) error {
	if err := requireArgs(c, 1); err != nil {
		return err
	}
	if err := svc.Connect(ctx, c.Args().First()); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Connected")
	return nil
}

func (a *app) openChannel(
	ctx context.Context, c *cli.Context, svc *application.Service, _ *config.Config,
) error {
	if err := requireArgs(c, 2); err != nil {
		return err
	}
	amount, err := strconv.ParseInt(c.Args().Get(1), 10, 64)
	if err != nil {
		return domain.CommandFailed("invalid amount '%s'", c.Args().Get(1))
	}
	if err := svc.MakeChannel(ctx, c.Args().First(), amount); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Channel opening")
	return nil
}

func (a *app) closeChannel(
	ctx context.Context, c *cli.Context, svc *application.Service, _ *config.Config,
) error {
	if err := requireArgs(c, 1); err != nil {
		return err
	}
	if err := svc.CloseChannel(ctx, domain.ChannelID(c.Args().First())); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Channel closing")
	return nil
}

func (a *app) run(
	ctx context.Context, c *cli.Context, svc *application.Service, _ *config.Config,
) error {
	if err := requireArgs(c, 1); err != nil {
		return err
	}
	resp, err := svc.RunCommand(ctx, c.Args().First(), c.Args().Tail())
	if err != nil {
		return err
	}
	return printJSON(a.out, resp)
}

func (a *app) watch(
	ctx context.Context, _ *cli.Context, svc *application.Service, _ *config.Config,
) error {
	snapshots := svc.Subscribe(ctx)
	snapshot, err := svc.GetSnapshot(ctx)
	if err != nil {
		return err
	}
	a.printSummary(snapshot)

	for {
		select {
		case <-ctx.Done():
			return nil
		case snapshot, ok := <-snapshots:
			if !ok {
				return nil
			}
			a.printSummary(snapshot)
		}
	}
}

func (a *app) printSummary(s application.Snapshot) {
	now := time.Now().Format("15:04:05")
	if !s.Connected {
		fmt.Fprintf(a.out, "%s not connected\n", now)
		return
	}

	var onchain, channels int64
	for _, f := range s.OnchainFunds {
		onchain += f.Amount
	}
	for _, c := range s.Channels {
		channels += c.OwnFunds
	}
	currency := s.Node.Currency
	fmt.Fprintf(a.out,
		"%s %s: on-chain %s, channels %s, %d peers, %d invoices, %d payments\n",
		now, s.Node.BackendName,
		formatAmount(onchain, currency), formatAmount(channels, currency),
		len(s.Peers), len(s.Invoices), len(s.Payments),
	)
}

func (a *app) serve(
	ctx context.Context, _ *cli.Context, svc *application.Service, cfg *config.Config,
) error {
	server, err := service_interface.NewService(web.Config{HTTPPort: cfg.HTTPPort}, svc)
	if err != nil {
		return err
	}
	if err := server.Start(); err != nil {
		return err
	}
	defer server.Stop()

	<-ctx.Done()
	log.Info("shutting down service...")
	return nil
}

func nativeCurrency(ctx context.Context, svc *application.Service) (string, error) {
	node, err := svc.GetNodeSummary(ctx)
	if err != nil {
		return "", err
	}
	return node.Currency, nil
}
