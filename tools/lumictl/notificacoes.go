package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"lumigente_backend/client"
)

var (
	watchURL      string
	watchCPF      string
	watchInterval time.Duration
	watchOnce     bool
)

var notificacoesCmd = &cobra.Command{
	Use:   "notificacoes",
	Short: "Log in as a user and follow the unread notification counter",
	Long: "Logs in against a running server with --cpf and the password in\n" +
		"LUMICTL_SENHA, then prints the unread counter whenever it changes.",
	RunE: runNotificacoes,
}

func init() {
	notificacoesCmd.Flags().StringVar(&watchURL, "url", "", "server base url (default APP_URL)")
	notificacoesCmd.Flags().StringVar(&watchCPF, "cpf", "", "CPF used to log in")
	notificacoesCmd.Flags().DurationVar(&watchInterval, "interval", client.DefaultPollInterval, "poll interval")
	notificacoesCmd.Flags().BoolVar(&watchOnce, "once", false, "print the counter once and exit")
	_ = notificacoesCmd.MarkFlagRequired("cpf")
}

type watchOptions struct {
	CPF      string
	Senha    string
	Interval time.Duration
	Once     bool
	Clock    clockwork.Clock
}

func runNotificacoes(cmd *cobra.Command, args []string) error {
	base := watchURL
	if base == "" {
		base = cfg.AppURL
	}
	senha := os.Getenv("LUMICTL_SENHA")
	if senha == "" {
		return errors.New("LUMICTL_SENHA is not set")
	}
	c, err := client.New(base, client.WithLogger(log))
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return WatchNotifications(ctx, cmd.OutOrStdout(), c, watchOptions{
		CPF:      watchCPF,
		Senha:    senha,
		Interval: watchInterval,
		Once:     watchOnce,
	})
}

// WatchNotifications logs in, prints who is connected and follows the
// unread counter until ctx ends or the session expires.
func WatchNotifications(ctx context.Context, out io.Writer, c *client.Client, opts watchOptions) error {
	u, err := c.Login(ctx, opts.CPF, opts.Senha)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	state := client.NewState()
	state.SetUser(u)
	defer func() {
		_ = c.Logout(context.WithoutCancel(ctx))
		state.Reset()
	}()

	users, err := c.Users(ctx, "")
	if err != nil {
		return fmt.Errorf("users: %w", err)
	}
	state.SetUsers(users)
	fmt.Fprintf(out, "%s conectado (%d colaboradores visíveis)\n", state.User().NomeCompleto, len(state.Users()))

	if opts.Once {
		n, err := c.NotificationCount(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "notificações não lidas: %d\n", n)
		return nil
	}

	pollOpts := []client.PollerOption{client.WithInterval(opts.Interval)}
	if opts.Clock != nil {
		pollOpts = append(pollOpts, client.WithPollClock(opts.Clock))
	}
	p := client.NewNotificationPoller(c, func(n int) {
		fmt.Fprintf(out, "notificações não lidas: %d\n", n)
	}, pollOpts...)
	<-p.Start(ctx)
	return nil
}
