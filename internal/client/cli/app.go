package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/memeforge/internal/client/client"
	"github.com/dmitrijs2005/memeforge/internal/client/config"
)

// ErrUsage reports a malformed command line.
var ErrUsage = errors.New("usage error")

type dialFunc func(addr, token string) (client.Client, error)

type App struct {
	config *config.Config
	out    io.Writer
	dial   dialFunc
}

func NewApp(c *config.Config, out io.Writer) *App {
	return &App{
		config: c,
		out:    out,
		dial: func(addr, token string) (client.Client, error) {
			return client.NewOpsClient(addr, token)
		},
	}
}

const usage = `usage: memectl [-a addr] [-k token] [-w seconds] [-c file] <command> [flags]

commands:
  token      [-ttl 1h]                                       print an operator token
  seed       -agent ID -concept TEXT [-top TEXT] [-bottom TEXT]
  reconcile  [-grace 15m]`

// Run dispatches args (the command and its flags).
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprintln(a.out, usage)
		return ErrUsage
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "token":
		return a.token(rest)
	case "seed":
		return a.seed(ctx, rest)
	case "reconcile":
		return a.reconcile(ctx, rest)
	case "help", "-h", "--help":
		fmt.Fprintln(a.out, usage)
		return nil
	}

	fmt.Fprintln(a.out, usage)
	return fmt.Errorf("%w: unknown command %q", ErrUsage, cmd)
}

// connect opens an ops client; the caller closes it.
func (a *App) connect() (client.Client, error) {
	if a.config.Token == "" {
		return nil, fmt.Errorf("%w: operator token required (-k or MEMECTL_TOKEN)", ErrUsage)
	}
	return a.dial(a.config.ServerEndpointAddr, a.config.Token)
}
