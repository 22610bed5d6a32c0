package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/memeforge/internal/client/client"
	"github.com/dmitrijs2005/memeforge/internal/server/auth"
)

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func (a *App) token(args []string) error {
	fs := newFlagSet("token")
	ttl := fs.Duration("ttl", a.config.TokenTTL, "token validity")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if *ttl <= 0 {
		return fmt.Errorf("%w: ttl must be positive", ErrUsage)
	}

	secret, err := GetSecret(a.out, "Server secret: ")
	if err != nil {
		return err
	}
	defer wipe(secret)

	tok, err := auth.GenerateToken("memectl", auth.RoleOperator, []byte(strings.TrimSpace(string(secret))), *ttl)
	if err != nil {
		return err
	}

	fmt.Fprintln(a.out, tok)
	return nil
}

func (a *App) seed(ctx context.Context, args []string) error {
	fs := newFlagSet("seed")
	var req client.SeedRequest
	fs.StringVar(&req.AgentID, "agent", "", "agent id")
	fs.StringVar(&req.Concept, "concept", "", "meme concept")
	fs.StringVar(&req.TopCaption, "top", "", "top caption")
	fs.StringVar(&req.BottomCaption, "bottom", "", "bottom caption")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if req.AgentID == "" || req.Concept == "" {
		return fmt.Errorf("%w: -agent and -concept are required", ErrUsage)
	}

	c, err := a.connect()
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()

	m, err := c.SeedMeme(ctx, req)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "id:      %s\nimage:   %s\ncaption: %s\nmodel:   %s\n", m.ID, m.ImageURL, m.Caption, m.ModelUsed)
	return nil
}

func (a *App) reconcile(ctx context.Context, args []string) error {
	fs := newFlagSet("reconcile")
	grace := fs.Duration("grace", 0, "minimum age of an open generation before cleanup (server default if 0)")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if *grace < 0 {
		return fmt.Errorf("%w: grace must not be negative", ErrUsage)
	}

	c, err := a.connect()
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()

	n, err := c.ReconcileOrphans(ctx, *grace)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "cleaned %d orphaned artifact(s)\n", n)
	return nil
}
