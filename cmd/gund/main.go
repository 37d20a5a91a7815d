// cmd/gund is gungo's relay/super-peer daemon: a standalone process that
// accepts inbound peer links and optionally dials out to configured
// peers, so browser/app embeddings always have somewhere to sync
// through even when they can't reach each other directly (see
// examples/relay.rs in the retrieved reference corpus: "relays are
// optional", the same role this daemon plays).
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"gungo/internal/config"
	"gungo/pkg/gun"
)

func main() {
	opts := config.Default()
	opts.SuperPeer = true // gund always accepts inbound links; no code reads this field

	// File and env layers apply first, as defaults; BindFlags binds the
	// flag set directly onto opts, so Execute()'s flag parsing is the
	// layer applied last and wins, preserving flags > env > file.
	if _, err := config.Load(opts); err != nil {
		logrus.WithError(err).Fatal("gund: loading config")
	}

	root := &cobra.Command{
		Use:   "gund",
		Short: "gungo relay daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Load ran before flag parsing, so a --relay given on the
			// command line is folded into Peers here.
			if cmd.Flags().Changed("relay") {
				opts.Peers = append(opts.Peers, opts.Relay)
			}
			return run(opts)
		},
	}
	config.BindFlags(root.Flags(), opts)

	if err := root.Execute(); err != nil {
		logrus.WithError(err).Fatal("gund: exiting")
	}
}

func run(opts *config.Options) error {
	g, err := gun.New(opts)
	if err != nil {
		return err
	}
	defer g.Close()

	srv := &http.Server{
		Addr:         fmtAddr(opts.Port),
		Handler:      g.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // the /gun endpoint holds its connection open indefinitely
	}

	go func() {
		logrus.WithField("addr", srv.Addr).Info("gund: listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("gund: server error")
		}
	}()

	go func() {
		ticker := time.NewTicker(60 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			logrus.WithField("souls", len(g.Store().Keys())).Info("gund: stats")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("gund: shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

func fmtAddr(port int) string {
	return ":" + strconv.Itoa(port)
}
