// cmd/gunctl is a CLI client: it spins up an ephemeral gungo instance
// pointed at one or more peers via --peers, performs a single
// get/put/watch operation against the graph, and (for get/watch) prints
// what it observes, mirroring the teacher's cobra-based cmd/client/main.go
// reshaped from an HTTP KV client to a graph chain client.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"gungo/internal/config"
	"gungo/pkg/gun"
)

var (
	peers   []string
	timeout time.Duration
)

func main() {
	root := &cobra.Command{
		Use:   "gunctl",
		Short: "CLI client for a gungo mesh",
	}
	root.PersistentFlags().StringSliceVar(&peers, "peers", nil, "ws:// peer URLs to connect through")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Second, "request timeout")

	root.AddCommand(getCmd(), putCmd(), watchCmd(), demoCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func dial() (*gun.Gun, error) {
	opts := config.Default()
	opts.Peers = peers
	return gun.New(opts)
}

// splitNonEmpty turns "room1/messages/topic" into the segments a chain
// of Get calls would walk.
func splitNonEmpty(s string, sep byte) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == sep {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}

func getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <path>",
		Short: "Fetch a value once from soul[/field...]",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := dial()
			if err != nil {
				return err
			}
			defer g.Close()

			parts := splitNonEmpty(args[0], '/')
			c := g.Get(parts[0])
			for _, p := range parts[1:] {
				c = c.Get(p)
			}

			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			v, ok, err := c.Once(ctx)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("(not found)")
				return nil
			}
			prettyPrint(v)
			return nil
		},
	}
}

func putCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "put <path> <json-value>",
		Short: "Write a value at soul[/field...]",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := dial()
			if err != nil {
				return err
			}
			defer g.Close()

			var value any
			if err := json.Unmarshal([]byte(args[1]), &value); err != nil {
				value = args[1] // plain string fallback
			}

			parts := splitNonEmpty(args[0], '/')
			c := g.Get(parts[0])
			for _, p := range parts[1:] {
				c = c.Get(p)
			}
			return c.Put(value)
		},
	}
}

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <path>",
		Short: "Print every change to soul[/field...] until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := dial()
			if err != nil {
				return err
			}
			defer g.Close()

			parts := splitNonEmpty(args[0], '/')
			c := g.Get(parts[0])
			for _, p := range parts[1:] {
				c = c.Get(p)
			}

			h := c.On(func(v any, field string) {
				prettyPrint(map[string]any{"field": field, "value": v})
			})
			defer c.Off(h)

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			<-quit
			return nil
		},
	}
}

func demoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Demonstration modes",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "graph",
		Short: "Build a small demo graph and print it back",
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := dial()
			if err != nil {
				return err
			}
			defer g.Close()

			if err := g.Get("alice").Put(map[string]any{
				"name": "alice",
				"age":  30.0,
			}); err != nil {
				return err
			}
			if err := g.Get("alice").Get("likes").Put(map[string]any{
				"bob": map[string]any{"name": "bob"},
			}); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			name, _, err := g.Get("alice").Get("likes").Get("bob").Get("name").Once(ctx)
			if err != nil {
				return err
			}
			prettyPrint(map[string]any{"alice.likes.bob.name": name})
			return nil
		},
	})
	return cmd
}

func prettyPrint(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Println(v)
		return
	}
	fmt.Println(string(data))
}
