// Program mailmuxctl is a command-line utility for exercising a mailmux
// server: dialing it, issuing one RPC call, or standing up a trivial echo
// server for manual testing.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/creachadair/command"

	"github.com/ashgrove-labs/mailmux"
	"github.com/ashgrove-labs/mailmux/codec"
	"github.com/ashgrove-labs/mailmux/rpc"
)

func main() {
	root := &command.C{
		Name: filepath.Base(os.Args[0]),
		Help: "Utilities for exercising a mailmux server.",
		Commands: []*command.C{
			{
				Name:  "call",
				Usage: "<addr> <service> <method> [json-arg ...]",
				Help:  "Dial addr, invoke service.method with the given json-args (each a positional argument), and print the JSON result.",
				Run:   runCall,
			},
			{
				Name:  "serve-echo",
				Usage: "<addr>",
				Help:  "Listen on addr and serve an \"echo\" method that returns its argument unchanged.",
				Run:   runServeEcho,
			},
			command.VersionCommand(),
			command.HelpCommand(nil),
		},
	}
	command.RunOrFail(root.NewEnv(nil), os.Args[1:])
}

func runCall(env *command.Env) error {
	if len(env.Args) < 3 {
		return env.Usagef("missing <addr>, <service>, and <method>")
	}
	addr, service, method := env.Args[0], env.Args[1], env.Args[2]

	args := make([]any, len(env.Args)-3)
	for i, raw := range env.Args[3:] {
		if err := json.Unmarshal([]byte(raw), &args[i]); err != nil {
			return fmt.Errorf("parsing json-arg %d: %w", i, err)
		}
	}

	ctx := context.Background()
	pm := mailmux.NewPostmaster(mailmux.DefaultConfig())
	defer pm.Stop()

	sess, err := mailmux.Dial(ctx, pm, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer sess.Close()

	peer := rpc.NewPeer(sess, codec.JSON)
	var result any
	if err := peer.Call(ctx, service, method, args, &result); err != nil {
		return fmt.Errorf("call %s.%s: %w", service, method, err)
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func runServeEcho(env *command.Env) error {
	if len(env.Args) < 1 {
		return env.Usagef("missing <addr>")
	}
	addr := env.Args[0]

	pm := mailmux.NewPostmaster(mailmux.DefaultConfig())
	defer pm.Stop()

	lst, err := mailmux.Listen(pm, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	defer lst.Close()

	fmt.Fprintf(os.Stderr, "mailmuxctl: serving echo on %s\n", lst.Addr())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		lst.Close()
	}()

	for {
		sess, err := lst.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		peer := rpc.NewPeer(sess, codec.JSON)
		peer.Handle("mailmuxctl", "echo", func(_ context.Context, args [][]byte) ([][]byte, error) {
			if len(args) == 0 {
				return [][]byte{nil}, nil
			}
			return [][]byte{args[0]}, nil
		})
	}
}
