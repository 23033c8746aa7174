package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mattn/go-shellwords"
	"github.com/sirupsen/logrus"

	"github.com/v8codecache/ircache/pkg/ircache/client"
	"github.com/v8codecache/ircache/pkg/transport"
)

var log = logrus.New()

// step is one entry of a client script: a route name and its single
// string argument, meaning differs per route (spec §6A).
type step struct {
	route string
	arg   string
}

// defaultScript mirrors the scripted sequence the original's
// client_test.cpp issues back-to-back from one client process (spec §6A,
// §8 scenarios 1, 2, 6): create a user, store a graph, fetch it, fetch a
// missing one, delete the user.
func defaultScript() []step {
	return []step{
		{route: "user/create", arg: "alice:alice@x"},
		{route: "function/add_ir_graph", arg: "HASH_A:" + strings.Repeat("A", 1024)},
		{route: "function/get_ir_graph", arg: "HASH_A"},
		{route: "function/get_ir_graph", arg: "MISSING"},
		{route: "user/delete", arg: "alice"},
	}
}

// parseScript tokenizes a "route=arg,route=arg,..." script string,
// using go-shellwords to unescape each argument so a script can quote
// values containing colons or spaces (spec §6A).
func parseScript(raw string) ([]step, error) {
	parser := shellwords.NewParser()

	var steps []step
	for _, segment := range strings.Split(raw, ",") {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}

		parts := strings.SplitN(segment, "=", 2)
		s := step{route: parts[0]}
		if len(parts) == 2 {
			tokens, err := parser.Parse(parts[1])
			if err != nil {
				return nil, fmt.Errorf("parse argument for %q: %w", parts[0], err)
			}
			if len(tokens) > 0 {
				s.arg = tokens[0]
			}
		}
		steps = append(steps, s)
	}
	return steps, nil
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	scriptFlag := flag.String("script", "", `comma-separated "route=arg" steps to run instead of the default script`)
	flag.Parse()

	shmName := os.Getenv("IR_CACHE_SHM_NAME")
	if shmName == "" {
		shmName = transport.SharedMemoryName
	}

	steps := defaultScript()
	if *scriptFlag != "" {
		parsed, err := parseScript(*scriptFlag)
		if err != nil {
			log.Fatalf("failed to parse -script: %v", err)
		}
		steps = parsed
	}

	cli, err := client.Connect(shmName)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer cli.Close()

	ok := true
	for _, s := range steps {
		if err := runStep(ctx, cli, s); err != nil {
			log.WithField("route", s.route).Errorf("step failed: %v", err)
			ok = false
		}
	}

	if !ok {
		os.Exit(1)
	}
}

func runStep(ctx context.Context, cli *client.Client, s step) error {
	switch s.route {
	case "user/create":
		username, email, _ := strings.Cut(s.arg, ":")
		return cli.CreateUser(ctx, username, email)

	case "user/get":
		return cli.GetUser(ctx, s.arg)

	case "user/delete":
		return cli.DeleteUser(ctx, s.arg)

	case "function/add_ir_graph":
		hash, graph, _ := strings.Cut(s.arg, ":")
		return cli.AddIRGraph(ctx, hash, []byte(graph))

	case "function/get_ir_graph":
		graph, found, err := cli.GetIRGraph(ctx, s.arg)
		if err != nil {
			return err
		}
		if !found {
			log.WithField("function_code_hash", s.arg).Info("get_ir_graph: not found")
			return nil
		}
		log.WithFields(logrus.Fields{
			"function_code_hash": s.arg,
			"bytes":              len(graph),
		}).Info("get_ir_graph: found")
		return nil

	default:
		return fmt.Errorf("unknown script route %q", s.route)
	}
}
