// Command roost runs a dedicated owner or talks to one
//
//	roost serve -config roost.yaml
//	roost put -config roost.yaml -box users alice admin
//	roost get -config roost.yaml -box users alice
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jrife/roost/codec"
	"github.com/jrife/roost/config"
	"github.com/jrife/roost/unit"
	"github.com/jrife/roost/utils/log"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var errUsage = errors.New("usage: roost serve|get|put|remove|exists|count|toggle -config file [-box name] [-tag string|int] [args]")

type options struct {
	config  string
	box     string
	tag     string
	timeout time.Duration
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return errUsage
	}

	command := args[0]
	flags := flag.NewFlagSet(command, flag.ContinueOnError)
	opts := options{}
	flags.StringVar(&opts.config, "config", "roost.yaml", "path to the config file")
	flags.StringVar(&opts.box, "box", "default", "box name")
	flags.StringVar(&opts.tag, "tag", "string", "value type of the box, string or int")
	flags.DurationVar(&opts.timeout, "timeout", 5*time.Second, "request timeout")

	if err := flags.Parse(args[1:]); err != nil {
		return err
	}

	cfg, err := config.Load(opts.config)

	if err != nil {
		return err
	}

	logger, err := log.New(cfg.Log.Level, cfg.Log.Development)

	if err != nil {
		return err
	}

	defer logger.Sync()

	env, err := unit.NewEnvironment(unit.WithRegistry(unit.OpenRegistry(cfg)), unit.WithLogger(logger))

	if err != nil {
		return err
	}

	defer env.Close()

	if command == "serve" {
		return serve(env, cfg, logger)
	}

	return request(env, cfg, command, opts, flags.Args(), logger)
}

// serve elects this process owner of cfg.Name and
// serves until interrupted
func serve(env *unit.Environment, cfg config.Config, logger *zap.Logger) error {
	cfg.Inline = true
	u, err := unit.New(env, cfg)

	if err != nil {
		return err
	}

	defer u.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := u.Coordinator().Channel(ctx); err != nil {
		return err
	}

	if !u.IsOwner() {
		address, _, _ := env.Registry().Lookup(cfg.Name)

		return fmt.Errorf("%s is already owned by %s", cfg.Name, address)
	}

	logger.Info("serving", zap.String("name", cfg.Name), zap.String("address", u.Coordinator().Owner().Address()))

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		signals := make(chan os.Signal, 1)
		signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(signals)

		select {
		case sig := <-signals:
			logger.Info("received signal", zap.Stringer("signal", sig))
			cancel()
		case <-ctx.Done():
		}

		return nil
	})

	g.Go(func() error {
		select {
		case <-u.Coordinator().Owner().Done():
			cancel()
		case <-ctx.Done():
		}

		return nil
	})

	return g.Wait()
}

func parseTag(tag string) (codec.Tag, error) {
	switch tag {
	case "string":
		return codec.TagString, nil
	case "int":
		return codec.TagInt, nil
	}

	return 0, fmt.Errorf("unknown tag %q", tag)
}

// parseKey reads an unsigned integer as an int key
// and anything else as a string key
func parseKey(arg string) interface{} {
	if i, err := strconv.ParseUint(arg, 10, 32); err == nil {
		return int(i)
	}

	return arg
}

func parseValue(tag codec.Tag, arg string) (interface{}, error) {
	if tag == codec.TagInt {
		return strconv.Atoi(arg)
	}

	return arg, nil
}

func request(env *unit.Environment, cfg config.Config, command string, opts options, args []string, logger *zap.Logger) error {
	tag, err := parseTag(opts.tag)

	if err != nil {
		return err
	}

	u, err := unit.New(env, cfg)

	if err != nil {
		return err
	}

	defer u.Close()

	// An owner elected by this process logs requests under the command
	ctx := log.WithLogger(context.Background(), logger.With(zap.String("command", command)))
	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	box := u.Box(opts.box, tag)

	switch {
	case command == "count" && len(args) == 0:
		count, err := box.Count(ctx)

		if err != nil {
			return err
		}

		fmt.Println(count)
	case command == "get" && len(args) == 1:
		value, err := box.Get(ctx, parseKey(args[0]))

		if err != nil {
			return err
		}

		fmt.Println(value)
	case command == "exists" && len(args) == 1:
		exists, err := box.Exists(ctx, parseKey(args[0]))

		if err != nil {
			return err
		}

		fmt.Println(exists)
	case command == "remove" && len(args) == 1:
		return box.Remove(ctx, parseKey(args[0]))
	case command == "put" && len(args) == 2:
		value, err := parseValue(tag, args[1])

		if err != nil {
			return err
		}

		return box.Put(ctx, parseKey(args[0]), value)
	case command == "toggle" && len(args) == 2:
		value, err := parseValue(tag, args[1])

		if err != nil {
			return err
		}

		added, err := box.Toggle(ctx, parseKey(args[0]), value)

		if err != nil {
			return err
		}

		fmt.Println(added)
	default:
		return errUsage
	}

	return nil
}
