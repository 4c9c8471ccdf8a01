package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/zephyrus-green/ferrycast/internal/api"
	"github.com/zephyrus-green/ferrycast/pkg/streaming"
)

var errStopWatch = errors.New("frame limit reached")

func pollCmd(server string, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("poll", flag.ContinueOnError)
	fs.SetOutput(out)
	n := fs.Int("n", 1, "maximum events to drain")
	volume := fs.Bool("volume", false, "drain volume intents instead of positions")
	if err := fs.Parse(args); err != nil {
		return err
	}

	c := api.New(server)
	for range *n {
		var (
			v   any
			ok  bool
			err error
		)
		if *volume {
			v, ok, err = c.PollVolume()
		} else {
			v, ok, err = c.PollPosition()
		}
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(out, "empty")
			return nil
		}
		if err := printJSON(out, v); err != nil {
			return err
		}
	}
	return nil
}

func volumeCmd(server string, args []string, out io.Writer) error {
	if len(args) != 1 || (args[0] != "up" && args[0] != "down") {
		return fmt.Errorf("volume needs exactly one of up, down")
	}
	resp, err := api.New(server).SendVolume(args[0])
	if err != nil {
		return err
	}
	return printJSON(out, resp)
}

func watchCmd(ctx context.Context, server string, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(out)
	frames := fs.Int("frames", 0, "stop after this many position frames (0 = until interrupted)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	seen := 0
	err := api.New(server).Watch(ctx, func(env streaming.Envelope) error {
		switch env.Type {
		case streaming.TypeHello:
			var hello streaming.HelloPayload
			if err := json.Unmarshal(env.Payload, &hello); err != nil {
				return err
			}
			fmt.Fprintf(out, "connected: %d vessels, every %s\n", len(hello.Vessels), hello.BroadcastEvery)
		case streaming.TypePositions:
			var frame streaming.PositionsPayload
			if err := json.Unmarshal(env.Payload, &frame); err != nil {
				return err
			}
			fmt.Fprintf(out, "#%d", env.Seq)
			for _, p := range frame {
				fmt.Fprintf(out, " %s(%.6f,%.6f)", p.MMSI, p.Lat, p.Lon)
			}
			fmt.Fprintln(out)

			seen++
			if *frames > 0 && seen >= *frames {
				return errStopWatch
			}
		}
		return nil
	})
	if errors.Is(err, errStopWatch) {
		return nil
	}
	return err
}

func healthCmd(server string, out io.Writer) error {
	if err := api.New(server).Healthcheck(); err != nil {
		return err
	}
	fmt.Fprintln(out, "ok")
	return nil
}

func statusCmd(server string, out io.Writer) error {
	st, err := api.New(server).Status()
	if err != nil {
		return err
	}
	return printJSON(out, st)
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
