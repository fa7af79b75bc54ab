package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"roguecloud.ai/internal/client"
	"roguecloud.ai/internal/logging"
	"roguecloud.ai/internal/protocol"
	"roguecloud.ai/internal/sim/action"
	"roguecloud.ai/internal/sim/tuning"
)

func main() {
	var (
		url      = flag.String("url", "ws://localhost:8080/v1/ws", "agent ws url")
		username = flag.String("username", "bot", "username (the first bot gets this name, others get a numeric suffix)")
		password = flag.String("password", "bot", "password")
		count    = flag.Int("n", 1, "number of bots")
		seed     = flag.Int64("seed", time.Now().UnixNano(), "decision rng seed")
		level    = flag.String("log_level", "info", "log level")
	)
	flag.Parse()

	logger, err := logging.New(tuning.Logging{Level: *level})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < *count; i++ {
		name := *username
		if i > 0 {
			name = fmt.Sprintf("%s%d", *username, i)
		}
		log := logger.Named("bot").With(zap.String("username", name))
		wg.Add(1)
		go func(name string, seed int64) {
			defer wg.Done()
			if err := runBot(ctx, *url, name, *password, seed, log); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("bot stopped", zap.Error(err))
			}
		}(name, *seed+int64(i))
	}
	wg.Wait()
}

func runBot(ctx context.Context, url, username, password string, seed int64, log *zap.Logger) error {
	c := client.New(client.Config{URL: url, Username: username, Password: password, Log: log})
	b := newBrain(seed)

	var (
		pending *action.Future
		round   int64
	)
	return c.Run(ctx, func(ctx context.Context, c *client.Client, f protocol.FrameUpdate) {
		if r := c.RoundID(); r != round {
			round = r
			pending = nil
			b.reset()
		}
		b.learn(f.WorldState)
		if pending != nil {
			// One action in flight at a time.
			select {
			case <-pending.Done():
			default:
				return
			}
			if resp, ok := pending.Poll(); ok && !resp.Succeeded() {
				log.Debug("action failed", zap.String("kind", string(resp.Kind())), zap.Uint64("frame", f.Frame))
			}
		}

		creatures, objects := c.Visible()
		a := b.decide(observation{self: f.SelfState, others: creatures, objects: objects, memory: c.Memory()})
		if a == nil {
			pending = nil
			return
		}
		fut, err := c.Submit(a)
		if err != nil {
			log.Debug("submit", zap.Error(err))
			pending = nil
			return
		}
		pending = fut
		if f.Frame%100 == 0 {
			log.Info("status",
				zap.Int64("round_id", round),
				zap.Uint64("frame", f.Frame),
				zap.Int("hp", f.SelfState.Creature.HP),
				zap.Int64("score", f.SelfState.Score),
				zap.Int("memory_tiles", c.Memory().Len()))
		}
	})
}
