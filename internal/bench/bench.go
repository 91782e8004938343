// Package bench drives readers and writers against a shared payload and
// measures how an rwlock.RWLock behaves under contention.
package bench

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/llxisdsh/rwlock"
	"github.com/llxisdsh/rwlock/internal/opt"
)

type Result struct {
	Reads         int64
	Writes        int64
	ReadTimeouts  int64
	WriteTimeouts int64
	Elapsed       time.Duration
}

// OpsPerSecond returns completed reads and writes per second.
func (r Result) OpsPerSecond() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Reads+r.Writes) / r.Elapsed.Seconds()
}

// Run starts cfg.Readers readers and cfg.Writers writers and stops them
// after cfg.Duration or when ctx is done.
//
// Writers fill the whole payload with one character of cfg.Payload, one
// byte at a time; readers check that they never see a partially written
// payload. A torn read fails the run.
func Run(ctx context.Context, cfg Config, logger *zap.Logger, opts ...rwlock.Option) (Result, error) {
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	// Uniform payload of len(cfg.Payload) bytes, so readers can tell a
	// complete write from a torn one.
	shared := rwlock.NewShared(bytes.Repeat([]byte(cfg.Payload[:1]), len(cfg.Payload)), opts...)

	var (
		reads         = make([]opt.Counter_, cfg.Readers)
		readTimeouts  = make([]opt.Counter_, cfg.Readers)
		writes        = make([]opt.Counter_, cfg.Writers)
		writeTimeouts = make([]opt.Counter_, cfg.Writers)
	)

	ctx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	logger.Info("benchmark started",
		zap.Int("readers", cfg.Readers),
		zap.Int("writers", cfg.Writers),
		zap.Duration("duration", cfg.Duration),
		zap.Duration("timeout", cfg.Timeout),
		zap.Duration("hold", cfg.Hold),
	)

	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	for i := range cfg.Readers {
		g.Go(func() error {
			return reader(ctx, shared, cfg, &reads[i], &readTimeouts[i])
		})
	}
	for i := range cfg.Writers {
		g.Go(func() error {
			return writer(ctx, shared, cfg, i, &writes[i], &writeTimeouts[i])
		})
	}
	err := g.Wait()

	res := Result{
		Reads:         opt.Sum(reads),
		Writes:        opt.Sum(writes),
		ReadTimeouts:  opt.Sum(readTimeouts),
		WriteTimeouts: opt.Sum(writeTimeouts),
		Elapsed:       time.Since(start),
	}
	if err != nil {
		logger.Error("benchmark failed", zap.Error(err))
		return res, err
	}

	logger.Info("benchmark finished",
		zap.Int64("reads", res.Reads),
		zap.Int64("writes", res.Writes),
		zap.Int64("read_timeouts", res.ReadTimeouts),
		zap.Int64("write_timeouts", res.WriteTimeouts),
		zap.Float64("ops_per_sec", res.OpsPerSecond()),
	)
	return res, nil
}

func reader(ctx context.Context, s *rwlock.Shared[[]byte], cfg Config, done, timedOut *opt.Counter_) error {
	o := rwlock.NewOwner()
	for ctx.Err() == nil {
		var torn bool
		ok, err := s.Read(o, cfg.Timeout, func(p []byte) {
			for _, b := range p {
				if b != p[0] {
					torn = true
					return
				}
			}
			hold(cfg.Hold)
		})
		if err != nil {
			return err
		}
		if torn {
			return fmt.Errorf("reader %s saw a partially written payload", o)
		}
		if ok {
			done.Add(1)
		} else {
			timedOut.Add(1)
		}
	}
	return nil
}

func writer(ctx context.Context, s *rwlock.Shared[[]byte], cfg Config, id int, done, timedOut *opt.Counter_) error {
	o := rwlock.NewOwner()
	for n := 0; ctx.Err() == nil; n++ {
		c := cfg.Payload[(id+n)%len(cfg.Payload)]
		ok, err := s.Write(o, cfg.Timeout, func(p *[]byte) {
			for i := range *p {
				(*p)[i] = c
			}
			hold(cfg.Hold)
		})
		if err != nil {
			return err
		}
		if ok {
			done.Add(1)
		} else {
			timedOut.Add(1)
		}
	}
	return nil
}

func hold(d time.Duration) {
	if d > 0 {
		time.Sleep(d)
	}
}
