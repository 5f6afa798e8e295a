package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	streambuffer "github.com/e7canasta/stream-buffer"
	"github.com/e7canasta/stream-buffer/consumer"
	"github.com/e7canasta/stream-buffer/internal/config"
	"github.com/e7canasta/stream-buffer/internal/emitter"
	"github.com/e7canasta/stream-buffer/internal/health"
	"golang.org/x/exp/constraints"
)

// runner is a streambufferd service over one concrete source type.
type runner interface {
	Run(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// service owns one StreamBuffer, its health server and its consumer: an
// MQTT pump when a broker is configured, a periodic tail logger otherwise.
type service[K constraints.Ordered, T any] struct {
	cfg    *config.Config
	logger *slog.Logger
	encode func(T) any

	sb      *streambuffer.StreamBuffer[K, T]
	emitter *emitter.MQTTEmitter
	health  *health.Server
	meter   *consumer.RateMeter

	tail     *consumer.Periodic[K, T]
	pumpDone chan struct{}

	mu      sync.Mutex
	pumpRes consumer.PumpResult
}

func newService[K constraints.Ordered, T any](
	cfg *config.Config,
	src streambuffer.Source[K, T],
	encode func(T) any,
	logger *slog.Logger,
) (*service[K, T], error) {
	opts := []streambuffer.Option{
		streambuffer.WithMaxLen(cfg.Buffer.MaxLen),
		streambuffer.WithAutoDrop(cfg.Buffer.AutoDropEnabled()),
		streambuffer.WithReaderDefaults(streambuffer.ReaderDefaults{
			ReadSize:          cfg.Reader.ReadSize,
			StrictN:           cfg.Reader.StrictN,
			IgnoreNoItemFound: cfg.Reader.IgnoreNoItemFound,
		}),
		streambuffer.WithLogger(logger),
	}
	if d := cfg.Buffer.SleepOnReadNone(); d > 0 {
		opts = append(opts, streambuffer.WithSleepOnReadNone(d))
	}

	sb, err := streambuffer.New(src, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create stream buffer: %w", err)
	}

	s := &service[K, T]{
		cfg:    cfg,
		logger: logger,
		encode: encode,
		sb:     sb,
		meter:  consumer.NewRateMeter(256),
	}
	if cfg.MQTT.Broker != "" {
		s.emitter = emitter.NewMQTTEmitter(emitter.Config{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.InstanceID,
		}, logger)
	}

	var em health.EmitterStats
	if s.emitter != nil {
		em = s.emitter
	}
	s.health = health.New(cfg.InstanceID, sb, em, logger)
	return s, nil
}

// Run starts the stream and its consumer, then blocks until ctx is done or
// the producer loop ends on its own.
func (s *service[K, T]) Run(ctx context.Context) error {
	if err := s.sb.Start(ctx); err != nil {
		return fmt.Errorf("failed to start stream buffer: %w", err)
	}

	if s.cfg.Health.Port != "" {
		if err := s.health.Start(s.cfg.Health.Port); err != nil {
			return err
		}
	}

	go s.sb.LogStats(ctx, s.cfg.StatsInterval())

	r, err := s.sb.MkReader()
	if err != nil {
		return err
	}
	if d := s.cfg.Reader.IterBackoff(); d > 0 {
		r.SetIterBackoff(d)
	}

	if s.emitter != nil {
		if err := s.emitter.Connect(ctx); err != nil {
			return err
		}
		s.startPump(ctx, r)
	} else {
		if err := s.startTail(ctx, r); err != nil {
			return err
		}
	}

	ended := make(chan struct{})
	go func() {
		s.sb.Wait()
		close(ended)
	}()

	select {
	case <-ctx.Done():
		return nil
	case <-ended:
		if err := s.sb.Err(); err != nil {
			return err
		}
		s.logger.Info("producer loop ended")
		return nil
	}
}

func (s *service[K, T]) startPump(ctx context.Context, r *streambuffer.Reader[K, T]) {
	sink := emitter.JSONSink(s.emitter, s.cfg.MQTT.Topic, s.cfg.MQTT.QoS, s.encode)
	s.pumpDone = make(chan struct{})

	go func() {
		defer close(s.pumpDone)
		res, err := consumer.Pump(ctx, r, sink,
			consumer.WithRateMeter(s.meter),
			consumer.OnError(func(err error) {
				s.logger.Warn("failed to publish item", "error", err)
			}),
		)
		s.mu.Lock()
		s.pumpRes = res
		s.mu.Unlock()
		if err != nil {
			s.logger.Error("mqtt pump stopped", "error", err)
		}
	}()
}

// startTail logs the newest item once per stats interval.
func (s *service[K, T]) startTail(ctx context.Context, r *streambuffer.Reader[K, T]) error {
	interval := s.cfg.StatsInterval()
	if interval <= 0 {
		interval = 10 * time.Second
	}

	s.tail = consumer.NewPeriodic("tail", r, interval,
		func(ctx context.Context, r *streambuffer.Reader[K, T]) error {
			item, ok, err := r.Tail(
				streambuffer.OnlyNewItems(true),
				streambuffer.WithIgnoreNoItemFound(true),
			)
			if err != nil || !ok {
				return err
			}
			s.meter.Mark()
			k, _ := r.LastKey()
			s.logger.Info("latest item",
				"key", k,
				"item", s.encode(item),
				"buffer_len", r.Len(),
			)
			return nil
		})
	return s.tail.Start(ctx)
}

// Shutdown stops the producer, lets the consumer drain and releases the
// emitter and health server, giving up when ctx ends.
func (s *service[K, T]) Shutdown(ctx context.Context) error {
	var errs []error

	if err := s.sb.Stop(); err != nil {
		errs = append(errs, err)
	}
	if s.tail != nil {
		s.tail.Stop()
	}
	if s.pumpDone != nil {
		select {
		case <-s.pumpDone:
		case <-ctx.Done():
			errs = append(errs, fmt.Errorf("mqtt pump did not drain: %w", ctx.Err()))
		}
	}
	if s.emitter != nil {
		if err := s.emitter.Disconnect(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.health.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}

	s.mu.Lock()
	res := s.pumpRes
	s.mu.Unlock()
	rate := s.meter.Stats()
	st := s.sb.Stats()
	s.logger.Info("stream buffer service stopped",
		"appended", st.Appended,
		"evicted", st.Evicted,
		"delivered", res.Delivered,
		"failed", res.Failed,
		"rate_mean", rate.RateMean,
		"rate_stable", rate.IsStable,
	)

	return errors.Join(errs...)
}
