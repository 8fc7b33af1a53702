// Package lifecycle runs the ordered shutdown of the process.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Step is one named stage of the shutdown sequence
type Step struct {
	Name string
	Run  func(ctx context.Context) error
}

// Coordinator runs its steps in registration order, logging and skipping past
// failures, then exits the process with status 0.
type Coordinator struct {
	steps  []Step
	logger *zap.Logger
	exit   func(code int)

	once sync.Once
	err  error
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithExit replaces os.Exit
func WithExit(exit func(code int)) Option {
	return func(c *Coordinator) {
		c.exit = exit
	}
}

// NewCoordinator creates a coordinator for the given steps
func NewCoordinator(logger *zap.Logger, steps []Step, opts ...Option) *Coordinator {
	c := &Coordinator{
		steps:  steps,
		logger: logger,
		exit:   os.Exit,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Shutdown runs every step once. Later calls return the first result.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.once.Do(func() {
		var errs []error
		for _, step := range c.steps {
			if err := c.runStep(ctx, step); err != nil {
				c.logger.Error("Shutdown step failed",
					zap.String("step", step.Name),
					zap.Error(err),
				)
				errs = append(errs, fmt.Errorf("%s: %w", step.Name, err))
			}
		}
		c.err = errors.Join(errs...)
	})
	return c.err
}

func (c *Coordinator) runStep(ctx context.Context, step Step) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	start := time.Now()
	c.logger.Info("Shutting down", zap.String("step", step.Name))
	if err := step.Run(ctx); err != nil {
		return err
	}
	c.logger.Info("Shutdown step complete",
		zap.String("step", step.Name),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

// Terminate runs Shutdown and exits with status 0 whatever the steps returned
func (c *Coordinator) Terminate(ctx context.Context) {
	if err := c.Shutdown(ctx); err != nil {
		c.logger.Warn("Shutdown finished with errors", zap.Error(err))
	} else {
		c.logger.Info("Shutdown complete")
	}
	_ = c.logger.Sync()
	c.exit(0)
}

// WaitForSignal blocks until SIGTERM or SIGINT arrives or ctx is done.
// It returns the received signal, nil when ctx ended first.
func WaitForSignal(ctx context.Context) os.Signal {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		return sig
	case <-ctx.Done():
		return nil
	}
}

// Run waits for a termination signal, then terminates the process through
// the coordinator. Steps get a fresh context so a cancelled parent does not
// abort them.
func (c *Coordinator) Run(ctx context.Context) {
	sig := WaitForSignal(ctx)
	if sig != nil {
		c.logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
	} else {
		c.logger.Info("Context done, shutting down")
	}
	c.Terminate(context.WithoutCancel(ctx))
}
