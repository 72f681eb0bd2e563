package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	gfshutdown "github.com/gelmium/graceful-shutdown"
)

// shutdownStep is one resource to release on shutdown.
type shutdownStep struct {
	name string
	run  func(ctx context.Context) error
}

// orderedShutdown returns a single operation that drains server first and
// then releases acquired in reverse order. A failing step does not stop the
// ones after it.
func orderedShutdown(logger *slog.Logger, server shutdownStep, acquired []shutdownStep) gfshutdown.Operation {
	return func(ctx context.Context) error {
		steps := make([]shutdownStep, 0, len(acquired)+1)
		steps = append(steps, server)
		for i := len(acquired) - 1; i >= 0; i-- {
			steps = append(steps, acquired[i])
		}

		var errs []error
		for _, step := range steps {
			logger.Info("shutting down", slog.String("step", step.name))
			if err := step.run(ctx); err != nil {
				logger.Error("shutdown step failed", slog.String("step", step.name), slog.Any("error", err))
				errs = append(errs, fmt.Errorf("%s: %w", step.name, err))
			}
		}
		return errors.Join(errs...)
	}
}
