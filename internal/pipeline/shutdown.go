package pipeline

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"
)

// SetupSignalHandler returns a context cancelled on the first SIGINT or
// SIGTERM. A second signal exits the process immediately. The returned
// stop func releases the handler and cancels the context.
func SetupSignalHandler(parent context.Context, logger *zap.Logger) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	stopped := make(chan struct{})
	var once sync.Once
	stop := func() {
		once.Do(func() {
			signal.Stop(sigCh)
			close(stopped)
			cancel()
		})
	}

	go func() {
		select {
		case sig := <-sigCh:
			logger.Warn("received signal, stopping (send again to force exit)", zap.String("signal", sig.String()))
			cancel()
		case <-stopped:
			return
		}

		select {
		case sig := <-sigCh:
			logger.Error("received second signal, forcing exit", zap.String("signal", sig.String()))
			os.Exit(1)
		case <-stopped:
		}
	}()

	return ctx, stop
}
