package main

import (
	"os"
	"os/signal"
	"syscall"

	"dpterminal/internal/bootstrap"
)

func main() {
	c := bootstrap.NewContainer()
	c.MustInit()

	if err := c.Start(); err != nil {
		c.Log.Fatalf("Failed to start: %v", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		c.Log.Infow("Received shutdown signal", "signal", sig.String())
	case <-c.Context.Done():
		c.Log.Warn("Application context cancelled")
	}

	c.Shutdown()
}
