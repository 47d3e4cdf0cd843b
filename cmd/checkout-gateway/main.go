package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/exp/slog"

	"github.com/cardflow-labs/pci-checkout/checkout"
)

func main() {
	// Optional; real deployments configure through the environment.
	godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout))

	app := checkout.NewApp(logger, checkout.ConfigFromEnv())
	if err := app.Start(); err != nil {
		logger.Error("starting app", "err", err)
		os.Exit(1)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	app.Shutdown()
}
