// Calibration watch prints the calibration events pushed by the calibration API.
// Depends on the calibration API being online.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/NotCoffee418/staff_calibration/pkg/config"
	"github.com/NotCoffee418/staff_calibration/pkg/eventfeed"
	"github.com/NotCoffee418/staff_calibration/pkg/pathing"
	"github.com/sirupsen/logrus"
)

func main() {
	if err := pathing.EnsureDirs(); err != nil {
		logrus.Fatalf("Failed to create directories: %v", err)
	}
	if err := config.LoadCalibrationWatchConfig(); err != nil {
		logrus.Fatalf("Failed to load calibration watch config: %v", err)
	}
	cfg := config.ActiveCalibrationWatchConfig
	config.SetupLogging(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// Subscribe to websocket with revive
	if err := eventfeed.StartListener(ctx, cfg.CalibrationAPIHost, printEvent); err != nil {
		logrus.Fatalf("Event feed unavailable: %v", err)
	}
}

func printEvent(ev *eventfeed.Event) {
	fmt.Println(string(ev.ToJsonBytes()))
}
