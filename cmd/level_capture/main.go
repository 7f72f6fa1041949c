// Level capture reads one export from a digital level over its serial port
// and saves it for upload to the calibration API.
package main

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/NotCoffee418/staff_calibration/pkg/config"
	"github.com/NotCoffee418/staff_calibration/pkg/levelport"
	"github.com/NotCoffee418/staff_calibration/pkg/pathing"
	"github.com/sirupsen/logrus"
)

func main() {
	if err := pathing.EnsureDirs(); err != nil {
		logrus.Fatalf("Failed to create directories: %v", err)
	}

	// Load config
	if err := config.LoadLevelCaptureConfig(); err != nil {
		logrus.Fatalf("Failed to load level capture config: %v", err)
	}
	cfg := config.ActiveLevelCaptureConfig
	config.SetupLogging(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	reader := levelport.NewLevelReader(
		cfg.SerialDevice,
		cfg.Baudrate,
		time.Duration(cfg.IdleTimeoutSeconds)*time.Second,
	)

	logrus.Infof("Waiting for export on %s, start the transfer on the level", cfg.SerialDevice)
	dump, err := reader.Capture(ctx)
	if err != nil {
		logrus.Fatalf("Capture failed: %v", err)
	}

	capture, err := levelport.SaveCapture(cfg.OutputDir, dump)
	if err != nil {
		logrus.Fatalf("Capture rejected: %v", err)
	}
	logrus.Infof("Saved %d level runs (%s) to %s", capture.Sets, capture.Dialect, capture.Path)
}
