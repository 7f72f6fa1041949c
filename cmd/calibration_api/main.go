// Calibration API serves range and staff calibrations over HTTP and pushes
// calibration events to websocket subscribers.
package main

import (
	"fmt"
	"net/http"

	"github.com/NotCoffee418/staff_calibration/pkg/calibdb"
	"github.com/NotCoffee418/staff_calibration/pkg/config"
	"github.com/NotCoffee418/staff_calibration/pkg/eventfeed"
	"github.com/NotCoffee418/staff_calibration/pkg/pathing"
	"github.com/sirupsen/logrus"
)

func main() {
	if err := pathing.EnsureDirs(); err != nil {
		logrus.Fatalf("Failed to create directories: %v", err)
	}

	// Load config
	if err := config.LoadCalibrationAPIConfig(); err != nil {
		logrus.Fatalf("Failed to load calibration API config: %v", err)
	}
	cfg := config.ActiveCalibrationAPIConfig
	config.SetupLogging(cfg.LogLevel)

	db, err := calibdb.GetDB(cfg.DatabasePath)
	if err != nil {
		logrus.Fatalf("Failed to open calibration database: %v", err)
	}
	defer db.Close()

	srv := newServer(db, eventfeed.NewHub(), cfg.UploadDir)

	listener := fmt.Sprintf("%s:%d", cfg.ListenAddress, cfg.ListenPort)
	logrus.Infof("Starting Staff Calibration API on %s", listener)
	logrus.Fatal(http.ListenAndServe(listener, srv.routes()))
}
