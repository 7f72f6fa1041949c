package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/NotCoffee418/staff_calibration/pkg/pathing"
	"github.com/sirupsen/logrus"
)

var (
	ActiveCalibrationAPIConfig   *CalibrationAPIConfig
	ActiveLevelCaptureConfig     *LevelCaptureConfig
	ActiveCalibrationWatchConfig *CalibrationWatchConfig
)

func LoadCalibrationAPIConfig() error {
	cfg, err := LoadCalibrationAPIConfigFrom(pathing.GetConfigDir())
	if err != nil {
		return err
	}
	ActiveCalibrationAPIConfig = cfg
	return nil
}

func LoadCalibrationAPIConfigFrom(dir string) (*CalibrationAPIConfig, error) {
	cfg := &CalibrationAPIConfig{
		ListenAddress: "0.0.0.0",
		ListenPort:    9041,
		DatabasePath:  pathing.GetCalibrationDbPath(),
		UploadDir:     pathing.GetUploadDir(),
		LogLevel:      "info",
	}
	if err := loadOrCreate(filepath.Join(dir, "calibration_api.toml"), cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func LoadLevelCaptureConfig() error {
	cfg, err := LoadLevelCaptureConfigFrom(pathing.GetConfigDir())
	if err != nil {
		return err
	}
	ActiveLevelCaptureConfig = cfg
	return nil
}

func LoadLevelCaptureConfigFrom(dir string) (*LevelCaptureConfig, error) {
	cfg := &LevelCaptureConfig{
		SerialDevice:       "/dev/ttyUSB0",
		Baudrate:           9600,
		IdleTimeoutSeconds: 5,
		OutputDir:          pathing.GetCaptureDir(),
		LogLevel:           "info",
	}
	if err := loadOrCreate(filepath.Join(dir, "level_capture.toml"), cfg); err != nil {
		return nil, err
	}
	if cfg.IdleTimeoutSeconds <= 0 {
		return nil, fmt.Errorf("idle_timeout_seconds must be positive, got %d", cfg.IdleTimeoutSeconds)
	}
	return cfg, nil
}

func LoadCalibrationWatchConfig() error {
	cfg, err := LoadCalibrationWatchConfigFrom(pathing.GetConfigDir())
	if err != nil {
		return err
	}
	ActiveCalibrationWatchConfig = cfg
	return nil
}

func LoadCalibrationWatchConfigFrom(dir string) (*CalibrationWatchConfig, error) {
	cfg := &CalibrationWatchConfig{
		CalibrationAPIHost: "localhost:9041",
		LogLevel:           "info",
	}
	if err := loadOrCreate(filepath.Join(dir, "calibration_watch.toml"), cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadOrCreate decodes path over the defaults in cfg. A missing file is
// created from the defaults.
func loadOrCreate(path string, cfg any) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfgFile, err := os.Create(path)
		if err != nil {
			return err
		}
		defer cfgFile.Close()
		return toml.NewEncoder(cfgFile).Encode(cfg)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	return nil
}

// SetupLogging applies a configured log level; unknown levels fall back to info.
func SetupLogging(level string) {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		logrus.WithField("log_level", level).Warn("Unknown log level, using info")
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)
}
