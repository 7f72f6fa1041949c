package pathing

import (
	"os"
	"path/filepath"
)

const (
	defaultDataDir   = "/var/lib/staff_calibration"
	defaultConfigDir = "/etc/staff_calibration"

	DataDirEnv   = "STAFFCAL_DATA_DIR"
	ConfigDirEnv = "STAFFCAL_CONFIG_DIR"
)

// EnsureDirs creates the data and config directories when missing.
func EnsureDirs() error {
	for _, dir := range []string{GetDataDir(), GetConfigDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}

func GetCalibrationDbPath() string {
	return filepath.Join(GetDataDir(), "staff-calibration.db")
}

func GetUploadDir() string {
	return filepath.Join(GetDataDir(), "uploads")
}

func GetCaptureDir() string {
	return filepath.Join(GetDataDir(), "captures")
}

func GetDataDir() string {
	if dir := os.Getenv(DataDirEnv); dir != "" {
		return dir
	}
	return defaultDataDir
}

func GetConfigDir() string {
	if dir := os.Getenv(ConfigDirEnv); dir != "" {
		return dir
	}
	return defaultConfigDir
}
