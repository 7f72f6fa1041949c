package config

type CalibrationAPIConfig struct {
	ListenAddress string `toml:"listen_address"`
	ListenPort    int    `toml:"listen_port"`
	DatabasePath  string `toml:"database_path"`
	// Uploaded instrument files are kept here for reprocessing.
	UploadDir string `toml:"upload_dir"`
	LogLevel  string `toml:"log_level"`
}

type LevelCaptureConfig struct {
	SerialDevice       string `toml:"serial_device"`
	Baudrate           uint   `toml:"baudrate"`
	IdleTimeoutSeconds int    `toml:"idle_timeout_seconds"`
	OutputDir          string `toml:"output_dir"`
	LogLevel           string `toml:"log_level"`
}

type CalibrationWatchConfig struct {
	CalibrationAPIHost string `toml:"calibration_api_host"`
	LogLevel           string `toml:"log_level"`
}
