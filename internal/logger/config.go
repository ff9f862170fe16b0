package logger

// Config controls the log level and, when FileName is set, the rotation of
// the log file.
type Config struct {
	Level      string `yaml:"level"`
	FileName   string `yaml:"file"`
	MaxSize    int    `yaml:"max_size_mb"`
	MaxAge     int    `yaml:"max_age_days"`
	MaxBackups int    `yaml:"max_backups"`
	Compress   bool   `yaml:"compress"`
}

// DefaultConfig logs INFO and above to stderr.
func DefaultConfig() Config {
	return Config{
		Level:      "INFO",
		MaxSize:    100,
		MaxAge:     30,
		MaxBackups: 10,
		Compress:   true,
	}
}
