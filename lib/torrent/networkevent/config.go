package networkevent

// Config defines network event logging configuration.
type Config struct {
	Enabled bool   `yaml:"enabled"`
	LogPath string `yaml:"log_path"`
}
