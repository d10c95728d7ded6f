package internal

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config     *Config
	configFile string
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithConfigFile names the file the configuration was loaded from. When
// set, the file is watched and log level changes apply without a restart.
func WithConfigFile(path string) Option {
	return func(a *application) {
		a.configFile = path
	}
}
