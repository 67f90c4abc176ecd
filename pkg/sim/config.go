package sim

import "flag"

// Config defines the configuration for the simulated drivetrain.
type Config struct {
	TrackWidthM  float64
	MaxLinearMPS float64
	ResponseTau  float64
}

var defaultConfig = Config{
	TrackWidthM:  0.48,
	MaxLinearMPS: 4.0,
	ResponseTau:  0.15,
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.Float64Var(&defaultConfig.TrackWidthM, "track-width", defaultConfig.TrackWidthM, "Wheel track width in meters.")
	flag.Float64Var(&defaultConfig.MaxLinearMPS, "max-wheel-speed", defaultConfig.MaxLinearMPS, "Wheel speed limit in m/s.")
	flag.Float64Var(&defaultConfig.ResponseTau, "response-tau", defaultConfig.ResponseTau, "Wheel speed time constant in seconds.")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a config with defaults.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// NewDrivetrain creates a Drivetrain using the config.
func (c *Config) NewDrivetrain() *Drivetrain {
	return &Drivetrain{
		TrackWidthM:  c.TrackWidthM,
		MaxLinearMPS: c.MaxLinearMPS,
		ResponseTau:  c.ResponseTau,
	}
}
