package teleop

import "flag"

// Config defines the configuration for teleoperation.
type Config struct {
	DeviceIndex     int
	MaxLinearMPS    float64
	MaxAngularRadPS float64
	StickDeadzone   float64
	TriggerDeadzone float64
	Verbose         bool
}

var defaultConfig = Config{
	DeviceIndex:     -1,
	MaxLinearMPS:    4.0,
	MaxAngularRadPS: 8.0,
	StickDeadzone:   0.15,
	TriggerDeadzone: 0.05,
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.IntVar(&defaultConfig.DeviceIndex, "device", defaultConfig.DeviceIndex, "Gamepad device index, -1 for auto detection.")
	flag.Float64Var(&defaultConfig.MaxLinearMPS, "max-linear", defaultConfig.MaxLinearMPS, "Linear speed at full stick deflection, m/s.")
	flag.Float64Var(&defaultConfig.MaxAngularRadPS, "max-angular", defaultConfig.MaxAngularRadPS, "Angular speed at full stick deflection, rad/s.")
	flag.BoolVar(&defaultConfig.Verbose, "verbose", defaultConfig.Verbose, "Print gamepad events.")
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

// NewController creates a controller using the config.
func (c *Config) NewController() *Controller {
	return &Controller{conf: *c}
}
