package drive

import (
	"flag"
	"fmt"
	"io/ioutil"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/David-Feldt/waffle-car/pkg/drive/link"
)

// Config provides the static configuration of the drivetrain:
// serial bus, per-axis wiring, wheel geometry and safety limits.
type Config struct {
	// SerialPort is the device path of the motor controller UART.
	SerialPort string
	// Baud rate of the UART.
	Baud int
	// QueryTimeout bounds every query on the link. Keep it short:
	// a blocked query stalls the control loop for its full length.
	QueryTimeout time.Duration

	// Hardware axis index and direction sign per wheel.
	LeftAxis, RightAxis int
	LeftDir, RightDir   int

	// Wheel geometry.
	WheelRadiusM float64
	TrackWidthM  float64

	// Symmetric velocity maxima applied before decomposition.
	MaxLinearMPS    float64
	MaxAngularRadPS float64

	// Hardware limits re-applied after every recovery.
	CurrentLimitA    float64
	VelocityLimitRPS float64

	// HealthCheckEvery is the error-poll cadence in control cycles.
	HealthCheckEvery uint64
	// Smoothing is the per-tick exponential approach factor toward
	// the commanded velocity (1 = no smoothing).
	Smoothing float64
	// RebootSettle is how long the controller takes to come back
	// after a reset.
	RebootSettle time.Duration

	// CalibrationFile optionally overlays axis mapping and wheel
	// geometry from a YAML file.
	CalibrationFile string
}

var defaultConfig = Config{
	SerialPort:       "/dev/ttyACM0",
	Baud:             link.DefaultBaud,
	QueryTimeout:     200 * time.Millisecond,
	LeftAxis:         0,
	RightAxis:        1,
	LeftDir:          1,
	RightDir:         1,
	WheelRadiusM:     0.0825,
	TrackWidthM:      0.48,
	MaxLinearMPS:     4.0,
	MaxAngularRadPS:  8.0,
	CurrentLimitA:    40.0,
	VelocityLimitRPS: 20.0,
	HealthCheckEvery: 20,
	Smoothing:        0.3,
	RebootSettle:     1500 * time.Millisecond,
}

func init() {
	if val := os.Getenv("WAFFLE_SERIAL_PORT"); val != "" {
		defaultConfig.SerialPort = val
	}
	if val := os.Getenv("WAFFLE_CALIBRATION"); val != "" {
		defaultConfig.CalibrationFile = val
	}
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.SerialPort, "serial", defaultConfig.SerialPort, "Serial device of the motor controller.")
	flag.IntVar(&defaultConfig.LeftAxis, "left-axis", defaultConfig.LeftAxis, "Hardware axis index of the left wheel.")
	flag.IntVar(&defaultConfig.RightAxis, "right-axis", defaultConfig.RightAxis, "Hardware axis index of the right wheel.")
	flag.IntVar(&defaultConfig.LeftDir, "left-dir", defaultConfig.LeftDir, "Direction sign of the left wheel (+1/-1).")
	flag.IntVar(&defaultConfig.RightDir, "right-dir", defaultConfig.RightDir, "Direction sign of the right wheel (+1/-1).")
	flag.Float64Var(&defaultConfig.WheelRadiusM, "wheel-radius", defaultConfig.WheelRadiusM, "Wheel radius in meters.")
	flag.Float64Var(&defaultConfig.TrackWidthM, "track-width", defaultConfig.TrackWidthM, "Distance between wheels in meters.")
	flag.Float64Var(&defaultConfig.MaxLinearMPS, "max-linear", defaultConfig.MaxLinearMPS, "Max linear speed in m/s.")
	flag.Float64Var(&defaultConfig.MaxAngularRadPS, "max-angular", defaultConfig.MaxAngularRadPS, "Max angular rate in rad/s.")
	flag.Float64Var(&defaultConfig.CurrentLimitA, "current-limit", defaultConfig.CurrentLimitA, "Motor current limit in amps.")
	flag.StringVar(&defaultConfig.CalibrationFile, "calibration", defaultConfig.CalibrationFile, "YAML calibration file.")
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

// calibration is the YAML overlay. Only present fields override.
type calibration struct {
	LeftAxis     *int     `yaml:"left_axis"`
	RightAxis    *int     `yaml:"right_axis"`
	LeftDir      *int     `yaml:"left_dir"`
	RightDir     *int     `yaml:"right_dir"`
	WheelRadiusM *float64 `yaml:"wheel_radius_m"`
	TrackWidthM  *float64 `yaml:"track_width_m"`
}

// LoadCalibration overlays calibration constants from the YAML file
// set in CalibrationFile, if any.
func (c *Config) LoadCalibration() error {
	if c.CalibrationFile == "" {
		return nil
	}
	data, err := ioutil.ReadFile(c.CalibrationFile)
	if err != nil {
		return fmt.Errorf("read calibration: %v", err)
	}
	var cal calibration
	if err = yaml.Unmarshal(data, &cal); err != nil {
		return fmt.Errorf("parse calibration: %v", err)
	}
	if cal.LeftAxis != nil {
		c.LeftAxis = *cal.LeftAxis
	}
	if cal.RightAxis != nil {
		c.RightAxis = *cal.RightAxis
	}
	if cal.LeftDir != nil {
		c.LeftDir = *cal.LeftDir
	}
	if cal.RightDir != nil {
		c.RightDir = *cal.RightDir
	}
	if cal.WheelRadiusM != nil {
		c.WheelRadiusM = *cal.WheelRadiusM
	}
	if cal.TrackWidthM != nil {
		c.TrackWidthM = *cal.TrackWidthM
	}
	return nil
}

// NewMotorControl opens the serial link and creates the facade.
func (c *Config) NewMotorControl() (*MotorControl, error) {
	if err := c.LoadCalibration(); err != nil {
		return nil, err
	}
	lconf := link.Config{Device: c.SerialPort, Baud: c.Baud}
	l, err := link.New(lconf.Opener())
	if err != nil {
		return nil, err
	}
	l.Timeout = c.QueryTimeout
	return New(c, l)
}
