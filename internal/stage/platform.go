package stage

import "fmt"

// Sensor identifies an acquisition platform implementation.
type Sensor int

const (
	SensorSentinel2 Sensor = iota
	SensorLandsat8
)

// sensorNames maps configuration platform names to sensors.
var sensorNames = map[string]Sensor{
	"Sentinel-2": SensorSentinel2,
	"Landsat-8":  SensorLandsat8,
}

// ParseSensor resolves a configured platform name.
func ParseSensor(name string) (Sensor, error) {
	s, ok := sensorNames[name]
	if !ok {
		return 0, fmt.Errorf("unsupported platform %q", name)
	}
	return s, nil
}

func (s Sensor) String() string {
	switch s {
	case SensorSentinel2:
		return "Sentinel-2"
	case SensorLandsat8:
		return "Landsat-8"
	default:
		return fmt.Sprintf("sensor(%d)", int(s))
	}
}

// Profile carries the sensor-specific file conventions a stage needs. It is
// injected into runners instead of inherited, so one stage implementation
// serves both sensors.
type Profile struct {
	Sensor        Sensor
	DataExtension string // raster band file extension
	DirSuffix     string // product directory suffix
	Level2        bool   // product ships a derived level-2 tree
}

var profiles = map[Sensor]Profile{
	SensorSentinel2: {
		Sensor:        SensorSentinel2,
		DataExtension: ".jp2",
		DirSuffix:     ".SAFE",
		Level2:        true,
	},
	SensorLandsat8: {
		Sensor:        SensorLandsat8,
		DataExtension: ".TIF",
		DirSuffix:     "",
		Level2:        false,
	},
}

// ProfileFor returns the file conventions for a sensor.
func ProfileFor(s Sensor) Profile {
	return profiles[s]
}
