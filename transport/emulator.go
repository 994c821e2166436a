package transport

import (
	"fmt"
	"strings"
)

// EmulatorHostEnv is the environment variable the Pub/Sub client libraries read
// to locate a local emulator.
const EmulatorHostEnv = "PUBSUB_EMULATOR_HOST"

// EmulatorDetection selects how a client decides between the production
// service and a local emulator.
type EmulatorDetection string

const (
	// EmulatorNone ignores the emulator environment entirely and targets the
	// production service.
	EmulatorNone EmulatorDetection = "none"
	// EmulatorProductionOnly always targets the production service.
	EmulatorProductionOnly EmulatorDetection = "production-only"
	// EmulatorOnly requires an emulator host to be configured.
	EmulatorOnly EmulatorDetection = "emulator-only"
	// EmulatorOrProduction uses the emulator when configured, production otherwise.
	EmulatorOrProduction EmulatorDetection = "emulator-or-production"
)

// ParseEmulatorDetection converts a configuration string into an EmulatorDetection.
// The empty string maps to EmulatorNone.
func ParseEmulatorDetection(value string) (EmulatorDetection, error) {
	switch mode := EmulatorDetection(strings.ToLower(strings.TrimSpace(value))); mode {
	case "":
		return EmulatorNone, nil
	case EmulatorNone, EmulatorProductionOnly, EmulatorOnly, EmulatorOrProduction:
		return mode, nil
	default:
		return "", fmt.Errorf("unknown emulator detection mode %q", value)
	}
}

func (d EmulatorDetection) String() string {
	if d == "" {
		return string(EmulatorNone)
	}
	return string(d)
}

// ResolveEmulator applies the detection mode to the emulator host found through
// getenv. It reports the host to use and whether the emulator should be used.
func ResolveEmulator(mode EmulatorDetection, getenv func(string) string) (string, bool, error) {
	host := ""
	if getenv != nil {
		host = strings.TrimSpace(getenv(EmulatorHostEnv))
	}

	switch mode {
	case "", EmulatorNone:
		return "", false, nil
	case EmulatorProductionOnly:
		if host != "" {
			return "", false, fmt.Errorf("emulator detection is %s but %s is set to %q", mode, EmulatorHostEnv, host)
		}
		return "", false, nil
	case EmulatorOnly:
		if host == "" {
			return "", false, fmt.Errorf("emulator detection is %s but %s is not set", mode, EmulatorHostEnv)
		}
		return host, true, nil
	case EmulatorOrProduction:
		return host, host != "", nil
	default:
		return "", false, fmt.Errorf("unknown emulator detection mode %q", string(mode))
	}
}
