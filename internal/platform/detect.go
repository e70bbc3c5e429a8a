package platform

import "runtime"

// OS represents a supported operating system.
type OS string

const (
	MacOS   OS = "darwin"
	Linux   OS = "linux"
	Windows OS = "windows"
	Unknown OS = "unknown"
)

// Family groups operating systems by how processes are launched on them.
type Family string

const (
	Posix Family = "posix"
	WinNT Family = "windows"
)

// Detect returns the current operating system.
func Detect() OS {
	return Parse(runtime.GOOS)
}

// Parse maps a GOOS value onto an OS.
func Parse(goos string) OS {
	switch goos {
	case "darwin":
		return MacOS
	case "linux":
		return Linux
	case "windows":
		return Windows
	default:
		return Unknown
	}
}

// Family returns the process-launch family of the OS. Anything that is not
// Windows is treated as POSIX.
func (o OS) Family() Family {
	if o == Windows {
		return WinNT
	}
	return Posix
}

// IsWindows returns true for Windows.
func (o OS) IsWindows() bool {
	return o == Windows
}
