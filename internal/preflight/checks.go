package preflight

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/sys/unix"

	"lcdbridge/internal/device"
)

// DeviceImages are the product images served under /images.
var DeviceImages = []string{"2023elite", "2023", "z3", "plugin"}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckReadableFile verifies that path is a regular file the daemon can read.
func CheckReadableFile(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	if !info.Mode().IsRegular() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not a regular file)", path)}
	}
	if err := unix.Access(path, unix.R_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not readable: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: path}
}

// CheckDriver verifies that the configured device driver is registered.
func CheckDriver(name string) Result {
	key := strings.ToLower(strings.TrimSpace(name))
	drivers := device.Drivers()
	if slices.Contains(drivers, key) {
		return Result{Name: "Device driver", Passed: true, Detail: key}
	}
	return Result{Name: "Device driver", Detail: fmt.Sprintf("%q not registered (available: %s)", name, strings.Join(drivers, ", "))}
}

// CheckAssets reports which product images are missing from dir. Missing
// images only cost the plugin its preview, so the directory passing is enough.
func CheckAssets(dir string) Result {
	res := CheckDirectoryAccess("Device images", dir)
	if !res.Passed {
		return res
	}
	var missing []string
	for _, name := range DeviceImages {
		info, err := os.Stat(filepath.Join(dir, name+".png"))
		if err != nil || !info.Mode().IsRegular() {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return Result{Name: "Device images", Passed: true, Detail: fmt.Sprintf("%s (%d images)", dir, len(DeviceImages))}
	}
	return Result{Name: "Device images", Passed: true, Detail: fmt.Sprintf("%s (missing: %s)", dir, strings.Join(missing, ", "))}
}
