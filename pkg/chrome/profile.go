package chrome

import (
	"fmt"
	"strconv"
)

// LaunchProfile is the unattended-operation flag set for a sign-in run.
// The anti-automation and image-suppression flags mirror what the login
// page tolerates; changing them risks tripping the captcha more often.
type LaunchProfile struct {
	Headless      bool
	DisableImages bool
	WindowWidth   int
	WindowHeight  int
}

// Args renders the full Chrome command line for a run bound to the given
// debugging port and user data directory.
func (p LaunchProfile) Args(port int, userDataDir string) []string {
	args := []string{
		"--remote-debugging-port=" + strconv.Itoa(port),
		"--user-data-dir=" + userDataDir,
		"--no-sandbox",
		"--disable-gpu",
		"--disable-dev-shm-usage",
		"--ignore-certificate-errors",
		"--allow-running-insecure-content",
		"--disable-blink-features=AutomationControlled",
		"--incognito",
		"--log-level=3",
		fmt.Sprintf("--window-size=%d,%d", p.WindowWidth, p.WindowHeight),
	}

	if p.DisableImages {
		args = append(args, "--blink-settings=imagesEnabled=false")
	}

	if p.Headless {
		args = append(args, "--headless=new")
	}

	return args
}
