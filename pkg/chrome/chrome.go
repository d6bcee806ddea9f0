package chrome

import (
	"errors"
	"os"
	"os/exec"
	"runtime"
)

var ErrChromeNotFound = errors.New("未找到 Chrome/Chromium 浏览器，请安装 Google Chrome 或通过 CHROME_PATH 指定路径")

// FindChrome locates a Chrome/Chromium executable. An explicit override
// path wins; otherwise common install locations are probed, then PATH.
func FindChrome(override string) (string, error) {
	if override != "" {
		if _, err := os.Stat(override); err != nil {
			return "", err
		}
		return override, nil
	}

	var chromePaths []string

	switch runtime.GOOS {
	case "linux":
		chromePaths = []string{
			"/usr/bin/google-chrome-stable",
			"/usr/bin/google-chrome",
			"/usr/bin/chromium-browser",
			"/usr/bin/chromium",
			"/snap/bin/chromium",
			"/opt/google/chrome/google-chrome",
		}
	case "darwin":
		chromePaths = []string{
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
		}
	case "windows":
		chromePaths = []string{
			"C:\\Program Files\\Google\\Chrome\\Application\\chrome.exe",
			"C:\\Program Files (x86)\\Google\\Chrome\\Application\\chrome.exe",
		}
	}

	for _, path := range chromePaths {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	for _, name := range []string{"google-chrome", "google-chrome-stable", "chromium-browser", "chromium"} {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}

	return "", ErrChromeNotFound
}
