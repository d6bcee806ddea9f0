package chrome

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// Manager owns the Chrome processes spawned for sign-in runs. Each run
// gets its own process, debugging port and user data directory, so a
// crashed run never poisons the next one.
type Manager struct {
	mutex     sync.Mutex
	processes map[string]*Process
}

type Process struct {
	Command *exec.Cmd
	Port    int
	PID     int
	dataDir string
}

var GlobalManager = &Manager{
	processes: make(map[string]*Process),
}

// Start launches Chrome for the given run and returns the debugging port
// once the DevTools endpoint answers.
func (m *Manager) Start(runID string, chromePath string, profile LaunchProfile) (int, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	port := m.findAvailablePort()
	if port == 0 {
		return 0, fmt.Errorf("no available port found")
	}

	userDataDir := fmt.Sprintf("%s/rainyun-chrome-%s", os.TempDir(), runID)
	args := profile.Args(port, userDataDir)

	log.Printf("🚀 启动 Chrome (run=%s, port=%d, headless=%v)", runID, port, profile.Headless)

	cmd := exec.Command(chromePath, args...)
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("failed to start Chrome: %w", err)
	}

	process := &Process{
		Command: cmd,
		Port:    port,
		PID:     cmd.Process.Pid,
		dataDir: userDataDir,
	}
	m.processes[runID] = process

	if err := m.waitForReady(port, 15*time.Second); err != nil {
		if cmd.Process != nil {
			cmd.Process.Kill()
		}
		os.RemoveAll(userDataDir)
		delete(m.processes, runID)
		return 0, fmt.Errorf("Chrome failed to start properly: %w", err)
	}

	log.Printf("✅ Chrome 已就绪 (run=%s, PID=%d, port=%d)", runID, process.PID, port)
	return port, nil
}

// waitForReady polls the DevTools /json endpoint until Chrome answers.
func (m *Manager) waitForReady(port int, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	debugURL := fmt.Sprintf("http://localhost:%d/json", port)

	for time.Now().Before(deadline) {
		resp, err := http.Get(debugURL)
		if err == nil {
			resp.Body.Close()
			return nil
		}
		time.Sleep(200 * time.Millisecond)
	}

	return fmt.Errorf("Chrome debugging endpoint not ready within %v", timeout)
}

// Stop terminates the run's Chrome process, SIGTERM first with a 3s
// grace period, then kill, and removes its user data directory.
func (m *Manager) Stop(runID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	process, exists := m.processes[runID]
	if !exists {
		return
	}

	log.Printf("🛑 停止 Chrome (run=%s, PID=%d)", runID, process.PID)

	if process.Command.Process != nil {
		err := process.Command.Process.Signal(syscall.SIGTERM)
		if err != nil {
			log.Printf("⚠️ 向 Chrome 进程 %d 发送 SIGTERM 失败: %v", process.PID, err)
		} else {
			done := make(chan error, 1)
			go func() {
				done <- process.Command.Wait()
			}()

			select {
			case <-done:
			case <-time.After(3 * time.Second):
				log.Printf("🔨 优雅退出超时，强制结束 Chrome 进程 %d", process.PID)
				if killErr := process.Command.Process.Kill(); killErr == nil {
					process.Command.Wait()
				}
			}
		}
	}

	if err := os.RemoveAll(process.dataDir); err != nil {
		log.Printf("⚠️ 清理用户数据目录失败 (run=%s): %v", runID, err)
	}

	delete(m.processes, runID)
	log.Printf("🧹 Chrome 清理完成 (run=%s)", runID)
}

// CleanupAll kills every tracked Chrome process; used on daemon shutdown.
func (m *Manager) CleanupAll() {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if len(m.processes) == 0 {
		return
	}

	log.Printf("🧹 清理所有 Chrome 实例 (%d 个)", len(m.processes))

	for runID, process := range m.processes {
		if process.Command.Process != nil {
			process.Command.Process.Kill()
		}
		os.RemoveAll(process.dataDir)
		delete(m.processes, runID)
	}
}

// DebugURL returns the DevTools URL for a running instance, or "".
func (m *Manager) DebugURL(runID string) string {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if process, exists := m.processes[runID]; exists {
		return fmt.Sprintf("http://localhost:%d", process.Port)
	}
	return ""
}

func (m *Manager) findAvailablePort() int {
	usedPorts := make(map[int]bool)
	for _, process := range m.processes {
		usedPorts[process.Port] = true
	}

	for port := 9222; port <= 9322; port++ {
		if !usedPorts[port] {
			return port
		}
	}

	return 0
}
