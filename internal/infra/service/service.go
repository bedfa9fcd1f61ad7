// Package service installs the router and agent binaries as system services:
// systemd units on Linux and launchd agents on macOS.
package service

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/user"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"text/template"
)

// Unit describes one installable daemon.
type Unit struct {
	Name        string
	Description string
	BinaryPath  string
	ConfigPath  string
	// EnvFile is passed to systemd as EnvironmentFile when it exists.
	EnvFile string
	WorkDir string
	User    string
	LogPath string
	HomeDir string
}

// Status holds the state of an installed unit.
type Status struct {
	Running bool
	PID     int
}

// DefaultUnit returns a Unit for the running binary with per-user paths.
func DefaultUnit(name, description, configPath string) Unit {
	binary, _ := os.Executable()
	if binary == "" {
		binary = filepath.Join("/usr/local/bin", name)
	}

	username, homeDir := "root", "/root"
	if u, err := user.Current(); err == nil {
		username, homeDir = u.Username, u.HomeDir
	}

	dataDir := filepath.Join(homeDir, ".local", "share", "a2a-router")
	if configPath == "" || configPath == "config.yaml" {
		configPath = filepath.Join(homeDir, ".config", "a2a-router", "config.yaml")
	} else if abs, err := filepath.Abs(configPath); err == nil {
		configPath = abs
	}

	return Unit{
		Name:        name,
		Description: description,
		BinaryPath:  binary,
		ConfigPath:  configPath,
		EnvFile:     filepath.Join(filepath.Dir(configPath), ".env"),
		WorkDir:     dataDir,
		User:        username,
		LogPath:     filepath.Join(dataDir, "logs"),
		HomeDir:     homeDir,
	}
}

// Validate checks that the unit can be installed.
func (u *Unit) Validate() error {
	if u.Name == "" {
		return fmt.Errorf("service name is required")
	}
	if u.BinaryPath == "" {
		return fmt.Errorf("binary path is required")
	}
	info, err := os.Stat(u.BinaryPath)
	if err != nil {
		return fmt.Errorf("binary %q: %w", u.BinaryPath, err)
	}
	if info.Mode()&0111 == 0 {
		return fmt.Errorf("binary %q is not executable", u.BinaryPath)
	}
	return nil
}

// Command runs "install", "uninstall" or "status" for unit.
func Command(args []string, unit Unit, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: %s service <install|uninstall|status>", unit.Name)
	}
	switch args[0] {
	case "install":
		if err := unit.Validate(); err != nil {
			return err
		}
		if err := Install(unit); err != nil {
			return err
		}
		fmt.Fprintf(out, "%s installed and started (config %s)\n", unit.Name, unit.ConfigPath)
		return nil
	case "uninstall":
		if err := Uninstall(unit.Name); err != nil {
			return err
		}
		fmt.Fprintf(out, "%s removed\n", unit.Name)
		return nil
	case "status":
		st, err := Query(unit.Name)
		if err != nil {
			return err
		}
		if st.Running {
			fmt.Fprintf(out, "%s is running (PID %d)\n", unit.Name, st.PID)
		} else {
			fmt.Fprintf(out, "%s is not running\n", unit.Name)
		}
		return nil
	default:
		return fmt.Errorf("unknown service command: %s (want: install, uninstall, status)", args[0])
	}
}

// Install writes and starts the unit on the current platform.
func Install(u Unit) error {
	switch runtime.GOOS {
	case "linux":
		return installSystemd(u)
	case "darwin":
		return installLaunchd(u)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
}

// Uninstall stops and removes the unit on the current platform.
func Uninstall(name string) error {
	switch runtime.GOOS {
	case "linux":
		return uninstallSystemd(name)
	case "darwin":
		return uninstallLaunchd(name)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
}

// Query reports whether the unit is running.
func Query(name string) (*Status, error) {
	switch runtime.GOOS {
	case "linux":
		return statusSystemd(name)
	case "darwin":
		return statusLaunchd(name)
	default:
		return nil, fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
}

func render(name, text string, u Unit) (string, error) {
	tmpl, err := template.New(name).Parse(text)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, u); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// --- systemd ---

const systemdTemplate = `[Unit]
Description={{.Description}}
After=network-online.target
Wants=network-online.target

[Service]
Type=simple
ExecStart={{.BinaryPath}} --config {{.ConfigPath}}
WorkingDirectory={{.WorkDir}}
User={{.User}}
Restart=on-failure
RestartSec=5
StandardOutput=append:{{.LogPath}}/{{.Name}}.log
StandardError=append:{{.LogPath}}/{{.Name}}.log
Environment=HOME={{.HomeDir}}
{{- if .EnvFile}}
EnvironmentFile=-{{.EnvFile}}
{{- end}}

[Install]
WantedBy=multi-user.target
`

// RenderSystemdUnit renders the systemd service file.
func RenderSystemdUnit(u Unit) (string, error) {
	return render("systemd", systemdTemplate, u)
}

func installSystemd(u Unit) error {
	content, err := RenderSystemdUnit(u)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(u.LogPath, 0755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	if err := os.MkdirAll(u.WorkDir, 0755); err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}

	unitPath := filepath.Join("/etc/systemd/system", u.Name+".service")
	if err := os.WriteFile(unitPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("write unit file: %w", err)
	}

	return runAll([][]string{
		{"systemctl", "daemon-reload"},
		{"systemctl", "enable", u.Name},
		{"systemctl", "start", u.Name},
	})
}

func uninstallSystemd(name string) error {
	// Stopping an absent unit fails; removal continues regardless.
	exec.Command("systemctl", "stop", name).Run()
	exec.Command("systemctl", "disable", name).Run()

	unitPath := filepath.Join("/etc/systemd/system", name+".service")
	if err := os.Remove(unitPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove unit file: %w", err)
	}
	return runAll([][]string{{"systemctl", "daemon-reload"}})
}

func statusSystemd(name string) (*Status, error) {
	out, err := exec.Command("systemctl", "is-active", name).Output()
	running := strings.TrimSpace(string(out)) == "active"
	if err != nil && !running {
		return &Status{}, nil
	}

	st := &Status{Running: running}
	if pidOut, err := exec.Command("systemctl", "show", "--property=MainPID", name).Output(); err == nil {
		st.PID = parseMainPID(string(pidOut))
	}
	return st, nil
}

func parseMainPID(out string) int {
	_, v, ok := strings.Cut(strings.TrimSpace(out), "=")
	if !ok {
		return 0
	}
	pid, _ := strconv.Atoi(v)
	return pid
}

// --- launchd ---

const launchdLabelPrefix = "io.a2a-router."

const launchdTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>io.a2a-router.{{.Name}}</string>
    <key>ProgramArguments</key>
    <array>
        <string>{{.BinaryPath}}</string>
        <string>--config</string>
        <string>{{.ConfigPath}}</string>
    </array>
    <key>WorkingDirectory</key>
    <string>{{.WorkDir}}</string>
    <key>RunAtLoad</key>
    <true/>
    <key>KeepAlive</key>
    <true/>
    <key>StandardOutPath</key>
    <string>{{.LogPath}}/{{.Name}}.log</string>
    <key>StandardErrorPath</key>
    <string>{{.LogPath}}/{{.Name}}.log</string>
    <key>EnvironmentVariables</key>
    <dict>
        <key>HOME</key>
        <string>{{.HomeDir}}</string>
    </dict>
</dict>
</plist>
`

// RenderLaunchdPlist renders the launchd plist.
func RenderLaunchdPlist(u Unit) (string, error) {
	return render("launchd", launchdTemplate, u)
}

func plistPath(name string) string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "Library", "LaunchAgents", launchdLabelPrefix+name+".plist")
}

func installLaunchd(u Unit) error {
	content, err := RenderLaunchdPlist(u)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(u.LogPath, 0755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	if err := os.MkdirAll(u.WorkDir, 0755); err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}

	path := plistPath(u.Name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create LaunchAgents dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("write plist: %w", err)
	}
	return runAll([][]string{{"launchctl", "load", path}})
}

func uninstallLaunchd(name string) error {
	path := plistPath(name)
	exec.Command("launchctl", "unload", path).Run()
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove plist: %w", err)
	}
	return nil
}

func statusLaunchd(name string) (*Status, error) {
	out, err := exec.Command("launchctl", "list", launchdLabelPrefix+name).Output()
	if err != nil {
		return &Status{}, nil
	}
	return &Status{Running: true, PID: parseLaunchctlPID(string(out))}, nil
}

// parseLaunchctlPID reads the "PID" = N; line of launchctl list output.
func parseLaunchctlPID(out string) int {
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, `"PID"`) {
			continue
		}
		_, v, ok := strings.Cut(line, "=")
		if !ok {
			return 0
		}
		pid, _ := strconv.Atoi(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(v), ";")))
		return pid
	}
	return 0
}

func runAll(cmds [][]string) error {
	for _, args := range cmds {
		if out, err := exec.Command(args[0], args[1:]...).CombinedOutput(); err != nil {
			return fmt.Errorf("%s: %s: %w", strings.Join(args, " "), out, err)
		}
	}
	return nil
}
