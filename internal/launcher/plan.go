package launcher

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"plannerbot/internal/tunnel"
)

// Process is one child command.
type Process struct {
	Name    string            `yaml:"name"`
	Command string            `yaml:"command"`
	Args    []string          `yaml:"args"`
	Env     map[string]string `yaml:"env"`
	Dir     string            `yaml:"dir"`
}

// Plan describes what to start and how long to wait for each stage.
type Plan struct {
	Admin  Process `yaml:"admin"`
	Tunnel Process `yaml:"tunnel"`
	Bot    Process `yaml:"bot"`

	// HealthURL is polled until the admin panel answers 200.
	HealthURL string `yaml:"health_url"`
	// TunnelAPIURL is polled until the tunnel reports a public URL.
	TunnelAPIURL string `yaml:"tunnel_api_url"`
	// AdminURL is handed to the bot when SkipTunnel is set.
	AdminURL   string `yaml:"admin_url"`
	SkipTunnel bool   `yaml:"skip_tunnel"`

	Retries  int           `yaml:"retries"`
	Interval time.Duration `yaml:"interval"`
}

// DefaultPlan starts the adminpanel and plannerbot binaries that sit next to the launcher
// and an ngrok tunnel to the admin port.
func DefaultPlan(adminPort int, tunnelAPI string) Plan {
	dir := "."
	if exe, err := os.Executable(); err == nil {
		dir = filepath.Dir(exe)
	}
	port := strconv.Itoa(adminPort)
	if tunnelAPI == "" {
		tunnelAPI = tunnel.DefaultAPIURL
	}
	return Plan{
		Admin:        Process{Name: "admin", Command: filepath.Join(dir, "adminpanel")},
		Tunnel:       Process{Name: "ngrok", Command: "ngrok", Args: []string{"http", port}},
		Bot:          Process{Name: "bot", Command: filepath.Join(dir, "plannerbot")},
		HealthURL:    "http://127.0.0.1:" + port + "/healthz",
		TunnelAPIURL: tunnelAPI,
		AdminURL:     "http://localhost:" + port,
		Retries:      20,
		Interval:     time.Second,
	}
}

// LoadPlan overlays the YAML file at path on top of base. A missing file leaves base unchanged.
func LoadPlan(path string, base Plan) (Plan, error) {
	if path == "" {
		return base, nil
	}
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return base, nil
	}
	if err != nil {
		return base, fmt.Errorf("read launcher plan: %w", err)
	}
	plan := base
	if err := yaml.Unmarshal(raw, &plan); err != nil {
		return base, fmt.Errorf("parse launcher plan %s: %w", path, err)
	}
	return plan, plan.validate()
}

func (p Plan) validate() error {
	if p.Admin.Command == "" || p.Bot.Command == "" {
		return errors.New("launcher plan needs admin and bot commands")
	}
	if !p.SkipTunnel && p.Tunnel.Command == "" {
		return errors.New("launcher plan needs a tunnel command unless skip_tunnel is set")
	}
	if p.Retries < 1 {
		return errors.New("launcher plan retries must be at least 1")
	}
	if p.Interval <= 0 {
		return errors.New("launcher plan interval must be positive")
	}
	return nil
}
