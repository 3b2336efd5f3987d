// Package workspace manages the lifecycle of local infrastructure declared in
// a workspace file: containers are brought up in dependency order and torn
// down in reverse.
package workspace

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Resource declares a single container in the workspace.
type Resource struct {
	Name      string            `yaml:"name"`
	Group     string            `yaml:"group,omitempty"`
	Env       string            `yaml:"env,omitempty"` // restricts the resource to one environment
	Image     string            `yaml:"image"`
	Ports     []string          `yaml:"ports,omitempty"`   // "HOST:CONTAINER"
	EnvVars   map[string]string `yaml:"env_vars,omitempty"`
	Volumes   []string          `yaml:"volumes,omitempty"` // "host_path:container_path"
	DependsOn []string          `yaml:"depends_on,omitempty"`
}

// Config is the parsed workspace file.
type Config struct {
	Name      string            `yaml:"name"`
	Env       string            `yaml:"env,omitempty"` // active environment, default "dev"
	EnvVars   map[string]string `yaml:"env_vars,omitempty"`
	Resources []*Resource       `yaml:"resources,omitempty"`
}

const defaultEnv = "dev"

// Load reads and validates a workspace file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //#nosec 304 -- intentional file read for config
	if err != nil {
		return nil, fmt.Errorf("read workspace file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse workspace file %q: %w", path, err)
	}

	if cfg.Env == "" {
		cfg.Env = defaultEnv
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the workspace declaration for structural problems.
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("workspace name is required")
	}

	names := make(map[string]bool, len(c.Resources))
	for _, r := range c.Resources {
		if r.Name == "" {
			return fmt.Errorf("workspace %q: resource with empty name", c.Name)
		}
		if names[r.Name] {
			return fmt.Errorf("workspace %q: duplicate resource name %q", c.Name, r.Name)
		}
		names[r.Name] = true
		if r.Image == "" {
			return fmt.Errorf("resource %q: image is required", r.Name)
		}
	}

	for _, r := range c.Resources {
		for _, dep := range r.DependsOn {
			if dep == r.Name {
				return fmt.Errorf("resource %q depends on itself", r.Name)
			}
			if !names[dep] {
				return fmt.Errorf("resource %q depends on unknown resource %q", r.Name, dep)
			}
		}
	}
	return nil
}

// ActiveResources returns the resources that apply to the workspace's active
// environment and pass the filter.
func (c *Config) ActiveResources(filter Filter) []*Resource {
	var active []*Resource
	for _, r := range c.Resources {
		if r.Env != "" && r.Env != c.Env {
			continue
		}
		if !filter.Matches(c.Env, r) {
			continue
		}
		active = append(active, r)
	}
	return active
}

// ContainerName returns the container name for a resource, prefixed with the
// workspace name so multiple workspaces can coexist on one host.
func (c *Config) ContainerName(r *Resource) string {
	return c.Name + "-" + r.Name
}
