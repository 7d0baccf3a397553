package config

import (
	"path/filepath"

	derrors "handv-deploy/internal/errors"
)

// Path resolves p against the deployment root unless it is already absolute
func (c *AppConfig) Path(p string) string {
	if p == "" {
		return c.Root
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Root, p)
}

// OutputDir is the absolute directory the frontend build writes to
func (c *AppConfig) OutputDir() string {
	return c.Path(c.Build.OutputDir)
}

// StaticRoot is the nginx document root for static mode
func (c *AppConfig) StaticRoot() string {
	if c.Nginx.StaticRoot != "" {
		return c.Path(c.Nginx.StaticRoot)
	}
	return c.OutputDir()
}

// ValidatePort rejects ports outside 1..65535
func ValidatePort(name string, port int) error {
	if port < 1 || port > 65535 {
		return derrors.NewPreconditionError("%s port %d is out of range, expected 1-65535", name, port)
	}
	return nil
}

// ValidateServices checks every configured service before any process action
func (c *AppConfig) ValidateServices() error {
	seen := make(map[string]bool)
	for _, svc := range c.Services {
		if svc.Name == "" {
			return derrors.NewPreconditionError("service without name")
		}
		if seen[svc.Name] {
			return derrors.NewPreconditionError("service %s configured twice", svc.Name)
		}
		seen[svc.Name] = true
		if svc.Command == "" {
			return derrors.NewPreconditionError("service %s has no command", svc.Name)
		}
		if svc.Port != 0 {
			if err := ValidatePort(svc.Name, svc.Port); err != nil {
				return err
			}
		}
	}
	return nil
}
