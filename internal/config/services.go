package config

/**
 * Service configuration
 * @property {string} name - Service name (backend/frontend)
 * @property {string} command - Startup command
 * @property {[]string} args - Command arguments, rendered as templates
 * @property {map[string]string} env - Extra environment, values rendered as templates
 * @property {string} work_dir - Working directory relative to the deployment root
 * @property {int} port - Port the service binds, exposed to templates as {{.Port}}
 * @property {string} pid_file - PID file path relative to the deployment root
 * @property {string} log_file - Log file path relative to the deployment root
 * @property {bool} proxy_only - Only started by deploy in proxy mode
 * @property {string} health_path - Liveness endpoint probed on localhost:port, empty to skip
 */
type ServiceConfig struct {
	Name       string            `mapstructure:"name" json:"name" yaml:"name"`
	Command    string            `mapstructure:"command" json:"command" yaml:"command"`
	Args       []string          `mapstructure:"args" json:"args,omitempty" yaml:"args,omitempty"`
	Env        map[string]string `mapstructure:"env" json:"env,omitempty" yaml:"env,omitempty"`
	WorkDir    string            `mapstructure:"work_dir" json:"work_dir,omitempty" yaml:"work_dir,omitempty"`
	Port       int               `mapstructure:"port" json:"port,omitempty" yaml:"port,omitempty"`
	PidFile    string            `mapstructure:"pid_file" json:"pid_file" yaml:"pid_file"`
	LogFile    string            `mapstructure:"log_file" json:"log_file" yaml:"log_file"`
	ProxyOnly  bool              `mapstructure:"proxy_only" json:"proxy_only,omitempty" yaml:"proxy_only,omitempty"`
	HealthPath string            `mapstructure:"health_path" json:"health_path,omitempty" yaml:"health_path,omitempty"`
}

const (
	BackendService  = "backend"
	FrontendService = "frontend"
)

func defaultServices() []ServiceConfig {
	return []ServiceConfig{
		{
			Name:       BackendService,
			Command:    "node",
			Args:       []string{"server/index.cjs"},
			Env:        map[string]string{"PORT": "{{.Port}}"},
			Port:       6666,
			PidFile:    "server.pid",
			LogFile:    "server.log",
			HealthPath: "/api/ping",
		},
		{
			Name:      FrontendService,
			Command:   "npx",
			Args:      []string{"serve", "-s", "{{.Dist}}", "-l", "{{.Port}}"},
			Port:      6667,
			PidFile:   "frontend.pid",
			LogFile:   "frontend.log",
			ProxyOnly: true,
		},
	}
}

// Service looks up a configured service by name
func (c *AppConfig) Service(name string) (*ServiceConfig, error) {
	for i := range c.Services {
		if c.Services[i].Name == name {
			return &c.Services[i], nil
		}
	}
	return nil, ErrServiceNotFound
}
