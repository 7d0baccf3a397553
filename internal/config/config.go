package config

import (
	"errors"
	"path/filepath"
	"strings"
	"time"

	"handv-deploy/internal/env"

	"github.com/spf13/viper"
)

/**
 * Logging configuration
 * @property {string} level - Log level (debug/info/warn/error)
 * @property {string} path - Log file path, "console" for stderr
 */
type LogConfig struct {
	Level string `mapstructure:"level" json:"level" yaml:"level"`
	Path  string `mapstructure:"path" json:"path" yaml:"path"`
}

/**
 * Frontend build configuration
 * @property {string} package_manager - npm compatible CLI
 * @property {string} script - package.json script producing the bundle
 * @property {string} output_dir - bundle directory relative to root
 * @property {string} api_base_env - variable carrying the API base into the build
 * @property {string} api_base - fixed API base, derived from nginx settings when empty
 * @property {bool} clean_output - remove output_dir before building
 */
type BuildConfig struct {
	PackageManager string `mapstructure:"package_manager" json:"package_manager" yaml:"package_manager"`
	Script         string `mapstructure:"script" json:"script" yaml:"script"`
	OutputDir      string `mapstructure:"output_dir" json:"output_dir" yaml:"output_dir"`
	APIBaseEnv     string `mapstructure:"api_base_env" json:"api_base_env" yaml:"api_base_env"`
	APIBase        string `mapstructure:"api_base" json:"api_base,omitempty" yaml:"api_base,omitempty"`
	CleanOutput    bool   `mapstructure:"clean_output" json:"clean_output" yaml:"clean_output"`
}

/**
 * Reverse proxy configuration
 * @property {string} mode - static/proxy
 * @property {int} listen_port - public port nginx listens on
 * @property {string} server_name - nginx server_name, "_" matches any host
 * @property {string} static_root - document root in static mode, defaults to the build output
 * @property {string} site_name - base name of the generated config file
 * @property {bool} use_sudo - write files and run nginx through sudo
 */
type NginxConfig struct {
	Mode              string `mapstructure:"mode" json:"mode" yaml:"mode"`
	ListenPort        int    `mapstructure:"listen_port" json:"listen_port" yaml:"listen_port"`
	ServerName        string `mapstructure:"server_name" json:"server_name" yaml:"server_name"`
	StaticRoot        string `mapstructure:"static_root" json:"static_root,omitempty" yaml:"static_root,omitempty"`
	SiteName          string `mapstructure:"site_name" json:"site_name" yaml:"site_name"`
	ClientMaxBodySize string `mapstructure:"client_max_body_size" json:"client_max_body_size" yaml:"client_max_body_size"`
	ReadTimeout       int    `mapstructure:"read_timeout" json:"read_timeout" yaml:"read_timeout"`
	Binary            string `mapstructure:"binary" json:"binary" yaml:"binary"`
	UseSudo           bool   `mapstructure:"use_sudo" json:"use_sudo" yaml:"use_sudo"`
}

/**
 * Metrics configuration
 * @property {string} pushgateway - Pushgateway address, metrics are not pushed when empty
 * @property {string} job - job label used when pushing
 */
type MetricsConfig struct {
	Pushgateway string `mapstructure:"pushgateway" json:"pushgateway,omitempty" yaml:"pushgateway,omitempty"`
	Job         string `mapstructure:"job" json:"job" yaml:"job"`
}

/**
 * Preview server configuration
 * @property {string} address - listen address
 * @property {bool} admin - expose the service start/stop API
 */
type PreviewConfig struct {
	Address string `mapstructure:"address" json:"address" yaml:"address"`
	Admin   bool   `mapstructure:"admin" json:"admin" yaml:"admin"`
}

var ErrServiceNotFound = errors.New("service not found")

type AppConfig struct {
	Root         string          `mapstructure:"root" json:"root" yaml:"root"`
	Log          LogConfig       `mapstructure:"log" json:"log" yaml:"log"`
	Services     []ServiceConfig `mapstructure:"services" json:"services" yaml:"services"`
	Build        BuildConfig     `mapstructure:"build" json:"build" yaml:"build"`
	Nginx        NginxConfig     `mapstructure:"nginx" json:"nginx" yaml:"nginx"`
	Metrics      MetricsConfig   `mapstructure:"metrics" json:"metrics" yaml:"metrics"`
	Preview      PreviewConfig   `mapstructure:"preview" json:"preview" yaml:"preview"`
	StartupDelay time.Duration   `mapstructure:"startup_delay" json:"startup_delay" yaml:"startup_delay"`
	StopTimeout  time.Duration   `mapstructure:"stop_timeout" json:"stop_timeout" yaml:"stop_timeout"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.path", "console")
	v.SetDefault("build.package_manager", "npm")
	v.SetDefault("build.script", "build")
	v.SetDefault("build.output_dir", "dist")
	v.SetDefault("build.api_base_env", "VITE_API_BASE")
	v.SetDefault("nginx.mode", "static")
	v.SetDefault("nginx.listen_port", 60)
	v.SetDefault("nginx.server_name", "_")
	v.SetDefault("nginx.site_name", "handv")
	v.SetDefault("nginx.client_max_body_size", "20m")
	v.SetDefault("nginx.read_timeout", 300)
	v.SetDefault("nginx.binary", "nginx")
	v.SetDefault("metrics.job", "handv_deploy")
	v.SetDefault("preview.address", "0.0.0.0:8080")
	v.SetDefault("startup_delay", 800*time.Millisecond)
	v.SetDefault("stop_timeout", 3*time.Second)
}

/**
 * Load application configuration
 * @param {string} file - explicit config file, searched as handv.yaml in root and "." when empty
 * @param {string} root - deployment root override
 * @returns {(*AppConfig, error)} Returns loaded configuration
 * @description
 * - Missing config file is not an error, defaults reproduce the stock deployment
 * - HANDV_* environment variables override file values (HANDV_NGINX_LISTEN_PORT ...)
 */
func LoadConfig(file string, root string) (*AppConfig, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("HANDV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if root == "" {
		root = env.RootDir
	}
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("handv")
		v.SetConfigType("yaml")
		v.AddConfigPath(root)
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if cfg.Root == "" {
		cfg.Root = root
	}
	collectConfig(&cfg)
	return &cfg, nil
}

// collectConfig fills the service table and resolves the root to an absolute path
func collectConfig(cfg *AppConfig) *AppConfig {
	if abs, err := filepath.Abs(cfg.Root); err == nil {
		cfg.Root = abs
	}
	defaults := defaultServices()
	if len(cfg.Services) == 0 {
		cfg.Services = defaults
		return cfg
	}
	for i := range cfg.Services {
		svc := &cfg.Services[i]
		for _, d := range defaults {
			if d.Name != svc.Name {
				continue
			}
			if svc.Command == "" {
				svc.Command = d.Command
				if svc.Args == nil {
					svc.Args = d.Args
				}
				if svc.Env == nil {
					svc.Env = d.Env
				}
			}
			if svc.Port == 0 {
				svc.Port = d.Port
			}
			if svc.PidFile == "" {
				svc.PidFile = d.PidFile
			}
			if svc.LogFile == "" {
				svc.LogFile = d.LogFile
			}
			if svc.HealthPath == "" {
				svc.HealthPath = d.HealthPath
			}
		}
		if svc.PidFile == "" {
			svc.PidFile = svc.Name + ".pid"
		}
		if svc.LogFile == "" {
			svc.LogFile = svc.Name + ".log"
		}
	}
	return cfg
}

// Default returns the configuration used when no file or environment overrides exist
func Default(root string) *AppConfig {
	v := viper.New()
	setDefaults(v)
	var cfg AppConfig
	_ = v.Unmarshal(&cfg)
	cfg.Root = root
	return collectConfig(&cfg)
}

var appConfig *AppConfig

// App returns the configuration loaded by the root command
func App() *AppConfig {
	if appConfig == nil {
		appConfig = Default(env.RootDir)
	}
	return appConfig
}

func SetApp(cfg *AppConfig) {
	appConfig = cfg
}
