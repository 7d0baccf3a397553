package models

/**
 * Service status (serialized by "status -o json|yaml")
 * @property {string} name - Service name
 * @property {ServiceState} state - unknown/stale/running
 * @property {int} pid - Recorded PID, 0 when unknown
 * @property {int} port - Configured port
 * @property {string} pidFile - PID file path
 * @property {string} logFile - Log file path
 * @property {bool} listening - Port accepts connections (filled by the CLI)
 * @property {string} health - Result of the liveness endpoint probe, empty when not probed
 */
type ServiceStatus struct {
	Name      string       `json:"name" yaml:"name"`
	State     ServiceState `json:"state" yaml:"state"`
	Pid       int          `json:"pid,omitempty" yaml:"pid,omitempty"`
	Port      int          `json:"port,omitempty" yaml:"port,omitempty"`
	PidFile   string       `json:"pidFile,omitempty" yaml:"pidFile,omitempty"`
	LogFile   string       `json:"logFile,omitempty" yaml:"logFile,omitempty"`
	Listening bool         `json:"listening" yaml:"listening"`
	Health    string       `json:"health,omitempty" yaml:"health,omitempty"`
}
