package models

// ServiceState is the supervisor's view of a service, derived from the PID record and a liveness probe
type ServiceState string

const (
	// 没有 PID 记录
	StateUnknown ServiceState = "unknown"
	// 有 PID 记录，但进程已不存在
	StateStale ServiceState = "stale"
	// 有 PID 记录，且进程存活
	StateRunning ServiceState = "running"
)

func (s ServiceState) String() string {
	return string(s)
}
