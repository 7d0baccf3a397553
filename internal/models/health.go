package models

// HealthResponse 预览服务健康检查响应结构
type HealthResponse struct {
	Status    string          `json:"status" example:"UP"`
	StartTime string          `json:"startTime" example:"2024-01-01T10:00:00Z"`
	Uptime    string          `json:"uptime" example:"1h30m45s"`
	Dist      string          `json:"dist"`
	Services  []ServiceStatus `json:"services"`
}
