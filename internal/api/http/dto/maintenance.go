package dto

type MaintenanceStatusResponse struct {
	Enabled       bool   `json:"enabled"`
	Message       string `json:"message,omitempty"`
	EstimatedTime string `json:"estimated_time,omitempty"`
}

type MaintenanceConfigResponse struct {
	Enabled       bool     `json:"enabled"`
	Message       string   `json:"message"`
	EstimatedTime string   `json:"estimated_time"`
	AllowedIPs    []string `json:"allowed_ips"`
	AllowedEmails []string `json:"allowed_emails"`
	UpdatedAt     string   `json:"updated_at"`
}

type UpdateMaintenanceRequest struct {
	Enabled       *bool    `json:"enabled"`
	Message       *string  `json:"message"`
	EstimatedTime *string  `json:"estimated_time"`
	AllowedIPs    []string `json:"allowed_ips"`
	AllowedEmails []string `json:"allowed_emails"`
}
