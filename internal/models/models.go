package models

// ============================================
// Common DTOs
// ============================================

type ErrorResponse struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Store   string `json:"store"`
	Broker  string `json:"broker,omitempty"`
	Breaker string `json:"breaker,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}
