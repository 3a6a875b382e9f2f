package models

// HealthResponse represents the liveness probe response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// StatusResponse represents the session status probe response.
// The detailed fields are only filled when asked for.
type StatusResponse struct {
	WhatsAppReady    bool   `json:"whatsappReady"`
	ConnectedClients int    `json:"connectedClients"`
	Timestamp        int64  `json:"timestamp"`
	State            string `json:"state,omitempty"`
	ReadyAt          *int64 `json:"readyAt,omitempty"`
	LastError        string `json:"lastError,omitempty"`
	Generation       uint64 `json:"generation,omitempty"`
}

// SessionActionResponse acknowledges an operator session action
type SessionActionResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}
