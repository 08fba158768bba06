package models

// EncryptRequest is the body accepted by the field encryption endpoint
type EncryptRequest struct {
	Fields map[string]string `json:"fields" validate:"required,min=1,dive,keys,required,endkeys"`
}

// EncryptResponse maps each requested field name to base64 ciphertext
type EncryptResponse struct {
	Environment Environment       `json:"environment"`
	Fields      map[string]string `json:"fields"`
}

// WebhookAck is returned for an accepted webhook
type WebhookAck struct {
	Status string `json:"status"`
}

// ErrorResponse is the generic body for integration failures
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse reports process and dependency status
type HealthResponse struct {
	Status   string            `json:"status"`
	Checks   map[string]string `json:"checks,omitempty"`
	Breakers map[string]string `json:"circuit_breakers,omitempty"`
}
