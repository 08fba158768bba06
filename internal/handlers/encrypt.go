package handlers

import (
	"encoding/json"
	"net/http"

	"monoova-gateway/internal/common/errors"
	"monoova-gateway/internal/common/validation"
	"monoova-gateway/internal/models"
)

const maxEncryptBodyBytes = 64 << 10

// HandleEncrypt encrypts the posted fields with the environment's provider key
func (h *Handlers) HandleEncrypt(w http.ResponseWriter, r *http.Request) {
	r, env := withEnvironment(r)

	var req models.EncryptRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEncryptBodyBytes)).Decode(&req); err != nil {
		sendError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := validation.ValidateStruct(&req); err != nil {
		sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	fields, err := h.encryptor.EncryptFields(r.Context(), req.Fields, env)
	if err != nil {
		if errors.IsType(err, errors.ErrTypeValidation) {
			sendError(w, http.StatusBadRequest, "field cannot be encrypted")
			return
		}
		h.logger.WithContext(r.Context()).Error("Field encryption failed", err)
		sendError(w, http.StatusBadGateway, "integration failure")
		return
	}

	sendJSON(w, http.StatusOK, models.EncryptResponse{Environment: env, Fields: fields})
}
