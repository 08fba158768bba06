package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"monoova-gateway/internal/common/errors"
)

type sample struct {
	BaseURL string            `env:"BASE_URL" validate:"required,url"`
	Path    string            `env:"TOKEN_PATH" validate:"required,url_path"`
	Padding string            `json:"padding" validate:"oneof=pkcs1 oaep"`
	Fields  map[string]string `json:"fields" validate:"required,min=1"`
}

func TestValidateStruct_Valid(t *testing.T) {
	err := ValidateStruct(sample{
		BaseURL: "https://api.m-pay.com.au",
		Path:    "/au/security/oauth2/v1/token",
		Padding: "oaep",
		Fields:  map[string]string{"bsb": "062000"},
	})
	assert.NoError(t, err)
}

func TestValidateStruct_ReportsEveryField(t *testing.T) {
	err := ValidateStruct(sample{
		BaseURL: "not a url",
		Path:    "token",
		Padding: "rsa",
	})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeValidation))

	fields := Fields(err)
	require.Len(t, fields, 4)

	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, f.Field)
	}
	assert.ElementsMatch(t, []string{"BASE_URL", "TOKEN_PATH", "padding", "fields"}, names)
	assert.Contains(t, err.Error(), "TOKEN_PATH must be an absolute path")
	assert.Contains(t, err.Error(), "padding must be one of: pkcs1 oaep")
}

func TestFields_NonValidationError(t *testing.T) {
	assert.Nil(t, Fields(errors.InternalError("boom", nil)))
	assert.Nil(t, Fields(nil))
}
