package validator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatorKeepsFirstError(t *testing.T) {
	v := New()
	v.Check(false, "password", "is required")
	v.Check(false, "password", "must be at least 6 characters")
	v.Check(true, "username", "is required")

	assert.False(t, v.Valid())
	assert.Equal(t, map[string]string{"password": "is required"}, v.Errors)

	var verr *Error
	assert.True(t, errors.As(v.Err(), &verr))
	assert.Equal(t, "validation failed: password: is required", verr.Error())
}

func TestValidatorValidHasNilErr(t *testing.T) {
	v := New()
	v.Check(NotBlank("alice"), "username", "is required")
	assert.True(t, v.Valid())
	assert.NoError(t, v.Err())
}

func TestHelpers(t *testing.T) {
	assert.True(t, Matches("reader@example.com", EmailRX))
	assert.False(t, Matches("reader@", EmailRX))
	assert.True(t, Matches("4111111111111111", DigitsRX))
	assert.False(t, Matches("4111-1111", DigitsRX))
	assert.True(t, In("Art", "Science", "Art"))
	assert.False(t, In("Poetry", "Science", "Art"))
	assert.False(t, NotBlank("   "))
}
