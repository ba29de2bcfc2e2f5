package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "config error: empty corpus", (&ConfigError{Reason: "empty corpus"}).Error())
	assert.Equal(t, `recipe "r9" not found`, (&NotFoundError{Kind: "recipe", ID: "r9"}).Error())
	assert.Equal(t, "validation error: quantity: must not be negative",
		(&ValidationError{Field: "quantity", Reason: "must not be negative"}).Error())
	assert.Equal(t, "validation error: bad record", (&ValidationError{Reason: "bad record"}).Error())
}

func TestErrorsAsThroughWrapping(t *testing.T) {
	err := fmt.Errorf("failed to build index: %w", &ConfigError{Reason: "empty corpus"})

	var cfgErr *ConfigError
	assert.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "empty corpus", cfgErr.Reason)

	var nf *NotFoundError
	assert.False(t, errors.As(err, &nf))
}
