package reserved

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsReservedCaseInsensitive(t *testing.T) {
	assert.True(t, IsReserved("select"))
	assert.True(t, IsReserved("SELECT"))
	assert.True(t, IsReserved("Date"))
	assert.False(t, IsReserved("CustomerId"))
}

func TestValidateRejectsUnescapedReservedWord(t *testing.T) {
	err := Validate("Date")
	assert.Error(t, err)
	var rwErr *ReservedWordError
	assert.ErrorAs(t, err, &rwErr)
}

func TestValidateAcceptsEscapedReservedWord(t *testing.T) {
	assert.NoError(t, Validate("xDate"))
	assert.NoError(t, Validate("XDate"))
}

func TestValidateAcceptsOrdinaryName(t *testing.T) {
	assert.NoError(t, Validate("CustomerId"))
}

func TestValidateRejectsEmptyName(t *testing.T) {
	assert.ErrorIs(t, Validate(""), ErrEmptyName)
}
