package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewProtocolError_CloseCodes(t *testing.T) {
	tests := []struct {
		err        error
		wantCode   int
		wantReason string
	}{
		{ErrMalformedFrame, CloseUnsupportedData, "malformed_frame"},
		{ErrInvalidIdentify, ClosePolicyViolation, "invalid_identify"},
		{ErrReidentify, ClosePolicyViolation, "reidentify"},
		{ErrProducerTaken, ClosePolicyViolation, "producer_taken"},
	}

	for _, tt := range tests {
		t.Run(tt.wantReason, func(t *testing.T) {
			pe := NewProtocolError(tt.err, "detail")
			assert.Equal(t, tt.wantCode, pe.CloseCode)
			assert.Equal(t, tt.wantReason, pe.Reason())
			assert.ErrorIs(t, pe, tt.err)
			assert.Equal(t, tt.err.Error()+": detail", pe.Error())
		})
	}
}

func TestProtocolError_NoDetail(t *testing.T) {
	pe := NewProtocolError(ErrReidentify, "")
	assert.Equal(t, "connection already identified", pe.Error())

	var target *ProtocolError
	assert.True(t, errors.As(error(pe), &target))
}

func TestClientType_Role(t *testing.T) {
	role, ok := ClientTypeProducer.Role()
	assert.True(t, ok)
	assert.Equal(t, RoleProducer, role)

	role, ok = ClientTypeConsumer.Role()
	assert.True(t, ok)
	assert.Equal(t, RoleConsumer, role)

	_, ok = ClientType("telegram_monitor").Role()
	assert.False(t, ok)
}

func TestRole_String(t *testing.T) {
	assert.Equal(t, "unidentified", RoleUnidentified.String())
	assert.Equal(t, "producer", RoleProducer.String())
	assert.Equal(t, "consumer", RoleConsumer.String())
}
