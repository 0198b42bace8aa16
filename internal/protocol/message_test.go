package protocol

import (
	"testing"

	"github.com/pscheid92/coderelay/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_Kinds(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		want  Inbound
	}{
		{"producer identify", `{"type":"identify","client_type":"producer","id":"m1"}`, Identify{ClientType: domain.ClientTypeProducer, ID: "m1"}},
		{"consumer identify", `{"type":"identify","client_type":"consumer","username":"alice"}`, Identify{ClientType: domain.ClientTypeConsumer, Username: "alice"}},
		{"new code", `{"type":"new_code","code":"ABC123"}`, NewCode{Code: "ABC123"}},
		{"new code missing code", `{"type":"new_code"}`, NewCode{}},
		{"new code numeric code", `{"type":"new_code","code":42}`, NewCode{}},
		{"ping", `{"type":"ping"}`, Ping{}},
		{"unknown type", `{"type":"subscribe","topic":"x"}`, Unknown{Type: "subscribe"}},
		{"missing type", `{"code":"x"}`, Unknown{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.frame))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecode_Malformed(t *testing.T) {
	frames := []string{`not json`, `{"type":`, `["identify"]`, `"identify"`, `{"type":7}`, `null`, ``}

	for _, frame := range frames {
		t.Run(frame, func(t *testing.T) {
			_, err := Decode([]byte(frame))
			require.Error(t, err)

			var pe *domain.ProtocolError
			require.ErrorAs(t, err, &pe)
			assert.ErrorIs(t, err, domain.ErrMalformedFrame)
			assert.Equal(t, domain.CloseUnsupportedData, pe.CloseCode)
		})
	}
}

func TestDecode_IdentifyWrongFieldTypes(t *testing.T) {
	_, err := Decode([]byte(`{"type":"identify","client_type":"producer","id":17}`))

	var pe *domain.ProtocolError
	require.ErrorAs(t, err, &pe)
	assert.ErrorIs(t, err, domain.ErrInvalidIdentify)
	assert.Equal(t, domain.ClosePolicyViolation, pe.CloseCode)
}

func TestIdentify_Validate(t *testing.T) {
	tests := []struct {
		name    string
		msg     Identify
		wantErr bool
	}{
		{"producer with id", Identify{ClientType: domain.ClientTypeProducer, ID: "m1"}, false},
		{"consumer with username", Identify{ClientType: domain.ClientTypeConsumer, Username: "bob"}, false},
		{"producer without id", Identify{ClientType: domain.ClientTypeProducer, Username: "bob"}, true},
		{"producer with blank id", Identify{ClientType: domain.ClientTypeProducer, ID: "  "}, true},
		{"consumer without username", Identify{ClientType: domain.ClientTypeConsumer, ID: "m1"}, true},
		{"unknown client type", Identify{ClientType: "telegram_monitor", ID: "m1"}, true},
		{"empty client type", Identify{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, domain.ErrInvalidIdentify)
		})
	}
}

func TestIdentify_DisplayName(t *testing.T) {
	assert.Equal(t, "m1", Identify{ClientType: domain.ClientTypeProducer, ID: "m1", Username: "x"}.DisplayName())
	assert.Equal(t, "alice", Identify{ClientType: domain.ClientTypeConsumer, ID: "x", Username: "alice"}.DisplayName())
}

func TestNewCode_Validate(t *testing.T) {
	assert.NoError(t, NewCode{Code: "ABC"}.Validate())
	assert.ErrorIs(t, NewCode{}.Validate(), domain.ErrEmptyCode)
	assert.ErrorIs(t, NewCode{Code: " \t"}.Validate(), domain.ErrEmptyCode)
}

func TestEncode_OutboundShapes(t *testing.T) {
	tests := []struct {
		name string
		msg  Outbound
		want string
	}{
		{"new code", NewCodeEvent("ABC123"), `{"type":"new_code","code":"ABC123"}`},
		{"ack", AckEvent("ABC123"), `{"type":"ack","code":"ABC123"}`},
		{"pong", PongEvent(), `{"type":"pong"}`},
		{"status", StatusEvent("Consumer alice connected"), `{"type":"server_status_update","message":"Consumer alice connected"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Encode(tt.msg)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))
		})
	}
}

func TestClientRequests(t *testing.T) {
	data, err := IdentifyRequest(domain.ClientTypeProducer, "m1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"identify","client_type":"producer","id":"m1"}`, string(data))

	data, err = IdentifyRequest(domain.ClientTypeConsumer, "alice")
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"identify","client_type":"consumer","username":"alice"}`, string(data))

	data, err = NewCodeRequest("XYZ")
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"new_code","code":"XYZ"}`, string(data))

	msg, err := DecodeOutbound([]byte(`{"type":"ack","code":"XYZ"}`))
	require.NoError(t, err)
	assert.Equal(t, AckEvent("XYZ"), msg)
}
