package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_valid(t *testing.T) {
	var req struct {
		PhoneNumber string `json:"phoneNumber"`
		OTP         string `json:"otp"`
	}
	err := VerifyOTP.Decode(strings.NewReader(`{"phoneNumber":"555","otp":"123456"}`), &req)
	require.NoError(t, err)
	assert.Equal(t, "555", req.PhoneNumber)
	assert.Equal(t, "123456", req.OTP)
}

func TestDecode_missingField(t *testing.T) {
	var req map[string]any
	err := VerifyOTP.Decode(strings.NewReader(`{"phoneNumber":"555"}`), &req)
	require.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, Message(err), "otp")
}

func TestValidate_rejects(t *testing.T) {
	cases := map[string]string{
		"empty":         ``,
		"not json":      `{phone`,
		"wrong type":    `{"phoneNumber": 555}`,
		"empty string":  `{"phoneNumber": ""}`,
		"not an object": `["555"]`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, LoginOTP.Validate([]byte(body)), ErrInvalid)
		})
	}
}

func TestKeyExchange_acceptsStringOrObject(t *testing.T) {
	assert.NoError(t, KeyExchange.Validate([]byte(`{"clientPublicKey":"BASE64"}`)))
	assert.NoError(t, KeyExchange.Validate([]byte(`{"clientPublicKey":{"kty":"EC"}}`)))
	assert.ErrorIs(t, KeyExchange.Validate([]byte(`{"clientPublicKey":42}`)), ErrInvalid)
}
