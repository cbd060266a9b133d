package gateway

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScalar_AcceptsStringsAndNumbers(t *testing.T) {
	tests := []struct {
		name string
		body string
		want Scalar
	}{
		{name: "string", body: `{"v":"evt-9"}`, want: "evt-9"},
		{name: "integer", body: `{"v":42}`, want: "42"},
		{name: "decimal keeps its digits", body: `{"v":15.50}`, want: "15.50"},
		{name: "null", body: `{"v":null}`, want: ""},
		{name: "absent", body: `{}`, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out struct {
				V Scalar `json:"v"`
			}
			require.NoError(t, json.Unmarshal([]byte(tt.body), &out))
			assert.Equal(t, tt.want, out.V)
		})
	}
}

func TestScalar_RejectsOtherTypes(t *testing.T) {
	var out struct {
		V Scalar `json:"v"`
	}
	assert.Error(t, json.Unmarshal([]byte(`{"v":true}`), &out))
	assert.Error(t, json.Unmarshal([]byte(`{"v":{"id":1}}`), &out))
}

func TestScalar_EncodesAsString(t *testing.T) {
	data, err := json.Marshal(struct {
		V Scalar `json:"v"`
	}{V: "42"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":"42"}`, string(data))
}
