package stream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeTick(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"tick","payload":{"code":"KRW-BTC","trade_price":101,"trade_timestamp":1700000000123}}`))
	require.NoError(t, err)
	assert.Equal(t, TypeTick, msg.Type)
	require.NotNil(t, msg.Tick)
	assert.Equal(t, "KRW-BTC", msg.Tick.Symbol)
	assert.Equal(t, 101.0, msg.Tick.Price)
	assert.Equal(t, time.UnixMilli(1700000000123).UTC(), msg.Tick.Time.UTC())
}

func TestDecodeLogAndInfo(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"log","payload":{"message":"boom","level":"error"}}`))
	require.NoError(t, err)
	assert.Equal(t, TypeLog, msg.Type)
	assert.Equal(t, "boom", msg.Log.Message)
	assert.Equal(t, "error", msg.Log.Level)

	msg, err = Decode([]byte(`{"type":"info","payload":{"message":"hello"}}`))
	require.NoError(t, err)
	assert.Equal(t, TypeInfo, msg.Type)
	assert.Equal(t, "info", msg.Log.Level)
}

func TestDecodeRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"not json":     `{{`,
		"missing code": `{"type":"tick","payload":{"trade_price":1,"trade_timestamp":1}}`,
		"zero price":   `{"type":"tick","payload":{"code":"KRW-BTC","trade_price":0,"trade_timestamp":1}}`,
		"bad payload":  `{"type":"tick","payload":"nope"}`,
		"no timestamp": `{"type":"tick","payload":{"code":"KRW-BTC","trade_price":1}}`,
	}
	for name, raw := range cases {
		_, err := Decode([]byte(raw))
		assert.ErrorIs(t, err, ErrMalformed, name)
	}

	_, err := Decode([]byte(`{"type":"orderbook","payload":{}}`))
	assert.ErrorIs(t, err, ErrUnknownType)
}
