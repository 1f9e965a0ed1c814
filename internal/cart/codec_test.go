package cart

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodec_RoundTrip(t *testing.T) {
	p := paracetamol()
	p.SellingPrice = dec("12.3456789012345678")
	lines := []Line{{
		ProductID:      p.ID,
		Product:        p,
		Quantity:       7,
		UnitPrice:      p.SellingPrice,
		DiscountAmount: dec("0.0000000001"),
	}}
	lines[0].recompute()

	data, err := encode(lines, "cust-1")
	require.NoError(t, err)

	var envelope map[string]any
	require.NoError(t, json.Unmarshal(data, &envelope))
	assert.EqualValues(t, schemaVersion, envelope["version"])

	got, err := decode(data)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "cust-1", got.CustomerID)
	assertDecimal(t, "12.3456789012345678", got.Items[0].UnitPrice)
	assertDecimal(t, "0.0000000001", got.Items[0].DiscountAmount)
	assert.True(t, got.Items[0].LineTotal.Equal(lines[0].LineTotal))
}

func TestCodec_EmptyCart(t *testing.T) {
	data, err := encode(nil, "")
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":1,"items":[]}`, string(data))

	got, err := decode(data)
	require.NoError(t, err)
	assert.Empty(t, got.Items)
	assert.Empty(t, got.CustomerID)
}

func TestCodec_LegacyEnvelope(t *testing.T) {
	legacy := `{"state":{"items":[{"product_id":"1","product":{"id":"1","sku":"PARA-500","name_th":"x","selling_price":75,"is_vat_applicable":true,"vat_rate":7},"quantity":2,"unit_price":75,"discount_amount":10,"line_total":999}],"customer_id":"c-1"},"version":0}`

	got, err := decode([]byte(legacy))
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "c-1", got.CustomerID)
	assertDecimal(t, "140", got.Items[0].LineTotal)
	assert.True(t, got.Items[0].Product.IsVATApplicable)
}

func TestCodec_UnversionedPayload(t *testing.T) {
	got, err := decode([]byte(`{"items":[{"product_id":"9","quantity":1,"unit_price":"5","discount_amount":"0"}]}`))
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assertDecimal(t, "5", got.Items[0].LineTotal)
}

func TestCodec_IgnoresUnknownFields(t *testing.T) {
	got, err := decode([]byte(`{"version":1,"items":[],"payment_hint":"promptpay","customer_id":"c"}`))
	require.NoError(t, err)
	assert.Equal(t, "c", got.CustomerID)
}

func TestCodec_RejectsNewerVersion(t *testing.T) {
	_, err := decode([]byte(`{"version":2,"items":[]}`))
	assert.ErrorIs(t, err, ErrUnsupportedVersion)
}

func TestCodec_SanitizesLines(t *testing.T) {
	payload := `{"version":1,"items":[
		{"product_id":"a","quantity":1,"unit_price":"10","discount_amount":"0"},
		{"product_id":"a","quantity":2,"unit_price":"10","discount_amount":"0"},
		{"product_id":"","quantity":1,"unit_price":"10","discount_amount":"0"},
		{"product_id":"b","quantity":0,"unit_price":"10","discount_amount":"0"},
		{"product_id":"c","quantity":1,"unit_price":"10","discount_amount":"11"}
	]}`

	got, err := decode([]byte(payload))
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, 3, got.Items[0].Quantity)
	assertDecimal(t, "30", got.Items[0].LineTotal)
}

func TestOpen_CorruptOrNewerPayloadStartsEmpty(t *testing.T) {
	for _, payload := range []string{`not json`, `{"version":99,"items":[]}`} {
		storage := NewMemoryStorage()
		require.NoError(t, storage.Save(context.Background(), []byte(payload)))

		s := Open(context.Background(), storage, testLogger())
		assert.Empty(t, s.Lines())
		s.Close()
	}
}
