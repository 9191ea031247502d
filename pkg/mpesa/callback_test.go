package mpesa

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const successCallbackJSON = `{
  "Body": {
    "stkCallback": {
      "MerchantRequestID": "29115-34620561-1",
      "CheckoutRequestID": "ws_CO_191220191020363925",
      "ResultCode": 0,
      "ResultDesc": "The service request is processed successfully.",
      "CallbackMetadata": {
        "Item": [
          {"Name": "Amount", "Value": 120000},
          {"Name": "MpesaReceiptNumber", "Value": "NLJ7RT61SV"},
          {"Name": "TransactionDate", "Value": 20191219102115},
          {"Name": "PhoneNumber", "Value": 254712345678}
        ]
      }
    }
  }
}`

const failureCallbackJSON = `{
  "Body": {
    "stkCallback": {
      "MerchantRequestID": "29115-34620561-1",
      "CheckoutRequestID": "ws_CO_191220191020363925",
      "ResultCode": 1032,
      "ResultDesc": "Request cancelled by user"
    }
  }
}`

func TestCallbackEnvelopeSuccess(t *testing.T) {
	var envelope CallbackEnvelope
	require.NoError(t, json.Unmarshal([]byte(successCallbackJSON), &envelope))

	callback := envelope.Body.StkCallback
	assert.True(t, callback.Succeeded())
	assert.Equal(t, "ws_CO_191220191020363925", callback.CheckoutRequestID)

	receipt, ok := callback.MetadataString("MpesaReceiptNumber")
	require.True(t, ok)
	assert.Equal(t, "NLJ7RT61SV", receipt)

	amount, ok := callback.MetadataInt64("Amount")
	require.True(t, ok)
	assert.Equal(t, int64(120000), amount)
}

func TestCallbackEnvelopeFailure(t *testing.T) {
	var envelope CallbackEnvelope
	require.NoError(t, json.Unmarshal([]byte(failureCallbackJSON), &envelope))

	callback := envelope.Body.StkCallback
	assert.False(t, callback.Succeeded())
	assert.Equal(t, 1032, callback.ResultCode)
	assert.Equal(t, "Request cancelled by user", callback.ResultDesc)

	_, ok := callback.MetadataString("MpesaReceiptNumber")
	assert.False(t, ok, "failure callbacks carry no metadata")
}

func TestMetadataLookupIsKeyedNotPositional(t *testing.T) {
	// Same fields, shuffled order: the lookup must not care.
	callback := StkCallback{
		ResultCode: 0,
		CallbackMetadata: &CallbackMetadata{Item: []MetadataItem{
			{Name: "PhoneNumber", Value: float64(254712345678)},
			{Name: "MpesaReceiptNumber", Value: "NLJ7RT61SV"},
			{Name: "Amount", Value: float64(120000)},
		}},
	}

	receipt, ok := callback.MetadataString("MpesaReceiptNumber")
	require.True(t, ok)
	assert.Equal(t, "NLJ7RT61SV", receipt)

	amount, ok := callback.MetadataInt64("Amount")
	require.True(t, ok)
	assert.Equal(t, int64(120000), amount)

	_, ok = callback.MetadataString("Balance")
	assert.False(t, ok)
}

func TestMetadataInt64RejectsFractions(t *testing.T) {
	callback := StkCallback{
		CallbackMetadata: &CallbackMetadata{Item: []MetadataItem{
			{Name: "Amount", Value: float64(1200.5)},
		}},
	}
	_, ok := callback.MetadataInt64("Amount")
	assert.False(t, ok)
}
