package mpesa

import (
	"encoding/json"
	"fmt"
)

// CallbackEnvelope is the nested payload Daraja POSTs to the merchant
// callback URL after the payer resolves (or abandons) the push prompt.
type CallbackEnvelope struct {
	Body struct {
		StkCallback StkCallback `json:"stkCallback"`
	} `json:"Body"`
}

type StkCallback struct {
	MerchantRequestID string            `json:"MerchantRequestID"`
	CheckoutRequestID string            `json:"CheckoutRequestID"`
	ResultCode        int               `json:"ResultCode"`
	ResultDesc        string            `json:"ResultDesc"`
	CallbackMetadata  *CallbackMetadata `json:"CallbackMetadata,omitempty"`
}

type CallbackMetadata struct {
	Item []MetadataItem `json:"Item"`
}

type MetadataItem struct {
	Name  string      `json:"Name"`
	Value interface{} `json:"Value,omitempty"`
}

func (c *StkCallback) Succeeded() bool {
	return c.ResultCode == 0
}

// MetadataString looks up a metadata field by name. Fields are matched by
// name, never by position; the provider does not guarantee item order.
func (c *StkCallback) MetadataString(name string) (string, bool) {
	item, ok := c.metadataItem(name)
	if !ok {
		return "", false
	}
	s, ok := item.Value.(string)
	return s, ok
}

// MetadataInt64 looks up a numeric metadata field by name. JSON numbers
// decode as float64; values that are not whole numbers are rejected.
func (c *StkCallback) MetadataInt64(name string) (int64, bool) {
	item, ok := c.metadataItem(name)
	if !ok {
		return 0, false
	}
	switch v := item.Value.(type) {
	case float64:
		if v != float64(int64(v)) {
			return 0, false
		}
		return int64(v), true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

func (c *StkCallback) metadataItem(name string) (MetadataItem, bool) {
	if c.CallbackMetadata == nil {
		return MetadataItem{}, false
	}
	for _, item := range c.CallbackMetadata.Item {
		if item.Name == name {
			return item, true
		}
	}
	return MetadataItem{}, false
}

// Ack is the body returned to the provider to stop redelivery.
type Ack struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

func AckAccepted() Ack {
	return Ack{ResultCode: 0, ResultDesc: "Accepted"}
}

func AckRejected(reason string) Ack {
	return Ack{ResultCode: 1, ResultDesc: fmt.Sprintf("Rejected: %s", reason)}
}
