package handlers

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// parseJSONStringMap flattens a JSON object into string values, which is how
// vnpay ships its IPN parameters.
func parseJSONStringMap(body []byte) map[string]string {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return map[string]string{}
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case string:
			out[k] = val
		case float64:
			out[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			out[k] = strconv.FormatBool(val)
		case nil:
			// skipped
		default:
			out[k] = fmt.Sprintf("%v", val)
		}
	}
	return out
}

// jsonStringField pulls a single top-level string field out of a JSON body.
// Missing keys and non-string values come back empty.
func jsonStringField(body []byte, key string) string {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw[key], &s); err != nil {
		return ""
	}
	return s
}

// sepaySignedDoc returns the byte range the sepay signature covers: the raw
// data member when the payload is wrapped, otherwise the whole body.
func sepaySignedDoc(body []byte) []byte {
	var raw struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &raw); err != nil || len(raw.Data) == 0 {
		return body
	}
	return raw.Data
}

// extractPaymentInfo maps each provider's payload shape onto the common
// payment fields. Unknown or malformed payloads yield zero values; the
// signature has already been verified at this point.
func extractPaymentInfo(provider string, body []byte) paymentInfo {
	switch provider {
	case "sepay":
		var p struct {
			ID             int64   `json:"id"`
			TransferAmount float64 `json:"transferAmount"`
			Content        string  `json:"content"`
			ReferenceCode  string  `json:"referenceCode"`
		}
		if err := json.Unmarshal(sepaySignedDoc(body), &p); err != nil {
			return paymentInfo{}
		}
		return paymentInfo{
			Amount:        p.TransferAmount,
			OrderRef:      p.Content,
			TransactionID: strconv.FormatInt(p.ID, 10),
		}
	case "casso":
		// Casso batches records under data; the shop only ever receives
		// single-element batches.
		var p struct {
			Data []struct {
				TID         string  `json:"tid"`
				Amount      float64 `json:"amount"`
				Description string  `json:"description"`
			} `json:"data"`
		}
		if err := json.Unmarshal(body, &p); err != nil || len(p.Data) == 0 {
			return paymentInfo{}
		}
		return paymentInfo{
			Amount:        p.Data[0].Amount,
			OrderRef:      p.Data[0].Description,
			TransactionID: p.Data[0].TID,
		}
	case "vnpay":
		params := parseJSONStringMap(body)
		// vnp_Amount is the VND amount multiplied by 100.
		amount, _ := strconv.ParseFloat(params["vnp_Amount"], 64)
		return paymentInfo{
			Amount:        amount / 100,
			OrderRef:      params["vnp_TxnRef"],
			TransactionID: params["vnp_TransactionNo"],
		}
	}
	return paymentInfo{}
}
