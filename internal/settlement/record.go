package settlement

import (
	"bytes"
	"encoding/json"

	"github.com/GhasemiTaheri/aban-exchange/pkg/models"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// EncodeRequest validates req and renders it as a queue record
func EncodeRequest(req models.OrderRequest) ([]byte, error) {
	if err := validate.Struct(req); err != nil {
		return nil, ErrMalformedRecord.Wrap(err)
	}
	raw, err := json.Marshal(req)
	if err != nil {
		return nil, ErrMalformedRecord.Wrap(err)
	}
	return raw, nil
}

// DecodeRequest parses a queue record. Unknown fields, trailing data and
// non-positive amounts or prices are all malformed.
func DecodeRequest(raw []byte) (models.OrderRequest, error) {
	var req models.OrderRequest

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return models.OrderRequest{}, ErrMalformedRecord.Wrap(err)
	}
	if dec.More() {
		return models.OrderRequest{}, ErrMalformedRecord.New("trailing data after record")
	}
	if err := validate.Struct(req); err != nil {
		return models.OrderRequest{}, ErrMalformedRecord.Wrap(err)
	}
	return req, nil
}
