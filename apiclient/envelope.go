package apiclient

import (
	"bytes"
	"encoding/json"
	"net/http"
)

// Code is a response code the backend sends either as a string or a number.
type Code string

func (c *Code) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*c = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = Code(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*c = Code(n.String())
	return nil
}

// Envelope is the backend's success wrapper.
type Envelope struct {
	Data            json.RawMessage `json:"data"`
	CustomerMessage string          `json:"customerMessage"`
	ResponseCode    Code            `json:"responseCode"`
	ResponseDesc    string          `json:"responseDesc"`
}

// Response is a completed HTTP exchange with its body already read.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Envelope parses the body as an Envelope.
func (r *Response) Envelope() (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(r.Body, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// Decode unmarshals the envelope's data into out, or the whole body when the
// response is not enveloped.
func (r *Response) Decode(out any) error {
	if out == nil || len(bytes.TrimSpace(r.Body)) == 0 {
		return nil
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(r.Body, &probe); err == nil {
		if data, ok := probe["data"]; ok {
			return json.Unmarshal(data, out)
		}
	}
	return json.Unmarshal(r.Body, out)
}
