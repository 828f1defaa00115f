package response

import (
	"net/http"
)

// HTTPOutput is a rendered HTTP response produced by the JSON and template
// renderers. Transports write it verbatim.
type HTTPOutput struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// NewHTTPOutput creates an HTTPOutput with the given status and content type.
func NewHTTPOutput(status int, contentType string, body []byte) *HTTPOutput {
	h := make(http.Header)
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	return &HTTPOutput{StatusCode: status, Header: h, Body: body}
}

// Write sends the output to w.
func (o *HTTPOutput) Write(w http.ResponseWriter) error {
	for k, vs := range o.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	status := o.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, err := w.Write(o.Body)
	return err
}
