package input

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/morezero/usecase-executor/pkg/options"
	"github.com/morezero/usecase-executor/pkg/usecase"
)

const jsonLogPrefix = "input:json"

// DefaultMaxJSONBody caps how much of a streamed body JSON reads.
const DefaultMaxJSONBody = 10 << 20

var errBodyTooLarge = errors.New("body too large")

// JSON decodes a JSON object body and copies it onto the request like Array
// (the "map" option applies). Accepted inputs are []byte, string, io.Reader
// and *http.Request; other inputs leave the request untouched. Malformed JSON
// is an alternative course with status 400; a streamed body longer than
// MaxBody is one with status 413.
type JSON struct {
	// MaxBody limits io.Reader and *http.Request bodies; zero means DefaultMaxJSONBody.
	MaxBody int64
}

// InitializeRequest implements Processor.
func (j JSON) InitializeRequest(ctx context.Context, request interface{}, input interface{}, opts *options.Map) error {
	limit := j.MaxBody
	if limit <= 0 {
		limit = DefaultMaxJSONBody
	}
	body, ok, err := readBody(input, limit)
	if errors.Is(err, errBodyTooLarge) {
		return usecase.WrapAlternativeCourse(http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", limit), err)
	}
	if err != nil {
		return usecase.WrapAlternativeCourse(400, "unable to read request body", err)
	}
	if !ok || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}

	decoded, err := options.DecodeJSON(body)
	if err != nil {
		return usecase.WrapAlternativeCourse(400, "malformed JSON body", err)
	}
	data, isObject := decoded.(*options.Map)
	if !isObject {
		return usecase.NewAlternativeCourse(400, fmt.Sprintf("JSON body must be an object, got %T", decoded))
	}
	return populate(request, data, opts)
}

func readBody(input interface{}, limit int64) ([]byte, bool, error) {
	switch t := input.(type) {
	case []byte:
		return t, true, nil
	case string:
		return []byte(t), true, nil
	case *http.Request:
		if t.Body == nil || t.Body == http.NoBody {
			return nil, true, nil
		}
		body, err := readLimited(t.Body, limit)
		t.Body.Close()
		if err != nil {
			return nil, true, err
		}
		// later steps may read the body again
		t.Body = io.NopCloser(bytes.NewReader(body))
		return body, true, nil
	case io.Reader:
		body, err := readLimited(t, limit)
		if err != nil {
			return nil, true, err
		}
		return body, true, nil
	}
	return nil, false, nil
}

// readLimited reads r up to limit bytes; one byte more is errBodyTooLarge.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("%s - %w", jsonLogPrefix, err)
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("%s - %w", jsonLogPrefix, errBodyTooLarge)
	}
	return body, nil
}
