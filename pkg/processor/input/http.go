package input

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"sort"
	"strings"

	"github.com/morezero/usecase-executor/pkg/options"
	"github.com/morezero/usecase-executor/pkg/usecase"
)

const httpLogPrefix = "input:http"

// DefaultHTTPOrder is the source order HTTP uses when the "order" option is
// not set: query, post form, files, cookies, server, headers, attributes.
const DefaultHTTPOrder = "GPFCSHA"

const maxMultipartMemory = 32 << 20

// HTTP copies data from an *http.Request onto the request like Array. The
// sources are merged in the "order" option, later letters overriding earlier
// ones; letters may be omitted:
//
//	G  query parameters
//	P  post form fields
//	F  uploaded files (*multipart.FileHeader)
//	C  cookies
//	S  server values: method, host, remote_addr, request_uri, proto
//	H  headers, lower-cased names
//	A  attributes attached with WithAttributes
//
// The "map" option applies as for Array. Other inputs leave the request
// untouched.
type HTTP struct{}

// InitializeRequest implements Processor.
func (HTTP) InitializeRequest(ctx context.Context, request interface{}, input interface{}, opts *options.Map) error {
	r, ok := input.(*http.Request)
	if !ok {
		return nil
	}
	order, ok := opts.String("order")
	if !ok {
		order = DefaultHTTPOrder
	}

	merged := options.New()
	for _, letter := range order {
		src, err := httpSource(r, letter)
		if err != nil {
			return err
		}
		src.Each(func(k string, v interface{}) bool {
			merged.Set(k, v)
			return true
		})
	}
	return populate(request, merged, opts)
}

func httpSource(r *http.Request, letter rune) (*options.Map, error) {
	switch letter {
	case 'G':
		return fromMultiValues(r.URL.Query()), nil
	case 'P':
		if err := parseForm(r); err != nil {
			return nil, err
		}
		return fromMultiValues(r.PostForm), nil
	case 'F':
		if err := parseForm(r); err != nil {
			return nil, err
		}
		return files(r), nil
	case 'C':
		out := options.New()
		for _, c := range r.Cookies() {
			out.Set(c.Name, c.Value)
		}
		return out, nil
	case 'S':
		return options.New(
			options.Pair{Key: "method", Value: r.Method},
			options.Pair{Key: "host", Value: r.Host},
			options.Pair{Key: "remote_addr", Value: r.RemoteAddr},
			options.Pair{Key: "request_uri", Value: r.RequestURI},
			options.Pair{Key: "proto", Value: r.Proto},
		), nil
	case 'H':
		headers := make(map[string][]string, len(r.Header))
		for k, v := range r.Header {
			headers[strings.ToLower(k)] = v
		}
		return fromMultiValues(headers), nil
	case 'A':
		return options.MustFrom(AttributesFromRequest(r)), nil
	}
	return nil, fmt.Errorf("%s - unknown source %q in order option", httpLogPrefix, letter)
}

func parseForm(r *http.Request) error {
	if r.PostForm != nil {
		return nil
	}
	var err error
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		err = r.ParseMultipartForm(maxMultipartMemory)
	} else {
		err = r.ParseForm()
	}
	if err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return usecase.WrapAlternativeCourse(400, "malformed form data", err)
	}
	return nil
}

func files(r *http.Request) *options.Map {
	out := options.New()
	if r.MultipartForm == nil {
		return out
	}
	names := make([]string, 0, len(r.MultipartForm.File))
	for name := range r.MultipartForm.File {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		headers := r.MultipartForm.File[name]
		switch len(headers) {
		case 0:
		case 1:
			out.Set(name, headers[0])
		default:
			out.Set(name, append([]*multipart.FileHeader(nil), headers...))
		}
	}
	return out
}

type attributesKey struct{}

// WithAttributes returns a shallow copy of r carrying attrs for the 'A'
// source, merged over attributes already attached.
func WithAttributes(r *http.Request, attrs map[string]interface{}) *http.Request {
	merged := make(map[string]interface{})
	for k, v := range AttributesFromRequest(r) {
		merged[k] = v
	}
	for k, v := range attrs {
		merged[k] = v
	}
	return r.WithContext(context.WithValue(r.Context(), attributesKey{}, merged))
}

// AttributesFromRequest returns the attributes attached with WithAttributes.
func AttributesFromRequest(r *http.Request) map[string]interface{} {
	attrs, _ := r.Context().Value(attributesKey{}).(map[string]interface{})
	return attrs
}
