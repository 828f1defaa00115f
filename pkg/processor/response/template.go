package response

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"

	"github.com/morezero/usecase-executor/pkg/options"
	"github.com/morezero/usecase-executor/pkg/processor"
	"github.com/morezero/usecase-executor/pkg/usecase"
)

const templateLogPrefix = "response:template"

const htmlContentType = "text/html; charset=utf-8"

// TemplateData is what templates are executed with.
type TemplateData struct {
	Response interface{}
	Input    interface{}
	Options  map[string]interface{}
	// Error is set for error templates.
	Error *usecase.AlternativeCourseError
}

// Template renders responses with named html/template templates.
//
// Options:
//   - template: required, the name of the template for successful responses
//   - error_template: optional, the template for alternative courses
//
// Alternative courses become a 404 output, rendered with error_template when
// it is set. Other errors are re-raised.
type Template struct {
	templates *template.Template
}

// NewTemplate creates a renderer over a parsed template set.
func NewTemplate(templates *template.Template) *Template {
	return &Template{templates: templates}
}

// ProcessResponse implements Processor.
func (t *Template) ProcessResponse(ctx context.Context, response interface{}, opts *options.Map) (interface{}, error) {
	name, ok := opts.String("template")
	if !ok || name == "" {
		return nil, &processor.MissingOptionError{Processor: "template", Option: "template"}
	}
	input, _ := processor.InputFromContext(ctx)
	return t.render(http.StatusOK, name, TemplateData{
		Response: response,
		Input:    input,
		Options:  opts.ToMap(),
	})
}

// HandleError implements Processor.
func (t *Template) HandleError(ctx context.Context, err error, opts *options.Map) (interface{}, error) {
	alt, ok := usecase.AsAlternativeCourse(err)
	if !ok {
		return nil, err
	}
	name, ok := opts.String("error_template")
	if !ok || name == "" {
		return NewHTTPOutput(http.StatusNotFound, "text/plain; charset=utf-8", []byte(alt.Message)), nil
	}
	input, _ := processor.InputFromContext(ctx)
	return t.render(http.StatusNotFound, name, TemplateData{
		Input:   input,
		Options: opts.ToMap(),
		Error:   alt,
	})
}

func (t *Template) render(status int, name string, data TemplateData) (*HTTPOutput, error) {
	if t.templates == nil {
		return nil, errors.New(templateLogPrefix + " - no templates have been provided")
	}
	var buf bytes.Buffer
	if err := t.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, fmt.Errorf("%s - failed to render %s: %w", templateLogPrefix, name, err)
	}
	return NewHTTPOutput(status, htmlContentType, buf.Bytes()), nil
}
