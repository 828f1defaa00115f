package usecase

import (
	"context"
	"fmt"
	"reflect"
)

// EntryPoint is the method name a handler must expose.
const EntryPoint = "Execute"

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// Binding is a handler's Execute method prepared for reflective calls.
type Binding struct {
	handler      interface{}
	method       reflect.Value
	takesContext bool
	param        reflect.Type
	returnsValue bool
}

// Bind inspects handler's Execute method. A missing method or an unsupported
// signature yields a *RequestTypeNotFoundError.
func Bind(handler interface{}) (*Binding, error) {
	if handler == nil {
		return nil, &RequestTypeNotFoundError{Reason: "use case handler is nil"}
	}
	method := reflect.ValueOf(handler).MethodByName(EntryPoint)
	if !method.IsValid() {
		return nil, &RequestTypeNotFoundError{
			Reason: fmt.Sprintf("%T has no %s method", handler, EntryPoint),
		}
	}

	mt := method.Type()
	b := &Binding{handler: handler, method: method}

	in := 0
	if mt.NumIn() > 0 && mt.In(0) == contextType {
		b.takesContext = true
		in = 1
	}
	switch mt.NumIn() - in {
	case 0:
	case 1:
		b.param = mt.In(in)
	default:
		return nil, &RequestTypeNotFoundError{
			Reason: fmt.Sprintf("%T.%s takes %d parameters, want at most a context and a request", handler, EntryPoint, mt.NumIn()),
		}
	}

	switch {
	case mt.NumOut() == 1 && mt.Out(0) == errorType:
	case mt.NumOut() == 2 && mt.Out(1) == errorType:
		b.returnsValue = true
	default:
		return nil, &RequestTypeNotFoundError{
			Reason: fmt.Sprintf("%T.%s must return (response, error) or error", handler, EntryPoint),
		}
	}
	return b, nil
}

// Handler returns the bound handler.
func (b *Binding) Handler() interface{} {
	return b.handler
}

// Parameter returns the declared request parameter type, or nil when Execute
// takes no request.
func (b *Binding) Parameter() reflect.Type {
	return b.param
}

// DeclaredType returns the concrete request type named by the Execute
// signature (pointer parameters are dereferenced). It returns false when the
// parameter is missing or is an interface.
func (b *Binding) DeclaredType() (reflect.Type, bool) {
	if b.param == nil || b.param.Kind() == reflect.Interface {
		return nil, false
	}
	if b.param.Kind() == reflect.Pointer {
		return b.param.Elem(), true
	}
	return b.param, true
}

// Accepts reports whether a request built as reflect.New(t) can be passed to
// Execute.
func (b *Binding) Accepts(t reflect.Type) bool {
	if b.param == nil {
		return true
	}
	ptr := reflect.PointerTo(t)
	return ptr.AssignableTo(b.param) || t.AssignableTo(b.param)
}

// Invoke calls Execute. request must be a pointer produced by reflect.New for
// a type accepted by the binding; it is ignored when Execute takes no request.
func (b *Binding) Invoke(ctx context.Context, request reflect.Value) (interface{}, error) {
	args := make([]reflect.Value, 0, 2)
	if b.takesContext {
		if ctx == nil {
			ctx = context.Background()
		}
		args = append(args, reflect.ValueOf(ctx))
	}
	if b.param != nil {
		arg, err := b.argument(request)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}

	out := b.method.Call(args)

	var err error
	if last := out[len(out)-1]; !last.IsNil() {
		err = last.Interface().(error)
	}
	if !b.returnsValue {
		return nil, err
	}
	return out[0].Interface(), err
}

func (b *Binding) argument(request reflect.Value) (reflect.Value, error) {
	if !request.IsValid() {
		return reflect.Zero(b.param), nil
	}
	if request.Type().AssignableTo(b.param) {
		return request, nil
	}
	if request.Kind() == reflect.Pointer && request.Elem().Type().AssignableTo(b.param) {
		return request.Elem(), nil
	}
	return reflect.Value{}, &RequestTypeNotFoundError{
		TypeName: request.Type().String(),
		Reason:   fmt.Sprintf("not assignable to %s parameter %s", EntryPoint, b.param),
	}
}
