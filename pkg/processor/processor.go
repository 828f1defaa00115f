// Package processor holds what input and response processors share: their
// error types and the step layout of composite processor options.
package processor

import (
	"github.com/morezero/usecase-executor/pkg/options"
)

// CompositeName is the reserved registry name of the composite processors.
const CompositeName = "composite"

// Step is one entry of a composite processor: the name of a registered
// processor and the options it runs with.
type Step struct {
	Name    string
	Options *options.Map
}

// SplitSteps returns the steps of composite options. Entries whose value is
// an option map (or nil) are steps, kept in key order; any other entry is a
// global option. Each step's options are the globals overlaid with the step's
// own entries, so per-step values win.
func SplitSteps(opts *options.Map) []Step {
	global := options.New()
	type rawStep struct {
		name string
		opts *options.Map
	}
	var raw []rawStep

	opts.Each(func(key string, value interface{}) bool {
		if stepOpts, ok := stepOptions(value); ok {
			raw = append(raw, rawStep{name: key, opts: stepOpts})
			return true
		}
		global.Set(key, value)
		return true
	})

	steps := make([]Step, 0, len(raw))
	for _, s := range raw {
		steps = append(steps, Step{Name: s.name, Options: options.Merge(global, s.opts)})
	}
	return steps
}

func stepOptions(value interface{}) (*options.Map, bool) {
	switch value.(type) {
	case nil, *options.Map, options.Map, map[string]interface{}, map[string]string:
		return options.From(value)
	}
	return nil, false
}
