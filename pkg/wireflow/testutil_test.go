package wireflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/randalmurphal/wireflow/pkg/wireflow/hint"
)

// Node classes shared across tests. Class names are global, so each test
// file defines any extra classes under names of its own.

var errBoom = errors.New("boom")

func intPort(label string) PortSpec { return PortSpec{Label: label, Hint: hint.Of[int]()} }

func intPortDefault(label string, v int) PortSpec {
	return PortSpec{Label: label, Hint: hint.Of[int](), Default: Present(v)}
}

func plusOneFn(_ context.Context, in Values) (Values, error) {
	return Values{"y": in["x"].(int) + 1}, nil
}

func addFn(_ context.Context, in Values) (Values, error) {
	return Values{"add": in["obj"].(int) + in["other"].(int)}, nil
}

func lessThanFn(_ context.Context, in Values) (Values, error) {
	return Values{"lt": in["obj"].(int) < in["other"].(int)}, nil
}

func failFn(context.Context, Values) (Values, error) { return nil, errBoom }

func panicFn(context.Context, Values) (Values, error) { panic("kaboom") }

func missingOutputFn(context.Context, Values) (Values, error) { return Values{}, nil }

var (
	plusOne = DefineFunction("TestPlusOne", plusOneFn,
		[]PortSpec{intPortDefault("x", 0)}, []PortSpec{intPort("y")})

	add = DefineFunction("TestAdd", addFn,
		[]PortSpec{intPort("obj"), intPort("other")}, []PortSpec{intPort("add")})

	lessThan = DefineFunction("TestLessThan", lessThanFn,
		[]PortSpec{intPort("obj"), intPort("other")},
		[]PortSpec{{Label: "lt", Hint: hint.Of[bool]()}})

	// lessThanLoose returns bool but does not say so.
	lessThanLoose = DefineFunction("TestLessThanLoose", lessThanFn,
		[]PortSpec{intPort("obj"), intPort("other")}, []PortSpec{{Label: "lt"}})

	failing = DefineFunction("TestFailing", failFn,
		[]PortSpec{intPortDefault("x", 0)}, []PortSpec{intPort("y")})

	panicking = DefineFunction("TestPanicking", panicFn,
		[]PortSpec{intPortDefault("x", 0)}, []PortSpec{intPort("y")})

	missingOutput = DefineFunction("TestMissingOutput", missingOutputFn,
		[]PortSpec{intPortDefault("x", 0)}, []PortSpec{intPort("y")})
)

// recorder collects labels from concurrently running nodes.
type recorder struct {
	mu     sync.Mutex
	labels []string
}

func (r *recorder) add(label string) {
	r.mu.Lock()
	r.labels = append(r.labels, label)
	r.mu.Unlock()
}

func (r *recorder) got() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.labels...)
}

// newTracked defines a class that records its tag when it runs, after
// sleeping for delay, and passes x through to y.
func newTracked(name string, rec *recorder, tag string, delay time.Duration) *FunctionClass {
	return DefineFunction(name, func(_ context.Context, in Values) (Values, error) {
		if delay > 0 {
			time.Sleep(delay)
		}
		rec.add(tag)
		return Values{"y": in["x"]}, nil
	}, []PortSpec{{Label: "x", Default: Present(0)}}, []PortSpec{{Label: "y"}})
}

// mustNode builds a node from class or panics; construction errors are
// covered by their own tests.
func mustNode[N Node](n N, err error) N {
	if err != nil {
		panic(err)
	}
	return n
}

// testHandler captures log records for assertions.
type testHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *testHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *testHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	h.records = append(h.records, r)
	h.mu.Unlock()
	return nil
}

func (h *testHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *testHandler) WithGroup(string) slog.Handler      { return h }

func (h *testHandler) messages() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.records))
	for i, r := range h.records {
		out[i] = r.Message
	}
	return out
}
