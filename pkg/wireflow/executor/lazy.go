package executor

import (
	"fmt"
	"sync"

	"github.com/randalmurphal/wireflow/pkg/wireflow/config"
	"github.com/randalmurphal/wireflow/pkg/wireflow/registry"
)

// Constructor builds an executor from serializable arguments.
type Constructor func(args config.Config) (Executor, error)

var constructors = registry.New[string, Constructor]()

func init() {
	constructors.Register("pool", func(args config.Config) (Executor, error) {
		return NewPool(args.Int("workers", 0)), nil
	})
}

// Register makes a constructor available to lazy instructions by name.
func Register(name string, c Constructor) error {
	return constructors.RegisterOnce(name, c)
}

// Instructions describe how to build an executor rather than holding one.
// They survive serialization, and the executor is constructed on first
// Submit.
type Instructions struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`

	mu    sync.Mutex
	built Executor
}

// Compile-time interface check.
var _ Executor = (*Instructions)(nil)

// Lazy returns instructions for the named constructor.
func Lazy(name string, args map[string]any) *Instructions {
	return &Instructions{Name: name, Args: args}
}

// Build returns the executor, constructing it once.
func (i *Instructions) Build() (Executor, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.built != nil {
		return i.built, nil
	}
	c, ok := constructors.Get(i.Name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownExecutor, i.Name)
	}
	e, err := c(config.New(i.Args))
	if err != nil {
		return nil, fmt.Errorf("build executor %q: %w", i.Name, err)
	}
	i.built = e
	return e, nil
}

// Submit implements Executor.
func (i *Instructions) Submit(task Task) (*Future, error) {
	e, err := i.Build()
	if err != nil {
		return nil, err
	}
	return e.Submit(task)
}

// Shutdown implements Executor. The instructions can build a fresh
// executor afterwards.
func (i *Instructions) Shutdown(wait, cancelFutures bool) {
	i.mu.Lock()
	e := i.built
	i.built = nil
	i.mu.Unlock()
	if e != nil {
		e.Shutdown(wait, cancelFutures)
	}
}
