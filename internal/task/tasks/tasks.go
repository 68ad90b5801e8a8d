// Package tasks holds the task bodies run by workers and the payload types
// shared with the API.
package tasks

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/stack-api/internal/task"
	"gonum.org/v1/gonum/stat/distuv"
)

var validate = validator.New()

// BinaryOperands is the payload of add and multiply.
type BinaryOperands struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
}

// MaxSummationLength bounds the chain built by SummationChain.
const MaxSummationLength = 10000

// BinaryIntegerOperands is the payload of multiply-by-summation.
type BinaryIntegerOperands struct {
	A int64 `json:"a"`
	B int64 `json:"b" validate:"gte=0,lte=10000"`
}

// SampleNormalPayload parameterizes a normal distribution.
type SampleNormalPayload struct {
	Loc   float64 `json:"loc"`
	Scale float64 `json:"scale" validate:"gt=0"`
}

// BinaryResult is returned by multiply and the wait endpoints.
type BinaryResult struct {
	S float64 `json:"s"`
}

// SampleResult is returned by sample-normal.
type SampleResult struct {
	S float64 `json:"s"`
}

// Add returns a+b from two positional arguments.
func Add(ctx context.Context, req *task.Request) (any, error) {
	var a, b float64
	if err := req.Arg(0, &a); err != nil {
		return nil, err
	}
	if err := req.Arg(1, &b); err != nil {
		return nil, err
	}
	return a + b, nil
}

// Multiply returns {s: a*b} from keyword arguments a and b.
func Multiply(ctx context.Context, req *task.Request) (any, error) {
	var p BinaryOperands
	if err := req.Kwarg("a", &p.A); err != nil {
		return nil, err
	}
	if err := req.Kwarg("b", &p.B); err != nil {
		return nil, err
	}
	return BinaryResult{S: p.A * p.B}, nil
}

// SampleNormal returns a handler drawing one sample of N(loc, scale) from src.
// A nil src uses the global source, which is safe for concurrent handlers.
func SampleNormal(src rand.Source) task.Handler {
	return func(ctx context.Context, req *task.Request) (any, error) {
		var p SampleNormalPayload
		if err := req.Kwarg("loc", &p.Loc); err != nil {
			return nil, err
		}
		if err := req.Kwarg("scale", &p.Scale); err != nil {
			return nil, err
		}
		if err := validate.Struct(p); err != nil {
			return nil, fmt.Errorf("%w: scale must be greater than 0", task.ErrInvalidArguments)
		}
		dist := distuv.Normal{Mu: p.Loc, Sigma: p.Scale, Src: src}
		return SampleResult{S: dist.Rand()}, nil
	}
}

// RegisterShared registers the tasks every worker runs.
func RegisterShared(r *task.Registry) error {
	return r.Register(task.NameAdd, Add)
}

// RegisterAlpha registers the tasks of the alpha worker.
func RegisterAlpha(r *task.Registry) error {
	if err := RegisterShared(r); err != nil {
		return err
	}
	return r.Register(task.NameMultiply, Multiply)
}

// RegisterBeta registers the tasks of the beta worker.
func RegisterBeta(r *task.Registry) error {
	if err := RegisterShared(r); err != nil {
		return err
	}
	return r.Register(task.NameSampleNormal, SampleNormal(nil))
}

// Workers maps worker names to their queues and task registrations.
var Workers = map[string]struct {
	Queues   []string
	Register func(*task.Registry) error
}{
	task.QueueAlpha: {Queues: []string{task.QueueAlpha, task.QueueShared}, Register: RegisterAlpha},
	task.QueueBeta:  {Queues: []string{task.QueueBeta, task.QueueShared}, Register: RegisterBeta},
}

// SummationChain computes a*b as repeated addition: add(a, a) followed by
// b-2 links of add(previous, a). It returns ok=false with the value when no
// task is needed (b is 0 or 1).
func SummationChain(p BinaryIntegerOperands) (links []task.Signature, value int64, ok bool, err error) {
	if err := validate.Struct(p); err != nil {
		return nil, 0, false, fmt.Errorf("%w: b must be between 0 and %d", task.ErrInvalidArguments, MaxSummationLength)
	}
	switch p.B {
	case 0:
		return nil, 0, false, nil
	case 1:
		return nil, p.A, false, nil
	}

	first, err := task.NewSignature(task.NameAdd, []any{p.A, p.A}, nil)
	if err != nil {
		return nil, 0, false, err
	}
	links = make([]task.Signature, 0, p.B-1)
	links = append(links, first)
	for i := int64(0); i < p.B-2; i++ {
		next, err := task.NewSignature(task.NameAdd, []any{p.A}, nil)
		if err != nil {
			return nil, 0, false, err
		}
		links = append(links, next)
	}
	return links, 0, true, nil
}
