package tooling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	ports "github.com/ZanzyTHEbar/sparkchat/sparkchat/chat/ports"
	"github.com/sourcegraph/conc/pool"
	"github.com/xeipuuv/gojsonschema"
)

// Result is the outcome of one tool call. Content always holds something the
// model can read: the serialized success payload, or a human-readable failure
// message when Err is set. Err carries the failure class for callers that
// need to distinguish (ErrToolNotFound, ErrInvalidToolInput,
// ErrToolExecutionFailed).
type Result struct {
	Name    string
	Content string
	Err     error
}

// Dispatcher validates and executes tool calls against a frozen registry.
// Failures never escape Dispatch; each call is isolated.
type Dispatcher struct {
	registry    *Registry
	timeout     time.Duration
	concurrency int
	tracer      ports.Tracer
}

// NewDispatcher creates a dispatcher. timeout bounds every individual tool
// call, concurrency bounds parallel execution within one round.
func NewDispatcher(registry *Registry, timeout time.Duration, concurrency int, tracer ports.Tracer) *Dispatcher {
	if concurrency < 1 {
		concurrency = 1
	}
	if tracer == nil {
		tracer = ports.NoopTracer{}
	}
	return &Dispatcher{
		registry:    registry,
		timeout:     timeout,
		concurrency: concurrency,
		tracer:      tracer,
	}
}

// Dispatch runs a single tool call to a Result.
func (d *Dispatcher) Dispatch(ctx context.Context, call ports.ToolCall, cc CallContext) Result {
	e, ok := d.registry.lookup(call.Name)
	if !ok {
		return Result{
			Name:    call.Name,
			Content: fmt.Sprintf("tool %q is not available", call.Name),
			Err:     fmt.Errorf("%w: %q", ErrToolNotFound, call.Name),
		}
	}

	args := call.Args
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}

	if err := d.validate(e, args); err != nil {
		return Result{
			Name:    call.Name,
			Content: fmt.Sprintf("invalid input for tool %q: %v", call.Name, err),
			Err:     err,
		}
	}

	output, err := d.invoke(ctx, e, cc, args)
	if err != nil {
		d.tracer.Event(ctx, "tool_failed", map[string]any{"tool": call.Name, "error": err.Error()})
		return Result{
			Name:    call.Name,
			Content: fmt.Sprintf("tool %q failed: %v", call.Name, err),
			Err:     err,
		}
	}

	content, err := encodeOutput(output)
	if err != nil {
		return Result{
			Name:    call.Name,
			Content: fmt.Sprintf("tool %q produced an unencodable result", call.Name),
			Err:     fmt.Errorf("%w: encode output: %v", ErrToolExecutionFailed, err),
		}
	}

	return Result{Name: call.Name, Content: content}
}

// DispatchAll runs one round of tool calls concurrently, bounded by the
// configured concurrency, and returns results in call order.
func (d *Dispatcher) DispatchAll(ctx context.Context, calls []ports.ToolCall, cc CallContext) []Result {
	if len(calls) == 0 {
		return nil
	}

	results := make([]Result, len(calls))
	p := pool.New().WithMaxGoroutines(d.concurrency)
	for i, call := range calls {
		p.Go(func() {
			results[i] = d.Dispatch(ctx, call, cc)
		})
	}
	p.Wait()
	return results
}

// validate checks raw input against the declaration's compiled schema and
// the declared required fields.
func (d *Dispatcher) validate(e *entry, args json.RawMessage) error {
	if !json.Valid(args) {
		return fmt.Errorf("%w: arguments are not valid JSON", ErrInvalidToolInput)
	}

	res, err := e.schema.Validate(gojsonschema.NewBytesLoader(args))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToolInput, err)
	}
	if !res.Valid() {
		details := make([]string, 0, len(res.Errors()))
		for _, verr := range res.Errors() {
			details = append(details, verr.String())
		}
		return fmt.Errorf("%w: %s", ErrInvalidToolInput, strings.Join(details, "; "))
	}
	return nil
}

// invoke runs the procedure under the per-call timeout, converting panics and
// deadline hits into ErrToolExecutionFailed.
func (d *Dispatcher) invoke(ctx context.Context, e *entry, cc CallContext, args json.RawMessage) (any, error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	type outcome struct {
		output any
		err    error
	}
	ch := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome{err: fmt.Errorf("%w: panic: %v", ErrToolExecutionFailed, r)}
			}
		}()
		out, err := e.proc(ctx, cc, args)
		ch <- outcome{output: out, err: err}
	}()

	select {
	case res := <-ch:
		// Procedures may classify their own failures (e.g. a runtime-only
		// input check raising ErrInvalidToolInput); everything else becomes
		// an execution failure.
		if res.err != nil && !errors.Is(res.err, ErrToolExecutionFailed) && !errors.Is(res.err, ErrInvalidToolInput) {
			res.err = fmt.Errorf("%w: %v", ErrToolExecutionFailed, res.err)
		}
		return res.output, res.err
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrToolExecutionFailed, ctx.Err())
	}
}

func encodeOutput(output any) (string, error) {
	if s, ok := output.(string); ok {
		return s, nil
	}
	raw, err := json.Marshal(output)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
