package tooling

import (
	"context"
	"encoding/json"
	"sort"
)

// Param describes one tool input parameter.
type Param struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Required    bool   `json:"-"`
}

// Declaration is the machine-readable schema of a callable capability, shown
// to the generative model. Immutable, defined at process start.
type Declaration struct {
	Name        string
	Description string
	Parameters  map[string]Param
}

// CallContext carries the identity of the request a tool call belongs to.
type CallContext struct {
	UserID         string
	ConversationID string
}

// Procedure is the server-side executable behind a declaration. Side effects
// are the procedure's responsibility; each call commits or fails on its own.
type Procedure func(ctx context.Context, call CallContext, args json.RawMessage) (any, error)

type schemaObject struct {
	Type       string           `json:"type"`
	Properties map[string]Param `json:"properties"`
	Required   []string         `json:"required"`
}

// JSONSchema renders the declaration as the function-calling parameter schema
// the provider expects: {type: object, properties, required}.
func (d Declaration) JSONSchema() []byte {
	required := make([]string, 0, len(d.Parameters))
	for name, p := range d.Parameters {
		if p.Required {
			required = append(required, name)
		}
	}
	sort.Strings(required)

	props := d.Parameters
	if props == nil {
		props = map[string]Param{}
	}

	out, err := json.Marshal(schemaObject{
		Type:       "object",
		Properties: props,
		Required:   required,
	})
	if err != nil {
		// Declarations are static data; marshaling them cannot fail.
		panic(err)
	}
	return out
}
