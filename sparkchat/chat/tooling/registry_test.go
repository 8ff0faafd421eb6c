package tooling

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoProc(ctx context.Context, call CallContext, args json.RawMessage) (any, error) {
	return string(args), nil
}

func declWith(name string) Declaration {
	return Declaration{
		Name:        name,
		Description: "test tool",
		Parameters: map[string]Param{
			"value": {Type: "string", Description: "a value", Required: true},
		},
	}
}

func TestRegister_RegistrationOrder(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"charlie", "alpha", "bravo"} {
		require.NoError(t, r.Register(declWith(name), echoProc))
	}
	r.Freeze()

	decls := r.Declarations()
	require.Len(t, decls, 3)
	assert.Equal(t, "charlie", decls[0].Name)
	assert.Equal(t, "alpha", decls[1].Name)
	assert.Equal(t, "bravo", decls[2].Name)

	specs := r.Specs()
	require.Len(t, specs, 3)
	assert.Equal(t, "charlie", specs[0].Name)
	assert.Equal(t, "test tool", specs[0].Description)
	assert.NotEmpty(t, specs[0].JSONSchema)
}

func TestRegister_Rejections(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(declWith("dup"), echoProc))

	err := r.Register(declWith("dup"), echoProc)
	assert.ErrorIs(t, err, ErrDuplicateTool)

	err = r.Register(Declaration{}, echoProc)
	assert.ErrorIs(t, err, ErrEmptyToolName)

	err = r.Register(declWith("nil_proc"), nil)
	assert.ErrorIs(t, err, ErrNilProcedure)

	r.Freeze()
	err = r.Register(declWith("late"), echoProc)
	assert.ErrorIs(t, err, ErrRegistryFrozen)
}

func TestDeclaration_JSONSchema(t *testing.T) {
	decl := Declaration{
		Name: "save_memory",
		Parameters: map[string]Param{
			"content": {Type: "string", Description: "what to remember", Required: true},
			"tag":     {Type: "string", Description: "optional label"},
		},
	}

	var schema struct {
		Type       string                     `json:"type"`
		Properties map[string]json.RawMessage `json:"properties"`
		Required   []string                   `json:"required"`
	}
	require.NoError(t, json.Unmarshal(decl.JSONSchema(), &schema))

	assert.Equal(t, "object", schema.Type)
	assert.Len(t, schema.Properties, 2)
	assert.Equal(t, []string{"content"}, schema.Required)
}
