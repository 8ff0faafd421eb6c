// Package tools holds the built-in tool procedures exposed to the model.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/sparkchat/sparkchat/chat/tooling"
	"github.com/ZanzyTHEbar/sparkchat/sparkchat/memory"
	"github.com/google/uuid"
)

// SaveMemoryDeclaration describes the save_memory tool.
func SaveMemoryDeclaration() tooling.Declaration {
	return tooling.Declaration{
		Name:        "save_memory",
		Description: "Persist a fact about the user so later conversations can recall it.",
		Parameters: map[string]tooling.Param{
			"content": {
				Type:        "string",
				Description: "The fact to remember, phrased as a standalone sentence",
				Required:    true,
			},
		},
	}
}

// SaveMemoryProcedure returns the procedure writing memory records. Each call
// commits independently; a failed save never touches the transcript.
func SaveMemoryProcedure(store memory.Store) tooling.Procedure {
	return func(ctx context.Context, call tooling.CallContext, args json.RawMessage) (any, error) {
		var params struct {
			Content string `json:"content"`
		}
		if err := json.Unmarshal(args, &params); err != nil {
			return nil, fmt.Errorf("%w: %v", tooling.ErrInvalidToolInput, err)
		}
		if strings.TrimSpace(params.Content) == "" {
			return nil, fmt.Errorf("%w: content must not be empty", tooling.ErrInvalidToolInput)
		}

		rec := memory.Record{
			ID:        uuid.New().String(),
			UserID:    call.UserID,
			Content:   params.Content,
			CreatedAt: time.Now().UTC(),
		}
		if err := store.Save(ctx, rec); err != nil {
			return nil, err
		}

		return map[string]string{"status": "saved", "memory_id": rec.ID}, nil
	}
}
