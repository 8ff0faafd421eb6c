package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ZanzyTHEbar/sparkchat/sparkchat/chat/tooling"
	"github.com/ZanzyTHEbar/sparkchat/sparkchat/memory"
)

const defaultRecallLimit = 10

// RecallMemoryDeclaration describes the recall_memory tool.
func RecallMemoryDeclaration() tooling.Declaration {
	return tooling.Declaration{
		Name:        "recall_memory",
		Description: "Search previously saved memories about the user.",
		Parameters: map[string]tooling.Param{
			"query": {
				Type:        "string",
				Description: "Text to search saved memories for",
				Required:    true,
			},
			"limit": {
				Type:        "integer",
				Description: "Maximum number of memories to return",
			},
		},
	}
}

// RecallMemoryProcedure returns the procedure searching memory records.
func RecallMemoryProcedure(store memory.Store) tooling.Procedure {
	return func(ctx context.Context, call tooling.CallContext, args json.RawMessage) (any, error) {
		var params struct {
			Query string `json:"query"`
			Limit int    `json:"limit"`
		}
		if err := json.Unmarshal(args, &params); err != nil {
			return nil, fmt.Errorf("%w: %v", tooling.ErrInvalidToolInput, err)
		}
		if params.Limit <= 0 {
			params.Limit = defaultRecallLimit
		}

		recs, err := store.Search(ctx, call.UserID, params.Query, params.Limit)
		if err != nil {
			return nil, err
		}

		type hit struct {
			Content   string `json:"content"`
			CreatedAt string `json:"created_at"`
		}
		hits := make([]hit, 0, len(recs))
		for _, rec := range recs {
			hits = append(hits, hit{Content: rec.Content, CreatedAt: rec.CreatedAt.Format("2006-01-02")})
		}
		return map[string]any{"memories": hits}, nil
	}
}
