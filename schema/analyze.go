package schema

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mycok/seqindexer/searchindex/index"
)

// Analyze runs text through the named analyzer of the target index and
// returns the produced tokens.
func Analyze(
	ctx context.Context, client index.Client, target index.Target, analyzer, text string,
) ([]string, error) {
	res, err := client.Send(ctx, http.MethodPost, target.AnalyzePath(), map[string]string{
		"analyzer": analyzer,
		"text":     text,
	})
	if err != nil {
		return nil, fmt.Errorf("analyze: %w", err)
	}

	var out struct {
		Tokens []struct {
			Token string `json:"token"`
		} `json:"tokens"`
	}
	if err = res.Decode(&out); err != nil {
		return nil, fmt.Errorf("analyze: %w", err)
	}

	tokens := make([]string, 0, len(out.Tokens))
	for _, t := range out.Tokens {
		tokens = append(tokens, t.Token)
	}

	return tokens, nil
}
