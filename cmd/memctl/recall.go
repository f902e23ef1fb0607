package main

import (
	"encoding/json"
	"fmt"

	"github.com/go-ports/echovault/internal/model"
)

// recallHit mirrors the JSON shape internal/mcpserver's handleRecall
// produces for each result, just enough of it to render a model.Memory.
type recallHit struct {
	MemoryID   string   `json:"memory_id"`
	Content    string   `json:"content"`
	Kind       string   `json:"kind"`
	Importance float64  `json:"importance"`
	Tags       []string `json:"tags"`
	Source     string   `json:"source"`
	Pinned     bool     `json:"pinned"`
}

type recallEnvelope struct {
	Results []recallHit `json:"results"`
}

func decodeRecallResults(text string) ([]*model.Memory, error) {
	var env recallEnvelope
	if err := json.Unmarshal([]byte(text), &env); err != nil {
		return nil, fmt.Errorf("memctl: decode recall results: %w", err)
	}
	out := make([]*model.Memory, 0, len(env.Results))
	for _, h := range env.Results {
		out = append(out, &model.Memory{
			ID: h.MemoryID, Kind: model.Kind(h.Kind), Content: h.Content,
			Importance: h.Importance, Tags: h.Tags, Source: h.Source, Pinned: h.Pinned,
		})
	}
	return out, nil
}
