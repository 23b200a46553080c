package suggest

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
)

// StaticGenerator returns suggestions from a fixed catalogue without calling
// any model. The choice depends only on the request.
type StaticGenerator struct {
	catalogue []Suggestion
}

// NewStaticGenerator returns a generator over the built-in catalogue.
func NewStaticGenerator() *StaticGenerator {
	return &StaticGenerator{catalogue: defaultFallbacks}
}

// Generate picks a catalogue entry keyed by theme, mood and prompt.
func (g *StaticGenerator) Generate(ctx context.Context, req Request) (*Suggestion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	req = req.Normalize()

	h := fnv.New32a()
	_, _ = h.Write([]byte(strings.Join([]string{req.Theme, req.Mood, req.Prompt}, "\x00")))
	s := g.catalogue[h.Sum32()%uint32(len(g.catalogue))]

	if req.Mood != "" {
		s.Body = fmt.Sprintf("%s (Para quando você se sente %s.)", s.Body, strings.ToLower(req.Mood))
	}
	s.Tags = append([]string(nil), s.Tags...)
	return &s, nil
}
