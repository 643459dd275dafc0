package promptgen

import (
	"context"
	"fmt"
	"strings"
)

// variations are appended to a seed prompt when the template generator has
// to derive something new from it.
var variations = []string{
	"at golden hour",
	"in the rain",
	"shot from above",
	"in slow motion",
	"at night under neon lights",
	"on a foggy morning",
}

// Template implements Generator without calling any external API. It
// derives a new prompt by combining the closest seed with a rotating
// variation. Used as the fallback when the Claude API is unavailable and
// as the sole generator in environments without an API key.
type Template struct {
	next int
}

// NewTemplate creates a new template-based prompt generator.
func NewTemplate() *Template {
	return &Template{}
}

// GeneratePrompt derives a prompt from the first seed. With no seeds it
// falls back to a generic scenic prompt so generation never stalls.
func (t *Template) GeneratePrompt(_ context.Context, seedPrompts []string) (string, error) {
	if len(seedPrompts) == 0 {
		return "a cinematic aerial shot of a dramatic landscape", nil
	}

	seed := strings.TrimSpace(seedPrompts[0])
	variation := variations[t.next%len(variations)]
	t.next++

	return fmt.Sprintf("%s, %s", seed, variation), nil
}
