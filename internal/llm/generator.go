// Package llm provides the text-generation collaborator Guild agents consult.
// The production implementation wraps the Anthropic SDK; tests substitute a
// stub. Callers must tolerate malformed output: a Generator promises a string
// or an error, never a schema.
package llm

import "context"

// Generator produces text for a prompt under a system prompt. Implementations
// must honor context cancellation; a cancelled call returns ctx.Err().
type Generator interface {
	GenerateText(ctx context.Context, prompt, systemPrompt string) (string, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, prompt, systemPrompt string) (string, error)

// GenerateText implements Generator.
func (f GeneratorFunc) GenerateText(ctx context.Context, prompt, systemPrompt string) (string, error) {
	return f(ctx, prompt, systemPrompt)
}
