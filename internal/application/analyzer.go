package application

import (
	"context"
	"fmt"

	"github.com/Alashybay/ai-voice-agent-evaluator/internal/domain"
)

// Generator is a synchronous text-generation service. One call per
// analysis, no streaming; the call may take tens of seconds.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// QAAnalyzer renders transcripts into the QA rubric and hands the prompt
// to a text-generation backend. The response comes back unmodified so
// the grade extractor sees exactly what the model wrote.
type QAAnalyzer struct {
	generator Generator
}

func NewQAAnalyzer(generator Generator) *QAAnalyzer {
	return &QAAnalyzer{generator: generator}
}

func (a *QAAnalyzer) Analyze(ctx context.Context, transcript string) (string, error) {
	response, err := a.generator.Generate(ctx, domain.RenderRubric(transcript))
	if err != nil {
		return "", fmt.Errorf("generating analysis: %w", err)
	}
	return response, nil
}
