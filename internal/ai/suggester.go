// Package ai proposes workflow templates with an LLM. Generation is an
// ordinary cancellable request/response task; callers that lose interest
// cancel the context and get ctx.Err back.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/docuflow/approval-engine/internal/application/port"
	"github.com/docuflow/approval-engine/internal/domain/entity"
)

const suggestSystemPrompt = "You are a document-control specialist designing approval workflows for an enterprise document management system. " +
	"Given a department and a description of its documents, propose an ordered list of approval steps. " +
	"Each step has a role (one of PREPARATOR, REVIEWER, APPROVER, MANAGER), a short name, and a required_action sentence. " +
	"Always respond with valid JSON wrapped in ```json and ``` markers."

// Suggester implements port.TemplateSuggester using OpenAI
type Suggester struct {
	client      *openai.Client
	model       string
	temperature float32
	logger      *zap.Logger
}

// NewSuggester creates a new template suggester
func NewSuggester(apiKey, model string, temperature float32, logger *zap.Logger) *Suggester {
	return &Suggester{
		client:      openai.NewClient(apiKey),
		model:       model,
		temperature: temperature,
		logger:      logger,
	}
}

type suggestedStep struct {
	Role           string `json:"role"`
	Name           string `json:"name"`
	RequiredAction string `json:"required_action"`
}

type suggestion struct {
	Steps []suggestedStep `json:"steps"`
}

// Suggest proposes workflow steps for a department's documents.
func (s *Suggester) Suggest(ctx context.Context, department, description string) ([]entity.StepDefinition, error) {
	s.logger.Debug("Requesting workflow suggestion",
		zap.String("department", department))

	prompt := fmt.Sprintf("Department: %s\nDocuments: %s\n\nRespond as {\"steps\": [{\"role\": ..., \"name\": ..., \"required_action\": ...}]}.",
		department, description)

	req := openai.ChatCompletionRequest{
		Model:       s.model,
		Temperature: s.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: suggestSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}

	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		s.logger.Error("OpenAI API call failed", zap.Error(err))
		return nil, fmt.Errorf("OpenAI API call failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from OpenAI")
	}

	content := resp.Choices[0].Message.Content

	var parsed suggestion
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		if jsonStr := extractJSON(content); jsonStr != "" {
			err = json.Unmarshal([]byte(jsonStr), &parsed)
		}
		if err != nil {
			s.logger.Error("Failed to parse suggestion response",
				zap.Error(err),
				zap.String("content", content))
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}
	}

	steps := make([]entity.StepDefinition, 0, len(parsed.Steps))
	for i, st := range parsed.Steps {
		role := entity.Role(strings.ToUpper(strings.TrimSpace(st.Role)))
		if !role.IsValid() || st.Name == "" {
			continue
		}
		steps = append(steps, entity.StepDefinition{
			Role:           role,
			Name:           st.Name,
			Order:          i + 1,
			RequiredAction: st.RequiredAction,
		})
	}

	if len(steps) == 0 {
		return nil, fmt.Errorf("suggestion contained no usable steps")
	}

	s.logger.Info("Workflow suggestion generated",
		zap.String("department", department),
		zap.Int("steps", len(steps)))

	return steps, nil
}

// extractJSON pulls a JSON body out of a markdown code fence.
func extractJSON(content string) string {
	start := strings.Index(content, "```json")
	if start == -1 {
		start = strings.Index(content, "```")
		if start == -1 {
			return ""
		}
		start += 3
	} else {
		start += 7
	}

	end := strings.Index(content[start:], "```")
	if end == -1 {
		return ""
	}

	return strings.TrimSpace(content[start : start+end])
}

var _ port.TemplateSuggester = (*Suggester)(nil)
