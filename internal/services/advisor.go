package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"taskhub/internal/config"
	"taskhub/internal/models"

	openai "github.com/sashabaranov/go-openai"
)

// maxToolRounds bounds the advisor's tool-calling loop
const maxToolRounds = 4

// AdvisorService is the stub producer of advisory task records: it turns a
// free-text shop situation into candidate create-task requests. Nothing is
// created here - the caller decides which suggestions to submit through the
// normal creation path, and the engine treats them like any other upstream
// command.
type AdvisorService struct {
	client      *openai.Client
	model       string
	temperature float32
	tools       *BoardTools
}

// NewAdvisorService creates the advisor. With no API key configured the
// advisor is disabled and Suggest returns an error. With board tools the
// model can inspect the live board before suggesting.
func NewAdvisorService(cfg config.OpenAIConfig, tools *BoardTools) *AdvisorService {
	service := &AdvisorService{
		model:       cfg.Model,
		temperature: float32(cfg.Temperature),
		tools:       tools,
	}
	if cfg.APIKey != "" {
		service.client = openai.NewClient(cfg.APIKey)
	}
	return service
}

// Enabled reports whether an API key was configured
func (s *AdvisorService) Enabled() bool {
	return s.client != nil
}

const advisorSystemPrompt = `You are an assistant for a building-materials shop's task board.
Given a description of the current shop situation, suggest concrete tasks.
Check the board with your tools first so you do not duplicate tasks that already exist.
Respond with JSON only, in the shape:
{"suggestions": [{"type": "...", "title": "...", "description": "...", "requiredRole": "..."}]}
Allowed type values: restock, retail, wholesale, sale, custom.
Allowed requiredRole values: foreman, delivery, requester, storekeeper, manager, or "" for any role.
Suggest at most five tasks.`

// Suggest asks the model for advisory task suggestions for the given
// situation. The model may call board tools before answering; suggestions
// with an unknown type are demoted to custom rather than dropped.
func (s *AdvisorService) Suggest(ctx context.Context, situation string) ([]models.CreateTaskRequest, error) {
	if s.client == nil {
		return nil, fmt.Errorf("advisor is not configured")
	}

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: advisorSystemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: situation},
	}

	var tools []openai.Tool
	if s.tools != nil {
		for _, tool := range s.tools.All() {
			tools = append(tools, openai.Tool{
				Type: openai.ToolTypeFunction,
				Function: &openai.FunctionDefinition{
					Name:        tool.Name,
					Description: tool.Description,
					Parameters:  tool.Parameters,
				},
			})
		}
	}

	for round := 0; round < maxToolRounds; round++ {
		resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       s.model,
			Temperature: s.temperature,
			Messages:    messages,
			Tools:       tools,
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
		})
		if err != nil {
			return nil, fmt.Errorf("advisor completion failed: %w", err)
		}
		if len(resp.Choices) == 0 {
			return nil, fmt.Errorf("advisor returned no choices")
		}

		message := resp.Choices[0].Message
		if len(message.ToolCalls) == 0 {
			return parseSuggestions(message.Content)
		}

		messages = append(messages, message)
		for _, call := range message.ToolCalls {
			result, err := s.tools.Execute(ctx, call.Function.Name, call.Function.Arguments)
			if err != nil {
				log.Printf("[ADVISOR] Tool %s failed: %v", call.Function.Name, err)
				result = fmt.Sprintf(`{"error": %q}`, err.Error())
			}
			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    result,
				ToolCallID: call.ID,
			})
		}
	}

	return nil, fmt.Errorf("advisor did not answer within %d tool rounds", maxToolRounds)
}

func parseSuggestions(content string) ([]models.CreateTaskRequest, error) {
	var parsed struct {
		Suggestions []models.CreateTaskRequest `json:"suggestions"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse advisor response: %w", err)
	}

	suggestions := make([]models.CreateTaskRequest, 0, len(parsed.Suggestions))
	for _, suggestion := range parsed.Suggestions {
		if suggestion.Title == "" {
			continue
		}
		if !models.ValidTaskType(suggestion.Type) {
			log.Printf("[ADVISOR] Unknown suggested type %q, demoting to custom", suggestion.Type)
			suggestion.Type = models.TaskTypeCustom
		}
		suggestions = append(suggestions, suggestion)
	}
	return suggestions, nil
}
