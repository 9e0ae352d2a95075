package openai

import (
	"strings"

	"github.com/leofalp/finagent/internal/utils"
	"github.com/leofalp/finagent/providers/ai"
)

/*
	CHAT COMPLETIONS API - INPUT
*/

// chatCompletionRequest represents the /v1/chat/completions request format
type chatCompletionRequest struct {
	Model               string        `json:"model"`
	Messages            []chatMessage `json:"messages"`
	Temperature         *float64      `json:"temperature,omitempty"`
	MaxCompletionTokens *int          `json:"max_completion_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

/*
	CHAT COMPLETIONS API - OUTPUT
*/

type chatCompletionResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"` // "chat.completion"
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   *chatUsage   `json:"usage,omitempty"`
}

type chatChoice struct {
	Index        int                 `json:"index"`
	Message      chatResponseMessage `json:"message"`
	FinishReason string              `json:"finish_reason"` // "stop", "length", "content_filter"
}

type chatResponseMessage struct {
	Role      string `json:"role"`
	Content   string `json:"content,omitempty"`
	Refusal   string `json:"refusal,omitempty"`
	Reasoning string `json:"reasoning,omitempty"` // OpenRouter and some local servers
}

type chatUsage struct {
	PromptTokens            int `json:"prompt_tokens"`
	CompletionTokens        int `json:"completion_tokens"`
	TotalTokens             int `json:"total_tokens"`
	CompletionTokensDetails *struct {
		ReasoningTokens int `json:"reasoning_tokens,omitempty"`
	} `json:"completion_tokens_details,omitempty"`
	PromptTokensDetails *struct {
		CachedTokens int `json:"cached_tokens,omitempty"`
	} `json:"prompt_tokens_details,omitempty"`
}

/*
	CONVERSION FUNCTIONS
*/

// requestToChatCompletion converts ai.ChatRequest to chat completions format.
// The system prompt becomes the first message.
func requestToChatCompletion(request ai.ChatRequest) chatCompletionRequest {
	messages := make([]chatMessage, 0, len(request.Messages)+1)
	if request.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: string(ai.RoleSystem), Content: request.SystemPrompt})
	}
	for _, message := range request.Messages {
		messages = append(messages, chatMessage{Role: string(message.Role), Content: message.Content})
	}

	wire := chatCompletionRequest{
		Model:    request.Model,
		Messages: messages,
	}
	if config := request.GenerationConfig; config != nil {
		if config.Temperature > 0 {
			wire.Temperature = utils.Ptr(float64(config.Temperature))
		}
		if config.MaxTokens > 0 {
			wire.MaxCompletionTokens = utils.Ptr(config.MaxTokens)
		}
	}
	return wire
}

// chatCompletionToGeneric converts the first choice of resp. Reasoning
// wrapped in <think> tags is moved out of the content.
func chatCompletionToGeneric(resp chatCompletionResponse) *ai.ChatResponse {
	choice := resp.Choices[0]

	content := strings.TrimSpace(choice.Message.Content)
	reasoning := strings.TrimSpace(choice.Message.Reasoning)
	if inContent := extractReasoningFromThinkTags(content); inContent != "" {
		reasoning = strings.TrimSpace(reasoning + "\n" + inContent)
		content = cleanThinkTags(content)
	}

	response := &ai.ChatResponse{
		Id:           resp.ID,
		Model:        resp.Model,
		Content:      content,
		Refusal:      choice.Message.Refusal,
		Reasoning:    reasoning,
		FinishReason: choice.FinishReason,
	}

	if resp.Usage != nil {
		response.Usage = &ai.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
		if details := resp.Usage.CompletionTokensDetails; details != nil {
			response.Usage.ReasoningTokens = details.ReasoningTokens
		}
		if details := resp.Usage.PromptTokensDetails; details != nil {
			response.Usage.CachedTokens = details.CachedTokens
		}
	}

	return response
}

const (
	thinkStartTag = "<think>"
	thinkEndTag   = "</think>"
)

// extractReasoningFromThinkTags returns the text inside <think>...</think>.
// A missing start tag means the reasoning starts at the beginning; the end
// tag is mandatory.
func extractReasoningFromThinkTags(content string) string {
	start := strings.Index(content, thinkStartTag)
	if start == -1 {
		start = 0
	} else {
		start += len(thinkStartTag)
	}

	end := strings.Index(content, thinkEndTag)
	if end == -1 || end <= start {
		return ""
	}
	return strings.TrimSpace(content[start:end])
}

// cleanThinkTags removes the <think>...</think> block from content.
func cleanThinkTags(content string) string {
	start := strings.Index(content, thinkStartTag)
	if start == -1 {
		start = 0
	}

	end := strings.Index(content, thinkEndTag)
	if end == -1 || end <= start {
		return content
	}
	return strings.TrimSpace(content[:start] + content[end+len(thinkEndTag):])
}
