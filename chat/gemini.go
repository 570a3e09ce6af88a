package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"google.golang.org/genai"

	"gunshot-detection/models"
)

const assistantPrompt = `You are the assistant for an acoustic gunshot detection system.
You help users with:
- Gunshot detection and acoustic event analysis
- Firearm and caliber classification results
- Audio processing and signal quality questions
- System operations and troubleshooting

Provide helpful, accurate, and concise responses. Be technical when needed but explain complex concepts clearly.
Keep responses conversational and under 200 words unless more detail is specifically requested.`

type GeminiClient struct {
	client *genai.Client
	ctx    context.Context
}

func NewGeminiClient() (*GeminiClient, error) {
	ctx := context.Background()

	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %v", err)
	}

	return &GeminiClient{client: client, ctx: ctx}, nil
}

func (g *GeminiClient) GenerateResponse(message string) (string, error) {
	systemInstruction := genai.NewContentFromText(assistantPrompt, genai.RoleModel)
	userContent := genai.NewContentFromText(message, genai.RoleUser)

	config := &genai.GenerateContentConfig{
		SystemInstruction: systemInstruction,
		Temperature:       genai.Ptr(float32(0.7)),
		TopP:              genai.Ptr(float32(0.8)),
		TopK:              genai.Ptr(float32(40)),
		MaxOutputTokens:   int32(200),
	}

	resp, err := g.client.Models.GenerateContent(
		g.ctx,
		"gemini-2.5-flash",
		[]*genai.Content{userContent},
		config,
	)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %v", err)
	}

	text := resp.Text()
	if text == "" {
		return "I'm sorry, I couldn't generate a response. Please try rephrasing your question.", nil
	}

	return strings.ReplaceAll(text, "*", ""), nil
}

// SummarizeIncident produces a short natural-language report for a stored
// detection, suitable for an operator notification.
func (g *GeminiClient) SummarizeIncident(detection *models.Detection) (string, error) {
	payload, err := json.Marshal(detection)
	if err != nil {
		return "", fmt.Errorf("failed to marshal detection: %v", err)
	}

	message := fmt.Sprintf(`Summarize this gunshot detection incident for an operator in 2-3 sentences.
Include the number of shots, firearm type and caliber if classified, confidence, and signal quality.
Detection data: %s`, payload)

	return g.GenerateResponse(message)
}

// GenerateResponseStream generates a streaming response.
func (g *GeminiClient) GenerateResponseStream(message string, onChunk func(string) error) error {
	systemInstruction := genai.NewContentFromText(assistantPrompt, genai.RoleModel)
	userContent := genai.NewContentFromText(message, genai.RoleUser)

	config := &genai.GenerateContentConfig{
		SystemInstruction: systemInstruction,
		Temperature:       genai.Ptr(float32(0.7)),
		TopP:              genai.Ptr(float32(0.8)),
		TopK:              genai.Ptr(float32(40)),
		MaxOutputTokens:   int32(200),
	}

	stream := g.client.Models.GenerateContentStream(
		g.ctx,
		"gemini-2.5-flash",
		[]*genai.Content{userContent},
		config,
	)

	for resp, err := range stream {
		if err != nil {
			return fmt.Errorf("stream error: %v", err)
		}
		text := resp.Text()
		if text != "" {
			if err := onChunk(strings.ReplaceAll(text, "*", "")); err != nil {
				return fmt.Errorf("chunk callback error: %v", err)
			}
		}
	}
	return nil
}

func (g *GeminiClient) Close() error {
	// The client has no explicit close; resources are managed internally.
	return nil
}
