package gemini

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"google.golang.org/genai"

	"github.com/treechat/treechat/stores"
)

func init() {
	// Load .env file if it exists (not present in production)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}
}

const (
	defaultModel   = "gemini-2.0-flash"
	requestTimeout = 120 * time.Second
	titleTimeout   = 30 * time.Second
)

const titleSystemPrompt = "You are a title generator. Create a concise, 3-5 word title " +
	"for a chat based on the user message. Do not use quotes, bolding, or punctuation."

// Gemini_Model generates replies with the Gemini API. The client reads
// GEMINI_API_KEY from the environment.
type Gemini_Model struct {
	Model        string `json:"model"`
	SystemPrompt string `json:"system_prompt,omitempty"`
}

func (g *Gemini_Model) modelName() string {
	if g.Model == "" {
		return defaultModel
	}
	return g.Model
}

// Generate produces a single complete reply for the given branch history
func (g *Gemini_Model) Generate(history []stores.Message) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	client, err := genai.NewClient(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create genai client: %w", err)
	}

	contents, config := g.prepare(history)
	resp, err := client.Models.GenerateContent(ctx, g.modelName(), contents, config)
	if err != nil {
		return "", fmt.Errorf("generate content failed: %w", err)
	}

	return resp.Text(), nil
}

// Generate_Stream produces the reply as a channel of text deltas
func (g *Gemini_Model) Generate_Stream(history []stores.Message) (<-chan string, <-chan error) {
	deltaChan := make(chan string)
	errChan := make(chan error, 1)

	go func() {
		defer close(deltaChan)
		defer close(errChan)

		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		client, err := genai.NewClient(ctx, nil)
		if err != nil {
			errChan <- fmt.Errorf("failed to create genai client: %w", err)
			return
		}

		contents, config := g.prepare(history)
		for resp, err := range client.Models.GenerateContentStream(ctx, g.modelName(), contents, config) {
			if err != nil {
				errChan <- fmt.Errorf("stream error: %w", err)
				return
			}
			if text := resp.Text(); text != "" {
				deltaChan <- text
			}
		}
	}()

	return deltaChan, errChan
}

// GenerateTitle produces a short chat title from the first user message
func (g *Gemini_Model) GenerateTitle(content string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), titleTimeout)
	defer cancel()

	client, err := genai.NewClient(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create genai client: %w", err)
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: titleSystemPrompt}}},
	}
	resp, err := client.Models.GenerateContent(ctx, g.modelName(), genai.Text(content), config)
	if err != nil {
		return "", fmt.Errorf("title generation failed: %w", err)
	}

	return resp.Text(), nil
}

// prepare converts a branch history into Gemini contents. System-role rows
// are folded into the system instruction rather than the turn list, which
// only accepts user and model roles.
func (g *Gemini_Model) prepare(history []stores.Message) ([]*genai.Content, *genai.GenerateContentConfig) {
	system := g.SystemPrompt
	contents := make([]*genai.Content, 0, len(history))

	for _, m := range history {
		switch m.Role {
		case stores.RoleSystem:
			if system != "" {
				system += "\n"
			}
			system += m.Content
		case stores.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}

	var config *genai.GenerateContentConfig
	if system != "" {
		config = &genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: system}}},
		}
	}
	return contents, config
}
