package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/PaiKingDuck555/imessage-kit-concierge/models"
	"github.com/PaiKingDuck555/imessage-kit-concierge/utils"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
	"go.uber.org/zap"
)

const searchFunctionName = "search_restaurants"

const (
	defaultPartySize = 2
	defaultLocation  = "New York"
	// Fallback coordinates for the default location.
	defaultLatitude  = 40.7128
	defaultLongitude = -74.0060
)

// chatCompleter is the slice of the OpenAI client we actually use.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// DefaultIntentService extracts search parameters with a single forced
// function call at temperature zero.
type DefaultIntentService struct {
	Client chatCompleter
	Model  string
	Now    func() time.Time
}

func NewDefaultIntentService(apiKey, model string) *DefaultIntentService {
	return &DefaultIntentService{
		Client: openai.NewClient(apiKey),
		Model:  model,
		Now:    time.Now,
	}
}

var searchFunctionParams = jsonschema.Definition{
	Type: jsonschema.Object,
	Properties: map[string]jsonschema.Definition{
		"query": {
			Type:        jsonschema.String,
			Description: "Cuisine or restaurant search term, e.g. 'Italian' or 'omakase'",
		},
		"location": {
			Type:        jsonschema.String,
			Description: "Human-readable location, e.g. 'NYC' or 'West Village'",
		},
		"latitude":  {Type: jsonschema.Number},
		"longitude": {Type: jsonschema.Number},
		"day": {
			Type:        jsonschema.String,
			Description: "Reservation date as YYYY-MM-DD",
		},
		"party_size": {Type: jsonschema.Integer},
	},
	Required: []string{"query", "day"},
}

func (s *DefaultIntentService) Extract(ctx context.Context, text string) (models.SearchParams, error) {
	logger := utils.GetLogger()

	today := s.Now().Format("2006-01-02")
	systemPrompt := fmt.Sprintf(
		"You extract restaurant reservation search parameters from a user message. "+
			"Today's date is %s; resolve relative dates like 'tomorrow' to an absolute date.", today)

	req := openai.ChatCompletionRequest{
		Model:       s.Model,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		Tools: []openai.Tool{{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        searchFunctionName,
				Description: "Search for restaurant reservations",
				Parameters:  searchFunctionParams,
			},
		}},
		ToolChoice: openai.ToolChoice{
			Type:     openai.ToolTypeFunction,
			Function: openai.ToolFunction{Name: searchFunctionName},
		},
	}

	resp, err := s.Client.CreateChatCompletion(ctx, req)
	if err != nil {
		return models.SearchParams{}, fmt.Errorf("intent: completion failed: %w", err)
	}
	if len(resp.Choices) == 0 || len(resp.Choices[0].Message.ToolCalls) == 0 {
		logger.Warn("Intent extraction returned no function call", zap.String("text", text))
		return models.SearchParams{}, NewExtractionError("model returned no function call")
	}

	var params models.SearchParams
	args := resp.Choices[0].Message.ToolCalls[0].Function.Arguments
	if err := json.Unmarshal([]byte(args), &params); err != nil {
		return models.SearchParams{}, NewExtractionError("malformed function call arguments: " + err.Error())
	}

	applyDefaults(&params, today)

	logger.Debug("Extracted search intent",
		zap.String("query", params.Query),
		zap.String("location", params.Location),
		zap.String("day", params.Day),
		zap.Int("partySize", params.PartySize))
	return params, nil
}

func applyDefaults(p *models.SearchParams, today string) {
	if p.PartySize <= 0 {
		p.PartySize = defaultPartySize
	}
	if p.Location == "" {
		p.Location = defaultLocation
	}
	if p.Latitude == 0 && p.Longitude == 0 {
		p.Latitude = defaultLatitude
		p.Longitude = defaultLongitude
	}
	if p.Day == "" {
		p.Day = today
	}
}
