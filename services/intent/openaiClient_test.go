package intent

import (
	"context"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCompleter struct {
	req  openai.ChatCompletionRequest
	resp openai.ChatCompletionResponse
	err  error
}

func (s *stubCompleter) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	s.req = req
	return s.resp, s.err
}

func toolCallResponse(args string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{
				ToolCalls: []openai.ToolCall{{
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      searchFunctionName,
						Arguments: args,
					},
				}},
			},
		}},
	}
}

func newTestService(stub *stubCompleter) *DefaultIntentService {
	return &DefaultIntentService{
		Client: stub,
		Model:  "gpt-4o",
		Now:    func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) },
	}
}

func TestExtractParsesFunctionCall(t *testing.T) {
	stub := &stubCompleter{resp: toolCallResponse(
		`{"query":"Italian","location":"NYC","latitude":40.71,"longitude":-74.0,"day":"2024-06-02","party_size":4}`)}
	svc := newTestService(stub)

	params, err := svc.Extract(context.Background(), "Italian in NYC tomorrow for 4")
	require.NoError(t, err)
	assert.Equal(t, "Italian", params.Query)
	assert.Equal(t, "NYC", params.Location)
	assert.Equal(t, "2024-06-02", params.Day)
	assert.Equal(t, 4, params.PartySize)

	// The call is pinned for determinism and forces the function.
	assert.Zero(t, stub.req.Temperature)
	require.Len(t, stub.req.Tools, 1)
	assert.Equal(t, searchFunctionName, stub.req.Tools[0].Function.Name)
	assert.Contains(t, stub.req.Messages[0].Content, "2024-06-01")
}

func TestExtractAppliesDefaults(t *testing.T) {
	stub := &stubCompleter{resp: toolCallResponse(`{"query":"ramen"}`)}
	svc := newTestService(stub)

	params, err := svc.Extract(context.Background(), "ramen")
	require.NoError(t, err)
	assert.Equal(t, defaultPartySize, params.PartySize)
	assert.Equal(t, defaultLocation, params.Location)
	assert.Equal(t, defaultLatitude, params.Latitude)
	assert.Equal(t, defaultLongitude, params.Longitude)
	assert.Equal(t, "2024-06-01", params.Day)
}

func TestExtractFailsClosedWithoutFunctionCall(t *testing.T) {
	stub := &stubCompleter{resp: openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{Content: "Sure! What cuisine?"},
		}},
	}}
	svc := newTestService(stub)

	_, err := svc.Extract(context.Background(), "hmm")
	var extractionErr *ExtractionError
	require.ErrorAs(t, err, &extractionErr)
}

func TestExtractRejectsMalformedArguments(t *testing.T) {
	stub := &stubCompleter{resp: toolCallResponse(`{"query":`)}
	svc := newTestService(stub)

	_, err := svc.Extract(context.Background(), "Italian")
	var extractionErr *ExtractionError
	require.ErrorAs(t, err, &extractionErr)
}
