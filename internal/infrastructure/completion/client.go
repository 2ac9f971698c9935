package completion

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/sashabaranov/go-openai"
	"resty.dev/v3"

	"studyhall/chat-api/internal/infrastructure/logger"
	"studyhall/chat-api/internal/utils/platformerrors"
)

const (
	channelBufferSize    = 100
	errorBufferSize      = 10
	dataPrefix           = "data: "
	doneMarker           = "[DONE]"
	scannerInitialBuffer = 12 * 1024        // 12KB
	scannerMaxBuffer     = 10 * 1024 * 1024 // 10MB
)

type StreamOption func(*resty.Request)

func WithHeader(key, value string) StreamOption {
	return func(r *resty.Request) {
		if strings.TrimSpace(key) == "" {
			return
		}
		r.SetHeader(key, value)
	}
}

// Delta is one streamed increment of an assistant response. Content and
// Reasoning arrive as distinct parts and stay distinct all the way up.
type Delta struct {
	Content   string
	Reasoning string
}

// Usage mirrors the provider's token accounting block
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Result is the fully assembled assistant response after a stream completes
type Result struct {
	Content   string
	Reasoning string
	Usage     Usage
}

type choiceDelta struct {
	Content          string `json:"content"`
	ReasoningContent string `json:"reasoning_content"`
}

type streamChoice struct {
	Delta choiceDelta `json:"delta"`
}

// Client talks to an OpenAI-compatible chat completion endpoint.
type Client struct {
	client  *resty.Client
	baseURL string
	apiKey  string
	timeout time.Duration
	name    string
}

func NewClient(client *resty.Client, name, baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		client:  client,
		baseURL: normalizeBaseURL(baseURL),
		apiKey:  apiKey,
		timeout: timeout,
		name:    name,
	}
}

// CreateChatCompletion performs a non-streaming completion request
func (c *Client) CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (*openai.ChatCompletionResponse, error) {
	var respBody openai.ChatCompletionResponse
	resp, err := c.prepareRequest(ctx).
		SetBody(request).
		SetResult(&respBody).
		Post(c.endpoint("/chat/completions"))
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, c.errorFromResponse(ctx, resp, "request failed")
	}
	return &respBody, nil
}

// StreamChatCompletion streams a completion, delivering each delta to onDelta
// as it arrives, and returns the assembled result once the provider sends its
// done marker. A non-nil error from onDelta aborts the stream.
func (c *Client) StreamChatCompletion(ctx context.Context, request openai.ChatCompletionRequest, onDelta func(Delta) error, opts ...StreamOption) (*Result, error) {
	request.Stream = true
	// force to true to collect tokens
	request.StreamOptions = &openai.StreamOptions{
		IncludeUsage: true,
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	dataChan := make(chan string, channelBufferSize)
	errChan := make(chan error, errorBufferSize)

	var wg sync.WaitGroup
	wg.Add(1)

	go c.streamResponseToChannel(ctx, request, dataChan, errChan, &wg, opts)

	var contentBuilder strings.Builder
	var reasoningBuilder strings.Builder
	var usage *Usage

	streamingComplete := false

	for !streamingComplete {
		select {
		case line, ok := <-dataChan:
			if !ok {
				streamingComplete = true
				break
			}

			data, found := strings.CutPrefix(line, dataPrefix)
			if !found {
				continue
			}
			if data == doneMarker {
				streamingComplete = true
				cancel()
				break
			}

			choice, chunkUsage := c.processStreamChunk(data)
			if chunkUsage != nil {
				usage = chunkUsage
			}
			if choice == nil {
				continue
			}

			delta := Delta{
				Content:   choice.Delta.Content,
				Reasoning: choice.Delta.ReasoningContent,
			}
			if delta.Content != "" {
				contentBuilder.WriteString(delta.Content)
			}
			if delta.Reasoning != "" {
				reasoningBuilder.WriteString(delta.Reasoning)
			}
			if onDelta != nil && (delta.Content != "" || delta.Reasoning != "") {
				if err := onDelta(delta); err != nil {
					cancel()
					wg.Wait()
					return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "delta handler aborted stream")
				}
			}

		case err, ok := <-errChan:
			if ok && err != nil {
				cancel()
				wg.Wait()
				return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "streaming error")
			}

		case <-ctx.Done():
			wg.Wait()
			return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, ctx.Err(), "streaming context cancelled")
		}
	}

	cancel()
	wg.Wait()

	result := &Result{
		Content:   contentBuilder.String(),
		Reasoning: reasoningBuilder.String(),
	}
	if usage != nil {
		result.Usage = *usage
	} else {
		promptTokens := c.estimateTokens(request.Messages)
		completionTokens := len(strings.Fields(result.Content))
		result.Usage = Usage{
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
			TotalTokens:      promptTokens + completionTokens,
		}
	}

	return result, nil
}

func (c *Client) prepareRequest(ctx context.Context) *resty.Request {
	req := c.client.R().SetContext(ctx)
	req.SetHeader("Content-Type", "application/json")
	if strings.TrimSpace(c.apiKey) != "" {
		req.SetHeader("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))
	}
	return req
}

func (c *Client) endpoint(path string) string {
	if path == "" {
		return c.baseURL
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if c.baseURL == "" {
		return path
	}
	if strings.HasPrefix(path, "/") {
		return c.baseURL + path
	}
	return c.baseURL + "/" + path
}

func (c *Client) errorFromResponse(ctx context.Context, resp *resty.Response, message string) error {
	if resp == nil || resp.RawResponse == nil || resp.RawResponse.Body == nil {
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeExternal, message, nil, "f4a8c2d7-1e6b-4f93-a5c0-8d3e7b2f9a64")
	}
	defer resp.RawResponse.Body.Close()
	body, err := io.ReadAll(resp.RawResponse.Body)
	if err != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeExternal, message, nil, "2c7e9f4b-6a1d-4c58-b3f0-9e5a8d2c7f41")
	}
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeExternal, message, nil, "7d2b5e8a-3f9c-4d16-8a4e-0c6f1b9d5e82")
	}
	return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeExternal, fmt.Sprintf("%s: %s", message, trimmed), nil, "9f3c6a1e-5d8b-4a27-b0e4-7c2d8f5a3b96")
}

func (c *Client) doStreamingRequest(ctx context.Context, request openai.ChatCompletionRequest, opts ...StreamOption) (*resty.Response, error) {
	req := c.prepareRequest(ctx).
		SetBody(request).
		SetDoNotParseResponse(true)

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(req)
	}

	if req.Header.Get("Accept-Encoding") == "" {
		req.SetHeader("Accept-Encoding", "identity")
	}

	resp, err := req.Post(c.endpoint("/chat/completions"))
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, c.errorFromResponse(ctx, resp, "streaming request failed")
	}
	if resp.RawResponse == nil || resp.RawResponse.Body == nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeExternal, "streaming request failed: empty response body", nil, "4b8e1f7c-9a3d-4b62-8f5a-2e0c7d4b9f18")
	}

	return resp, nil
}

func (c *Client) streamResponseToChannel(ctx context.Context, request openai.ChatCompletionRequest, dataChan chan<- string, errChan chan<- error, wg *sync.WaitGroup, opts []StreamOption) {
	defer wg.Done()
	defer close(dataChan)

	resp, err := c.doStreamingRequest(ctx, request, opts...)
	if err != nil {
		c.sendAsyncError(errChan, err)
		return
	}

	defer func() {
		if closeErr := resp.RawResponse.Body.Close(); closeErr != nil {
			log := logger.GetLogger()
			log.Error().Err(closeErr).Str("client", c.name).Msg("unable to close response body")
		}
	}()

	scanner := bufio.NewScanner(resp.RawResponse.Body)
	scanner.Buffer(make([]byte, 0, scannerInitialBuffer), scannerMaxBuffer)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line := scanner.Text()

		select {
		case dataChan <- line:
		case <-ctx.Done():
			return
		}
	}

	if err := scanner.Err(); err != nil {
		c.sendAsyncError(errChan, err)
	}
}

func (c *Client) processStreamChunk(data string) (*streamChoice, *Usage) {
	var streamData struct {
		Choices []streamChoice `json:"choices"`
		Usage   *Usage         `json:"usage"`
	}

	if err := json.Unmarshal([]byte(data), &streamData); err != nil {
		log := logger.GetLogger()
		log.Error().Err(err).Str("client", c.name).Str("data", data).Msg("failed to parse stream chunk JSON")
		return nil, nil
	}

	result := &streamChoice{}
	for _, choice := range streamData.Choices {
		if choice.Delta.Content != "" {
			result.Delta.Content += choice.Delta.Content
		}
		if choice.Delta.ReasoningContent != "" {
			result.Delta.ReasoningContent += choice.Delta.ReasoningContent
		}
	}

	return result, streamData.Usage
}

// estimateTokens approximates token counts by whitespace words, used only
// when the provider omits its usage block.
func (c *Client) estimateTokens(messages []openai.ChatCompletionMessage) int {
	var allText strings.Builder
	for _, msg := range messages {
		allText.WriteString(msg.Content)
		allText.WriteString(" ")
	}
	return len(strings.Fields(allText.String()))
}

func (c *Client) sendAsyncError(errChan chan<- error, err error) {
	if err == nil {
		return
	}

	select {
	case errChan <- err:
	default:
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func normalizeBaseURL(base string) string {
	trimmed := strings.TrimSpace(base)
	trimmed = strings.TrimRight(trimmed, "/")
	return trimmed
}
