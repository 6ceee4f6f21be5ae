package gemini

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	genai "github.com/google/generative-ai-go/genai"
	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"

	"github.com/MikeSquared-Agency/courier/internal/ingest"
	"github.com/MikeSquared-Agency/courier/internal/remote"
)

// Client is the Gemini file store and chat model used by courier.
type Client struct {
	genai  *genai.Client
	model  string
	logger *slog.Logger
}

// New builds a client authenticated with apiKey. Extra options are applied
// after the key, so an endpoint or HTTP client can be overridden.
func New(ctx context.Context, apiKey, model string, logger *slog.Logger, opts ...option.ClientOption) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("missing GEMINI_API_KEY or GOOGLE_API_KEY")
	}
	gc, err := genai.NewClient(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("gemini init: %w", err)
	}
	return &Client{genai: gc, model: model, logger: logger}, nil
}

func (c *Client) Model() string {
	return c.model
}

func (c *Client) Close() error {
	return c.genai.Close()
}

// Upload streams r to the Files API. The returned handle is usually still
// processing.
func (c *Client) Upload(ctx context.Context, r io.Reader, opts remote.UploadOptions) (remote.Handle, error) {
	f, err := c.genai.UploadFile(ctx, "", r, &genai.UploadFileOptions{
		DisplayName: opts.DisplayName,
		MIMEType:    opts.MIMEType,
	})
	if err != nil {
		return remote.Handle{}, fmt.Errorf("upload file: %w", classify(err))
	}
	if f == nil {
		return remote.Handle{}, errors.New("upload file: empty response")
	}
	return handleFromFile(f), nil
}

// Status fetches the current state of a previously uploaded file.
func (c *Client) Status(ctx context.Context, id string) (remote.Handle, error) {
	f, err := c.genai.GetFile(ctx, fileName(id))
	if err != nil {
		return remote.Handle{}, fmt.Errorf("get file %s: %w", id, classify(err))
	}
	return handleFromFile(f), nil
}

// Delete removes an uploaded file. Deleting a file that is already gone is not
// an error.
func (c *Client) Delete(ctx context.Context, id string) error {
	err := c.genai.DeleteFile(ctx, fileName(id))
	if err == nil {
		return nil
	}
	if err = classify(err); errors.Is(err, remote.ErrNotFound) {
		return nil
	}
	return fmt.Errorf("delete file %s: %w", id, err)
}

// Reply is the model's answer to an assembled conversation.
type Reply struct {
	Text         string `json:"text"`
	FinishReason string `json:"finishReason,omitempty"`
	PromptTokens int32  `json:"promptTokens,omitempty"`
	OutputTokens int32  `json:"outputTokens,omitempty"`
}

// Generate sends conv as a chat: every block but the last becomes history and
// the last block is the message.
func (c *Client) Generate(ctx context.Context, conv ingest.Conversation) (*Reply, error) {
	history, last, err := splitConversation(conv)
	if err != nil {
		return nil, err
	}

	cs := c.genai.GenerativeModel(c.model).StartChat()
	cs.History = history

	resp, err := cs.SendMessage(ctx, last.Parts...)
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", classify(err))
	}
	reply, err := replyFromResponse(resp)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("gemini reply",
		"model", c.model,
		"blocks", len(conv),
		"finish_reason", reply.FinishReason,
		"output_tokens", reply.OutputTokens,
	)
	return reply, nil
}

func splitConversation(conv ingest.Conversation) ([]*genai.Content, *genai.Content, error) {
	if len(conv) == 0 {
		return nil, nil, errors.New("gemini generate: empty conversation")
	}
	contents := make([]*genai.Content, 0, len(conv))
	for i, b := range conv {
		content, err := toContent(b)
		if err != nil {
			return nil, nil, fmt.Errorf("block %d: %w", i, err)
		}
		contents = append(contents, content)
	}
	n := len(contents) - 1
	return contents[:n], contents[n], nil
}

func toContent(b ingest.Block) (*genai.Content, error) {
	content := &genai.Content{Role: role(b.Role)}
	for _, p := range b.Parts {
		switch v := p.(type) {
		case ingest.TextPart:
			content.Parts = append(content.Parts, genai.Text(v.Text))
		case ingest.FilePart:
			content.Parts = append(content.Parts, genai.FileData{MIMEType: v.MIMEType, URI: v.URI})
		default:
			return nil, fmt.Errorf("unsupported part %T", p)
		}
	}
	if len(content.Parts) == 0 {
		return nil, errors.New("block has no parts")
	}
	return content, nil
}

// role maps conversation roles onto the two Gemini accepts.
func role(r string) string {
	switch strings.ToLower(strings.TrimSpace(r)) {
	case "model", "assistant":
		return "model"
	default:
		return "user"
	}
}

func replyFromResponse(resp *genai.GenerateContentResponse) (*Reply, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, errors.New("gemini: empty response")
	}
	cand := resp.Candidates[0]

	var sb strings.Builder
	for _, p := range cand.Content.Parts {
		if t, ok := p.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	reply := &Reply{Text: sb.String()}
	if cand.FinishReason != genai.FinishReasonUnspecified {
		reply.FinishReason = cand.FinishReason.String()
	}
	if resp.UsageMetadata != nil {
		reply.PromptTokens = resp.UsageMetadata.PromptTokenCount
		reply.OutputTokens = resp.UsageMetadata.CandidatesTokenCount
	}
	return reply, nil
}

func handleFromFile(f *genai.File) remote.Handle {
	return remote.Handle{
		ID:       f.Name,
		URI:      f.URI,
		MIMEType: f.MIMEType,
		State:    state(f.State),
	}
}

func state(s genai.FileState) remote.State {
	switch s {
	case genai.FileStateActive:
		return remote.StateActive
	case genai.FileStateFailed:
		return remote.StateFailed
	default:
		return remote.StateProcessing
	}
}

// fileName accepts either "files/abc" or a bare "abc".
func fileName(id string) string {
	if strings.HasPrefix(id, "files/") {
		return id
	}
	return "files/" + id
}

// classify marks not-found responses with remote.ErrNotFound.
func classify(err error) error {
	if isNotFound(err) {
		return fmt.Errorf("%w: %v", remote.ErrNotFound, err)
	}
	return err
}

func isNotFound(err error) bool {
	var ae *apierror.APIError
	if errors.As(err, &ae) {
		if ae.HTTPCode() == http.StatusNotFound {
			return true
		}
		if st := ae.GRPCStatus(); st != nil && st.Code() == codes.NotFound {
			return true
		}
	}
	var ge *googleapi.Error
	if errors.As(err, &ge) && ge.Code == http.StatusNotFound {
		return true
	}
	return false
}
