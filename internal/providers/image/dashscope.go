package image

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/RahulSriwastaw/new-backend-sub000/internal/domain"
	"github.com/RahulSriwastaw/new-backend-sub000/internal/infra"
)

const (
	dashScopeProvider     = "dashscope"
	dashScopeDefaultBase  = "https://dashscope-intl.aliyuncs.com/api/v1"
	dashScopeDefaultModel = "wanx2.1-t2i-turbo"
	dashScopeEditModel    = "wanx2.1-imageedit"
)

// dashScopeBlockedCodes are task failure codes raised by content inspection.
var dashScopeBlockedCodes = map[string]bool{
	"DataInspectionFailed":  true,
	"IPInfringementSuspect": true,
}

type dashScopeRequest struct {
	Model      string              `json:"model"`
	Input      dashScopeInput      `json:"input"`
	Parameters dashScopeParameters `json:"parameters"`
}

type dashScopeInput struct {
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negative_prompt,omitempty"`
	Function       string `json:"function,omitempty"`
	BaseImageURL   string `json:"base_image_url,omitempty"`
}

type dashScopeParameters struct {
	Size     string   `json:"size,omitempty"`
	N        int      `json:"n"`
	Strength *float64 `json:"strength,omitempty"`
}

type dashScopeTaskResponse struct {
	RequestID string `json:"request_id"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Output    struct {
		TaskID     string `json:"task_id"`
		TaskStatus string `json:"task_status"`
		Code       string `json:"code"`
		Message    string `json:"message"`
		Results    []struct {
			URL     string `json:"url"`
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"results"`
	} `json:"output"`
}

func (r dashScopeTaskResponse) firstURL() string {
	for _, res := range r.Output.Results {
		if u := strings.TrimSpace(res.URL); u != "" {
			return u
		}
	}
	return ""
}

// failure returns the code and message of a failed task, preferring the
// per-result detail.
func (r dashScopeTaskResponse) failure() (string, string) {
	code, msg := r.Output.Code, r.Output.Message
	for _, res := range r.Output.Results {
		if res.Code != "" {
			code, msg = res.Code, res.Message
			break
		}
	}
	if code == "" {
		code, msg = r.Code, r.Message
	}
	return code, msg
}

// DashScopeAdapter speaks DashScope's asynchronous submit-and-poll protocol.
// Reference images are passed by URL, so nothing is uploaded.
type DashScopeAdapter struct {
	httpClient *http.Client
	poller     Poller
	logger     *infra.Logger
}

// NewDashScopeAdapter constructs the adapter.
func NewDashScopeAdapter(opts Options) *DashScopeAdapter {
	return &DashScopeAdapter{
		httpClient: opts.httpClient(),
		poller:     opts.Poller,
		logger:     infra.LoggerOrDiscard(opts.Logger),
	}
}

// Generate fulfils the Generator interface.
func (a *DashScopeAdapter) Generate(ctx context.Context, req Request) (Result, error) {
	apiKey := strings.TrimSpace(req.Credentials.APIKey)
	if apiKey == "" {
		return Result{}, &domain.ProviderCallError{Provider: dashScopeProvider, Message: "api key is missing"}
	}
	base := strings.TrimRight(firstNonEmpty(req.Credentials.BaseURL, dashScopeDefaultBase), "/")

	payload := dashScopeRequest{
		Input: dashScopeInput{
			Prompt:         strings.TrimSpace(req.Prompt),
			NegativePrompt: strings.TrimSpace(req.NegativePrompt),
		},
		Parameters: dashScopeParameters{Size: DashScopeSize(req.AspectRatio), N: 1},
	}
	endpoint := base + "/services/aigc/text2image/image-synthesis"
	if req.HasReferences() {
		endpoint = base + "/services/aigc/image2image/image-synthesis"
		payload.Model = firstNonEmpty(req.Credentials.Extra["edit_model"], dashScopeEditModel)
		payload.Input.Function = "description_edit"
		payload.Input.BaseImageURL = strings.TrimSpace(req.ReferenceImages[0])
		payload.Parameters.Size = ""
		if req.Strength > 0 {
			strength := req.Strength
			payload.Parameters.Strength = &strength
		}
	} else {
		payload.Model = firstNonEmpty(req.Credentials.Model, dashScopeDefaultModel)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Result{}, fmt.Errorf("dashscope: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("dashscope: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	httpReq.Header.Set("X-DashScope-Async", "enable")

	raw, _, err := do(ctx, a.httpClient, dashScopeProvider, httpReq)
	if err != nil {
		return Result{}, classifyDashScopeError(err)
	}
	var submitted dashScopeTaskResponse
	if err := decodeJSON(dashScopeProvider, raw, &submitted); err != nil {
		return Result{}, err
	}
	if u := submitted.firstURL(); u != "" {
		return Result{URL: u}, nil
	}
	if submitted.Code != "" {
		if dashScopeBlockedCodes[submitted.Code] {
			return Result{}, &domain.ContentBlockedError{Provider: dashScopeProvider, Reason: submitted.Message}
		}
		return Result{}, &domain.ProviderCallError{Provider: dashScopeProvider, Message: fmt.Sprintf("%s (%s)", submitted.Message, submitted.Code)}
	}
	taskID := strings.TrimSpace(submitted.Output.TaskID)
	if taskID == "" {
		return ExtractImageJSON(dashScopeProvider, raw)
	}

	a.logger.Debug().
		Str("request_id", req.RequestID).
		Str("task_id", taskID).
		Str("model", payload.Model).
		Msg("dashscope: task submitted")

	taskURL := base + "/tasks/" + url.PathEscape(taskID)
	return a.poller.Run(ctx, dashScopeProvider, taskID, func(ctx context.Context, attempt int) (PollOutcome, error) {
		return a.checkTask(ctx, taskURL, apiKey)
	})
}

func (a *DashScopeAdapter) checkTask(ctx context.Context, taskURL, apiKey string) (PollOutcome, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, taskURL, nil)
	if err != nil {
		return PollOutcome{}, fmt.Errorf("dashscope: build poll request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	raw, _, err := do(ctx, a.httpClient, dashScopeProvider, httpReq)
	if err != nil {
		return PollOutcome{}, classifyDashScopeError(err)
	}
	var task dashScopeTaskResponse
	if err := decodeJSON(dashScopeProvider, raw, &task); err != nil {
		return PollOutcome{}, err
	}
	switch strings.ToUpper(task.Output.TaskStatus) {
	case "PENDING", "RUNNING", "SUSPENDED", "":
		return PollOutcome{State: PollPending}, nil
	case "SUCCEEDED":
		if u := task.firstURL(); u != "" {
			return PollOutcome{State: PollSucceeded, Result: Result{URL: u}}, nil
		}
		res, err := ExtractImageJSON(dashScopeProvider, raw)
		if err != nil {
			return PollOutcome{}, err
		}
		return PollOutcome{State: PollSucceeded, Result: res}, nil
	default:
		code, msg := task.failure()
		if msg == "" {
			msg = "task " + strings.ToLower(task.Output.TaskStatus)
		}
		return PollOutcome{State: PollFailed, Message: msg, Blocked: dashScopeBlockedCodes[code]}, nil
	}
}

// classifyDashScopeError promotes inspection refusals sent as error replies
// to ContentBlockedError so they are never failed over.
func classifyDashScopeError(err error) error {
	var pce *domain.ProviderCallError
	if !errors.As(err, &pce) || !dashScopeBlockedCodes[pce.Code] {
		return err
	}
	return &domain.ContentBlockedError{Provider: dashScopeProvider, Reason: pce.Message}
}
