package handler

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Error codes shared by every channel. They double as the Lambda errorType,
// so a state machine can Retry or Catch on them by name.
const (
	CodeValidation = "ValidationError"
	CodeNotFound   = "NotFound"
	CodeAuth       = "AuthError"
	CodeRemote     = "RemoteError"
	CodeTransient  = "TransientError"
	CodeStorage    = "StorageError"
	CodeInternal   = "InternalError"
)

var retryableCodes = map[string]bool{
	CodeTransient: true,
	CodeStorage:   true,
	CodeInternal:  true,
}

// IsRetryableCode reports whether replaying the same input may succeed.
func IsRetryableCode(code string) bool { return retryableCodes[code] }

// Request is one stage invocation, whichever channel it arrived on.
type Request struct {
	ID string `json:"id"`
	// Source is lambda, sqs, apigateway, http or cli.
	Source string `json:"source"`
	// Type is the stage name, e.g. "initjob".
	Type      string            `json:"type"`
	Payload   json.RawMessage   `json:"payload"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// NewRequest marshals payload into a request for stage requestType.
func NewRequest(requestType string, payload interface{}) (Request, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Request{}, err
	}
	return Request{
		ID:        uuid.NewString(),
		Type:      requestType,
		Payload:   raw,
		Metadata:  map[string]string{},
		Timestamp: time.Now().UTC(),
	}, nil
}

func (r *Request) Unmarshal(v interface{}) error {
	return json.Unmarshal(r.Payload, v)
}

func (r *Request) SetMetadata(key, value string) {
	if r.Metadata == nil {
		r.Metadata = map[string]string{}
	}
	r.Metadata[key] = value
}

func (r *Request) GetMetadata(key string) (string, bool) {
	v, ok := r.Metadata[key]
	return v, ok
}

// Response carries the stage output in Data, or Error when Success is false.
type Response struct {
	ID          string            `json:"id"`
	Success     bool              `json:"success"`
	Data        json.RawMessage   `json:"data,omitempty"`
	Error       *ErrorResponse    `json:"error,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	ProcessedAt time.Time         `json:"processed_at"`
	Duration    time.Duration     `json:"duration,omitempty"`
}

func (r *Response) Marshal(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	r.Data = data
	return nil
}

// ErrorResponse is a failed stage. Code is one of the Code constants.
type ErrorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   string `json:"details,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

// ErrorBody is what HTTP and API Gateway callers receive on failure.
type ErrorBody struct {
	Status    string `json:"status"`
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

// Body renders e for the synchronous channels. A nil error renders as a
// retryable InternalError.
func (e *ErrorResponse) Body() ErrorBody {
	if e == nil {
		return ErrorBody{Status: "Error", Error: "unknown error", Code: CodeInternal, Retryable: true}
	}
	return ErrorBody{Status: "Error", Error: e.Message, Code: e.Code, Retryable: e.Retryable}
}

// NewErrorResponse builds a failed response. Retryable follows code.
func NewErrorResponse(id, code, message, details string) Response {
	return Response{
		ID: id,
		Error: &ErrorResponse{
			Code:      code,
			Message:   message,
			Details:   details,
			Retryable: IsRetryableCode(code),
		},
		ProcessedAt: time.Now().UTC(),
	}
}

// NewSuccessResponse builds a successful response with data marshalled into
// Data. A nil data leaves Data empty.
func NewSuccessResponse(id string, data interface{}) (Response, error) {
	resp := Response{
		ID:          id,
		Success:     true,
		Metadata:    map[string]string{},
		ProcessedAt: time.Now().UTC(),
	}
	if data == nil {
		return resp, nil
	}
	if err := resp.Marshal(data); err != nil {
		return Response{}, err
	}
	return resp, nil
}
