package platforms

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-lambda-go/lambda/messages"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/google/uuid"

	"github.com/balu-bunny/lambdaTest/shared/config"
	"github.com/balu-bunny/lambdaTest/shared/handler"
)

// LambdaAdapter adapts a handler to the AWS Lambda runtime. One function
// serves one stage; the event can be a direct invoke payload, an SQS batch
// or an API Gateway proxy request.
type LambdaAdapter struct {
	handler *handler.Handler
	config  *config.LambdaConfig
	stage   string
}

// NewLambdaAdapter creates a new Lambda adapter for stage.
func NewLambdaAdapter(h *handler.Handler, cfg *config.LambdaConfig, stage string) *LambdaAdapter {
	if cfg == nil {
		defaults := config.DefaultLambdaConfig()
		cfg = &defaults
	}
	return &LambdaAdapter{
		handler: h,
		config:  cfg,
		stage:   strings.ToLower(stage),
	}
}

// ResolveStage picks the stage a function serves: the explicit name when
// set, otherwise the last "-" or "_" separated part of the function name
// ("sfbackup-prod-checkstatus" serves "checkstatus").
func ResolveStage(explicit, functionName string) string {
	if s := strings.TrimSpace(explicit); s != "" {
		return strings.ToLower(s)
	}
	if functionName == "" {
		functionName = lambdacontext.FunctionName
	}
	if i := strings.LastIndexAny(functionName, "-_"); i >= 0 {
		functionName = functionName[i+1:]
	}
	return strings.ToLower(functionName)
}

// Start begins the Lambda runtime handler
func (a *LambdaAdapter) Start() {
	lambda.Start(a.HandleEvent)
}

// eventShape holds just enough of an event to tell the shapes apart.
type eventShape struct {
	Records []struct {
		EventSource string `json:"eventSource"`
	} `json:"Records"`
	HTTPMethod string `json:"httpMethod"`
}

// HandleEvent is the main Lambda handler that routes different event types
func (a *LambdaAdapter) HandleEvent(ctx context.Context, event json.RawMessage) (interface{}, error) {
	var shape eventShape
	_ = json.Unmarshal(event, &shape)

	switch {
	case len(shape.Records) > 0 && shape.Records[0].EventSource == "aws:sqs":
		var sqsEvent events.SQSEvent
		if err := json.Unmarshal(event, &sqsEvent); err != nil {
			return nil, invokeError(handler.CodeValidation, fmt.Sprintf("invalid SQS event: %v", err))
		}
		return a.handleSQSEvent(ctx, sqsEvent)

	case shape.HTTPMethod != "":
		var apiEvent events.APIGatewayProxyRequest
		if err := json.Unmarshal(event, &apiEvent); err != nil {
			return nil, invokeError(handler.CodeValidation, fmt.Sprintf("invalid API Gateway event: %v", err))
		}
		return a.handleAPIGatewayEvent(ctx, apiEvent)
	}

	return a.handleDirect(ctx, event)
}

// handleDirect serves a Step Functions style invoke: the event is the stage
// input and the result is the stage output. Failures become Lambda errors
// whose errorType is the error code.
func (a *LambdaAdapter) handleDirect(ctx context.Context, event json.RawMessage) (interface{}, error) {
	req := handler.Request{
		ID:        invocationID(ctx),
		Source:    "lambda",
		Type:      a.stage,
		Payload:   event,
		Metadata:  map[string]string{},
		Timestamp: time.Now().UTC(),
	}

	resp, err := a.handler.Handle(ctx, req)
	if err != nil {
		return nil, invokeError(handler.CodeInternal, err.Error())
	}
	if !resp.Success {
		body := resp.Error.Body()
		return nil, invokeError(body.Code, body.Error)
	}

	return dataOrEmpty(resp.Data), nil
}

// handleSQSEvent processes SQS events with support for batch processing
func (a *LambdaAdapter) handleSQSEvent(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	response := events.SQSEventResponse{
		BatchItemFailures: []events.SQSBatchItemFailure{},
	}

	for _, record := range event.Records {
		if err := a.processSQSMessage(ctx, record); err != nil {
			if !a.config.EnablePartialBatchFailure {
				return response, err
			}
			response.BatchItemFailures = append(response.BatchItemFailures,
				events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
	}

	return response, nil
}

// processSQSMessage returns an error only for failures worth redelivering.
func (a *LambdaAdapter) processSQSMessage(ctx context.Context, record events.SQSMessage) error {
	response, err := a.handler.Handle(ctx, a.buildRequestFromSQS(record))
	if err != nil {
		return fmt.Errorf("handler error: %w", err)
	}

	if !response.Success && response.Error != nil && response.Error.Retryable {
		return fmt.Errorf("%s: %s", response.Error.Code, response.Error.Message)
	}

	// Non-retryable failures are dropped so the message is not redelivered
	return nil
}

// buildRequestFromSQS converts SQS message to handler.Request
func (a *LambdaAdapter) buildRequestFromSQS(record events.SQSMessage) handler.Request {
	metadata := make(map[string]string)
	for key, attr := range record.MessageAttributes {
		if attr.StringValue != nil {
			metadata[key] = *attr.StringValue
		}
	}

	metadata["sqs_message_id"] = record.MessageId
	metadata["sqs_event_source"] = record.EventSource

	payload := json.RawMessage(record.Body)
	if !json.Valid(payload) {
		wrapped, _ := json.Marshal(record.Body)
		payload = wrapped
	}

	requestType := a.stage
	if msgType, ok := metadata["type"]; ok && msgType != "" {
		requestType = strings.ToLower(msgType)
	}

	requestID := record.MessageId
	if id, ok := metadata["request_id"]; ok && id != "" {
		requestID = id
	}

	return handler.Request{
		ID:        requestID,
		Source:    "sqs",
		Type:      requestType,
		Payload:   payload,
		Metadata:  metadata,
		Timestamp: time.Now().UTC(),
	}
}

// handleAPIGatewayEvent serves the synchronous channel. The stage comes from
// the last path segment, falling back to the function's own stage.
func (a *LambdaAdapter) handleAPIGatewayEvent(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	metadata := map[string]string{
		"http_method": event.HTTPMethod,
		"http_path":   event.Path,
	}
	for key, value := range event.Headers {
		if strings.EqualFold(key, "x-amzn-trace-id") || strings.EqualFold(key, "x-request-id") {
			metadata[strings.ToLower(key)] = value
		}
	}

	requestType := a.stage
	if segment := lastPathSegment(event.Path); segment != "" {
		requestType = segment
	}

	requestID := event.RequestContext.RequestID
	if requestID == "" {
		requestID = invocationID(ctx)
	}

	req := handler.Request{
		ID:        requestID,
		Source:    "apigateway",
		Type:      requestType,
		Payload:   json.RawMessage(event.Body),
		Metadata:  metadata,
		Timestamp: time.Now().UTC(),
	}

	resp, err := a.handler.Handle(ctx, req)
	if err != nil {
		resp = handler.NewErrorResponse(req.ID, handler.CodeInternal, err.Error(), "")
	}

	status, body := renderResponse(resp)
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type": "application/json",
			"X-Request-ID": req.ID,
		},
		Body: string(body),
	}, nil
}

func invokeError(code, message string) messages.InvokeResponse_Error {
	if code == "" {
		code = handler.CodeInternal
	}
	return messages.InvokeResponse_Error{Type: code, Message: message}
}

func invocationID(ctx context.Context) string {
	if lc, ok := lambdacontext.FromContext(ctx); ok && lc.AwsRequestID != "" {
		return lc.AwsRequestID
	}
	return uuid.New().String()
}

func lastPathSegment(path string) string {
	path = strings.Trim(path, "/")
	if i := strings.LastIndex(path, "/"); i >= 0 {
		path = path[i+1:]
	}
	return strings.ToLower(path)
}
