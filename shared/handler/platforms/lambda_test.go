package platforms

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda/messages"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/balu-bunny/lambdaTest/shared/config"
	"github.com/balu-bunny/lambdaTest/shared/handler"
	"github.com/balu-bunny/lambdaTest/shared/handler/mocks"
)

func stringPtr(s string) *string { return &s }

func newLambdaAdapter(worker *mocks.MockWorker, stage string) *LambdaAdapter {
	cfg := config.DefaultLambdaConfig()
	return NewLambdaAdapter(newTestHandler(worker), &cfg, stage)
}

func TestResolveStage(t *testing.T) {
	tests := []struct {
		explicit string
		function string
		expected string
	}{
		{"Download", "sfbackup-prod-initjob", "download"},
		{"", "sfbackup-prod-CheckStatus", "checkstatus"},
		{"", "sfbackup_markfailed", "markfailed"},
		{"", "listobjects", "listobjects"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, ResolveStage(tt.explicit, tt.function))
		})
	}
}

func TestLambdaAdapter_DirectInvoke(t *testing.T) {
	t.Run("success returns the stage output", func(t *testing.T) {
		worker := mocks.NewMockWorker("backup")
		worker.On("Process", mock.Anything, mock.MatchedBy(func(req handler.Request) bool {
			return req.Type == "initjob" && req.Source == "lambda" && req.ID == "aws-req-1" &&
				string(req.Payload) == `{"objectName":"Account"}`
		})).Return(handler.Response{Success: true, Data: json.RawMessage(`{"jobId":"750"}`)}, nil)

		ctx := lambdacontext.NewContext(context.Background(), &lambdacontext.LambdaContext{AwsRequestID: "aws-req-1"})
		out, err := newLambdaAdapter(worker, "InitJob").HandleEvent(ctx, json.RawMessage(`{"objectName":"Account"}`))
		require.NoError(t, err)

		raw, ok := out.(json.RawMessage)
		require.True(t, ok)
		assert.JSONEq(t, `{"jobId":"750"}`, string(raw))
		worker.AssertExpectations(t)
	})

	t.Run("failure carries the error code as errorType", func(t *testing.T) {
		worker := mocks.NewMockWorker("backup")
		worker.ExpectProcessAny(handler.NewErrorResponse("x", handler.CodeTransient, "download exceeded 900s", ""), nil)

		_, err := newLambdaAdapter(worker, "download").HandleEvent(context.Background(), json.RawMessage(`{"jobId":"750"}`))
		require.Error(t, err)

		var invokeErr messages.InvokeResponse_Error
		require.ErrorAs(t, err, &invokeErr)
		assert.Equal(t, handler.CodeTransient, invokeErr.Type)
		assert.Equal(t, "download exceeded 900s", invokeErr.Message)
	})
}

func TestLambdaAdapter_SQS(t *testing.T) {
	worker := mocks.NewMockWorker("backup")
	worker.On("Process", mock.Anything, mock.MatchedBy(func(req handler.Request) bool {
		return req.ID == "msg-ok"
	})).Return(handler.Response{Success: true}, nil)
	worker.On("Process", mock.Anything, mock.MatchedBy(func(req handler.Request) bool {
		return req.ID == "msg-retry"
	})).Return(handler.NewErrorResponse("msg-retry", handler.CodeStorage, "ledger unavailable", ""), nil)
	worker.On("Process", mock.Anything, mock.MatchedBy(func(req handler.Request) bool {
		return req.ID == "msg-fatal"
	})).Return(handler.NewErrorResponse("msg-fatal", handler.CodeAuth, "no credential", ""), nil)

	event := events.SQSEvent{Records: []events.SQSMessage{
		{MessageId: "msg-ok", EventSource: "aws:sqs", Body: `{"objectName":"Account"}`},
		{MessageId: "msg-retry", EventSource: "aws:sqs", Body: `{}`},
		{MessageId: "msg-fatal", EventSource: "aws:sqs", Body: `{}`},
	}}
	raw, err := json.Marshal(event)
	require.NoError(t, err)

	out, err := newLambdaAdapter(worker, "markcompleted").HandleEvent(context.Background(), raw)
	require.NoError(t, err)

	resp, ok := out.(events.SQSEventResponse)
	require.True(t, ok)
	require.Len(t, resp.BatchItemFailures, 1)
	assert.Equal(t, "msg-retry", resp.BatchItemFailures[0].ItemIdentifier)
}

func TestLambdaAdapter_SQSTypeAttributeOverridesStage(t *testing.T) {
	worker := mocks.NewMockWorker("backup")
	worker.ExpectProcess("download", handler.Response{Success: true}, nil)

	req := newLambdaAdapter(worker, "initjob").buildRequestFromSQS(events.SQSMessage{
		MessageId: "m1",
		Body:      "not json",
		MessageAttributes: map[string]events.SQSMessageAttribute{
			"type": {StringValue: stringPtr("Download")},
		},
	})

	assert.Equal(t, "download", req.Type)
	assert.JSONEq(t, `"not json"`, string(req.Payload))
	assert.Equal(t, "m1", req.Metadata["sqs_message_id"])
}

func TestLambdaAdapter_APIGateway(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		worker := mocks.NewMockWorker("backup")
		worker.ExpectProcess("listobjects", handler.Response{Success: true, Data: json.RawMessage(`{"objects":["Account"]}`)}, nil)

		raw, _ := json.Marshal(events.APIGatewayProxyRequest{HTTPMethod: http.MethodPost, Path: "/listobjects", Body: `{}`})
		out, err := newLambdaAdapter(worker, "initjob").HandleEvent(context.Background(), raw)
		require.NoError(t, err)

		resp := out.(events.APIGatewayProxyResponse)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.JSONEq(t, `{"objects":["Account"]}`, resp.Body)
	})

	t.Run("failure renders the error body", func(t *testing.T) {
		worker := mocks.NewMockWorker("backup")
		worker.ExpectProcessAny(handler.NewErrorResponse("x", handler.CodeRemote, "HTTP 400 from describe", ""), nil)

		raw, _ := json.Marshal(events.APIGatewayProxyRequest{HTTPMethod: http.MethodPost, Path: "/initjob", Body: `{"objectName":"Nope__c"}`})
		out, err := newLambdaAdapter(worker, "initjob").HandleEvent(context.Background(), raw)
		require.NoError(t, err)

		resp := out.(events.APIGatewayProxyResponse)
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
		assert.JSONEq(t, `{"status":"Error","error":"HTTP 400 from describe","code":"RemoteError"}`, resp.Body)
	})
}
