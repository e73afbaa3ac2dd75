package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cedarwud/stagegate/pkg/types"
)

func testAlert() types.Alert {
	return types.Alert{
		Level:     types.AlertLevelError,
		StageID:   "stage1",
		Message:   "quality gate closed",
		Timestamp: time.Now(),
	}
}

func TestConsoleSink_Send(t *testing.T) {
	var buf bytes.Buffer
	sink := NewConsoleSinkTo(&buf)
	assert.Equal(t, "console", sink.Name())

	for _, level := range []types.AlertLevel{types.AlertLevelError, types.AlertLevelWarning, types.AlertLevelInfo} {
		a := testAlert()
		a.Level = level
		assert.NoError(t, sink.Send(context.Background(), a))
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "[stage1]")
	assert.Contains(t, lines[0], "quality gate closed")
}

func TestWebhookSink_Send_Success(t *testing.T) {
	var received []byte
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		buf := make([]byte, 4096)
		n, _ := r.Body.Read(buf)
		received = buf[:n]
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	sink := NewWebhookSink(ts.URL)
	alert := testAlert()
	require.NoError(t, sink.Send(context.Background(), alert))

	var got types.Alert
	require.NoError(t, json.Unmarshal(received, &got))
	assert.Equal(t, alert.Message, got.Message)
	assert.Equal(t, alert.StageID, got.StageID)
}

func TestWebhookSink_Send_ServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	sink := NewWebhookSink(ts.URL)
	err := sink.Send(context.Background(), testAlert())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestWebhookSink_Send_HonorsContext(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sink := NewWebhookSink(ts.URL)
	err := sink.Send(ctx, testAlert())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFileSink_Send(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alerts.jsonl")
	sink, err := NewFileSink(path)
	require.NoError(t, err)

	require.NoError(t, sink.Send(context.Background(), testAlert()))
	require.NoError(t, sink.Send(context.Background(), testAlert()))
	require.NoError(t, sink.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 2)

	var got types.Alert
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &got))
	assert.Equal(t, "stage1", got.StageID)
}

type fakeSNS struct {
	inputs []*sns.PublishInput
}

func (f *fakeSNS) Publish(_ context.Context, input *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.inputs = append(f.inputs, input)
	return &sns.PublishOutput{}, nil
}

func TestSNSSink_Send(t *testing.T) {
	fake := &fakeSNS{}
	sink, err := NewSNSSink("arn:aws:sns:us-east-1:000000000000:alerts", WithSNSClient(fake))
	require.NoError(t, err)

	require.NoError(t, sink.Send(context.Background(), testAlert()))
	require.Len(t, fake.inputs, 1)
	assert.Contains(t, *fake.inputs[0].Subject, "stage1")

	var got types.Alert
	require.NoError(t, json.Unmarshal([]byte(*fake.inputs[0].Message), &got))
	assert.Equal(t, "quality gate closed", got.Message)
}

func TestSNSSink_RequiresTopicARN(t *testing.T) {
	_, err := NewSNSSink("")
	require.Error(t, err)
}

func TestDispatcher_SendsToAllSinks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alerts.jsonl")
	d, err := NewDispatcher([]types.AlertConfig{
		{Type: types.AlertConsole},
		{Type: types.AlertFile, Path: path},
	}, nil)
	require.NoError(t, err)

	d.Dispatch(context.Background(), testAlert())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotEmpty(t, raw)
}

func TestDispatcher_UnknownSinkType(t *testing.T) {
	_, err := NewDispatcher([]types.AlertConfig{{Type: "pigeon"}}, nil)
	require.Error(t, err)
}

func TestDispatcher_WebhookRequiresURL(t *testing.T) {
	_, err := NewDispatcher([]types.AlertConfig{{Type: types.AlertWebhook}}, nil)
	require.Error(t, err)
}
