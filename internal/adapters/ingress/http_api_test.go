package ingress

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/supplier-mail-router/internal/config"
	"github.com/mikey/supplier-mail-router/internal/core"
)

func newTestAPI(t *testing.T, svc *core.OrchestratorService) *httptest.Server {
	t.Helper()
	api := NewHTTPServer(svc, zap.NewNop(), config.HTTPConfig{})
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestProcessEmail_DeliveryDelay(t *testing.T) {
	srv := newTestAPI(t, newTestService(t, nil))

	resp := postJSON(t, srv.URL+"/api/process-email", ProcessEmailRequest{
		Sender:  delayEmailSender,
		Subject: delayEmailSubject,
		Body:    delayEmailBody,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := decode[ProcessEmailResponse](t, resp)
	assert.Equal(t, core.StatusCompleted, out.Status)
	assert.Equal(t, core.IntentDeliveryDelay, out.Intent)
	assert.Equal(t, core.AgentPOTracker, out.RoutedTo)
	assert.Equal(t, "12345", out.ExtractedEntities.PONumber)
	assert.Equal(t, "escalate_if_critical", out.Action)
	assert.NotEmpty(t, out.ExecutionID)
	assert.Greater(t, out.Cost, 0.0)
	assert.InDelta(t, 0.5867, out.Confidence, 1e-9)
}

func TestProcessEmail_PriceChange(t *testing.T) {
	srv := newTestAPI(t, newTestService(t, nil))

	resp := postJSON(t, srv.URL+"/api/process-email", ProcessEmailRequest{
		Sender:  "sales@widgets.example",
		Subject: "Price Update - PO #67890",
		Body:    "Please note the price for Part #ABC-123 has increased from $10.00 to $12.00 effective next month.",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := decode[ProcessEmailResponse](t, resp)
	assert.Equal(t, core.IntentPriceChange, out.Intent)
	assert.Equal(t, core.AgentChangeManager, out.RoutedTo)
	assert.Equal(t, "requires_approval", out.Action)
	assert.Equal(t, []string{"ABC-123"}, out.ExtractedEntities.PartNumbers)
}

func TestProcessEmail_ModelFailure(t *testing.T) {
	srv := newTestAPI(t, newTestService(t, failingLLM{}))

	resp := postJSON(t, srv.URL+"/api/process-email", ProcessEmailRequest{Subject: delayEmailSubject, Body: delayEmailBody})
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)

	out := decode[ProcessEmailResponse](t, resp)
	assert.Equal(t, core.StatusFailed, out.Status)
	assert.Equal(t, core.AgentPOTracker, out.RoutedTo)
	assert.Contains(t, out.Error, "upstream unavailable")
}

func TestProcessEmail_BadBody(t *testing.T) {
	srv := newTestAPI(t, newTestService(t, nil))

	resp, err := http.Post(srv.URL+"/api/process-email", "application/json", bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAgentStatus(t *testing.T) {
	srv := newTestAPI(t, newTestService(t, nil))

	resp, err := http.Get(srv.URL + "/api/agents/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := decode[struct {
		Agents []core.Agent `json:"agents"`
	}](t, resp)
	require.Len(t, out.Agents, 4)
	for _, a := range out.Agents {
		assert.Equal(t, core.AgentIdle, a.Status)
	}
}

func TestTimelineAndMetrics(t *testing.T) {
	srv := newTestAPI(t, newTestService(t, nil))

	first := decode[ProcessEmailResponse](t, postJSON(t, srv.URL+"/api/process-email", ProcessEmailRequest{Subject: delayEmailSubject, Body: delayEmailBody}))
	postJSON(t, srv.URL+"/api/process-email", ProcessEmailRequest{Subject: delayEmailSubject, Body: delayEmailBody})

	resp, err := http.Get(srv.URL + "/api/observability/timeline?execution_id=" + first.ExecutionID)
	require.NoError(t, err)
	defer resp.Body.Close()
	timeline := decode[struct {
		Events []core.ExecutionEvent `json:"events"`
		Count  int                   `json:"count"`
	}](t, resp)
	require.Equal(t, 3, timeline.Count)
	assert.Equal(t, core.EventExtract, timeline.Events[0].Kind)
	assert.Equal(t, core.EventRoute, timeline.Events[1].Kind)
	assert.Equal(t, core.EventTask, timeline.Events[2].Kind)

	resp, err = http.Get(srv.URL + "/api/observability/timeline?agent=po_tracker&limit=1")
	require.NoError(t, err)
	defer resp.Body.Close()
	limited := decode[struct {
		Events []core.ExecutionEvent `json:"events"`
	}](t, resp)
	require.Len(t, limited.Events, 1)
	assert.True(t, limited.Events[0].Cached)

	resp, err = http.Get(srv.URL + "/api/observability/timeline?limit=abc")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/observability/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	metrics := decode[core.MetricsSnapshot](t, resp)
	assert.Equal(t, 2, metrics.TotalProcessed)
	assert.Equal(t, 1, metrics.CacheHits)
	assert.InDelta(t, 50.0, metrics.CacheHitRate, 1e-9)
}

func TestOverride(t *testing.T) {
	srv := newTestAPI(t, newTestService(t, nil))
	processed := decode[ProcessEmailResponse](t, postJSON(t, srv.URL+"/api/process-email", ProcessEmailRequest{Subject: delayEmailSubject, Body: delayEmailBody}))

	resp := postJSON(t, srv.URL+"/api/agents/po_tracker/override", OverrideBody{
		Decision:    "send_acknowledgement",
		Reason:      "supplier already escalated by phone",
		ExecutionID: processed.ExecutionID,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode[struct {
		Status string              `json:"status"`
		Event  core.ExecutionEvent `json:"event"`
	}](t, resp)
	assert.Equal(t, "override_recorded", out.Status)
	assert.Equal(t, core.EventOverride, out.Event.Kind)
	assert.Equal(t, "send_acknowledgement", out.Event.Detail["decision"])

	resp = postJSON(t, srv.URL+"/api/agents/nobody/override", OverrideBody{Decision: "x"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = postJSON(t, srv.URL+"/api/agents/po_tracker/override", OverrideBody{Decision: "x", ExecutionID: "missing"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = postJSON(t, srv.URL+"/api/agents/po_tracker/override", OverrideBody{Reason: "no decision"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	srv := newTestAPI(t, newTestService(t, nil))

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/process-email")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
