package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/contractengine/internal/license"
	"github.com/dshills/contractengine/internal/llm"
	"github.com/dshills/contractengine/internal/observe"
	"github.com/dshills/contractengine/internal/schema"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// scripted replies with its responses in order.
type scripted struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	calls     int
}

func (s *scripted) Complete(context.Context, llm.CompletionRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	if i < len(s.responses) {
		return s.responses[i], err
	}
	return "", err
}

type stubAnalyzer struct {
	result *schema.AnalysisResult
	err    error
	got    llm.Request
}

func (a *stubAnalyzer) Analyze(_ context.Context, req llm.Request) (*schema.AnalysisResult, error) {
	a.got = req
	return a.result, a.err
}

type stubVerifier struct {
	res license.Result
	err error
}

func (v stubVerifier) Verify(context.Context, string) (license.Result, error) { return v.res, v.err }

func readFixture(t *testing.T, name string) string {
	t.Helper()
	b, err := os.ReadFile("../../testdata/responses/" + name)
	require.NoError(t, err)
	return string(b)
}

func post(t *testing.T, h http.Handler, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) apiError {
	t.Helper()
	var body apiError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestHealth(t *testing.T) {
	s := New(&stubAnalyzer{}, Options{Logger: quiet})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
	assert.NotEmpty(t, w.Header().Get(HeaderRequestID))
}

func TestAnalyze_EndToEnd(t *testing.T) {
	p := &scripted{responses: []string{readFixture(t, "minimal_valid.json")}}
	engine := llm.NewEngine(p, llm.Options{Logger: quiet})
	s := New(engine, Options{Logger: quiet})

	w := post(t, s, `{"contract_text":"Buyer shall pay Seller USD 100,000 within 30 days.","party_role":"Buyer"}`, nil)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var got map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "Low", got["overallRisk"])
	for _, key := range []string{"keyCommercials", "executiveSummary", "riskMatrix", "scope", "compliance", "detailedAnalysis"} {
		assert.Contains(t, got, key)
	}
	assert.Equal(t, 1, p.calls)
}

func TestAnalyze_RepairedResponse(t *testing.T) {
	p := &scripted{responses: []string{
		readFixture(t, "truncated.txt"),
		readFixture(t, "minimal_valid.json"),
	}}
	s := New(llm.NewEngine(p, llm.Options{Logger: quiet}), Options{Logger: quiet})

	w := post(t, s, `{"contract_text":"Buyer shall pay."}`, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, p.calls)
}

func TestAnalyze_DecodeFailureIs502(t *testing.T) {
	p := &scripted{responses: []string{"", ""}}
	s := New(llm.NewEngine(p, llm.Options{Logger: quiet}), Options{Logger: quiet})

	w := post(t, s, `{"contract_text":"Buyer shall pay."}`, nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, "decode_error", body.Kind)
	assert.Equal(t, "analysis could not be parsed", body.Error)
	assert.Equal(t, w.Header().Get(HeaderRequestID), body.RequestID)
	assert.Equal(t, 2, p.calls, "one analyze call and exactly one repair call")
}

func TestAnalyze_ValidationFailureCarriesPath(t *testing.T) {
	bad := strings.Replace(readFixture(t, "minimal_valid.json"), `"overallRisk": "Low"`, `"overallRisk": "Severe"`, 1)
	p := &scripted{responses: []string{bad}}
	s := New(llm.NewEngine(p, llm.Options{Logger: quiet}), Options{Logger: quiet})

	w := post(t, s, `{"contract_text":"Buyer shall pay."}`, nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, "validation_error", body.Kind)
	assert.Equal(t, "overallRisk", body.Path)
	assert.Equal(t, `"Severe"`, body.Value)
	assert.Equal(t, 1, p.calls, "validation failures never trigger repair")
}

func TestAnalyze_TransportFailureIs503(t *testing.T) {
	p := &scripted{errs: []error{&llm.StatusError{Provider: "openai", StatusCode: 429, Err: errors.New("slow down")}}}
	s := New(llm.NewEngine(p, llm.Options{Logger: quiet}), Options{Logger: quiet})

	w := post(t, s, `{"contract_text":"Buyer shall pay."}`, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, "transport_error", body.Kind)
	assert.Equal(t, "rate_limit", body.Reason)
	assert.Equal(t, 1, p.calls)
}

func TestAnalysisError_Mapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"empty", llm.ErrEmptyContract, http.StatusBadRequest, "empty_contract"},
		{"transport", &llm.TransportError{Op: "analyze", Kind: llm.KindAuth, Err: errors.New("401")}, http.StatusServiceUnavailable, "transport_error"},
		{"timeout", &llm.TransportError{Op: "analyze", Kind: llm.KindTimeout, Err: context.DeadlineExceeded}, http.StatusServiceUnavailable, "transport_error"},
		{"canceled", &llm.TransportError{Op: "analyze", Kind: llm.KindCanceled, Err: context.Canceled}, StatusClientClosedRequest, "canceled"},
		{"decode", &llm.DecodeError{Reason: "eof"}, http.StatusBadGateway, "decode_error"},
		{"validation", &schema.ValidationError{Path: "scope", Reason: schema.ErrMissingField}, http.StatusBadGateway, "validation_error"},
		{"other", errors.New("boom"), http.StatusInternalServerError, "error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := analysisError(tc.err)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.kind, body.Kind)
		})
	}
}

func TestAnalyze_BadRequests(t *testing.T) {
	a := &stubAnalyzer{}
	s := New(a, Options{Logger: quiet, MaxBodyBytes: 64})

	cases := []struct {
		name   string
		body   string
		status int
		msg    string
	}{
		{"not json", `{"contract_text":`, http.StatusBadRequest, "invalid JSON body"},
		{"missing text", `{"party_role":"Buyer"}`, http.StatusBadRequest, "contract_text is required"},
		{"too large", `{"contract_text":"` + strings.Repeat("x", 100) + `"}`, http.StatusRequestEntityTooLarge, "too large"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := post(t, s, tc.body, nil)
			assert.Equal(t, tc.status, w.Code)
			body := decodeError(t, w)
			assert.Equal(t, "bad_request", body.Kind)
			assert.Contains(t, body.Error, tc.msg)
		})
	}
}

func TestAnalyze_FieldLimit(t *testing.T) {
	s := New(&stubAnalyzer{}, Options{Logger: quiet})
	w := post(t, s, `{"contract_text":"x","party_role":"`+strings.Repeat("r", 201)+`"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeError(t, w).Error, "party_role exceeds 200")
}

func TestAnalyze_WhitespaceContractIs400(t *testing.T) {
	p := &scripted{}
	s := New(llm.NewEngine(p, llm.Options{Logger: quiet}), Options{Logger: quiet})

	w := post(t, s, `{"contract_text":"   \n\t "}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "empty_contract", decodeError(t, w).Kind)
	assert.Zero(t, p.calls)
}

func TestAnalyze_PassesRequestFields(t *testing.T) {
	a := &stubAnalyzer{result: &schema.AnalysisResult{OverallRisk: schema.RiskHigh}}
	s := New(a, Options{Logger: quiet})

	w := post(t, s, `{"contract_text":"text","party_role":"Seller","deal_context":"renewal"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, llm.Request{ContractText: "text", PartyRole: "Seller", DealContext: "renewal"}, a.got)
}

func TestAnalyze_License(t *testing.T) {
	ok := &schema.AnalysisResult{OverallRisk: schema.RiskLow}
	cases := []struct {
		name     string
		verifier license.Verifier
		key      string
		status   int
	}{
		{"missing header", license.DevVerifier{}, "", http.StatusUnauthorized},
		{"rejected", license.DevVerifier{}, "short", http.StatusForbidden},
		{"accepted", license.DevVerifier{}, "ABCD-1234", http.StatusOK},
		{"unavailable", stubVerifier{err: license.ErrUnavailable}, "ABCD-1234", http.StatusServiceUnavailable},
		{"off", license.AllowAll{}, "", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := New(&stubAnalyzer{result: ok}, Options{Logger: quiet, Verifier: tc.verifier})
			hdr := map[string]string{}
			if tc.key != "" {
				hdr[HeaderLicenseKey] = tc.key
			}
			w := post(t, s, `{"contract_text":"x"}`, hdr)
			assert.Equal(t, tc.status, w.Code)
			if tc.status != http.StatusOK {
				assert.Equal(t, "license", decodeError(t, w).Kind)
			}
		})
	}
}

func TestRequestID_Propagates(t *testing.T) {
	s := New(&stubAnalyzer{err: &llm.DecodeError{Reason: "x"}}, Options{Logger: quiet})
	w := post(t, s, `{"contract_text":"x"}`, map[string]string{HeaderRequestID: "req-42"})
	assert.Equal(t, "req-42", w.Header().Get(HeaderRequestID))
	assert.Equal(t, "req-42", decodeError(t, w).RequestID)
}

func TestAnalysisError_MissingFieldHasNoValue(t *testing.T) {
	_, body := analysisError(&schema.ValidationError{Path: "scope", Reason: schema.ErrMissingField})
	assert.Equal(t, "scope", body.Path)
	assert.Empty(t, body.Value)
}

func TestUnmatchedRoutes(t *testing.T) {
	cases := []struct {
		name   string
		method string
		path   string
		status int
	}{
		{"method not allowed", http.MethodGet, "/analyze", http.StatusMethodNotAllowed},
		{"not found", http.MethodGet, "/nope", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var logs bytes.Buffer
			s := New(&stubAnalyzer{}, Options{Logger: slog.New(slog.NewTextHandler(&logs, nil))})
			req := httptest.NewRequest(tc.method, tc.path, nil)
			req.Header.Set(HeaderRequestID, "req-7")
			w := httptest.NewRecorder()
			s.ServeHTTP(w, req)

			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, "req-7", w.Header().Get(HeaderRequestID))
			assert.Equal(t, "req-7", decodeError(t, w).RequestID)
			assert.Contains(t, logs.String(), "http request")
			assert.Contains(t, logs.String(), "path="+tc.path)
		})
	}
}

func TestRecoverer(t *testing.T) {
	h := RequestID(Recoverer(quiet)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal", decodeError(t, w).Kind)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := observe.NewPrometheus(reg)
	require.NoError(t, err)

	p := &scripted{responses: []string{readFixture(t, "minimal_valid.json")}}
	engine := llm.NewEngine(p, llm.Options{Logger: quiet, Observer: metrics})
	s := New(engine, Options{Logger: quiet, Gatherer: reg})

	require.Equal(t, http.StatusOK, post(t, s, `{"contract_text":"x"}`, nil).Code)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "contractengine_analyses_total")
}
