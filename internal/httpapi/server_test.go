package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/dnsfailover/internal/engine"
	"github.com/hamed0406/dnsfailover/internal/httpapi/middleware"
	"github.com/hamed0406/dnsfailover/internal/report"
)

type fakeEngine struct {
	statuses    []engine.PolicyStatus
	reconverged []string
}

func (f *fakeEngine) Status() []engine.PolicyStatus { return f.statuses }

func (f *fakeEngine) Report(ctx context.Context, policyID string, start, end time.Time) (*report.Report, error) {
	return &report.Report{PolicyID: policyID, Start: start, End: end}, nil
}

func (f *fakeEngine) ForceReconverge(ctx context.Context, policyID string) error {
	if policyID == "missing" {
		return errors.New("no convergeable policy")
	}
	f.reconverged = append(f.reconverged, policyID)
	return nil
}

func testServer(keys middleware.Keys) (*fakeEngine, http.Handler) {
	fe := &fakeEngine{statuses: []engine.PolicyStatus{
		{ID: "fo-1", Name: "web", Type: "failover", State: "ON_PRIMARY"},
	}}
	return fe, NewServer(zap.NewNop(), fe, keys).Router()
}

func TestServer_Healthz(t *testing.T) {
	_, h := testServer(middleware.Keys{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))
	if rec.Code != 200 || rec.Body.String() != "ok" {
		t.Fatalf("code=%d body=%q", rec.Code, rec.Body.String())
	}
}

func TestServer_Status(t *testing.T) {
	_, h := testServer(middleware.Keys{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/status", nil))
	if rec.Code != 200 {
		t.Fatalf("code = %d", rec.Code)
	}
	var got []engine.PolicyStatus
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "fo-1" {
		t.Fatalf("status = %+v", got)
	}
}

func TestServer_ReportWindowValidation(t *testing.T) {
	_, h := testServer(middleware.Keys{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/reports/fo-1?start=yesterday", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad start accepted: %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET",
		"/api/reports/fo-1?start=2026-08-02T00:00:00Z&end=2026-08-01T00:00:00Z", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("inverted window accepted: %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET",
		"/api/reports/fo-1?start=2026-08-01T00:00:00Z&end=2026-08-02T00:00:00Z", nil))
	if rec.Code != 200 {
		t.Fatalf("code = %d body=%s", rec.Code, rec.Body.String())
	}
	var rep report.Report
	if err := json.NewDecoder(rec.Body).Decode(&rep); err != nil {
		t.Fatal(err)
	}
	if rep.PolicyID != "fo-1" {
		t.Fatalf("report = %+v", rep)
	}
}

func TestServer_ReconvergeRequiresAdminKey(t *testing.T) {
	fe, h := testServer(middleware.Keys{Admin: []string{"secret"}})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/api/policies/fo-1/reconverge", nil))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("missing key accepted: %d", rec.Code)
	}
	if len(fe.reconverged) != 0 {
		t.Fatal("reconverge ran without a key")
	}

	req := httptest.NewRequest("POST", "/api/policies/fo-1/reconverge", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != 200 {
		t.Fatalf("code = %d", rec.Code)
	}
	if len(fe.reconverged) != 1 || fe.reconverged[0] != "fo-1" {
		t.Fatalf("reconverged = %v", fe.reconverged)
	}
}

func TestServer_ReconvergeUnknownPolicy(t *testing.T) {
	_, h := testServer(middleware.Keys{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/api/policies/missing/reconverge", nil))
	if rec.Code != http.StatusConflict {
		t.Fatalf("code = %d", rec.Code)
	}
}
