package evs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

const sampleMessage = `<?xml version="1.0" encoding="UTF-8"?>
<SIU_S12 xmlns="urn:hl7-org:v2xml">
  <MSH>
    <MSH.9>
      <MSG.1>SIU</MSG.1>
      <MSG.2>S12</MSG.2>
    </MSH.9>
  </MSH>
</SIU_S12>`

func testClient(t *testing.T, handler http.Handler, opts ...ClientOption) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	opts = append([]ClientOption{
		WithBaseURL(server.URL),
		WithAPIKey("test-key"),
		WithPollInterval(time.Millisecond),
		WithPollTimeout(100 * time.Millisecond),
	}, opts...)
	return NewClient(opts...), server
}

func TestSubmit(t *testing.T) {
	var gotBody submissionRequest
	var gotAuth string
	client, server := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/evs/rest/validations" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		w.Header().Set("Location", r.Host+"/evs/rest/validations/1.2.3.4?privacyKey=secret")
		w.WriteHeader(http.StatusCreated)
	}))
	_ = server

	ref, err := client.Submit(context.Background(), "booking.xml", []byte(sampleMessage))
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}

	if ref.OID != "1.2.3.4" {
		t.Errorf("OID = %q, want 1.2.3.4", ref.OID)
	}
	if ref.PrivacyKey != "secret" {
		t.Errorf("PrivacyKey = %q, want secret", ref.PrivacyKey)
	}
	if ref.MessageType != "SIU^S12" {
		t.Errorf("MessageType = %q, want SIU^S12", ref.MessageType)
	}

	if gotAuth != "GazelleAPIKey test-key" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if len(gotBody.Objects) != 1 || gotBody.Objects[0].OriginalFileName != "booking.xml" {
		t.Fatalf("unexpected submission objects: %+v", gotBody.Objects)
	}
	content, err := base64.StdEncoding.DecodeString(gotBody.Objects[0].Content)
	if err != nil {
		t.Fatalf("content is not base64: %v", err)
	}
	if string(content) != sampleMessage {
		t.Error("submitted content does not match the message")
	}
	if gotBody.ValidationService.Name != DefaultServiceName {
		t.Errorf("service name = %q", gotBody.ValidationService.Name)
	}
	if gotBody.ValidationService.Validator != DefaultValidators()["SIU^S12"] {
		t.Errorf("validator OID = %q", gotBody.ValidationService.Validator)
	}
}

func TestSubmitUnknownMessageType(t *testing.T) {
	client := NewClient()
	client.validators = map[string]string{}

	_, err := client.Submit(context.Background(), "booking.xml", []byte(sampleMessage))
	if !errors.Is(err, ErrUnknownMessageType) {
		t.Errorf("Submit() error = %v, want ErrUnknownMessageType", err)
	}
}

func TestSubmitRejected(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))

	if _, err := client.Submit(context.Background(), "booking.xml", []byte(sampleMessage)); err == nil {
		t.Error("Submit() succeeded on a 401 response")
	}
}

func TestFetchReportPending(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))

	_, err := client.FetchReport(context.Background(), &SubmissionRef{OID: "1.2.3.4"})
	if !errors.Is(err, ErrReportPending) {
		t.Errorf("FetchReport() error = %v, want ErrReportPending", err)
	}
}

func TestWaitForReport(t *testing.T) {
	var polls atomic.Int32
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/evs/rest/validations/1.2.3.4/report" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Accept") != "application/xml" {
			t.Errorf("Accept = %q", r.Header.Get("Accept"))
		}
		// First two polls report "still running".
		if polls.Add(1) <= 2 {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(passedReport))
	}))

	ref := &SubmissionRef{OID: "1.2.3.4", PrivacyKey: "secret"}
	report, err := client.WaitForReport(context.Background(), ref)
	if err != nil {
		t.Fatalf("WaitForReport() error: %v", err)
	}

	if !report.Passed() {
		t.Errorf("Result = %q, want PASSED", report.Result)
	}
	if report.Ref != ref {
		t.Error("report does not carry its submission reference")
	}
	if report.Permalink != client.Permalink(ref) {
		t.Errorf("Permalink = %q", report.Permalink)
	}
	if got := polls.Load(); got != 3 {
		t.Errorf("polls = %d, want 3", got)
	}
}

func TestWaitForReportTimeout(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))

	_, err := client.WaitForReport(context.Background(), &SubmissionRef{OID: "1.2.3.4"})
	if !errors.Is(err, ErrReportTimeout) {
		t.Errorf("WaitForReport() error = %v, want ErrReportTimeout", err)
	}
}

func TestWaitForReportCancelled(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}), WithPollTimeout(time.Minute))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.WaitForReport(ctx, &SubmissionRef{OID: "1.2.3.4"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("WaitForReport() error = %v, want context.Canceled", err)
	}
}

func TestValidate(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost:
			w.Header().Set("Location", r.Host+"/evs/rest/validations/5.6.7.8?privacyKey=pk")
			w.WriteHeader(http.StatusCreated)
		default:
			_, _ = w.Write([]byte(failedReport))
		}
	}))

	report, err := client.Validate(context.Background(), "booking.xml", []byte(sampleMessage))
	if err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
	if report.Passed() {
		t.Error("Passed() = true for a failed report")
	}
	if len(report.Blocking()) != 2 {
		t.Errorf("len(Blocking()) = %d, want 2", len(report.Blocking()))
	}
	if report.Ref.OID != "5.6.7.8" {
		t.Errorf("Ref.OID = %q", report.Ref.OID)
	}
}

func TestParseLocation(t *testing.T) {
	cases := []struct {
		name     string
		location string
		oid      string
		key      string
		wantErr  bool
	}{
		{name: "full", location: "https://host/evs/rest/validations/1.2.3?privacyKey=abc", oid: "1.2.3", key: "abc"},
		{name: "no key", location: "https://host/evs/rest/validations/1.2.3", oid: "1.2.3"},
		{name: "relative", location: "/evs/rest/validations/9.8.7?privacyKey=k", oid: "9.8.7", key: "k"},
		{name: "empty", location: "", wantErr: true},
		{name: "unrelated", location: "https://host/elsewhere", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ref, err := parseLocation(tc.location)
			if tc.wantErr {
				if err == nil {
					t.Fatal("parseLocation() succeeded")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseLocation() error: %v", err)
			}
			if ref.OID != tc.oid || ref.PrivacyKey != tc.key {
				t.Errorf("got %q/%q, want %q/%q", ref.OID, ref.PrivacyKey, tc.oid, tc.key)
			}
		})
	}
}
