// Package evs provides a client for the Gazelle External Validation
// Service REST API.
//
// Validation is asynchronous: a submission returns a reference, and the
// report becomes available once the validator finishes. The client polls
// the report resource with a bounded total wait.
package evs

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gohl7/corrector/hl7msg"
)

const (
	// DefaultBaseURL is the Gazelle EVS instance used by the Irish
	// national integration environment.
	DefaultBaseURL = "https://testing.ehealthireland.ie"

	// DefaultServiceName identifies the HL7 v2.x validation service.
	DefaultServiceName = "Gazelle HL7v2.x validator"

	// DefaultTimeout bounds a single HTTP request.
	DefaultTimeout = 30 * time.Second

	// DefaultPollInterval is the delay between report polls while a
	// validation is still running.
	DefaultPollInterval = time.Second

	// DefaultPollTimeout bounds the total wait for a report.
	DefaultPollTimeout = 30 * time.Second

	validationsPath = "/evs/rest/validations"
)

// Sentinel errors.
var (
	// ErrUnknownMessageType means no validator profile is configured for
	// the submitted message's type.
	ErrUnknownMessageType = errors.New("no validator configured for message type")

	// ErrReportPending means the validation has not finished yet.
	ErrReportPending = errors.New("validation report not ready")

	// ErrReportTimeout means the report did not become available within
	// the configured poll timeout.
	ErrReportTimeout = errors.New("timed out waiting for validation report")
)

// DefaultValidators maps HL7 message types to the validator profile OIDs
// of the national message profiles.
func DefaultValidators() map[string]string {
	return map[string]string{
		"ORU^R01": "1.3.6.1.4.1.12559.11.35.10.1.12",
		"SIU^S12": "1.3.6.1.4.1.12559.11.35.10.1.21",
		"REF^I12": "1.3.6.1.4.1.12559.11.35.10.1.20",
	}
}

// Client is a Gazelle EVS client.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	apiKey       string
	serviceName  string
	validators   map[string]string
	pollInterval time.Duration
	pollTimeout  time.Duration
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithBaseURL sets a custom EVS base URL.
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithAPIKey sets the Gazelle API key sent on every request.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithPollInterval sets the delay between report polls.
func WithPollInterval(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithPollTimeout bounds the total wait for a report.
func WithPollTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.pollTimeout = d
		}
	}
}

// WithValidator registers or overrides the validator OID for one message
// type.
func WithValidator(messageType, oid string) ClientOption {
	return func(c *Client) {
		c.validators[messageType] = oid
	}
}

// NewClient creates a new EVS client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient:   &http.Client{Timeout: DefaultTimeout},
		baseURL:      DefaultBaseURL,
		serviceName:  DefaultServiceName,
		validators:   DefaultValidators(),
		pollInterval: DefaultPollInterval,
		pollTimeout:  DefaultPollTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SubmissionRef identifies one submitted validation.
type SubmissionRef struct {
	OID         string
	PrivacyKey  string
	MessageType string
}

// Permalink returns the web report URL for a submission.
func (c *Client) Permalink(ref *SubmissionRef) string {
	return fmt.Sprintf("%s/evs/report.seam?oid=%s&privacyKey=%s", c.baseURL, ref.OID, ref.PrivacyKey)
}

type submissionObject struct {
	OriginalFileName string `json:"originalFileName"`
	Content          string `json:"content"`
}

type validationService struct {
	Name      string `json:"name"`
	Validator string `json:"validator"`
}

type submissionRequest struct {
	Objects           []submissionObject `json:"objects"`
	ValidationService validationService  `json:"validationService"`
}

// Submit sends a message for validation and returns its reference. The
// validator profile is selected by the message's type; submitting a
// message without a configured profile fails with ErrUnknownMessageType.
func (c *Client) Submit(ctx context.Context, filename string, message []byte) (*SubmissionRef, error) {
	msgType, ok := hl7msg.MessageType(message)
	if !ok {
		return nil, fmt.Errorf("could not detect message type of %s", filename)
	}
	oid, ok := c.validators[msgType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMessageType, msgType)
	}

	payload := submissionRequest{
		Objects: []submissionObject{{
			OriginalFileName: filename,
			Content:          base64.StdEncoding.EncodeToString(message),
		}},
		ValidationService: validationService{
			Name:      c.serviceName,
			Validator: oid,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+validationsPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to submit validation: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("validation submission rejected: status %d", resp.StatusCode)
	}

	ref, err := parseLocation(resp.Header.Get("Location"))
	if err != nil {
		return nil, err
	}
	ref.MessageType = msgType

	logrus.WithFields(logrus.Fields{
		"file": filename,
		"type": msgType,
		"oid":  ref.OID,
	}).Debug("evs: validation submitted")
	return ref, nil
}

// parseLocation extracts the validation OID and privacy key from a
// submission's Location header, e.g.
//
//	https://host/evs/rest/validations/1.2.3.4?privacyKey=abc
func parseLocation(location string) (*SubmissionRef, error) {
	idx := strings.Index(location, "/validations/")
	if idx < 0 {
		return nil, fmt.Errorf("unexpected submission location %q", location)
	}
	rest := location[idx+len("/validations/"):]

	ref := &SubmissionRef{OID: rest}
	if q := strings.Index(rest, "?"); q >= 0 {
		ref.OID = rest[:q]
		if k := strings.Index(rest[q:], "privacyKey="); k >= 0 {
			ref.PrivacyKey = rest[q+k+len("privacyKey="):]
		}
	}
	if ref.OID == "" {
		return nil, fmt.Errorf("unexpected submission location %q", location)
	}
	return ref, nil
}

// FetchReport retrieves the validation report once. While the validation
// is still running the EVS answers 404 and FetchReport returns
// ErrReportPending.
func (c *Client) FetchReport(ctx context.Context, ref *SubmissionRef) (*Report, error) {
	url := fmt.Sprintf("%s%s/%s/report", c.baseURL, validationsPath, ref.OID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/xml")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch report: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		report, err := ParseReport(resp.Body)
		if err != nil {
			return nil, err
		}
		report.Ref = ref
		report.Permalink = c.Permalink(ref)
		return report, nil
	case http.StatusNotFound:
		return nil, ErrReportPending
	default:
		return nil, fmt.Errorf("failed to fetch report: status %d", resp.StatusCode)
	}
}

// WaitForReport polls until the report is available, the poll timeout
// elapses (ErrReportTimeout) or the context is cancelled.
func (c *Client) WaitForReport(ctx context.Context, ref *SubmissionRef) (*Report, error) {
	deadline := time.Now().Add(c.pollTimeout)
	for {
		report, err := c.FetchReport(ctx, ref)
		if err == nil {
			return report, nil
		}
		if !errors.Is(err, ErrReportPending) {
			return nil, err
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: oid %s", ErrReportTimeout, ref.OID)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}
}

// Validate submits a message and waits for its report.
func (c *Client) Validate(ctx context.Context, filename string, message []byte) (*Report, error) {
	ref, err := c.Submit(ctx, filename, message)
	if err != nil {
		return nil, err
	}
	return c.WaitForReport(ctx, ref)
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "GazelleAPIKey "+c.apiKey)
	}
}
