package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/fernlabs/clover/pkg/httpclient"
	"github.com/fernlabs/clover/pkg/ratelimit"
	"github.com/fernlabs/clover/pkg/tracing"
)

const defaultPageSize = 50

// ErrNotFound indicates the registry has no record for the requested resource.
var ErrNotFound = errors.New("registry resource not found")

// FetchError describes a failed registry call.
type FetchError struct {
	StatusCode int
	URL        string
	Err        error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("registry fetch failed: %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("registry fetch failed: %s: status %d", e.URL, e.StatusCode)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Config holds registry client configuration
type Config struct {
	BaseURL  string
	APIKey   string
	PageSize int
}

// Client fetches officer and company data from the public registry. Every
// request passes through the shared rate limiter before hitting the wire.
type Client struct {
	http     *httpclient.Client
	limiter  ratelimit.Limiter
	logger   ectologger.Logger
	baseURL  string
	apiKey   string
	pageSize int
}

// NewClient creates a registry client
func NewClient(cfg Config, http *httpclient.Client, limiter ratelimit.Limiter, logger ectologger.Logger) *Client {
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &Client{
		http:     http,
		limiter:  limiter,
		logger:   logger,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:   cfg.APIKey,
		pageSize: pageSize,
	}
}

// GetCompanyOfficers returns all officers listed for the company, following
// pagination until the full list is collected.
func (c *Client) GetCompanyOfficers(ctx context.Context, companyNumber string) ([]OfficerRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "registry.Client.GetCompanyOfficers")
	defer span.End()

	path := fmt.Sprintf("/company/%s/officers", url.PathEscape(companyNumber))

	var officers []OfficerRecord
	err := c.fetchAllPages(ctx, path, func(body []byte) (count, total int, err error) {
		var envelope Envelope[wireOfficer]
		if err := json.Unmarshal(body, &envelope); err != nil {
			return 0, 0, fmt.Errorf("failed to decode officer list: %w", err)
		}
		for _, item := range envelope.Items {
			officers = append(officers, item.toRecord())
		}
		return len(envelope.Items), envelope.TotalResults, nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"company_number": companyNumber,
		"officer_count":  len(officers),
	}).Info("fetched company officers")

	return officers, nil
}

// GetOfficerAppointments returns all appointments for the officer behind the
// given appointments link. The link is treated as an opaque reference from a
// prior officer-list response.
func (c *Client) GetOfficerAppointments(ctx context.Context, appointmentsLink string) ([]AppointmentRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "registry.Client.GetOfficerAppointments")
	defer span.End()

	if appointmentsLink == "" {
		return nil, &FetchError{URL: appointmentsLink, Err: errors.New("empty appointments link")}
	}

	var appointments []AppointmentRecord
	err := c.fetchAllPages(ctx, appointmentsLink, func(body []byte) (count, total int, err error) {
		var envelope Envelope[wireAppointment]
		if err := json.Unmarshal(body, &envelope); err != nil {
			return 0, 0, fmt.Errorf("failed to decode appointment list: %w", err)
		}
		for _, item := range envelope.Items {
			appointments = append(appointments, item.toRecord())
		}
		return len(envelope.Items), envelope.TotalResults, nil
	})
	if err != nil {
		return nil, err
	}

	return appointments, nil
}

// GetCompanyProfile returns the company's profile record.
func (c *Client) GetCompanyProfile(ctx context.Context, companyNumber string) (*CompanyRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "registry.Client.GetCompanyProfile")
	defer span.End()

	path := fmt.Sprintf("/company/%s", url.PathEscape(companyNumber))
	body, err := c.get(ctx, c.baseURL+path)
	if err != nil {
		return nil, err
	}

	var company wireCompany
	if err := json.Unmarshal(body, &company); err != nil {
		return nil, fmt.Errorf("failed to decode company profile: %w", err)
	}

	record := company.toRecord()
	return &record, nil
}

// fetchAllPages walks a paginated endpoint, invoking decode for each page
// until total_results is reached or a page comes back empty.
func (c *Client) fetchAllPages(ctx context.Context, path string, decode func(body []byte) (count, total int, err error)) error {
	startIndex := 0
	fetched := 0

	for {
		separator := "?"
		if strings.Contains(path, "?") {
			separator = "&"
		}
		requestURL := fmt.Sprintf("%s%s%sitems_per_page=%d&start_index=%d",
			c.baseURL, path, separator, c.pageSize, startIndex)

		body, err := c.get(ctx, requestURL)
		if err != nil {
			return err
		}

		count, total, err := decode(body)
		if err != nil {
			return err
		}

		fetched += count
		if count == 0 || fetched >= total {
			return nil
		}
		startIndex += count
	}
}

// get waits for a rate limit slot, performs the request, and maps non-2xx
// statuses to FetchError.
func (c *Client) get(ctx context.Context, requestURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait aborted: %w", err)
	}

	headers := map[string]string{"Accept": "application/json"}

	// Registry auth is api-key-as-basic-auth-username. No key means an
	// unauthenticated endpoint, typically a local stub.
	var resp *httpclient.Response
	var err error
	if c.apiKey == "" {
		resp, err = c.http.Get(ctx, requestURL, headers)
	} else {
		resp, err = c.http.GetWithBasicAuth(ctx, requestURL, c.apiKey, "", headers)
	}
	if err != nil {
		return nil, &FetchError{URL: requestURL, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, &FetchError{StatusCode: resp.StatusCode, URL: requestURL, Err: ErrNotFound}
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := parseRetryAfter(resp.Headers["Retry-After"])
		c.logger.WithContext(ctx).WithFields(map[string]interface{}{
			"url":         requestURL,
			"retry_after": retryAfter,
		}).Warn("registry throttled request")
		return nil, &FetchError{StatusCode: resp.StatusCode, URL: requestURL}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, &FetchError{StatusCode: resp.StatusCode, URL: requestURL}
	}

	return resp.Body, nil
}

func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	secs, err := strconv.Atoi(value)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
