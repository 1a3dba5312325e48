// Package ghl wraps the CRM platform API behind narrow resource-group
// services and exposes the typed data hooks built on the query engine.
package ghl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jmv4/ghlkit/internal/query"
)

// ClientConfig mirrors config.GHLConfig to avoid a circular dependency.
type ClientConfig struct {
	BaseURL    string
	Token      string
	APIVersion string
	Timeout    time.Duration
}

// Client is the bound platform handle the hooks close over. Resource groups
// are interfaces so tests can substitute fakes per group.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	apiVersion string

	Contacts      ContactsService
	Conversations ConversationsService
	Opportunities OpportunitiesService
	Calendars     CalendarsService
}

// ContactsService covers the contact resource group.
type ContactsService interface {
	Search(ctx context.Context, p ContactSearchParams) (*ContactPage, error)
	Create(ctx context.Context, in ContactInput) (*Contact, error)
}

// ConversationsService covers conversations and their message streams.
type ConversationsService interface {
	Messages(ctx context.Context, conversationID string, p MessageParams) (*MessagePage, error)
	SendMessage(ctx context.Context, in MessageInput) (*MessageAck, error)
}

// OpportunitiesService covers the pipeline opportunity resource group.
type OpportunitiesService interface {
	Search(ctx context.Context, p OpportunitySearchParams) (*OpportunityPage, error)
	Update(ctx context.Context, opportunityID string, in OpportunityInput) (*Opportunity, error)
}

// CalendarsService covers calendars, events, and availability.
type CalendarsService interface {
	Get(ctx context.Context, calendarID string) (*Calendar, error)
	Events(ctx context.Context, p AppointmentParams) (*AppointmentList, error)
	FreeSlots(ctx context.Context, calendarID string, p FreeSlotParams) (FreeSlots, error)
	Book(ctx context.Context, in AppointmentInput) (*Appointment, error)
}

// NewClient validates the configuration and binds the resource groups.
func NewClient(cfg ClientConfig) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("ghl: base url required")
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = "2021-07-28"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	c := &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		apiVersion: cfg.APIVersion,
	}
	c.Contacts = &contactsService{c}
	c.Conversations = &conversationsService{c}
	c.Opportunities = &opportunitiesService{c}
	c.Calendars = &calendarsService{c}
	return c, nil
}

type contactsService struct{ c *Client }

func (s *contactsService) Search(ctx context.Context, p ContactSearchParams) (*ContactPage, error) {
	q := url.Values{}
	q.Set("locationId", p.LocationID)
	if p.Query != "" {
		q.Set("query", p.Query)
	}
	if p.Page > 0 {
		q.Set("page", strconv.Itoa(p.Page))
	}
	var page ContactPage
	if err := s.c.do(ctx, http.MethodGet, "/contacts/", q, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (s *contactsService) Create(ctx context.Context, in ContactInput) (*Contact, error) {
	var envelope struct {
		Contact Contact `json:"contact"`
	}
	if err := s.c.do(ctx, http.MethodPost, "/contacts/", nil, in, &envelope); err != nil {
		return nil, err
	}
	return &envelope.Contact, nil
}

type conversationsService struct{ c *Client }

func (s *conversationsService) Messages(ctx context.Context, conversationID string, p MessageParams) (*MessagePage, error) {
	q := url.Values{}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.LastMessageID != "" {
		q.Set("lastMessageId", p.LastMessageID)
	}
	var page MessagePage
	path := "/conversations/" + url.PathEscape(conversationID) + "/messages"
	if err := s.c.do(ctx, http.MethodGet, path, q, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (s *conversationsService) SendMessage(ctx context.Context, in MessageInput) (*MessageAck, error) {
	var ack MessageAck
	if err := s.c.do(ctx, http.MethodPost, "/conversations/messages", nil, in, &ack); err != nil {
		return nil, err
	}
	return &ack, nil
}

type opportunitiesService struct{ c *Client }

func (s *opportunitiesService) Search(ctx context.Context, p OpportunitySearchParams) (*OpportunityPage, error) {
	q := url.Values{}
	q.Set("location_id", p.LocationID)
	if p.PipelineID != "" {
		q.Set("pipeline_id", p.PipelineID)
	}
	if p.Status != "" {
		q.Set("status", p.Status)
	}
	if p.Query != "" {
		q.Set("q", p.Query)
	}
	if p.Page > 0 {
		q.Set("page", strconv.Itoa(p.Page))
	}
	var page OpportunityPage
	if err := s.c.do(ctx, http.MethodGet, "/opportunities/search", q, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (s *opportunitiesService) Update(ctx context.Context, opportunityID string, in OpportunityInput) (*Opportunity, error) {
	var envelope struct {
		Opportunity Opportunity `json:"opportunity"`
	}
	path := "/opportunities/" + url.PathEscape(opportunityID)
	if err := s.c.do(ctx, http.MethodPut, path, nil, in, &envelope); err != nil {
		return nil, err
	}
	return &envelope.Opportunity, nil
}

type calendarsService struct{ c *Client }

func (s *calendarsService) Get(ctx context.Context, calendarID string) (*Calendar, error) {
	var envelope struct {
		Calendar Calendar `json:"calendar"`
	}
	path := "/calendars/" + url.PathEscape(calendarID)
	if err := s.c.do(ctx, http.MethodGet, path, nil, nil, &envelope); err != nil {
		return nil, err
	}
	return &envelope.Calendar, nil
}

func (s *calendarsService) Events(ctx context.Context, p AppointmentParams) (*AppointmentList, error) {
	q := url.Values{}
	q.Set("locationId", p.LocationID)
	q.Set("calendarId", p.CalendarID)
	if p.StartTime != "" {
		q.Set("startTime", p.StartTime)
	}
	if p.EndTime != "" {
		q.Set("endTime", p.EndTime)
	}
	var list AppointmentList
	if err := s.c.do(ctx, http.MethodGet, "/calendars/events", q, nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

func (s *calendarsService) FreeSlots(ctx context.Context, calendarID string, p FreeSlotParams) (FreeSlots, error) {
	q := url.Values{}
	if p.StartDate != "" {
		q.Set("startDate", p.StartDate)
	}
	if p.EndDate != "" {
		q.Set("endDate", p.EndDate)
	}
	if p.Timezone != "" {
		q.Set("timezone", p.Timezone)
	}
	var slots FreeSlots
	path := "/calendars/" + url.PathEscape(calendarID) + "/free-slots"
	if err := s.c.do(ctx, http.MethodGet, path, q, nil, &slots); err != nil {
		return nil, err
	}
	return slots, nil
}

func (s *calendarsService) Book(ctx context.Context, in AppointmentInput) (*Appointment, error) {
	var appt Appointment
	if err := s.c.do(ctx, http.MethodPost, "/calendars/events/appointments", nil, in, &appt); err != nil {
		return nil, err
	}
	return &appt, nil
}

// do executes one platform round trip and maps failures onto the engine's
// error taxonomy: network problems become transport errors, non-2xx
// responses become application errors carrying the platform message.
func (c *Client) do(ctx context.Context, method, path string, q url.Values, body, out any) error {
	endpoint := c.baseURL + path
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return query.Validationf("ghl: encode request: %v", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return query.Transportf("ghl: build request: %v", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Version", c.apiVersion)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		var uerr *url.Error
		if errors.As(err, &uerr) && uerr.Timeout() {
			return &query.Error{Kind: query.KindTransport, Message: "timeout", Err: err}
		}
		return &query.Error{Kind: query.KindTransport, Message: err.Error(), Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return &query.Error{Kind: query.KindTransport, Message: "ghl: read response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return query.Applicationf("%s", platformMessage(resp.StatusCode, payload))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return &query.Error{Kind: query.KindTransport, Message: fmt.Sprintf("ghl: decode response: %v", err), Err: err}
	}
	return nil
}

// platformMessage extracts the error message the platform returns, falling
// back to the HTTP status when the body is opaque.
func platformMessage(status int, payload []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(payload, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	return fmt.Sprintf("ghl: unexpected status %d", status)
}
