package ghl

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/jmv4/ghlkit/internal/query"
)

// Tuning mirrors config.HookTuning to avoid a circular dependency. It holds
// the operator defaults a hook applies when the caller leaves an option
// unset.
type Tuning struct {
	RefetchInterval time.Duration
	Enabled         *bool
}

// HookOptions seeds a Hooks bundle.
type HookOptions struct {
	// DefaultLocation is used when a request does not name a sub-account.
	DefaultLocation string
	Tuning          map[string]Tuning
}

// Hooks binds the query cache to a platform client and exposes the typed
// data hooks the UI layer consumes. Every hook builds a key, closes a fetch
// over the client, and projects the generic result into its domain shape;
// the engine underneath is shared.
type Hooks struct {
	cache           *query.Cache
	client          *Client
	defaultLocation string

	mu     sync.RWMutex
	tuning map[string]Tuning
}

// NewHooks wires the hook bundle.
func NewHooks(cache *query.Cache, client *Client, opts HookOptions) *Hooks {
	tuning := opts.Tuning
	if tuning == nil {
		tuning = map[string]Tuning{}
	}
	return &Hooks{
		cache:           cache,
		client:          client,
		defaultLocation: opts.DefaultLocation,
		tuning:          tuning,
	}
}

// SetTuning replaces the operator defaults, typically from a config
// hot-reload. Already-open subscriptions keep their settings; new ones pick
// up the fresh values.
func (h *Hooks) SetTuning(t map[string]Tuning) {
	if t == nil {
		t = map[string]Tuning{}
	}
	h.mu.Lock()
	h.tuning = t
	h.mu.Unlock()
}

// apply stamps the resource label and fills unset options from tuning.
func (h *Hooks) apply(resource string, opts query.QueryOptions) query.QueryOptions {
	opts.Resource = resource
	h.mu.RLock()
	t, ok := h.tuning[resource]
	h.mu.RUnlock()
	if !ok {
		return opts
	}
	if opts.RefetchInterval == 0 {
		opts.RefetchInterval = t.RefetchInterval
	}
	if opts.Enabled == nil && t.Enabled != nil {
		opts.Enabled = t.Enabled
	}
	return opts
}

func (h *Hooks) location(explicit string) string {
	if strings.TrimSpace(explicit) != "" {
		return explicit
	}
	return h.defaultLocation
}

// Contacts subscribes to a contact search. A missing locationId is a
// validation failure caught before any platform call.
func (h *Hooks) Contacts(p ContactSearchParams, opts query.QueryOptions) *query.Typed[*ContactPage] {
	p.LocationID = h.location(p.LocationID)
	if p.LocationID == "" {
		return query.TypedError[*ContactPage](query.Validationf("contacts: locationId required"))
	}
	opts = h.apply("contacts", opts)
	opts.Decode = decodePtr[ContactPage]
	key := query.K("contacts", p.LocationID, p.Query, p.Page)
	q := h.cache.Subscribe(key, func(ctx context.Context) (any, error) {
		return h.client.Contacts.Search(ctx, p)
	}, opts)
	return query.NewTyped[*ContactPage](q)
}

// MessagesQuery wraps a message subscription with the flattening projection.
type MessagesQuery struct {
	*query.Typed[*MessagePage]
}

// Feed flattens the platform's nested envelope into named fields.
func (mq *MessagesQuery) Feed() (MessageFeed, query.Result) {
	page, r := mq.Result()
	return flattenMessages(page), r
}

// WaitFeed blocks until the entry settles, then flattens.
func (mq *MessagesQuery) WaitFeed(ctx context.Context) (MessageFeed, query.Result) {
	page, r := mq.Wait(ctx)
	return flattenMessages(page), r
}

func flattenMessages(page *MessagePage) MessageFeed {
	if page == nil {
		return MessageFeed{}
	}
	return MessageFeed{
		Messages:      page.Messages.Messages,
		LastMessageID: page.Messages.LastMessageID,
		NextPage:      page.Messages.NextPage,
	}
}

// Messages subscribes to a conversation's message stream.
func (h *Hooks) Messages(conversationID string, p MessageParams, opts query.QueryOptions) *MessagesQuery {
	if strings.TrimSpace(conversationID) == "" {
		return &MessagesQuery{query.TypedError[*MessagePage](query.Validationf("messages: conversationId required"))}
	}
	opts = h.apply("messages", opts)
	opts.Decode = decodePtr[MessagePage]
	key := query.K("messages", conversationID, p.Limit, p.LastMessageID)
	q := h.cache.Subscribe(key, func(ctx context.Context) (any, error) {
		return h.client.Conversations.Messages(ctx, conversationID, p)
	}, opts)
	return &MessagesQuery{query.NewTyped[*MessagePage](q)}
}

// OpportunitiesQuery wraps an opportunity search with the flattening
// projection.
type OpportunitiesQuery struct {
	*query.Typed[*OpportunityPage]
}

// Page flattens the search envelope into opportunities plus paging metadata.
func (oq *OpportunitiesQuery) Page() ([]Opportunity, Pagination, query.Result) {
	page, r := oq.Result()
	if page == nil {
		return nil, Pagination{}, r
	}
	return page.Opportunities, page.Meta, r
}

// WaitPage blocks until the entry settles, then flattens.
func (oq *OpportunitiesQuery) WaitPage(ctx context.Context) ([]Opportunity, Pagination, query.Result) {
	page, r := oq.Wait(ctx)
	if page == nil {
		return nil, Pagination{}, r
	}
	return page.Opportunities, page.Meta, r
}

// Opportunities subscribes to a pipeline opportunity search.
func (h *Hooks) Opportunities(p OpportunitySearchParams, opts query.QueryOptions) *OpportunitiesQuery {
	p.LocationID = h.location(p.LocationID)
	if p.LocationID == "" {
		return &OpportunitiesQuery{query.TypedError[*OpportunityPage](query.Validationf("opportunities: locationId required"))}
	}
	opts = h.apply("opportunities", opts)
	opts.Decode = decodePtr[OpportunityPage]
	key := query.K("opportunities", p.LocationID, p.PipelineID, p.Status, p.Query, p.Page)
	q := h.cache.Subscribe(key, func(ctx context.Context) (any, error) {
		return h.client.Opportunities.Search(ctx, p)
	}, opts)
	return &OpportunitiesQuery{query.NewTyped[*OpportunityPage](q)}
}

// Appointments subscribes to a calendar's booked events.
func (h *Hooks) Appointments(p AppointmentParams, opts query.QueryOptions) *query.Typed[*AppointmentList] {
	p.LocationID = h.location(p.LocationID)
	if p.LocationID == "" || strings.TrimSpace(p.CalendarID) == "" {
		return query.TypedError[*AppointmentList](query.Validationf("appointments: locationId and calendarId required"))
	}
	opts = h.apply("appointments", opts)
	opts.Decode = decodePtr[AppointmentList]
	key := query.K("appointments", p.CalendarID, p.StartTime, p.EndTime)
	q := h.cache.Subscribe(key, func(ctx context.Context) (any, error) {
		return h.client.Calendars.Events(ctx, p)
	}, opts)
	return query.NewTyped[*AppointmentList](q)
}

// FreeSlots subscribes to a calendar's open availability.
func (h *Hooks) FreeSlots(calendarID string, p FreeSlotParams, opts query.QueryOptions) *query.Typed[FreeSlots] {
	if strings.TrimSpace(calendarID) == "" {
		return query.TypedError[FreeSlots](query.Validationf("slots: calendarId required"))
	}
	opts = h.apply("slots", opts)
	opts.Decode = func(payload []byte) (any, error) {
		var v FreeSlots
		if err := json.Unmarshal(payload, &v); err != nil {
			return nil, err
		}
		return v, nil
	}
	key := query.K("slots", calendarID, p.StartDate, p.EndDate, p.Timezone)
	q := h.cache.Subscribe(key, func(ctx context.Context) (any, error) {
		return h.client.Calendars.FreeSlots(ctx, calendarID, p)
	}, opts)
	return query.NewTyped[FreeSlots](q)
}

// Calendar subscribes to a single calendar's metadata.
func (h *Hooks) Calendar(calendarID string, opts query.QueryOptions) *query.Typed[*Calendar] {
	if strings.TrimSpace(calendarID) == "" {
		return query.TypedError[*Calendar](query.Validationf("calendar: calendarId required"))
	}
	opts = h.apply("calendar", opts)
	opts.Decode = decodePtr[Calendar]
	key := query.K("calendar", calendarID)
	q := h.cache.Subscribe(key, func(ctx context.Context) (any, error) {
		return h.client.Calendars.Get(ctx, calendarID)
	}, opts)
	return query.NewTyped[*Calendar](q)
}

// CreateContact builds the contact-creation mutation. Success invalidates
// every cached contact list variant.
func (h *Hooks) CreateContact(opts query.MutationOptions) *query.Mutation {
	opts.Resource = "contacts"
	opts.Invalidate = append(opts.Invalidate, query.K("contacts"))
	return h.cache.Mutation(func(ctx context.Context, input any) (any, error) {
		in, ok := input.(ContactInput)
		if !ok {
			return nil, query.Validationf("contacts: input must be ghl.ContactInput")
		}
		if in.LocationID == "" {
			in.LocationID = h.defaultLocation
		}
		if in.LocationID == "" {
			return nil, query.Validationf("contacts: locationId required")
		}
		return h.client.Contacts.Create(ctx, in)
	}, opts)
}

// SendMessage builds the message-send mutation for one conversation. Success
// invalidates that conversation's cached message pages.
func (h *Hooks) SendMessage(conversationID string, opts query.MutationOptions) *query.Mutation {
	opts.Resource = "messages"
	opts.Invalidate = append(opts.Invalidate, query.K("messages", conversationID))
	return h.cache.Mutation(func(ctx context.Context, input any) (any, error) {
		in, ok := input.(MessageInput)
		if !ok {
			return nil, query.Validationf("messages: input must be ghl.MessageInput")
		}
		if in.ConversationID == "" {
			in.ConversationID = conversationID
		}
		return h.client.Conversations.SendMessage(ctx, in)
	}, opts)
}

// OpportunityUpdate carries the update target and fields through the generic
// mutation input.
type OpportunityUpdate struct {
	ID     string
	Fields OpportunityInput
}

// UpdateOpportunity builds the opportunity-update mutation. Success
// invalidates every cached opportunity search variant.
func (h *Hooks) UpdateOpportunity(opts query.MutationOptions) *query.Mutation {
	opts.Resource = "opportunities"
	opts.Invalidate = append(opts.Invalidate, query.K("opportunities"))
	return h.cache.Mutation(func(ctx context.Context, input any) (any, error) {
		in, ok := input.(OpportunityUpdate)
		if !ok {
			return nil, query.Validationf("opportunities: input must be ghl.OpportunityUpdate")
		}
		if in.ID == "" {
			return nil, query.Validationf("opportunities: id required")
		}
		return h.client.Opportunities.Update(ctx, in.ID, in.Fields)
	}, opts)
}

// BookAppointment builds the booking mutation. Success invalidates both the
// booked events and the availability it consumed.
func (h *Hooks) BookAppointment(opts query.MutationOptions) *query.Mutation {
	opts.Resource = "appointments"
	opts.Invalidate = append(opts.Invalidate, query.K("appointments"), query.K("slots"))
	return h.cache.Mutation(func(ctx context.Context, input any) (any, error) {
		in, ok := input.(AppointmentInput)
		if !ok {
			return nil, query.Validationf("appointments: input must be ghl.AppointmentInput")
		}
		if in.LocationID == "" {
			in.LocationID = h.defaultLocation
		}
		if in.CalendarID == "" || in.ContactID == "" || in.StartTime == "" {
			return nil, query.Validationf("appointments: calendarId, contactId, and startTime required")
		}
		return h.client.Calendars.Book(ctx, in)
	}, opts)
}

// decodePtr rehydrates a snapshot payload into *T, matching what the fetch
// closures return.
func decodePtr[T any](payload []byte) (any, error) {
	var v T
	if err := json.Unmarshal(payload, &v); err != nil {
		return nil, err
	}
	return &v, nil
}
