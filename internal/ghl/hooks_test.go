package ghl

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/jmv4/ghlkit/internal/query"
)

type fakeContacts struct {
	searches int32
	creates  int32
	page     *ContactPage
}

func (f *fakeContacts) Search(context.Context, ContactSearchParams) (*ContactPage, error) {
	atomic.AddInt32(&f.searches, 1)
	return f.page, nil
}

func (f *fakeContacts) Create(_ context.Context, in ContactInput) (*Contact, error) {
	atomic.AddInt32(&f.creates, 1)
	return &Contact{ID: "c_new", LocationID: in.LocationID, Email: in.Email}, nil
}

type fakeConversations struct {
	sends int32
	page  *MessagePage
}

func (f *fakeConversations) Messages(context.Context, string, MessageParams) (*MessagePage, error) {
	return f.page, nil
}

func (f *fakeConversations) SendMessage(_ context.Context, in MessageInput) (*MessageAck, error) {
	atomic.AddInt32(&f.sends, 1)
	return &MessageAck{ConversationID: in.ConversationID, MessageID: "m_sent"}, nil
}

func newHookFixture(t *testing.T, opts HookOptions) (*Hooks, *fakeContacts, *fakeConversations) {
	t.Helper()
	cache := query.New(query.Options{})
	t.Cleanup(cache.Close)

	client, err := NewClient(ClientConfig{BaseURL: "http://unused.example.test"})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	contacts := &fakeContacts{page: &ContactPage{
		Contacts: []Contact{{ID: "c_1", FirstName: "Jane"}},
		Total:    1,
	}}
	page := &MessagePage{}
	page.Messages.LastMessageID = "m_2"
	page.Messages.NextPage = true
	page.Messages.Messages = []Message{{ID: "m_1", Body: "hi"}, {ID: "m_2", Body: "there"}}
	conversations := &fakeConversations{page: page}
	client.Contacts = contacts
	client.Conversations = conversations

	return NewHooks(cache, client, opts), contacts, conversations
}

func TestContactsHook(t *testing.T) {
	hooks, contacts, _ := newHookFixture(t, HookOptions{DefaultLocation: "loc_default"})

	h := hooks.Contacts(ContactSearchParams{Query: "jane"}, query.QueryOptions{})
	defer h.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	page, r := h.Wait(ctx)
	if r.Err != nil {
		t.Fatalf("wait: %v", r.Err)
	}
	want := &ContactPage{Contacts: []Contact{{ID: "c_1", FirstName: "Jane"}}, Total: 1}
	if diff := cmp.Diff(want, page); diff != "" {
		t.Fatalf("unexpected page (-want +got):\n%s", diff)
	}
	if got := atomic.LoadInt32(&contacts.searches); got != 1 {
		t.Fatalf("expected 1 search, got %d", got)
	}

	// Same params resolve to the same key and are served from cache.
	h2 := hooks.Contacts(ContactSearchParams{Query: "jane"}, query.QueryOptions{})
	defer h2.Close()
	if _, r := h2.Result(); r.Data == nil {
		t.Fatalf("expected cached value for identical params")
	}
	if got := atomic.LoadInt32(&contacts.searches); got != 1 {
		t.Fatalf("cache miss on identical params, %d searches", got)
	}
}

func TestContactsHookRequiresLocation(t *testing.T) {
	hooks, contacts, _ := newHookFixture(t, HookOptions{})

	h := hooks.Contacts(ContactSearchParams{}, query.QueryOptions{})
	defer h.Close()
	if _, r := h.Result(); query.KindOf(r.Err) != query.KindValidation {
		t.Fatalf("expected validation error, got %v", r.Err)
	}
	if got := atomic.LoadInt32(&contacts.searches); got != 0 {
		t.Fatalf("guard failure still reached the platform, %d searches", got)
	}
}

func TestMessagesHookFlattens(t *testing.T) {
	hooks, _, _ := newHookFixture(t, HookOptions{})

	h := hooks.Messages("conv_1", MessageParams{Limit: 20}, query.QueryOptions{})
	defer h.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	feed, r := h.WaitFeed(ctx)
	if r.Err != nil {
		t.Fatalf("wait: %v", r.Err)
	}
	if feed.LastMessageID != "m_2" || !feed.NextPage || len(feed.Messages) != 2 {
		t.Fatalf("unexpected feed: %#v", feed)
	}
}

func TestMessagesHookRequiresConversation(t *testing.T) {
	hooks, _, _ := newHookFixture(t, HookOptions{})
	h := hooks.Messages("  ", MessageParams{}, query.QueryOptions{})
	defer h.Close()
	if _, r := h.Feed(); query.KindOf(r.Err) != query.KindValidation {
		t.Fatalf("expected validation error, got %v", r.Err)
	}
}

func TestCreateContactInvalidatesSearches(t *testing.T) {
	hooks, contacts, _ := newHookFixture(t, HookOptions{DefaultLocation: "loc_1"})

	h := hooks.Contacts(ContactSearchParams{}, query.QueryOptions{})
	defer h.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	h.Wait(ctx)

	m := hooks.CreateContact(query.MutationOptions{})
	contact, err := m.MutateAsync(ctx, ContactInput{Email: "jane@example.test"})
	if err != nil {
		t.Fatalf("mutate: %v", err)
	}
	created, ok := contact.(*Contact)
	if !ok || created.LocationID != "loc_1" {
		t.Fatalf("default location not applied: %#v", contact)
	}

	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&contacts.searches) < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("invalidation did not refetch contact search")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestCreateContactInputValidation(t *testing.T) {
	hooks, _, _ := newHookFixture(t, HookOptions{})
	m := hooks.CreateContact(query.MutationOptions{})

	if _, err := m.MutateAsync(context.Background(), "not an input"); query.KindOf(err) != query.KindValidation {
		t.Fatalf("expected validation error for wrong input type, got %v", err)
	}
	if _, err := m.MutateAsync(context.Background(), ContactInput{}); query.KindOf(err) != query.KindValidation {
		t.Fatalf("expected validation error for missing location, got %v", err)
	}
}

func TestSendMessageFillsConversation(t *testing.T) {
	hooks, _, conversations := newHookFixture(t, HookOptions{})

	m := hooks.SendMessage("conv_1", query.MutationOptions{})
	ack, err := m.MutateAsync(context.Background(), MessageInput{Type: "SMS", Message: "hi"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if ack.(*MessageAck).ConversationID != "conv_1" {
		t.Fatalf("conversation id not defaulted: %#v", ack)
	}
	if got := atomic.LoadInt32(&conversations.sends); got != 1 {
		t.Fatalf("expected 1 send, got %d", got)
	}
}

func TestTuningAppliesDefaults(t *testing.T) {
	disabled := false
	hooks, contacts, _ := newHookFixture(t, HookOptions{
		DefaultLocation: "loc_1",
		Tuning: map[string]Tuning{
			"contacts": {Enabled: &disabled},
		},
	})

	h := hooks.Contacts(ContactSearchParams{}, query.QueryOptions{})
	defer h.Close()
	time.Sleep(20 * time.Millisecond)
	if got := atomic.LoadInt32(&contacts.searches); got != 0 {
		t.Fatalf("tuning-disabled hook fetched %d times", got)
	}

	// An explicit caller option beats the tuning default.
	h2 := hooks.Contacts(ContactSearchParams{Page: 2}, query.QueryOptions{Enabled: query.Bool(true)})
	defer h2.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, r := h2.Wait(ctx); r.Err != nil {
		t.Fatalf("explicit enable: %v", r.Err)
	}

	// Hot-swapped tuning affects subsequent subscriptions.
	hooks.SetTuning(nil)
	h3 := hooks.Contacts(ContactSearchParams{Page: 3}, query.QueryOptions{})
	defer h3.Close()
	if _, r := h3.Wait(ctx); r.Err != nil {
		t.Fatalf("post-reload subscription: %v", r.Err)
	}
}

func TestBookAppointmentValidation(t *testing.T) {
	hooks, _, _ := newHookFixture(t, HookOptions{DefaultLocation: "loc_1"})
	m := hooks.BookAppointment(query.MutationOptions{})
	_, err := m.MutateAsync(context.Background(), AppointmentInput{CalendarID: "cal_1"})
	if query.KindOf(err) != query.KindValidation {
		t.Fatalf("expected validation error for missing fields, got %v", err)
	}
}
