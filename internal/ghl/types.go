package ghl

// Domain shapes returned by the platform API. Only the fields the hook layer
// projects are modeled; unknown fields are ignored on decode.

type Contact struct {
	ID         string   `json:"id"`
	LocationID string   `json:"locationId"`
	FirstName  string   `json:"firstName"`
	LastName   string   `json:"lastName"`
	Email      string   `json:"email"`
	Phone      string   `json:"phone"`
	Tags       []string `json:"tags,omitempty"`
	DateAdded  string   `json:"dateAdded,omitempty"`
}

type ContactPage struct {
	Contacts []Contact `json:"contacts"`
	Total    int       `json:"total"`
}

// ContactInput is the payload for contact creation.
type ContactInput struct {
	LocationID string   `json:"locationId"`
	FirstName  string   `json:"firstName,omitempty"`
	LastName   string   `json:"lastName,omitempty"`
	Email      string   `json:"email,omitempty"`
	Phone      string   `json:"phone,omitempty"`
	Tags       []string `json:"tags,omitempty"`
}

type Message struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversationId"`
	Type           string `json:"type"`
	Direction      string `json:"direction"`
	Body           string `json:"body"`
	Status         string `json:"status"`
	DateAdded      string `json:"dateAdded,omitempty"`
}

// MessagePage mirrors the platform's nested envelope. The Messages hook
// flattens it into a MessageFeed.
type MessagePage struct {
	Messages struct {
		LastMessageID string    `json:"lastMessageId"`
		NextPage      bool      `json:"nextPage"`
		Messages      []Message `json:"messages"`
	} `json:"messages"`
}

// MessageFeed is the flattened shape the UI layer consumes.
type MessageFeed struct {
	Messages      []Message `json:"messages"`
	LastMessageID string    `json:"lastMessageId"`
	NextPage      bool      `json:"nextPage"`
}

// MessageInput is the payload for sending a message into a conversation.
type MessageInput struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversationId,omitempty"`
	ContactID      string `json:"contactId,omitempty"`
	Message        string `json:"message"`
}

// MessageAck is the platform's acknowledgment of a sent message.
type MessageAck struct {
	ConversationID string `json:"conversationId"`
	MessageID      string `json:"messageId"`
}

type Opportunity struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	PipelineID      string  `json:"pipelineId"`
	PipelineStageID string  `json:"pipelineStageId"`
	Status          string  `json:"status"`
	MonetaryValue   float64 `json:"monetaryValue"`
	ContactID       string  `json:"contactId,omitempty"`
}

// Pagination is the paging metadata the opportunities search returns.
type Pagination struct {
	Total       int `json:"total"`
	CurrentPage int `json:"currentPage"`
	NextPage    int `json:"nextPage"`
}

// OpportunityPage mirrors the platform's search envelope. The Opportunities
// hook flattens it.
type OpportunityPage struct {
	Opportunities []Opportunity `json:"opportunities"`
	Meta          Pagination    `json:"meta"`
}

// OpportunityInput carries the mutable opportunity fields for updates.
type OpportunityInput struct {
	Name            string  `json:"name,omitempty"`
	PipelineStageID string  `json:"pipelineStageId,omitempty"`
	Status          string  `json:"status,omitempty"`
	MonetaryValue   float64 `json:"monetaryValue,omitempty"`
}

type Calendar struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type Appointment struct {
	ID         string `json:"id"`
	CalendarID string `json:"calendarId"`
	ContactID  string `json:"contactId"`
	Title      string `json:"title"`
	Status     string `json:"appointmentStatus"`
	StartTime  string `json:"startTime"`
	EndTime    string `json:"endTime"`
}

type AppointmentList struct {
	Events []Appointment `json:"events"`
}

// AppointmentInput is the payload for booking an appointment.
type AppointmentInput struct {
	CalendarID string `json:"calendarId"`
	LocationID string `json:"locationId"`
	ContactID  string `json:"contactId"`
	Title      string `json:"title,omitempty"`
	StartTime  string `json:"startTime"`
	EndTime    string `json:"endTime,omitempty"`
}

// FreeSlots maps ISO dates to the open slots the calendar offers that day.
type FreeSlots map[string]SlotDay

type SlotDay struct {
	Slots []string `json:"slots"`
}

// Query parameter shapes accepted by the read hooks.

type ContactSearchParams struct {
	LocationID string
	Query      string
	Page       int
}

type MessageParams struct {
	Limit         int
	LastMessageID string
}

type OpportunitySearchParams struct {
	LocationID string
	PipelineID string
	Status     string
	Query      string
	Page       int
}

type AppointmentParams struct {
	LocationID string
	CalendarID string
	StartTime  string
	EndTime    string
}

type FreeSlotParams struct {
	StartDate string
	EndDate   string
	Timezone  string
}
