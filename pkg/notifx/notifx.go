package notifx

import (
	"context"
	"strings"
)

// Sender delivers one message. Providers live in sub-packages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Message is a single outbound email.
type Message struct {
	From     string   `json:"from,omitempty"`
	To       []string `json:"to"`
	ReplyTo  string   `json:"reply_to,omitempty"`
	Subject  string   `json:"subject"`
	TextBody string   `json:"text_body,omitempty"`
	HTMLBody string   `json:"html_body,omitempty"`
}

// Client is the entry point for sending mail: it validates messages,
// renders registered templates and hands the result to the provider.
type Client struct {
	provider  Sender
	from      string
	templates *TemplateRegistry
}

// NewClient creates a client. from is used when a message carries none.
func NewClient(provider Sender, from string) *Client {
	return &Client{
		provider:  provider,
		from:      from,
		templates: NewTemplateRegistry(),
	}
}

// Send validates msg and sends it through the provider.
func (c *Client) Send(ctx context.Context, msg Message) error {
	if c.provider == nil {
		return ErrNoProvider()
	}
	if len(msg.To) == 0 || strings.TrimSpace(msg.To[0]) == "" {
		return ErrInvalidMessage().WithDetail("reason", "no recipients")
	}
	if msg.Subject == "" {
		return ErrInvalidMessage().WithDetail("reason", "empty subject")
	}
	if msg.From == "" {
		msg.From = c.from
	}
	return c.provider.Send(ctx, msg)
}

// RegisterTemplate parses and stores a named HTML template.
func (c *Client) RegisterTemplate(name, tmpl string) error {
	return c.templates.Register(name, tmpl)
}

// SendTemplate renders the named template into msg.HTMLBody and sends it.
func (c *Client) SendTemplate(ctx context.Context, name string, data any, msg Message) error {
	body, err := c.templates.Render(name, data)
	if err != nil {
		return err
	}
	msg.HTMLBody = body
	return c.Send(ctx, msg)
}
