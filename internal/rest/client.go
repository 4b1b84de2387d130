// ABOUTME: HTTP client for the marketplace REST collaborator
// ABOUTME: Covers notifications, conversations, messages, and auxiliary lookups

package rest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sgmarket/pulse-client/internal/session"
)

// Client errors.
var (
	// ErrUnauthorized means the backend rejected the bearer credential.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound means the requested resource does not exist.
	ErrNotFound = errors.New("not found")
	// ErrEmptyMessage means a send had neither body nor attachment.
	ErrEmptyMessage = errors.New("message needs a body or an attachment")
)

const defaultTimeout = 15 * time.Second

// Attachment is a file payload sent alongside (or instead of) a message body.
type Attachment struct {
	Filename string
	MimeType string
	Data     []byte
}

// SendMessageRequest carries the multipart fields of POST /messages.
type SendMessageRequest struct {
	ConversationID string
	SenderID       string
	ListingID      string
	Body           string
	Attachment     *Attachment
}

// Client talks to the marketplace REST API with the session's bearer credential.
type Client struct {
	baseURL string
	http    *http.Client
	sess    *session.Context
	logger  *slog.Logger
}

// New creates a REST client. Pass nil logger for the default.
func New(baseURL string, sess *session.Context, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
		sess:    sess,
		logger:  logger.With("component", "rest"),
	}
}

// ListNotifications fetches one page of raw notification records.
func (c *Client) ListNotifications(ctx context.Context, page, size int) ([]NotificationRecord, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(size))

	body, err := c.get(ctx, "/notifications?"+q.Encode())
	if err != nil {
		return nil, err
	}

	records, dropped, err := decodeListOf[NotificationRecord](body)
	if err != nil {
		return nil, fmt.Errorf("decoding notifications: %w", err)
	}
	if dropped > 0 {
		c.logger.Warn("dropped malformed notification records", "count", dropped)
	}
	return records, nil
}

// MarkNotificationRead marks a single notification read.
func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodPut, "/notifications/"+url.PathEscape(id)+"/read", "", nil)
	return err
}

// ListConversations fetches all raw conversation records for the session.
func (c *Client) ListConversations(ctx context.Context) ([]ConversationRecord, error) {
	body, err := c.get(ctx, "/conversations")
	if err != nil {
		return nil, err
	}

	records, dropped, err := decodeListOf[ConversationRecord](body)
	if err != nil {
		return nil, fmt.Errorf("decoding conversations: %w", err)
	}
	if dropped > 0 {
		c.logger.Warn("dropped malformed conversation records", "count", dropped)
	}
	return records, nil
}

// CreateConversation opens a conversation about a listing.
func (c *Client) CreateConversation(ctx context.Context, listingID string) (ConversationRecord, error) {
	body, err := c.do(ctx, http.MethodPost, "/conversations/"+url.PathEscape(listingID), "", nil)
	if err != nil {
		return ConversationRecord{}, err
	}

	var rec ConversationRecord
	if err := decodeObject(body, &rec); err != nil {
		return ConversationRecord{}, fmt.Errorf("decoding conversation: %w", err)
	}
	return rec, nil
}

// ListMessages fetches the ordered raw messages of a conversation. Backends
// that have not implemented the endpoint yield an empty slice, not an error.
func (c *Client) ListMessages(ctx context.Context, conversationID string) ([]MessageRecord, error) {
	body, err := c.get(ctx, "/conversations/"+url.PathEscape(conversationID)+"/messages")
	if errors.Is(err, ErrNotFound) || errors.Is(err, errUnimplemented) {
		c.logger.Debug("message history endpoint unavailable", "conversation_id", conversationID)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	records, dropped, err := decodeListOf[MessageRecord](body)
	if err != nil {
		return nil, fmt.Errorf("decoding messages: %w", err)
	}
	if dropped > 0 {
		c.logger.Warn("dropped malformed message records",
			"conversation_id", conversationID,
			"count", dropped)
	}
	return records, nil
}

// SendMessage posts a message as multipart form data. Body and attachment may
// each be absent, but not both.
func (c *Client) SendMessage(ctx context.Context, req SendMessageRequest) (MessageRecord, error) {
	if req.Body == "" && req.Attachment == nil {
		return MessageRecord{}, ErrEmptyMessage
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fields := map[string]string{
		"conversation_id": req.ConversationID,
		"sender_id":       req.SenderID,
		"listing_id":      req.ListingID,
	}
	if req.Body != "" {
		fields["body"] = req.Body
	}
	for name, value := range fields {
		if err := w.WriteField(name, value); err != nil {
			return MessageRecord{}, fmt.Errorf("writing field %s: %w", name, err)
		}
	}
	if req.Attachment != nil {
		part, err := w.CreateFormFile("attachment", req.Attachment.Filename)
		if err != nil {
			return MessageRecord{}, fmt.Errorf("creating attachment part: %w", err)
		}
		if _, err := part.Write(req.Attachment.Data); err != nil {
			return MessageRecord{}, fmt.Errorf("writing attachment: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return MessageRecord{}, fmt.Errorf("finalizing multipart body: %w", err)
	}

	body, err := c.do(ctx, http.MethodPost, "/messages", w.FormDataContentType(), &buf)
	if err != nil {
		return MessageRecord{}, err
	}

	var rec MessageRecord
	if err := decodeObject(body, &rec); err != nil {
		return MessageRecord{}, fmt.Errorf("decoding sent message: %w", err)
	}
	return rec, nil
}

// GetListing fetches a listing's display metadata.
func (c *Client) GetListing(ctx context.Context, id string) (ListingRecord, error) {
	body, err := c.get(ctx, "/listings/"+url.PathEscape(id))
	if err != nil {
		return ListingRecord{}, err
	}

	var rec ListingRecord
	if err := decodeObject(body, &rec); err != nil {
		return ListingRecord{}, fmt.Errorf("decoding listing: %w", err)
	}
	return rec, nil
}

// GetUser fetches a user's display identity.
func (c *Client) GetUser(ctx context.Context, id string) (UserRecord, error) {
	body, err := c.get(ctx, "/users/"+url.PathEscape(id))
	if err != nil {
		return UserRecord{}, err
	}

	var rec UserRecord
	if err := decodeObject(body, &rec); err != nil {
		return UserRecord{}, fmt.Errorf("decoding user: %w", err)
	}
	return rec, nil
}

// errUnimplemented marks endpoints the backend has not shipped yet.
var errUnimplemented = errors.New("not implemented by backend")

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path, "", nil)
}

// do issues a request with the bearer credential and returns the response body.
func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	if token, err := c.sess.Token(); err == nil {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return data, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%s %s: %w", method, path, ErrUnauthorized)
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%s %s: %w", method, path, ErrNotFound)
	case resp.StatusCode == http.StatusNotImplemented:
		return nil, fmt.Errorf("%s %s: %w", method, path, errUnimplemented)
	default:
		return nil, fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}
}
