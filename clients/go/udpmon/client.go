// Package udpmon provides a client for the udpmon REST API: listing stored
// datagrams, counting them, fetching one by id and triggering cleanup.
package udpmon

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client is a udpmon API client.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a new udpmon client.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = "http://127.0.0.1:5000"
	}
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Message represents a stored datagram. Data carries the decoded text for
// UTF-8 payloads and a hex dump for binary ones.
type Message struct {
	ID         int64  `json:"id"`
	Timestamp  string `json:"timestamp"`
	ClientIP   string `json:"client_ip"`
	ClientPort uint16 `json:"client_port"`
	Data       string `json:"data"`
	DataSize   int64  `json:"data_size"`
}

// QueryOptions filters and paginates message listings. A zero ClientPort
// means "no port filter", matching the API's optional parameter.
type QueryOptions struct {
	Limit      int
	Offset     int
	ClientIP   string
	ClientPort int
}

// doRequest performs an HTTP request and returns the response body.
// notFoundOK maps a 404 to a nil body instead of an error.
func (c *Client) doRequest(method, path string, notFoundOK bool) ([]byte, error) {
	req, err := http.NewRequest(method, c.BaseURL+path, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusNotFound && notFoundOK {
		return nil, nil
	}
	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		json.Unmarshal(body, &errResp)
		return nil, fmt.Errorf("udpmon error %d: %s", resp.StatusCode, errResp.Error)
	}

	return body, nil
}

// Messages retrieves stored messages, most recent first.
func (c *Client) Messages(opts QueryOptions) ([]Message, error) {
	params := url.Values{}
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		params.Set("offset", strconv.Itoa(opts.Offset))
	}
	if opts.ClientIP != "" {
		params.Set("client_ip", opts.ClientIP)
	}
	if opts.ClientPort > 0 {
		params.Set("client_port", strconv.Itoa(opts.ClientPort))
	}

	path := "/messages"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	body, err := c.doRequest("GET", path, false)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Messages []Message `json:"messages"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// MessageCount returns the total number of stored messages.
func (c *Client) MessageCount() (int64, error) {
	body, err := c.doRequest("GET", "/messages/count", false)
	if err != nil {
		return 0, err
	}

	var resp struct {
		Count int64 `json:"count"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// Message retrieves a single message by id, (nil, nil) if it doesn't exist.
func (c *Client) Message(id int64) (*Message, error) {
	body, err := c.doRequest("GET", fmt.Sprintf("/messages/%d", id), true)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, nil
	}

	var resp struct {
		Message Message `json:"message"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	return &resp.Message, nil
}

// LatestMessage returns the most recent message, nil if the store is empty.
func (c *Client) LatestMessage() (*Message, error) {
	msgs, err := c.Messages(QueryOptions{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, nil
	}
	return &msgs[0], nil
}

// Cleanup deletes messages older than days and returns how many were removed.
func (c *Client) Cleanup(days float64) (int64, error) {
	path := "/cleanup?days=" + strconv.FormatFloat(days, 'f', -1, 64)
	body, err := c.doRequest("POST", path, false)
	if err != nil {
		return 0, err
	}

	var resp struct {
		DeletedCount int64 `json:"deleted_count"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, err
	}
	return resp.DeletedCount, nil
}
