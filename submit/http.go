package submit

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/bytedance/sonic"
)

// HTTPStore persists conversations by POSTing them to a per-form endpoint,
// {base}/form/{formID}/conversation.
type HTTPStore struct {
	baseURL string
	client  *http.Client
}

type httpStoreOptions struct {
	client *http.Client
}

type HTTPStoreOption func(*httpStoreOptions)

func WithHTTPClient(client *http.Client) HTTPStoreOption {
	return func(o *httpStoreOptions) {
		o.client = client
	}
}

func NewHTTPStore(baseURL string, opts ...HTTPStoreOption) *HTTPStore {
	options := httpStoreOptions{client: http.DefaultClient}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	if options.client == nil {
		options.client = http.DefaultClient
	}
	return &HTTPStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  options.client,
	}
}

func (s *HTTPStore) SaveConversation(ctx context.Context, formID string, req *Request) error {
	body, err := sonic.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode submission: %w", err)
	}
	endpoint := fmt.Sprintf("%s/form/%s/conversation", s.baseURL, url.PathEscape(formID))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build submission request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("post submission: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("post submission: unexpected status %s", resp.Status)
	}
	return nil
}
