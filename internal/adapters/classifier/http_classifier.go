package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/goalsmith/goalsmith/internal/core/services"
)

// HTTPClassifier calls an external extraction service that turns free
// text into a structured draft record. The service is trusted for
// shape only; every field it returns is re-validated by the intake
// pipeline.
type HTTPClassifier struct {
	url    string
	client *http.Client
}

func NewHTTPClassifier(url string) *HTTPClassifier {
	return &HTTPClassifier{
		url: url,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *HTTPClassifier) Classify(ctx context.Context, input services.ClassifyInput) (*services.DraftRecord, error) {
	body, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("classifier: encoding input failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("classifier: building request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classifier: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("classifier: unexpected status %d", resp.StatusCode)
	}

	var rec services.DraftRecord
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return nil, fmt.Errorf("classifier: decoding record failed: %w", err)
	}

	return &rec, nil
}
