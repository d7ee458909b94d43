package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/kookworks/kgate/internal/errors"
)

// GatewayURLFunc resolves the websocket URL for one connection
// attempt. The compress flag asks the server for deflated frames.
type GatewayURLFunc func(ctx context.Context, compress bool) (string, error)

// defaultAPIBase is the platform API root used by NewHTTPGatewayURL.
const defaultAPIBase = "https://www.kookapp.cn/api"

const gatewayIndexPath = "/v3/gateway/index"

// NewHTTPGatewayURL returns a GatewayURLFunc that asks the platform's
// gateway index endpoint. An empty baseURL uses the public API root.
func NewHTTPGatewayURL(token, baseURL string, client *http.Client) GatewayURLFunc {
	if baseURL == "" {
		baseURL = defaultAPIBase
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return func(ctx context.Context, compress bool) (string, error) {
		q := url.Values{}
		if compress {
			q.Set("compress", "1")
		} else {
			q.Set("compress", "0")
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+gatewayIndexPath+"?"+q.Encode(), nil)
		if err != nil {
			return "", errors.Newf(errors.CategoryGateway, "build gateway request: %v", err)
		}
		req.Header.Set("Authorization", "Bot "+token)

		resp, err := client.Do(req)
		if err != nil {
			return "", errors.Newf(errors.CategoryGateway, "pull gateway url: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return "", errors.Newf(errors.CategoryGateway, "gateway index returned %s", resp.Status)
		}

		var parsed struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
			Data    struct {
				URL string `json:"url"`
			} `json:"data"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			return "", errors.Newf(errors.CategoryGateway, "decode gateway index: %v", err)
		}
		if parsed.Code != 0 {
			return "", errors.Newf(errors.CategoryGateway, "gateway index failed with code %d: %s", parsed.Code, parsed.Message)
		}
		if parsed.Data.URL == "" {
			return "", errors.Newf(errors.CategoryGateway, "gateway index returned no url")
		}
		return parsed.Data.URL, nil
	}
}

// resumeURL appends the resume query parameters to a gateway URL.
// Resume is only requested when both a sequence and a session id
// survive from the prior connection.
func resumeURL(base string, sequence int64, haveSequence bool, sessionID string) (string, error) {
	if !haveSequence || sessionID == "" {
		return base, nil
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", errors.Newf(errors.CategoryGateway, "parse gateway url: %v", err)
	}
	q := u.Query()
	q.Set("sn", strconv.FormatInt(sequence, 10))
	q.Set("session_id", sessionID)
	q.Set("resume", "1")
	u.RawQuery = q.Encode()
	return u.String(), nil
}
