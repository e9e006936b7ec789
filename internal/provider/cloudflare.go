package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hamed0406/dnsfailover/internal/domain"
)

const cloudflareAPI = "https://api.cloudflare.com/client/v4"

// Cloudflare talks to the Cloudflare v4 REST API with a bearer token.
type Cloudflare struct {
	Token   string
	BaseURL string // overridable for tests
	Client  *http.Client

	mu      sync.Mutex
	zoneIDs map[string]string // zone name -> id
}

func NewCloudflare(token string) *Cloudflare {
	return &Cloudflare{
		Token:   token,
		BaseURL: cloudflareAPI,
		Client:  &http.Client{Timeout: 20 * time.Second},
		zoneIDs: make(map[string]string),
	}
}

type cfEnvelope struct {
	Success bool `json:"success"`
	Errors  []struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
	Result     json.RawMessage `json:"result"`
	ResultInfo struct {
		Page       int `json:"page"`
		TotalPages int `json:"total_pages"`
	} `json:"result_info"`
}

func (c *Cloudflare) do(ctx context.Context, method, path string, query url.Values, body any) (*cfEnvelope, error) {
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}

	u := c.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, err // network errors are transient
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return nil, Permanent(fmt.Errorf("cloudflare auth rejected: %s", resp.Status))
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s %s", ErrNotFound, method, path)
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
		return nil, fmt.Errorf("cloudflare %s", resp.Status)
	}

	var env cfEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("cloudflare decode: %w", err)
	}
	if !env.Success {
		msg := "unknown error"
		if len(env.Errors) > 0 {
			msg = env.Errors[0].Message
		}
		// API-level failures on a 2xx are request problems, not weather.
		return nil, Permanent(fmt.Errorf("cloudflare: %s", msg))
	}
	return &env, nil
}

func (c *Cloudflare) ListZones(ctx context.Context) ([]Zone, error) {
	var zones []Zone
	for page := 1; ; page++ {
		q := url.Values{"per_page": {"50"}, "page": {strconv.Itoa(page)}}
		env, err := c.do(ctx, http.MethodGet, "/zones", q, nil)
		if err != nil {
			return nil, err
		}
		var batch []Zone
		if err := json.Unmarshal(env.Result, &batch); err != nil {
			return nil, err
		}
		zones = append(zones, batch...)
		if env.ResultInfo.Page >= env.ResultInfo.TotalPages {
			break
		}
	}

	c.mu.Lock()
	for _, z := range zones {
		c.zoneIDs[strings.ToLower(z.Name)] = z.ID
	}
	c.mu.Unlock()
	return zones, nil
}

func (c *Cloudflare) zoneID(ctx context.Context, ref domain.RecordRef) (string, error) {
	if ref.ZoneID != "" {
		return ref.ZoneID, nil
	}
	name := strings.ToLower(ref.Zone)

	c.mu.Lock()
	id, ok := c.zoneIDs[name]
	c.mu.Unlock()
	if ok {
		return id, nil
	}

	if _, err := c.ListZones(ctx); err != nil {
		return "", err
	}
	c.mu.Lock()
	id, ok = c.zoneIDs[name]
	c.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("%w: zone %q", ErrNotFound, ref.Zone)
	}
	return id, nil
}

func (c *Cloudflare) findRecord(ctx context.Context, zoneID string, ref domain.RecordRef) (*Record, error) {
	q := url.Values{"name": {ref.Name}, "type": {ref.Type}}
	env, err := c.do(ctx, http.MethodGet, "/zones/"+zoneID+"/dns_records", q, nil)
	if err != nil {
		return nil, err
	}
	var recs []Record
	if err := json.Unmarshal(env.Result, &recs); err != nil {
		return nil, err
	}
	for i := range recs {
		if strings.EqualFold(recs[i].Name, ref.Name) && strings.EqualFold(recs[i].Type, ref.Type) {
			return &recs[i], nil
		}
	}
	return nil, fmt.Errorf("%w: record %s %s", ErrNotFound, ref.Type, ref.Name)
}

func (c *Cloudflare) GetRecord(ctx context.Context, ref domain.RecordRef) (*Record, error) {
	zoneID, err := c.zoneID(ctx, ref)
	if err != nil {
		return nil, err
	}
	return c.findRecord(ctx, zoneID, ref)
}

func (c *Cloudflare) UpdateRecord(ctx context.Context, ref domain.RecordRef, value string) error {
	zoneID, err := c.zoneID(ctx, ref)
	if err != nil {
		return err
	}
	rec, err := c.findRecord(ctx, zoneID, ref)
	if err != nil {
		return err
	}

	payload := map[string]any{
		"type":    ref.Type,
		"name":    ref.Name,
		"content": value,
		"ttl":     1, // automatic
		"proxied": rec.Proxied,
	}
	_, err = c.do(ctx, http.MethodPut, "/zones/"+zoneID+"/dns_records/"+rec.ID, nil, payload)
	return err
}
