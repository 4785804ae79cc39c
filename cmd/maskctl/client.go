package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/go-resty/resty/v2"
)

// apiError is the error body rendered by the server
type apiError struct {
	Status  int               `json:"-"`
	Kind    string            `json:"error"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields"`
}

func (e *apiError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("%d %s: %s", e.Status, http.StatusText(e.Status), e.Message)
	}

	fields := make([]string, 0, len(e.Fields))
	for name, msg := range e.Fields {
		fields = append(fields, name+": "+msg)
	}
	sort.Strings(fields)
	return fmt.Sprintf("%d %s: %s (%s)", e.Status, http.StatusText(e.Status), e.Message, strings.Join(fields, "; "))
}

type client struct {
	http *resty.Client
}

func newClient(server string, token string) *client {
	c := resty.New().
		SetBaseURL(strings.TrimRight(server, "/")).
		SetTimeout(30*time.Second).
		SetHeader("Accept", "application/json").
		SetHeader("Accept-Encoding", "br")

	if token != "" {
		c.SetAuthToken(token)
	}

	return &client{http: c}
}

// call sends request and decodes JSON response into out, error responses are returned as *apiError
func (c *client) call(ctx context.Context, method string, path string, query map[string]string, body any, out any) error {
	req := c.http.R().
		SetContext(ctx).
		SetQueryParams(query).
		SetDoNotParseResponse(true)
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	raw := resp.RawBody()
	defer raw.Close() // nolint:errcheck

	var r io.Reader = raw
	if resp.Header().Get("Content-Encoding") == "br" {
		r = brotli.NewReader(raw)
	}

	if resp.IsError() {
		apiErr := &apiError{Status: resp.StatusCode()}
		if err := json.NewDecoder(r).Decode(apiErr); err != nil {
			apiErr.Message = "unexpected response"
		}
		return apiErr
	}

	if err := json.NewDecoder(r).Decode(out); err != nil {
		return fmt.Errorf("can't decode response: %w", err)
	}
	return nil
}

type pharmacy struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type listing struct {
	MaskID int64  `json:"mask_id"`
	Name   string `json:"name"`
	Price  string `json:"price"`
}

type searchResult struct {
	Name      string  `json:"name"`
	Relevance float64 `json:"relevance"`
}

type purchaseRequest struct {
	PharmacyID int64 `json:"pharmacy_id"`
	MaskID     int64 `json:"mask_id"`
	UserID     int64 `json:"user_id"`
	Quantity   int   `json:"quantity"`
}

type purchaseReceipt struct {
	Message         string `json:"message"`
	TransactionID   int64  `json:"transaction_id"`
	UserName        string `json:"user_name"`
	PharmacyName    string `json:"pharmacy_name"`
	MaskName        string `json:"mask_name"`
	Quantity        int    `json:"quantity"`
	TotalCost       string `json:"total_cost"`
	TransactionDate string `json:"transaction_date"`
}

type cancelReceipt struct {
	Message           string `json:"message"`
	TransactionID     int64  `json:"transaction_id"`
	UserName          string `json:"user_name"`
	PharmacyName      string `json:"pharmacy_name"`
	MaskName          string `json:"mask_name"`
	TransactionAmount string `json:"transaction_amount"`
}

type userSpending struct {
	ID               int64  `json:"id"`
	Name             string `json:"name"`
	TotalAmount      string `json:"total_amount"`
	TransactionCount int64  `json:"transaction_count"`
}

type totals struct {
	TotalMasks  int64  `json:"total_masks"`
	TotalAmount string `json:"total_amount"`
}
