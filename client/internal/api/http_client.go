package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type (
	Config struct {
		Host      string
		AccessKey string
		Timeout   time.Duration
	}

	Params struct {
		Method      string
		Path        string
		Body        interface{}
		Response    interface{}
		QueryParams map[string]string
		Headers     map[string]string
	}

	Client interface {
		Do(ctx context.Context, param Params) error
		Download(ctx context.Context, param Params) (io.ReadCloser, error)
	}

	client struct {
		httpClient *http.Client
		baseUrl    string
		accessKey  string
	}

	// ResponseError is returned for every non 2xx answer of the server. Data holds the raw
	// payload the server attached to the error, if any.
	ResponseError struct {
		StatusCode int
		Message    string
		Data       json.RawMessage
	}
)

const (
	accessTokenHeader = "X-Access-Token"
)

func (e *ResponseError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server responded with %d", e.StatusCode)
	}
	return e.Message
}

func NewClient(cfg Config) Client {
	host := strings.TrimSuffix(cfg.Host, "/")
	if !strings.HasSuffix(host, "/v1") {
		host += "/v1"
	}

	return &client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseUrl:    host + "/",
		accessKey:  cfg.AccessKey,
	}
}

func (c client) Do(ctx context.Context, param Params) error {
	var body io.Reader
	if param.Body != nil {
		bodyBin, err := json.Marshal(param.Body)
		if err != nil {
			return err
		}
		body = bytes.NewReader(bodyBin)
	}

	req, err := c.newRequest(ctx, param, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseError(resp.StatusCode, responseBody)
	}

	if param.Response != nil {
		if err := json.Unmarshal(responseBody, param.Response); err != nil {
			return err
		}
	}
	return nil
}

func (c client) Download(ctx context.Context, param Params) (io.ReadCloser, error) {
	req, err := c.newRequest(ctx, param, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer func() {
			_ = resp.Body.Close()
		}()
		b, _ := io.ReadAll(resp.Body)
		return nil, parseError(resp.StatusCode, b)
	}

	return resp.Body, nil
}

func (c client) newRequest(ctx context.Context, param Params, body io.Reader) (*http.Request, error) {
	requestUrl, err := url.Parse(c.baseUrl + strings.TrimPrefix(param.Path, "/"))
	if err != nil {
		return nil, err
	}

	if len(param.QueryParams) > 0 {
		values := url.Values{}
		for k, v := range param.QueryParams {
			values.Add(k, v)
		}
		requestUrl.RawQuery = values.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, param.Method, requestUrl.String(), body)
	if err != nil {
		return nil, err
	}

	for k, v := range param.Headers {
		req.Header.Set(k, v)
	}

	if c.accessKey != "" {
		req.Header.Set(accessTokenHeader, c.accessKey)
	}
	return req, nil
}

func parseError(status int, b []byte) error {
	var errorResponse struct {
		Error   bool            `json:"error"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	respErr := &ResponseError{StatusCode: status}
	if err := json.Unmarshal(b, &errorResponse); err != nil {
		respErr.Message = strings.TrimSpace(string(b))
		return respErr
	}

	respErr.Message = errorResponse.Message
	respErr.Data = errorResponse.Data
	return respErr
}
