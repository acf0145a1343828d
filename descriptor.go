package photocluster

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// RequestDescriptor describes one logical call. Zero fields inherit the
// client defaults during merge; the merged descriptor is fixed for the
// lifetime of the call, including all retry attempts.
type RequestDescriptor struct {
	Method string
	// Path is resolved against the client base URL. Absolute URLs pass
	// through untouched.
	Path   string
	Query  url.Values
	Header http.Header
	// Body is marshaled to JSON unless it is nil, []byte or json.RawMessage.
	Body       any
	Timeout    time.Duration
	Retries    *int
	RetryDelay time.Duration
}

// callSpec is a descriptor lowered to wire-ready form: URL resolved, body
// marshaled once so every retry attempt replays identical bytes.
type callSpec struct {
	method     string
	url        string
	header     http.Header
	body       []byte
	timeout    time.Duration
	retries    int
	retryDelay time.Duration
	endpoint   string
}

// applyDefaults merges client defaults into unset descriptor fields.
func (c *Client) applyDefaults(d RequestDescriptor) RequestDescriptor {
	if d.Method == "" {
		d.Method = http.MethodGet
	}
	if d.Timeout <= 0 {
		d.Timeout = c.timeout
	}
	if d.Retries == nil {
		n := c.maxRetries
		d.Retries = &n
	}
	if d.RetryDelay <= 0 {
		d.RetryDelay = c.initialBackoff
	}

	header := make(http.Header, len(c.defaultHeader)+len(d.Header))
	for k, vs := range c.defaultHeader {
		header[k] = append([]string(nil), vs...)
	}
	for k, vs := range d.Header {
		header[http.CanonicalHeaderKey(k)] = append([]string(nil), vs...)
	}
	d.Header = header

	return d
}

// resolve lowers a merged descriptor to a callSpec.
func (c *Client) resolve(d RequestDescriptor) (*callSpec, error) {
	raw := d.Path
	if !strings.Contains(raw, "://") {
		if c.baseURL == "" {
			return nil, &Error{
				Type:    ErrorTypeValidation,
				Message: fmt.Sprintf("relative path %q requires a base URL", d.Path),
			}
		}
		raw = strings.TrimSuffix(c.baseURL, "/") + "/" + strings.TrimPrefix(d.Path, "/")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, &Error{
			Type:    ErrorTypeValidation,
			Message: fmt.Sprintf("invalid request URL %q", raw),
			Cause:   err,
		}
	}
	if len(d.Query) > 0 {
		q := u.Query()
		for k, vs := range d.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	body, err := marshalBody(d.Body)
	if err != nil {
		return nil, err
	}
	if body != nil && d.Header.Get("Content-Type") == "" {
		d.Header.Set("Content-Type", "application/json")
	}

	return &callSpec{
		method:     d.Method,
		url:        u.String(),
		header:     d.Header,
		body:       body,
		timeout:    d.Timeout,
		retries:    *d.Retries,
		retryDelay: d.RetryDelay,
		endpoint:   endpointFromURL(u),
	}, nil
}

func marshalBody(body any) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	case json.RawMessage:
		return b, nil
	default:
		data, err := json.Marshal(body)
		if err != nil {
			return nil, &Error{
				Type:    ErrorTypeValidation,
				Message: "encoding request body",
				Cause:   err,
			}
		}
		return data, nil
	}
}

func endpointFromURL(u *url.URL) string {
	if u == nil {
		return "unknown"
	}

	var builder strings.Builder
	builder.WriteString(u.Host)

	if u.Path != "" && u.Path != "/" {
		builder.WriteString(u.Path)
	} else {
		builder.WriteByte('/')
	}

	return builder.String()
}
