package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"sync/atomic"

	"github.com/dm/gridmon/internal/model"
)

const (
	subsystem         = "datagrid-infinispan"
	attrEntries       = "number-of-entries"
	outcomeSuccess    = "success"
	maxResponseBytes  = 4 * 1024 * 1024
	truncateErrorBody = 200
)

type httpSession struct {
	node      string
	url       string
	container string
	creds     Credentials
	transport *http.Transport
	http      *http.Client
	closed    atomic.Bool
}

// CacheNames lists every cache defined in the session's container, across
// all cache kinds, sorted by name. A kind the server does not know is
// skipped.
func (s *httpSession) CacheNames(ctx context.Context) ([]model.CacheRef, error) {
	var out []model.CacheRef
	for _, kind := range model.CacheKinds {
		var names []string
		err := s.do(ctx, readChildrenNames(s.containerAddress(), kind), &names)
		if err != nil {
			var opErr *OperationError
			if errors.As(err, &opErr) {
				continue
			}
			return nil, fmt.Errorf("CacheNames %s: %w", s.node, err)
		}
		for _, n := range names {
			out = append(out, model.CacheRef{Name: n, Kind: kind})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// EntryCount reads the cache's local number-of-entries runtime attribute.
func (s *httpSession) EntryCount(ctx context.Context, cache model.CacheRef) (int64, error) {
	kind := cache.Kind
	if kind == "" {
		kind = model.KindDistributed
	}
	addr := append(s.containerAddress(), map[string]string{kind: cache.Name})

	var raw json.RawMessage
	if err := s.do(ctx, readAttribute(addr, attrEntries, true), &raw); err != nil {
		return 0, fmt.Errorf("EntryCount %s/%s: %w", s.node, cache.Name, err)
	}
	n, err := parseCount(raw)
	if err != nil {
		return 0, fmt.Errorf("EntryCount %s/%s: %w", s.node, cache.Name, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("EntryCount %s/%s: statistics unavailable (%d)", s.node, cache.Name, n)
	}
	return n, nil
}

// Close drops the session's pooled connections.
func (s *httpSession) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.transport.CloseIdleConnections()
	return nil
}

func (s *httpSession) containerAddress() []map[string]string {
	return []map[string]string{
		{"subsystem": subsystem},
		{"cache-container": s.container},
	}
}

// operation is one management-model request.
type operation struct {
	Operation      string              `json:"operation"`
	Address        []map[string]string `json:"address"`
	Name           string              `json:"name,omitempty"`
	ChildType      string              `json:"child-type,omitempty"`
	IncludeRuntime bool                `json:"include-runtime,omitempty"`
}

type response struct {
	Outcome            string          `json:"outcome"`
	Result             json.RawMessage `json:"result"`
	FailureDescription json.RawMessage `json:"failure-description"`
}

// OperationError is a management operation the node answered with a
// failed outcome. The node itself is reachable.
type OperationError struct {
	Operation   string
	Description string
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("operation %s failed: %s", e.Operation, e.Description)
}

func readAttribute(addr []map[string]string, name string, runtime bool) operation {
	if addr == nil {
		addr = []map[string]string{}
	}
	return operation{Operation: "read-attribute", Address: addr, Name: name, IncludeRuntime: runtime}
}

func readChildrenNames(addr []map[string]string, childType string) operation {
	return operation{Operation: "read-children-names", Address: addr, ChildType: childType}
}

// do POSTs op and decodes the result into out. It sets Basic Auth and
// maps 401/403 to ErrAuthFailed.
func (s *httpSession) do(ctx context.Context, op operation, out any) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	body, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("encode operation: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if s.creds.Username != "" || s.creds.Password != "" {
		req.SetBasicAuth(s.creds.Username, s.creds.Password)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return classify(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: status %d", ErrAuthFailed, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return classify(err)
	}

	var r response
	if err := json.Unmarshal(data, &r); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("%w: unexpected status %d: %s", ErrUnreachable, resp.StatusCode, truncate(data, truncateErrorBody))
		}
		return fmt.Errorf("decode response: %w", err)
	}
	if r.Outcome != outcomeSuccess {
		return &OperationError{Operation: op.Operation, Description: describe(r.FailureDescription)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(r.Result, out); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}

// parseCount accepts a JSON number or a numeric string.
func parseCount(raw json.RawMessage) (int64, error) {
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("unexpected count %s", truncate(raw, 40))
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("unexpected count %q", s)
	}
	return n, nil
}

func describe(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	if len(raw) == 0 {
		return "unknown failure"
	}
	return truncate(raw, truncateErrorBody)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
