package remote

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/oneconcern/irmin/pkg/core/status"
	"github.com/oneconcern/irmin/pkg/hash"
	"github.com/oneconcern/irmin/pkg/model"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Head of a branch, as exchanged with the HTTP server
type Head struct {
	Branch string    `json:"branch"`
	Head   hash.Hash `json:"head"`
}

// CompareAndSet request, as exchanged with the HTTP server
type CompareAndSet struct {
	Expected *hash.Hash `json:"expected,omitempty"`
	Next     hash.Hash  `json:"next"`
}

// CompareAndSetResult response, as exchanged with the HTTP server
type CompareAndSetResult struct {
	Updated bool `json:"updated"`
}

// HTTP remote: a branch of a repository served over HTTP
type HTTP struct {
	base     *url.URL
	branch   string
	client   *http.Client
	user     string
	password string
	l        *zap.Logger
}

// HTTPOption configures an HTTP remote
type HTTPOption func(*HTTP)

// WithBasicAuth authenticates requests
func WithBasicAuth(user, password string) HTTPOption {
	return func(h *HTTP) {
		h.user, h.password = user, password
	}
}

// WithHTTPClient sets the client used to issue requests. It defaults to http.DefaultClient.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTP) {
		if c != nil {
			h.client = c
		}
	}
}

// WithHTTPLogger sets a logger for requests
func WithHTTPLogger(l *zap.Logger) HTTPOption {
	return func(h *HTTP) {
		if l != nil {
			h.l = l
		}
	}
}

// NewHTTP remote for a branch on a server at some base URL
func NewHTTP(base string, branch string, opts ...HTTPOption) (*HTTP, error) {
	u, err := url.Parse(strings.TrimSuffix(base, "/"))
	if err != nil {
		return nil, status.ErrTransport.WrapMessage("invalid remote URL %q: %v", base, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, status.ErrTransport.WrapMessage("unsupported remote scheme %q", u.Scheme)
	}
	if err := model.ValidateBranchName(branch); err != nil {
		return nil, err
	}
	h := &HTTP{
		base:   u,
		branch: branch,
		client: http.DefaultClient,
		l:      zap.NewNop(),
	}
	for _, apply := range opts {
		apply(h)
	}
	return h, nil
}

// Parse a remote URL, as http(s)://[user:password@]host[:port]/<branch>.
//
// Credentials in the URL are used for basic authentication. Without a path, the remote is the default branch.
func Parse(raw string, opts ...HTTPOption) (*HTTP, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, status.ErrTransport.WrapMessage("invalid remote URL %q: %v", raw, err)
	}
	branch := strings.Trim(u.Path, "/")
	if branch == "" {
		branch = model.DefaultBranch
	}
	if u.User != nil {
		password, _ := u.User.Password()
		opts = append([]HTTPOption{WithBasicAuth(u.User.Username(), password)}, opts...)
	}
	base := url.URL{Scheme: u.Scheme, Host: u.Host}
	return NewHTTP(base.String(), branch, opts...)
}

func (h *HTTP) String() string {
	return h.base.String() + "/" + h.branch
}

// Branch of the remote
func (h *HTTP) Branch() string {
	return h.branch
}

// Head of the remote branch
func (h *HTTP) Head(ctx context.Context) (hash.Hash, bool, error) {
	resp, err := h.do(ctx, http.MethodGet, h.headPath(), nil)
	if err != nil {
		return hash.Zero, false, err
	}
	defer drain(resp)

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return hash.Zero, false, nil
	default:
		return hash.Zero, false, unexpected(resp)
	}

	var head Head
	if err := json.NewDecoder(resp.Body).Decode(&head); err != nil {
		return hash.Zero, false, status.ErrTransport.WrapMessage("decoding head of %v: %v", h, err)
	}
	return head.Head, true, nil
}

// Has tells if the remote stores an object
func (h *HTTP) Has(ctx context.Context, key model.KindedKey) (bool, error) {
	resp, err := h.do(ctx, http.MethodHead, objectPath(key), nil)
	if err != nil {
		return false, err
	}
	defer drain(resp)

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, unexpected(resp)
	}
}

// Get the encoded form of an object
func (h *HTTP) Get(ctx context.Context, key model.KindedKey) ([]byte, error) {
	resp, err := h.do(ctx, http.MethodGet, objectPath(key), nil)
	if err != nil {
		return nil, err
	}
	defer drain(resp)

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, status.ErrNotFound.WrapMessage("%v on %v", key, h)
	default:
		return nil, unexpected(resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, status.ErrTransport.Wrap(err)
	}
	return data, nil
}

// Put the encoded form of an object
func (h *HTTP) Put(ctx context.Context, key model.KindedKey, data []byte) error {
	resp, err := h.do(ctx, http.MethodPut, objectPath(key), data)
	if err != nil {
		return err
	}
	defer drain(resp)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent:
		return nil
	case http.StatusBadRequest:
		return status.ErrCorruptObject.WrapMessage("%v rejected by %v", key, h)
	default:
		return unexpected(resp)
	}
}

// CompareAndSet the remote head
func (h *HTTP) CompareAndSet(ctx context.Context, expected *hash.Hash, next hash.Hash) (bool, error) {
	body, err := json.Marshal(CompareAndSet{Expected: expected, Next: next})
	if err != nil {
		return false, status.ErrTransport.Wrap(err)
	}
	resp, err := h.do(ctx, http.MethodPost, h.headPath(), body)
	if err != nil {
		return false, err
	}
	defer drain(resp)

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return false, status.ErrNotFound.WrapMessage("commit %v on %v", next.Short(), h)
	default:
		return false, unexpected(resp)
	}

	var result CompareAndSetResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, status.ErrTransport.WrapMessage("decoding response from %v: %v", h, err)
	}
	return result.Updated, nil
}

func (h *HTTP) headPath() string {
	segments := strings.Split(h.branch, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return "/heads/" + strings.Join(segments, "/")
}

func objectPath(key model.KindedKey) string {
	return "/objects/" + key.Kind.String() + "/" + key.Hash.String()
}

func (h *HTTP) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, h.base.String()+path, rdr)
	if err != nil {
		return nil, status.ErrTransport.Wrap(err)
	}
	if h.user != "" {
		req.SetBasicAuth(h.user, h.password)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, status.ErrTransport.Wrap(err)
	}
	h.l.Debug("remote request", zap.String("method", method), zap.String("path", path), zap.Int("status", resp.StatusCode))

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		drain(resp)
		return nil, status.ErrTransport.WrapMessage("access to %v denied: %s", h, resp.Status)
	}
	return resp, nil
}

func unexpected(resp *http.Response) error {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return status.ErrTransport.WrapMessage("unexpected response %s: %s", resp.Status, strings.TrimSpace(string(msg)))
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

var _ Remote = &HTTP{}
