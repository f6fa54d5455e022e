package pushbullet

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// DefaultBaseURL is the production API root.
const DefaultBaseURL = "https://api.pushbullet.com/v2"

// sniffLen is how much of a file is read to guess its MIME type. It matches
// the default read limit of mimetype.
const sniffLen = 3072

const (
	// MaxUploadSize is the largest file the API accepts.
	MaxUploadSize int64 = 25 << 20

	defaultUploadTimeout = 2 * time.Minute
)

type Client struct {
	apiKey        string
	baseURL       string
	httpClient    *http.Client
	maxUploadSize int64
	uploadTimeout time.Duration
	logger        *slog.Logger
}

type Option func(*Client)

// WithBaseURL points the client at another API root (tests, proxies).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithMaxUploadSize lowers or raises the file size accepted by UploadFile.
func WithMaxUploadSize(n int64) Option {
	return func(c *Client) { c.maxUploadSize = n }
}

// WithUploadTimeout bounds the transfer of file content, which replaces the
// HTTP client's own timeout for that request.
func WithUploadTimeout(d time.Duration) Option {
	return func(c *Client) { c.uploadTimeout = d }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger.With("component", "PushbulletClient") }
}

// NewClient creates a client authenticated with apiKey. It performs no I/O;
// call Me to validate the key.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:        apiKey,
		baseURL:       DefaultBaseURL,
		httpClient:    &http.Client{Timeout: 10 * time.Second},
		maxUploadSize: MaxUploadSize,
		uploadTimeout: defaultUploadTimeout,
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Me returns the account owning the key. An unauthorized response is
// reported as ErrInvalidKey.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var u User
	if err := c.do(ctx, http.MethodGet, "/users/me", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Devices lists the active devices of the account, following pagination.
func (c *Client) Devices(ctx context.Context) ([]Device, error) {
	var all []Device
	err := c.paginate(ctx, "/devices", func(raw json.RawMessage) error {
		var page struct {
			Devices []Device `json:"devices"`
		}
		if err := json.Unmarshal(raw, &page); err != nil {
			return err
		}
		all = append(all, page.Devices...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return all, nil
}

// Channels lists the channels owned by the account, following pagination.
func (c *Client) Channels(ctx context.Context) ([]Channel, error) {
	var all []Channel
	err := c.paginate(ctx, "/channels", func(raw json.RawMessage) error {
		var page struct {
			Channels []Channel `json:"channels"`
		}
		if err := json.Unmarshal(raw, &page); err != nil {
			return err
		}
		all = append(all, page.Channels...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return all, nil
}

// Push sends a single push.
func (c *Client) Push(ctx context.Context, p Push) error {
	return c.do(ctx, http.MethodPost, "/pushes", p, nil)
}

// UploadFile uploads the content of r under name and returns the metadata
// needed for a file push. A zero-length file is reported with EmptyFileType
// and is not uploaded. Content larger than the upload limit fails with
// ErrFileTooLarge; when r reports its size this happens before any request.
func (c *Client) UploadFile(ctx context.Context, name string, r io.Reader) (*FileUpload, error) {
	fileName := filepath.Base(name)
	if size, ok := sizeOf(r); ok && size > c.maxUploadSize {
		return nil, fmt.Errorf("%w: %s is %d bytes, limit is %d", ErrFileTooLarge, fileName, size, c.maxUploadSize)
	}

	br := bufio.NewReaderSize(&cappedReader{r: r, remaining: c.maxUploadSize}, sniffLen)
	head, err := br.Peek(sniffLen)
	switch {
	case errors.Is(err, ErrFileTooLarge):
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrFileTooLarge, fileName, c.maxUploadSize)
	case err != nil && !errors.Is(err, io.EOF):
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	fileType := detectFileType(head)
	if fileType == EmptyFileType {
		return &FileUpload{FileName: fileName, FileType: fileType}, nil
	}

	var up uploadResponse
	if err := c.do(ctx, http.MethodPost, "/upload-request", uploadRequest{FileName: fileName, FileType: fileType}, &up); err != nil {
		return nil, err
	}
	if err := c.uploadContent(ctx, up, fileName, br); err != nil {
		return nil, err
	}

	c.logger.Debug("File uploaded", "file_name", up.FileName, "file_type", up.FileType)
	return &FileUpload{FileName: up.FileName, FileType: up.FileType, FileURL: up.FileURL}, nil
}

// uploadContent streams the file to the pre-signed upload URL. The form
// fields returned by the upload request must precede the file part.
func (c *Client) uploadContent(ctx context.Context, up uploadResponse, fileName string, content io.Reader) error {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	errc := make(chan error, 1)
	go func() {
		err := writeForm(mw, up.Data, fileName, content)
		pw.CloseWithError(err)
		errc <- err
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, up.UploadURL, pr)
	if err != nil {
		pr.Close()
		<-errc
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	hc := *c.httpClient
	hc.Timeout = c.uploadTimeout
	resp, err := hc.Do(req)
	pr.Close()
	if werr := <-errc; werr != nil && !errors.Is(werr, io.ErrClosedPipe) {
		if resp != nil {
			resp.Body.Close()
		}
		if errors.Is(werr, ErrFileTooLarge) {
			return fmt.Errorf("%w: %s exceeds %d bytes", ErrFileTooLarge, fileName, c.maxUploadSize)
		}
		return fmt.Errorf("failed to build upload form: %w", werr)
	}
	if err != nil {
		return fmt.Errorf("pushbullet upload transport failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return &PushError{StatusCode: resp.StatusCode, Message: "file upload rejected"}
	}
	return nil
}

func writeForm(mw *multipart.Writer, fields map[string]string, fileName string, content io.Reader) error {
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return err
		}
	}
	part, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, content); err != nil {
		return err
	}
	return mw.Close()
}

// sizeOf reports the length of readers that know it up front.
func sizeOf(r io.Reader) (int64, bool) {
	switch v := r.(type) {
	case interface{ Stat() (fs.FileInfo, error) }:
		fi, err := v.Stat()
		if err != nil || !fi.Mode().IsRegular() {
			return 0, false
		}
		return fi.Size(), true
	case interface{ Len() int }:
		return int64(v.Len()), true
	}
	return 0, false
}

// cappedReader fails with ErrFileTooLarge once more than remaining bytes
// have been read.
type cappedReader struct {
	r         io.Reader
	remaining int64
}

func (c *cappedReader) Read(p []byte) (int, error) {
	if c.remaining < 0 {
		return 0, ErrFileTooLarge
	}
	if int64(len(p)) > c.remaining+1 {
		p = p[:c.remaining+1]
	}
	n, err := c.r.Read(p)
	c.remaining -= int64(n)
	if c.remaining < 0 {
		return n, ErrFileTooLarge
	}
	return n, err
}

func (c *Client) paginate(ctx context.Context, path string, page func(json.RawMessage) error) error {
	cursor := ""
	for {
		q := url.Values{"active": {"true"}}
		if cursor != "" {
			q.Set("cursor", cursor)
		}
		var raw json.RawMessage
		if err := c.do(ctx, http.MethodGet, path+"?"+q.Encode(), nil, &raw); err != nil {
			return err
		}
		if err := page(raw); err != nil {
			return fmt.Errorf("failed to decode %s: %w", path, err)
		}
		var next struct {
			Cursor string `json:"cursor"`
		}
		if err := json.Unmarshal(raw, &next); err != nil {
			return fmt.Errorf("failed to decode %s cursor: %w", path, err)
		}
		if next.Cursor == "" {
			return nil
		}
		cursor = next.Cursor
	}
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Access-Token", c.apiKey)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("pushbullet transport failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return ErrInvalidKey
	}
	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	pe := &PushError{StatusCode: resp.StatusCode}
	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err == nil {
		pe.Message = er.Error.Message
	}
	return pe
}

func detectFileType(head []byte) string {
	if len(head) == 0 {
		return EmptyFileType
	}
	ct := mimetype.Detect(head).String()
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = ct[:i]
	}
	return ct
}
