// Package extract turns a registered document into the text of a single chunk.
package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"chatmate.app/chatmate/internal/store"
)

var (
	ErrUnsupportedFormat = errors.New("extract: unsupported document format")
	ErrEmptyText         = errors.New("extract: document has no text")
	ErrNoObjectStore     = errors.New("extract: no object store configured")
)

const maxLinkBytes = 20 << 20

// Fetcher reads objects by key. objectstore.Store satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, key string) ([]byte, error)
}

type Service struct {
	client  *http.Client
	objects Fetcher
}

type Option func(*Service)

func WithHTTPClient(c *http.Client) Option {
	return func(s *Service) { s.client = c }
}

func WithObjectStore(f Fetcher) Option {
	return func(s *Service) { s.objects = f }
}

func NewService(opts ...Option) *Service {
	s := &Service{client: &http.Client{Timeout: 30 * time.Second}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Extract loads the document from its location and returns its text as one chunk.
func (s *Service) Extract(ctx context.Context, doc store.Document) (store.Chunk, error) {
	data, format, err := s.load(ctx, doc)
	if err != nil {
		return store.Chunk{}, err
	}
	text, err := Parse(format, data)
	if err != nil {
		return store.Chunk{}, fmt.Errorf("document %s: %w", doc.ID, err)
	}
	return store.Chunk{Text: text, DocumentID: doc.ID, Source: doc.Location}, nil
}

func (s *Service) load(ctx context.Context, doc store.Document) ([]byte, string, error) {
	switch doc.Kind {
	case store.DocumentKindFile:
		data, err := os.ReadFile(doc.Location)
		if err != nil {
			return nil, "", fmt.Errorf("failed to read %s: %w", doc.Location, err)
		}
		return data, formatOf(doc.Location), nil
	case store.DocumentKindObject:
		if s.objects == nil {
			return nil, "", ErrNoObjectStore
		}
		data, err := s.objects.Fetch(ctx, doc.Location)
		if err != nil {
			return nil, "", err
		}
		return data, formatOf(doc.Location), nil
	case store.DocumentKindLink:
		return s.fetchLink(ctx, doc.Location)
	default:
		return nil, "", fmt.Errorf("%w: kind %q", ErrUnsupportedFormat, doc.Kind)
	}
}

func (s *Service) fetchLink(ctx context.Context, link string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, http.NoBody)
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("fetch %s: status %d", link, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxLinkBytes))
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", link, err)
	}

	format := formatFromContentType(resp.Header.Get("Content-Type"))
	if format == "" {
		if u, err := url.Parse(link); err == nil {
			format = formatOf(path.Base(u.Path))
		}
	}
	if format == "" || format == formatUnknown {
		format = formatHTML
	}
	return data, format, nil
}

func formatFromContentType(ct string) string {
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return ""
	}
	switch {
	case mediaType == "text/html" || mediaType == "application/xhtml+xml":
		return formatHTML
	case mediaType == "application/pdf":
		return formatPDF
	case mediaType == "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return formatDOCX
	case strings.HasPrefix(mediaType, "text/") || mediaType == "application/json":
		return formatPlain
	}
	return ""
}

func formatOf(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt", ".md", ".csv", ".json", ".log":
		return formatPlain
	case ".html", ".htm":
		return formatHTML
	case ".docx":
		return formatDOCX
	case ".pdf":
		return formatPDF
	}
	return formatUnknown
}
