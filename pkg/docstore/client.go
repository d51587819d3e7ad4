// Package docstore provides a client for the external document-management
// store's REST API.
package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/rotisserie/eris"
)

// Client defines the document store operations used by the curation system.
type Client interface {
	// ListDocuments fetches the entire corpus, following pagination with the
	// given page size.
	ListDocuments(ctx context.Context, pageSize int) ([]Document, error)
	GetDocument(ctx context.Context, id string) (*Document, error)
	UpdateDocument(ctx context.Context, id string, patch DocumentPatch) error

	ListCorrespondents(ctx context.Context) ([]Entity, error)
	ListDocumentTypes(ctx context.Context) ([]Entity, error)
	ListTags(ctx context.Context) ([]Entity, error)

	// GetOrCreateDocumentType returns the id of the named document type,
	// creating it if it does not exist.
	GetOrCreateDocumentType(ctx context.Context, name string) (string, error)

	// AddTag attaches tagName to the document, creating the tag if needed.
	AddTag(ctx context.Context, docID, tagName string) error

	// TransitionTag atomically replaces fromTag with toTag on the document
	// in a single patch, never leaving both or neither present.
	TransitionTag(ctx context.Context, docID, fromTag, toTag string) error
}

// Document is a document as returned by the store API.
type Document struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Content       string    `json:"content"`
	Correspondent string    `json:"correspondent,omitempty"`
	DocumentType  string    `json:"document_type,omitempty"`
	Tags          []string  `json:"tags,omitempty"`
	CreatedAt     time.Time `json:"created,omitempty"`
}

// DocumentPatch is a partial document update. Nil fields are left untouched.
type DocumentPatch struct {
	Title         *string   `json:"title,omitempty"`
	Correspondent *string   `json:"correspondent,omitempty"`
	DocumentType  *string   `json:"document_type,omitempty"`
	Tags          *[]string `json:"tags,omitempty"`
}

// Entity is a named metadata entity (correspondent, document type or tag).
type Entity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// APIError carries the HTTP status of a failed store call so callers can
// decide whether it is retryable.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("document store returned %d: %s", e.StatusCode, e.Body)
}

type httpClient struct {
	baseURL string
	token   string
	http    *http.Client
}

// New creates a document store client. If hc is nil a default client with a
// 30s timeout is used.
func New(baseURL, token string, hc *http.Client) Client {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &httpClient{baseURL: baseURL, token: token, http: hc}
}

type documentPage struct {
	Results []Document `json:"results"`
	Next    string     `json:"next"`
}

func (c *httpClient) ListDocuments(ctx context.Context, pageSize int) ([]Document, error) {
	if pageSize <= 0 {
		pageSize = 100
	}

	var all []Document
	next := fmt.Sprintf("%s/api/documents/?page_size=%d", c.baseURL, pageSize)
	for next != "" {
		var page documentPage
		if err := c.doJSON(ctx, http.MethodGet, next, nil, &page); err != nil {
			return nil, eris.Wrap(err, "docstore: list documents")
		}
		all = append(all, page.Results...)
		next = page.Next
	}
	return all, nil
}

func (c *httpClient) GetDocument(ctx context.Context, id string) (*Document, error) {
	var doc Document
	u := fmt.Sprintf("%s/api/documents/%s/", c.baseURL, url.PathEscape(id))
	if err := c.doJSON(ctx, http.MethodGet, u, nil, &doc); err != nil {
		return nil, eris.Wrapf(err, "docstore: get document %s", id)
	}
	return &doc, nil
}

func (c *httpClient) UpdateDocument(ctx context.Context, id string, patch DocumentPatch) error {
	u := fmt.Sprintf("%s/api/documents/%s/", c.baseURL, url.PathEscape(id))
	if err := c.doJSON(ctx, http.MethodPatch, u, patch, nil); err != nil {
		return eris.Wrapf(err, "docstore: update document %s", id)
	}
	return nil
}

type entityPage struct {
	Results []Entity `json:"results"`
	Next    string   `json:"next"`
}

func (c *httpClient) listEntities(ctx context.Context, resource string) ([]Entity, error) {
	var all []Entity
	next := fmt.Sprintf("%s/api/%s/?page_size=250", c.baseURL, resource)
	for next != "" {
		var page entityPage
		if err := c.doJSON(ctx, http.MethodGet, next, nil, &page); err != nil {
			return nil, eris.Wrapf(err, "docstore: list %s", resource)
		}
		all = append(all, page.Results...)
		next = page.Next
	}
	return all, nil
}

func (c *httpClient) ListCorrespondents(ctx context.Context) ([]Entity, error) {
	return c.listEntities(ctx, "correspondents")
}

func (c *httpClient) ListDocumentTypes(ctx context.Context) ([]Entity, error) {
	return c.listEntities(ctx, "document_types")
}

func (c *httpClient) ListTags(ctx context.Context) ([]Entity, error) {
	return c.listEntities(ctx, "tags")
}

func (c *httpClient) GetOrCreateDocumentType(ctx context.Context, name string) (string, error) {
	types, err := c.ListDocumentTypes(ctx)
	if err != nil {
		return "", err
	}
	for _, t := range types {
		if t.Name == name {
			return t.ID, nil
		}
	}

	var created Entity
	u := fmt.Sprintf("%s/api/document_types/", c.baseURL)
	if err := c.doJSON(ctx, http.MethodPost, u, map[string]string{"name": name}, &created); err != nil {
		return "", eris.Wrapf(err, "docstore: create document type %q", name)
	}
	return created.ID, nil
}

func (c *httpClient) AddTag(ctx context.Context, docID, tagName string) error {
	doc, err := c.GetDocument(ctx, docID)
	if err != nil {
		return err
	}
	if slices.Contains(doc.Tags, tagName) {
		return nil
	}
	tags := append(slices.Clone(doc.Tags), tagName)
	return c.UpdateDocument(ctx, docID, DocumentPatch{Tags: &tags})
}

func (c *httpClient) TransitionTag(ctx context.Context, docID, fromTag, toTag string) error {
	doc, err := c.GetDocument(ctx, docID)
	if err != nil {
		return err
	}

	tags := make([]string, 0, len(doc.Tags)+1)
	for _, t := range doc.Tags {
		if t != fromTag && t != toTag {
			tags = append(tags, t)
		}
	}
	tags = append(tags, toTag)

	// Remove and add in one patch so the document is never observed with
	// both tags or neither.
	if err := c.UpdateDocument(ctx, docID, DocumentPatch{Tags: &tags}); err != nil {
		return eris.Wrapf(err, "docstore: transition tag %s -> %s on %s", fromTag, toTag, docID)
	}
	return nil
}

func (c *httpClient) doJSON(ctx context.Context, method, rawURL string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return eris.Wrap(err, "marshal request body")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return eris.Wrap(err, "build request")
	}
	req.Header.Set("Authorization", "Token "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "execute request")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return eris.Wrap(err, "decode response")
	}
	return nil
}
