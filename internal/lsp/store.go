package lsp

import (
	"sync"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

// Document is an open file and what was derived from its last full text.
type Document struct {
	URI         string
	Text        string
	Index       *DocIndex
	Diagnostics []protocol.Diagnostic
}

type Store struct {
	mu   sync.RWMutex
	docs map[string]*Document // uri -> document
}

func NewStore() *Store {
	return &Store{docs: map[string]*Document{}}
}

// Set replaces the text of uri and re-analyzes it. Files that are not
// scripts get an empty index and no diagnostics.
func (s *Store) Set(uri, text string) *Document {
	doc := &Document{URI: uri, Text: text, Index: &DocIndex{Defs: map[string]protocol.Location{}}}
	if IsScript(uri) {
		doc.Index = BuildIndex(uri, text)
		doc.Diagnostics = ToLspDiagnostics(text, Diagnostics(text))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[uri] = doc
	return doc
}

func (s *Store) Get(uri string) (*Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.docs[uri]
	return d, ok
}

func (s *Store) Delete(uri string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, uri)
}
