package domain

import (
	"encoding/json"
	"fmt"
)

type historyDocument struct {
	Version  int       `json:"version"`
	Messages []Message `json:"messages"`
}

const historyVersion = 1

// EncodeHistory serializes a transcript in insertion order.
func EncodeHistory(msgs []Message) ([]byte, error) {
	if msgs == nil {
		msgs = []Message{}
	}
	buf, err := json.MarshalIndent(historyDocument{Version: historyVersion, Messages: msgs}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("domain: encode history: %w", err)
	}
	return buf, nil
}

// DecodeHistory restores a transcript produced by EncodeHistory.
func DecodeHistory(raw []byte) ([]Message, error) {
	var doc historyDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("domain: decode history: %w", err)
	}
	if doc.Version != historyVersion {
		return nil, fmt.Errorf("domain: decode history: unsupported version %d", doc.Version)
	}
	for i, m := range doc.Messages {
		if m.Author != AuthorUser && m.Author != AuthorAssistant {
			return nil, fmt.Errorf("domain: decode history: message %d has unknown author %q", i, m.Author)
		}
	}
	if doc.Messages == nil {
		doc.Messages = []Message{}
	}
	return doc.Messages, nil
}
