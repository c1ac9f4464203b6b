// Package models defines the client-side data types: the vault entry that
// travels inside a record payload, and the local sync bookkeeping.
package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var ErrEmptyTitle = errors.New("entry title must not be empty")

// Entry is the plaintext content of one vault record. It is serialized to
// JSON and becomes the record payload; the server never sees it.
type Entry struct {
	Title    string   `json:"title"`
	Username string   `json:"username,omitempty"`
	Password string   `json:"password,omitempty"`
	URL      string   `json:"url,omitempty"`
	Notes    string   `json:"notes,omitempty"`
	Category string   `json:"category,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

func (e Entry) Validate() error {
	if strings.TrimSpace(e.Title) == "" {
		return ErrEmptyTitle
	}
	return nil
}

func (e Entry) Marshal() ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(e)
}

func UnmarshalEntry(payload []byte) (Entry, error) {
	var e Entry
	if err := json.Unmarshal(payload, &e); err != nil {
		return Entry{}, fmt.Errorf("decode entry: %w", err)
	}
	return e, nil
}

// Matches reports whether query occurs, ignoring case, in the title,
// username, url, notes or one of the tags. An empty query matches.
func (e Entry) Matches(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	for _, f := range append([]string{e.Title, e.Username, e.URL, e.Notes}, e.Tags...) {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

// ParseTags splits a comma separated list, dropping blanks.
func ParseTags(s string) []string {
	var tags []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// Overview is the listing form of an entry.
type Overview struct {
	ID       string
	Title    string
	Category string
}

func (o Overview) String() string {
	if o.Category == "" {
		return fmt.Sprintf("%s\t%s", o.ID, o.Title)
	}
	return fmt.Sprintf("%s\t%s\t[%s]", o.ID, o.Title, o.Category)
}
