// Package snapshot defines the cache payload written for each CRM client and the
// mapping that normalises nullable source rows into it.
package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/charlesng35/crmwarm/internal/models"
)

// DefaultStatus is applied when the source row carries no status.
const DefaultStatus = "prospect"

const (
	keyPrefix = "crm:client:"
	keySuffix = ":snapshot"
)

// ClientSnapshot is the normalised, cache-ready projection of a client row.
// Every field except NextFollowUpAt has a concrete value.
type ClientSnapshot struct {
	ID             int64  `json:"id"`
	Document       string `json:"document"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	Status         string `json:"status"`
	NextFollowUpAt *int64 `json:"next_follow_up_at"`
}

// FromClient applies the default policy for missing columns: NULL strings become "",
// a NULL status becomes DefaultStatus and a NULL follow-up stays null.
// An empty but non-NULL status is kept as is.
func FromClient(c models.Client) ClientSnapshot {
	snap := ClientSnapshot{
		ID:       c.ID,
		Document: stringOrEmpty(c.Document),
		Name:     stringOrEmpty(c.Name),
		Email:    stringOrEmpty(c.Email),
		Status:   DefaultStatus,
	}
	if c.Status != nil {
		snap.Status = *c.Status
	}
	if c.NextFollowUpAt != nil {
		ts := *c.NextFollowUpAt
		snap.NextFollowUpAt = &ts
	}
	return snap
}

// Key returns the cache key for a client id, e.g. crm:client:42:snapshot.
func Key(id int64) string {
	return keyPrefix + strconv.FormatInt(id, 10) + keySuffix
}

// Encode serialises a snapshot as compact UTF-8 JSON. Non-ASCII text and HTML
// characters are written verbatim.
func Encode(s ClientSnapshot) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, fmt.Errorf("snapshot: encode client %d: %w", s.ID, err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Decode parses a payload previously produced by Encode.
func Decode(data []byte) (ClientSnapshot, error) {
	var s ClientSnapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return ClientSnapshot{}, fmt.Errorf("snapshot: decode: %w", err)
	}
	return s, nil
}

func stringOrEmpty(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
