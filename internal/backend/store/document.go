package store

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/justgovernance/govstore/internal/backend/domain"
)

// SchemaVersion is the layout written by this build. Version 0 is the
// email-keyed layout of the original browser store.
const SchemaVersion = 1

// Document is the whole persisted state: one map per named collection.
// Per-user collections are keyed by user id.
type Document struct {
	SchemaVersion int `json:"schema_version"`

	Users                 map[string]domain.User                    `json:"users"`
	Sessions              map[string]domain.Session                 `json:"sessions"`
	EmailTokens           map[string]domain.EmailVerificationToken  `json:"email_tokens"`
	PasswordResets        map[string]domain.PasswordResetToken      `json:"password_resets"`
	PasswordResetsByEmail map[string]string                         `json:"password_resets_by_email"`
	OAuthBindings         map[string]map[string]domain.OAuthBinding `json:"oauth_bindings"` // provider -> account id

	NavUI            map[string]domain.NavUIState                `json:"nav_ui"`
	Conversations    map[string][]domain.Conversation            `json:"conversations"`
	TopicChats       map[string]map[string]domain.TopicChat      `json:"topic_chats"`
	TopicProgress    map[string]map[string]domain.TopicProgress  `json:"topic_progress"`
	Assessments      map[string][]domain.AssessmentRecord        `json:"assessments"`
	Questionnaires   map[string][]domain.QuestionnaireSubmission `json:"questionnaires"`
	Scenarios        map[string]map[string]domain.Scenario       `json:"scenarios"`
	ScenarioAttempts map[string][]domain.ScenarioAttempt         `json:"scenario_attempts"`
}

// NewDocument returns an empty document at the current schema.
func NewDocument() *Document {
	d := &Document{SchemaVersion: SchemaVersion}
	d.ensure()
	return d
}

// ensure creates every missing collection with its empty default.
func (d *Document) ensure() {
	ensureMap(&d.Users)
	ensureMap(&d.Sessions)
	ensureMap(&d.EmailTokens)
	ensureMap(&d.PasswordResets)
	ensureMap(&d.PasswordResetsByEmail)
	ensureMap(&d.OAuthBindings)
	ensureMap(&d.NavUI)
	ensureMap(&d.Conversations)
	ensureMap(&d.TopicChats)
	ensureMap(&d.TopicProgress)
	ensureMap(&d.Assessments)
	ensureMap(&d.Questionnaires)
	ensureMap(&d.Scenarios)
	ensureMap(&d.ScenarioAttempts)
}

func ensureMap[K comparable, V any](m *map[K]V) {
	if *m == nil {
		*m = make(map[K]V)
	}
}

// Encode serializes the document.
func Encode(d *Document) ([]byte, error) {
	return json.Marshal(d)
}

// DecodeOptions controls how stored bytes are turned into a Document.
type DecodeOptions struct {
	// Now stamps records created while migrating an older layout.
	Now time.Time
	// HashPassword hashes plaintext passwords found in schema 0 documents.
	// When nil, or when it fails, the imported user is marked ResetRequired.
	HashPassword func(password string) (string, error)
}

// DecodeResult reports what Decode had to change.
type DecodeResult struct {
	// Migrated is set when an older layout was converted. The converted
	// document is complete and safe to write back.
	Migrated bool
	// Dropped names the collections that could not be read, in whole or in
	// part, and were replaced by their defaults. "document" means nothing
	// was readable. A document with dropped parts must not be written back
	// automatically, since that would destroy what is still on disk.
	Dropped []string
}

// Damaged reports whether any stored data could not be read.
func (r DecodeResult) Damaged() bool { return len(r.Dropped) > 0 }

// collectionDecoders reads each named collection on its own, so one
// unreadable collection or entry does not take the rest of the document
// down with it.
var collectionDecoders = []struct {
	name   string
	decode func(raw json.RawMessage, d *Document) bool
}{
	{"users", func(raw json.RawMessage, d *Document) bool { return decodeEntries(raw, &d.Users) }},
	{"sessions", func(raw json.RawMessage, d *Document) bool { return decodeEntries(raw, &d.Sessions) }},
	{"email_tokens", func(raw json.RawMessage, d *Document) bool { return decodeEntries(raw, &d.EmailTokens) }},
	{"password_resets", func(raw json.RawMessage, d *Document) bool { return decodeEntries(raw, &d.PasswordResets) }},
	{"password_resets_by_email", func(raw json.RawMessage, d *Document) bool { return decodeEntries(raw, &d.PasswordResetsByEmail) }},
	{"oauth_bindings", func(raw json.RawMessage, d *Document) bool { return decodeEntries(raw, &d.OAuthBindings) }},
	{"nav_ui", func(raw json.RawMessage, d *Document) bool { return decodeEntries(raw, &d.NavUI) }},
	{"conversations", func(raw json.RawMessage, d *Document) bool { return decodeEntries(raw, &d.Conversations) }},
	{"topic_chats", func(raw json.RawMessage, d *Document) bool { return decodeEntries(raw, &d.TopicChats) }},
	{"topic_progress", func(raw json.RawMessage, d *Document) bool { return decodeEntries(raw, &d.TopicProgress) }},
	{"assessments", func(raw json.RawMessage, d *Document) bool { return decodeEntries(raw, &d.Assessments) }},
	{"questionnaires", func(raw json.RawMessage, d *Document) bool { return decodeEntries(raw, &d.Questionnaires) }},
	{"scenarios", func(raw json.RawMessage, d *Document) bool { return decodeEntries(raw, &d.Scenarios) }},
	{"scenario_attempts", func(raw json.RawMessage, d *Document) bool { return decodeEntries(raw, &d.ScenarioAttempts) }},
}

// decodeEntries fills dst with every entry of the JSON object raw that
// decodes, and reports whether all of them did.
func decodeEntries[V any](raw json.RawMessage, dst *map[string]V) bool {
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return true
	}
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return false
	}

	*dst = make(map[string]V, len(entries))
	clean := true
	for key, entry := range entries {
		var v V
		if err := json.Unmarshal(entry, &v); err != nil {
			clean = false
			continue
		}
		(*dst)[key] = v
	}
	return clean
}

// Decode turns stored bytes into a usable document and never fails. Empty
// input yields an empty document, missing collections are created, older
// layouts are migrated, and unreadable collections or entries are replaced
// by their defaults and listed in the result.
func Decode(raw []byte, opts DecodeOptions) (*Document, DecodeResult) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return NewDocument(), DecodeResult{}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return NewDocument(), DecodeResult{Dropped: []string{"document"}}
	}

	version := 0
	if v, ok := fields["schema_version"]; ok {
		if err := json.Unmarshal(v, &version); err != nil {
			return NewDocument(), DecodeResult{Dropped: []string{"document"}}
		}
	}

	if version == 0 {
		legacy, err := decodeLegacy(raw, opts)
		if err != nil {
			return NewDocument(), DecodeResult{Dropped: []string{"document"}}
		}
		return legacy, DecodeResult{Migrated: true}
	}

	d := &Document{SchemaVersion: version}
	var res DecodeResult
	for _, c := range collectionDecoders {
		v, ok := fields[c.name]
		if !ok {
			continue
		}
		if !c.decode(v, d) {
			res.Dropped = append(res.Dropped, c.name)
		}
	}
	d.ensure()
	return d, res
}

// Clone decodes raw, which must be the output of Encode, into a fresh
// document that shares no memory with any other.
func Clone(raw []byte) (*Document, error) {
	var d Document
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, err
	}
	d.ensure()
	return &d, nil
}
