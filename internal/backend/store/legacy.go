package store

import (
	"encoding/json"
	"time"

	"github.com/justgovernance/govstore/internal/backend/domain"
	"github.com/justgovernance/govstore/pkg/idx"
)

// LegacySessionID names the session imported from a schema 0 document. It
// carries only an email, so it resolves through the email fallback.
const LegacySessionID = "legacy"

// legacyDocument is the email-keyed layout of the browser store. Plaintext
// passwords are hashed on import and never kept. Reset tokens are dropped.
type legacyDocument struct {
	Users []struct {
		Email               string `json:"email"`
		Password            string `json:"password"`
		Name                string `json:"name"`
		Verified            bool   `json:"verified"`
		FirstLoginAt        *int64 `json:"firstLoginAt"`
		ProjectOverviewSeen bool   `json:"projectOverviewSeen"`
	} `json:"users"`
	Sessions struct {
		CurrentUserEmail *string `json:"currentUserEmail"`
	} `json:"sessions"`
	NavUI             map[string]domain.NavUIState          `json:"navUi"`
	GlobalConvs       map[string][]legacyConversation       `json:"globalConvs"`
	TopicChats        map[string]map[string]legacyTopicChat `json:"topicChats"`
	TopicProgress     map[string]map[string]legacyProgress  `json:"topicProgress"`
	AssessmentHistory map[string][]legacyAssessment         `json:"assessmentHistory"`
}

// Timestamps in the browser store are unix milliseconds.
type legacyMessage struct {
	Role string `json:"role"`
	Text string `json:"text"`
	TS   int64  `json:"ts"`
}

type legacyConversation struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Messages  []legacyMessage `json:"messages"`
	UpdatedAt int64           `json:"updatedAt"`
}

type legacyTopicChat struct {
	Messages  []legacyMessage `json:"messages"`
	UpdatedAt int64           `json:"updatedAt"`
}

type legacyAssessment struct {
	ID        string          `json:"id"`
	Score     float64         `json:"score"`
	Date      int64           `json:"date"`
	Breakdown map[string]any  `json:"breakdown"`
	Advice    json.RawMessage `json:"advice"`
	Details   map[string]any  `json:"details"`
}

type legacyProgress struct {
	LastScore *float64 `json:"lastScore"`
	Eligible  bool     `json:"eligible"`
	Completed bool     `json:"completed"`
}

func decodeLegacy(raw []byte, opts DecodeOptions) (*Document, error) {
	var old legacyDocument
	if err := json.Unmarshal(raw, &old); err != nil {
		return nil, err
	}

	now := opts.Now
	d := NewDocument()
	idByEmail := make(map[string]string, len(old.Users))

	for _, lu := range old.Users {
		email := domain.NormalizeEmail(lu.Email)
		if email == "" {
			continue
		}
		if _, dup := idByEmail[email]; dup {
			continue
		}

		u := domain.User{
			ID:                  idx.NewAt(now).String(),
			Email:               email,
			Name:                lu.Name,
			ProjectOverviewSeen: lu.ProjectOverviewSeen,
			CreatedAt:           now,
			UpdatedAt:           now,
		}
		if lu.Password != "" {
			u.PasswordHash, u.ResetRequired = importPassword(lu.Password, opts.HashPassword)
		}
		if lu.Verified {
			verifiedAt := now
			u.EmailVerifiedAt = &verifiedAt
		}
		if lu.FirstLoginAt != nil && *lu.FirstLoginAt != 0 {
			first := fromMillis(*lu.FirstLoginAt)
			u.FirstLoginAt = &first
		}

		d.Users[u.ID] = u
		idByEmail[email] = u.ID
	}

	if s := old.Sessions.CurrentUserEmail; s != nil && *s != "" {
		d.Sessions[LegacySessionID] = domain.Session{
			ID:        LegacySessionID,
			Email:     domain.NormalizeEmail(*s),
			CreatedAt: now,
			UpdatedAt: now,
		}
	}

	rekey := func(email string) string {
		if id, ok := idByEmail[domain.NormalizeEmail(email)]; ok {
			return id
		}
		return email
	}
	for email, nav := range old.NavUI {
		if nav.Expanded == nil {
			nav.Expanded = map[string]bool{}
		}
		d.NavUI[rekey(email)] = nav
	}
	for email, topics := range old.TopicProgress {
		converted := make(map[string]domain.TopicProgress, len(topics))
		for topicID, p := range topics {
			converted[topicID] = domain.TopicProgress(p)
		}
		d.TopicProgress[rekey(email)] = converted
	}

	for email, convs := range old.GlobalConvs {
		out := make([]domain.Conversation, 0, len(convs))
		for _, c := range convs {
			id := c.ID
			if id == "" {
				id = idx.NewAt(now).String()
			}
			out = append(out, domain.Conversation{
				ID:        id,
				Title:     c.Title,
				Messages:  convertMessages(c.Messages),
				UpdatedAt: fromMillis(c.UpdatedAt),
			})
		}
		d.Conversations[rekey(email)] = out
	}
	for email, chats := range old.TopicChats {
		converted := make(map[string]domain.TopicChat, len(chats))
		for topicID, c := range chats {
			converted[topicID] = domain.TopicChat{
				Messages:  convertMessages(c.Messages),
				UpdatedAt: fromMillis(c.UpdatedAt),
			}
		}
		d.TopicChats[rekey(email)] = converted
	}
	for email, records := range old.AssessmentHistory {
		out := make([]domain.AssessmentRecord, 0, len(records))
		for _, r := range records {
			id := r.ID
			if id == "" {
				id = idx.NewAt(now).String()
			}
			out = append(out, domain.AssessmentRecord{
				ID:        id,
				Date:      fromMillis(r.Date),
				Score:     r.Score,
				Breakdown: r.Breakdown,
				Advice:    adviceText(r.Advice),
				Details:   r.Details,
			})
		}
		d.Assessments[rekey(email)] = out
	}

	return d, nil
}

// importPassword hashes a plaintext password from the browser store. A user
// whose password cannot be hashed keeps no credential but is flagged, so the
// account can only be recovered through a reset.
func importPassword(plain string, hash func(string) (string, error)) (string, bool) {
	if hash == nil {
		return "", true
	}
	h, err := hash(plain)
	if err != nil {
		return "", true
	}
	return h, false
}

func convertMessages(in []legacyMessage) []domain.ChatMessage {
	out := make([]domain.ChatMessage, 0, len(in))
	for _, m := range in {
		out = append(out, domain.ChatMessage{Role: m.Role, Text: m.Text, TS: fromMillis(m.TS)})
	}
	return out
}

// fromMillis maps 0, the browser store's "never", to the zero time.
func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func adviceText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
