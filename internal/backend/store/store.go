package store

import (
	"context"
	"errors"
	"time"

	"github.com/justgovernance/govstore/internal/backend/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
	ErrReadOnly      = errors.New("store: write in read-only transaction")

	// ErrStale is returned by a Persister when the stored snapshot changed
	// since it was loaded, i.e. another process wrote it.
	ErrStale = errors.New("store: snapshot etag mismatch")
)

// Store is the root data access interface. All reads and writes go through a
// transaction so that every operation sees one consistent snapshot and either
// lands completely or not at all.
type Store interface {
	// View runs fn against the current snapshot. Writes fail with ErrReadOnly.
	View(ctx context.Context, fn func(tx Tx) error) error

	// WithTx runs fn against a private copy of the snapshot. If fn returns
	// nil and wrote anything, the copy is persisted and becomes current. If
	// fn or the persister fails, the copy is discarded.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Ping verifies the durable layer is reachable.
	Ping(ctx context.Context) error

	// Close releases the durable layer.
	Close() error
}

// Tx exposes the sub-repositories over one snapshot.
type Tx interface {
	Users() Users
	Sessions() Sessions
	EmailTokens() EmailTokens
	PasswordResets() PasswordResets
	OAuthBindings() OAuthBindings
	Resources() Resources
}

type Users interface {
	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail matches on the normalized address.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts a new user. Fails with ErrAlreadyExists if the id or
	// email is taken.
	CreateUser(ctx context.Context, u domain.User) error

	// UpdateUser replaces a stored user. The id must exist and the email must
	// stay unique.
	UpdateUser(ctx context.Context, u domain.User) error

	// ListUsers returns all users ordered by creation.
	ListUsers(ctx context.Context) ([]domain.User, error)
}

type Sessions interface {
	GetSession(ctx context.Context, id string) (domain.Session, error)

	// PutSession creates or replaces a session record.
	PutSession(ctx context.Context, s domain.Session) error

	// DeleteInactiveSessions removes logged out sessions last touched before
	// cutoff. Returns the number removed.
	DeleteInactiveSessions(ctx context.Context, cutoff time.Time) (int, error)
}

type EmailTokens interface {
	CreateEmailToken(ctx context.Context, t domain.EmailVerificationToken) error

	// GetEmailTokenByHash looks a token up by fingerprint, used or not.
	GetEmailTokenByHash(ctx context.Context, hash string) (domain.EmailVerificationToken, error)

	// MarkEmailTokenUsed sets used_at. Fails with ErrNotFound if missing.
	MarkEmailTokenUsed(ctx context.Context, hash string, at time.Time) error

	// DeleteUsedEmailTokens removes tokens used before cutoff.
	DeleteUsedEmailTokens(ctx context.Context, cutoff time.Time) (int, error)
}

type PasswordResets interface {
	// CreatePasswordReset stores the token and points the email mirror at it.
	CreatePasswordReset(ctx context.Context, t domain.PasswordResetToken) error

	// GetPasswordResetByHash looks a token up by fingerprint.
	GetPasswordResetByHash(ctx context.Context, hash string) (domain.PasswordResetToken, error)

	// GetLatestPasswordReset returns the most recently issued token for email.
	GetLatestPasswordReset(ctx context.Context, email string) (domain.PasswordResetToken, error)

	MarkPasswordResetUsed(ctx context.Context, hash string, at time.Time) error

	// DeleteStalePasswordResets removes tokens that were used or expired
	// before cutoff, together with mirror entries pointing at them.
	DeleteStalePasswordResets(ctx context.Context, cutoff time.Time) (int, error)
}

type OAuthBindings interface {
	GetBinding(ctx context.Context, provider, providerAccountID string) (domain.OAuthBinding, error)

	// CreateBinding fails with ErrAlreadyExists if the pair is bound.
	CreateBinding(ctx context.Context, b domain.OAuthBinding) error

	ListBindingsForUser(ctx context.Context, userID string) ([]domain.OAuthBinding, error)
}

// Resources holds the per-user collections. Getters return ErrNotFound when
// nothing was stored yet; defaults are the service's concern.
type Resources interface {
	GetNavUI(ctx context.Context, userKey string) (domain.NavUIState, error)
	PutNavUI(ctx context.Context, userKey string, v domain.NavUIState) error

	GetConversations(ctx context.Context, userKey string) ([]domain.Conversation, error)
	PutConversations(ctx context.Context, userKey string, v []domain.Conversation) error

	GetTopicChat(ctx context.Context, userKey, topicID string) (domain.TopicChat, error)
	PutTopicChat(ctx context.Context, userKey, topicID string, v domain.TopicChat) error

	GetTopicProgress(ctx context.Context, userKey, topicID string) (domain.TopicProgress, error)
	PutTopicProgress(ctx context.Context, userKey, topicID string, v domain.TopicProgress) error

	// ListAssessments returns newest first.
	ListAssessments(ctx context.Context, userKey string) ([]domain.AssessmentRecord, error)
	PrependAssessment(ctx context.Context, userKey string, r domain.AssessmentRecord) error

	// ListQuestionnaires returns submissions in submission order.
	ListQuestionnaires(ctx context.Context, userKey string) ([]domain.QuestionnaireSubmission, error)
	AppendQuestionnaire(ctx context.Context, userKey string, s domain.QuestionnaireSubmission) error

	GetScenario(ctx context.Context, userKey, scenarioID string) (domain.Scenario, error)
	PutScenario(ctx context.Context, userKey string, v domain.Scenario) error

	ListScenarioAttempts(ctx context.Context, userKey string) ([]domain.ScenarioAttempt, error)
	GetScenarioAttempt(ctx context.Context, userKey, attemptID string) (domain.ScenarioAttempt, error)
	// PutScenarioAttempt replaces the attempt with the same id or appends it.
	PutScenarioAttempt(ctx context.Context, userKey string, a domain.ScenarioAttempt) error
}

// Meta is persister-owned metadata for one stored snapshot.
type Meta struct {
	SnapshotID    string    // name of the snapshot row
	ETag          string    // changes on every save
	SchemaVersion int       // schema of the stored document
	UpdatedAt     time.Time // time of the last save
}

// Persister is the durable substrate: it loads and saves one serialized
// snapshot document as a whole.
type Persister interface {
	// Load returns the stored document. ok is false when nothing was saved yet.
	Load(ctx context.Context) (raw []byte, meta Meta, ok bool, err error)

	// Save replaces the stored document. expected.ETag must equal the stored
	// etag (empty when nothing is stored yet) or Save fails with ErrStale.
	Save(ctx context.Context, raw []byte, expected Meta) (Meta, error)

	Ping(ctx context.Context) error
	Close() error
}
