package snapshot

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/justgovernance/govstore/internal/backend/domain"
	"github.com/justgovernance/govstore/internal/backend/store"
	"github.com/justgovernance/govstore/internal/backend/store/drivers/memory"
)

// inTx runs fn in a committed write transaction and fails the test on error.
func inTx(t *testing.T, s *Store, fn func(ctx context.Context, tx store.Tx)) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		fn(ctx, tx)
		return nil
	}))
}

func TestUsers_UniqueEmail(t *testing.T) {
	s := openTestStore(t, memory.New("default"))

	inTx(t, s, func(ctx context.Context, tx store.Tx) {
		require.NoError(t, tx.Users().CreateUser(ctx, testUser("u1", "a@example.com")))
		require.ErrorIs(t, tx.Users().CreateUser(ctx, testUser("u1", "other@example.com")), store.ErrAlreadyExists)
		require.ErrorIs(t, tx.Users().CreateUser(ctx, testUser("u2", " A@EXAMPLE.com")), store.ErrAlreadyExists)

		require.NoError(t, tx.Users().CreateUser(ctx, testUser("u2", "b@example.com")))
		u2, err := tx.Users().GetUserByID(ctx, "u2")
		require.NoError(t, err)
		u2.Email = "a@example.com"
		require.ErrorIs(t, tx.Users().UpdateUser(ctx, u2), store.ErrAlreadyExists)

		require.ErrorIs(t, tx.Users().UpdateUser(ctx, testUser("ghost", "g@example.com")), store.ErrNotFound)
	})
}

func TestUsers_ListOrdered(t *testing.T) {
	s := openTestStore(t, memory.New("default"))

	inTx(t, s, func(ctx context.Context, tx store.Tx) {
		late := testUser("u-late", "late@example.com")
		late.CreatedAt = testNow.Add(time.Hour)
		require.NoError(t, tx.Users().CreateUser(ctx, late))
		require.NoError(t, tx.Users().CreateUser(ctx, testUser("u-b", "b@example.com")))
		require.NoError(t, tx.Users().CreateUser(ctx, testUser("u-a", "a@example.com")))

		users, err := tx.Users().ListUsers(ctx)
		require.NoError(t, err)
		require.Equal(t, []string{"u-a", "u-b", "u-late"}, []string{users[0].ID, users[1].ID, users[2].ID})
	})
}

func TestSessions_DeleteInactive(t *testing.T) {
	s := openTestStore(t, memory.New("default"))
	old := testNow.Add(-48 * time.Hour)

	inTx(t, s, func(ctx context.Context, tx store.Tx) {
		require.NoError(t, tx.Sessions().PutSession(ctx, domain.Session{ID: "active-old", UserID: "u1", UpdatedAt: old}))
		require.NoError(t, tx.Sessions().PutSession(ctx, domain.Session{ID: "out-old", UpdatedAt: old}))
		require.NoError(t, tx.Sessions().PutSession(ctx, domain.Session{ID: "out-new", UpdatedAt: testNow}))

		n, err := tx.Sessions().DeleteInactiveSessions(ctx, testNow.Add(-24*time.Hour))
		require.NoError(t, err)
		require.Equal(t, 1, n)

		_, err = tx.Sessions().GetSession(ctx, "out-old")
		require.ErrorIs(t, err, store.ErrNotFound)
		_, err = tx.Sessions().GetSession(ctx, "active-old")
		require.NoError(t, err)
		_, err = tx.Sessions().GetSession(ctx, "out-new")
		require.NoError(t, err)
	})
}

func TestPasswordResets_MirrorAndPurge(t *testing.T) {
	s := openTestStore(t, memory.New("default"))
	cutoff := testNow.Add(-24 * time.Hour)

	inTx(t, s, func(ctx context.Context, tx store.Tx) {
		resets := tx.PasswordResets()
		require.NoError(t, resets.CreatePasswordReset(ctx, domain.PasswordResetToken{
			TokenHash: "h1", Email: "A@example.com", IssuedAt: testNow.Add(-72 * time.Hour), ExpiresAt: testNow.Add(-71 * time.Hour),
		}))
		latest, err := resets.GetLatestPasswordReset(ctx, "a@example.com")
		require.NoError(t, err)
		require.Equal(t, "h1", latest.TokenHash)

		require.NoError(t, resets.CreatePasswordReset(ctx, domain.PasswordResetToken{
			TokenHash: "h2", Email: "b@example.com", IssuedAt: testNow, ExpiresAt: testNow.Add(time.Hour),
		}))
		require.ErrorIs(t, resets.CreatePasswordReset(ctx, domain.PasswordResetToken{TokenHash: "h2"}), store.ErrAlreadyExists)

		n, err := resets.DeleteStalePasswordResets(ctx, cutoff)
		require.NoError(t, err)
		require.Equal(t, 1, n)

		_, err = resets.GetLatestPasswordReset(ctx, "a@example.com")
		require.ErrorIs(t, err, store.ErrNotFound, "mirror entry goes with its token")
		_, err = resets.GetPasswordResetByHash(ctx, "h2")
		require.NoError(t, err, "live tokens are never purged")

		require.NoError(t, resets.MarkPasswordResetUsed(ctx, "h2", testNow))
		got, err := resets.GetPasswordResetByHash(ctx, "h2")
		require.NoError(t, err)
		require.NotNil(t, got.UsedAt)
		require.ErrorIs(t, resets.MarkPasswordResetUsed(ctx, "missing", testNow), store.ErrNotFound)
	})
}

func TestEmailTokens_PurgeOnlyUsed(t *testing.T) {
	s := openTestStore(t, memory.New("default"))
	cutoff := testNow.Add(-24 * time.Hour)

	inTx(t, s, func(ctx context.Context, tx store.Tx) {
		tokens := tx.EmailTokens()
		require.NoError(t, tokens.CreateEmailToken(ctx, domain.EmailVerificationToken{TokenHash: "old-used", IssuedAt: testNow.Add(-72 * time.Hour)}))
		require.NoError(t, tokens.CreateEmailToken(ctx, domain.EmailVerificationToken{TokenHash: "old-unused", IssuedAt: testNow.Add(-72 * time.Hour)}))
		require.NoError(t, tokens.MarkEmailTokenUsed(ctx, "old-used", testNow.Add(-48*time.Hour)))

		n, err := tokens.DeleteUsedEmailTokens(ctx, cutoff)
		require.NoError(t, err)
		require.Equal(t, 1, n)

		_, err = tokens.GetEmailTokenByHash(ctx, "old-unused")
		require.NoError(t, err)
	})
}

func TestBindings_UniquePair(t *testing.T) {
	s := openTestStore(t, memory.New("default"))

	inTx(t, s, func(ctx context.Context, tx store.Tx) {
		b := domain.OAuthBinding{ID: "b1", Provider: "github", ProviderAccountID: "42", UserID: "u1", CreatedAt: testNow}
		require.NoError(t, tx.OAuthBindings().CreateBinding(ctx, b))
		b.ID, b.UserID = "b2", "u2"
		require.ErrorIs(t, tx.OAuthBindings().CreateBinding(ctx, b), store.ErrAlreadyExists)

		got, err := tx.OAuthBindings().GetBinding(ctx, "github", "42")
		require.NoError(t, err)
		require.Equal(t, "u1", got.UserID)

		list, err := tx.OAuthBindings().ListBindingsForUser(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, list, 1)
	})
}

func TestBindings_SeparatorInIDs(t *testing.T) {
	s := openTestStore(t, memory.New("default"))

	inTx(t, s, func(ctx context.Context, tx store.Tx) {
		bindings := tx.OAuthBindings()
		require.NoError(t, bindings.CreateBinding(ctx, domain.OAuthBinding{
			ID: "b1", Provider: "g|x", ProviderAccountID: "y", UserID: "u1", CreatedAt: testNow,
		}))
		require.NoError(t, bindings.CreateBinding(ctx, domain.OAuthBinding{
			ID: "b2", Provider: "g", ProviderAccountID: "x|y", UserID: "u2", CreatedAt: testNow,
		}))

		first, err := bindings.GetBinding(ctx, "g|x", "y")
		require.NoError(t, err)
		require.Equal(t, "u1", first.UserID)

		second, err := bindings.GetBinding(ctx, "g", "x|y")
		require.NoError(t, err)
		require.Equal(t, "u2", second.UserID)

		_, err = bindings.GetBinding(ctx, "g", "x")
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestBindings_ListOrder(t *testing.T) {
	s := openTestStore(t, memory.New("default"))

	inTx(t, s, func(ctx context.Context, tx store.Tx) {
		bindings := tx.OAuthBindings()
		later := testNow.Add(time.Minute)
		require.NoError(t, bindings.CreateBinding(ctx, domain.OAuthBinding{
			ID: "01B", Provider: "google", ProviderAccountID: "1", UserID: "u1", CreatedAt: later,
		}))
		require.NoError(t, bindings.CreateBinding(ctx, domain.OAuthBinding{
			ID: "01C", Provider: "github", ProviderAccountID: "2", UserID: "u1", CreatedAt: testNow,
		}))
		require.NoError(t, bindings.CreateBinding(ctx, domain.OAuthBinding{
			ID: "01A", Provider: "gitlab", ProviderAccountID: "3", UserID: "u1", CreatedAt: testNow,
		}))

		list, err := bindings.ListBindingsForUser(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, list, 3)
		require.Equal(t, "gitlab", list[0].Provider)
		require.Equal(t, "github", list[1].Provider)
		require.Equal(t, "google", list[2].Provider)

		none, err := bindings.ListBindingsForUser(ctx, "nobody")
		require.NoError(t, err)
		require.NotNil(t, none)
		require.Empty(t, none)
	})
}

func TestResources_CopiesDoNotAlias(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, memory.New("default"))

	nav := domain.NavUIState{Expanded: map[string]bool{"governance": true}}
	inTx(t, s, func(ctx context.Context, tx store.Tx) {
		require.NoError(t, tx.Resources().PutNavUI(ctx, "u1", nav))
	})
	nav.Expanded["governance"] = false

	require.NoError(t, s.View(ctx, func(tx store.Tx) error {
		got, err := tx.Resources().GetNavUI(ctx, "u1")
		require.NoError(t, err)
		require.True(t, got.Expanded["governance"])
		got.Expanded["governance"] = false

		again, err := tx.Resources().GetNavUI(ctx, "u1")
		require.NoError(t, err)
		require.True(t, again.Expanded["governance"])
		return nil
	}))
}

func TestResources_Collections(t *testing.T) {
	s := openTestStore(t, memory.New("default"))

	inTx(t, s, func(ctx context.Context, tx store.Tx) {
		res := tx.Resources()

		_, err := res.ListAssessments(ctx, "u1")
		require.ErrorIs(t, err, store.ErrNotFound)
		require.NoError(t, res.PrependAssessment(ctx, "u1", domain.AssessmentRecord{ID: "a1"}))
		require.NoError(t, res.PrependAssessment(ctx, "u1", domain.AssessmentRecord{ID: "a2"}))
		assessments, err := res.ListAssessments(ctx, "u1")
		require.NoError(t, err)
		require.Equal(t, "a2", assessments[0].ID)

		require.NoError(t, res.AppendQuestionnaire(ctx, "u1", domain.QuestionnaireSubmission{ID: "q1"}))
		require.NoError(t, res.AppendQuestionnaire(ctx, "u1", domain.QuestionnaireSubmission{ID: "q2"}))
		subs, err := res.ListQuestionnaires(ctx, "u1")
		require.NoError(t, err)
		require.Equal(t, "q2", subs[1].ID)

		require.NoError(t, res.PutTopicChat(ctx, "u1", "t1", domain.TopicChat{}))
		chat, err := res.GetTopicChat(ctx, "u1", "t1")
		require.NoError(t, err)
		require.NotNil(t, chat.Messages)
		_, err = res.GetTopicChat(ctx, "u1", "t2")
		require.ErrorIs(t, err, store.ErrNotFound)

		require.NoError(t, res.PutScenario(ctx, "u1", domain.Scenario{ID: "s1", Title: "Board"}))
		sc, err := res.GetScenario(ctx, "u1", "s1")
		require.NoError(t, err)
		require.Equal(t, "Board", sc.Title)

		attempts, err := res.ListScenarioAttempts(ctx, "u1")
		require.NoError(t, err)
		require.Empty(t, attempts)
		require.NoError(t, res.PutScenarioAttempt(ctx, "u1", domain.ScenarioAttempt{ID: "at1", ScenarioID: "s1"}))
		require.NoError(t, res.PutScenarioAttempt(ctx, "u1", domain.ScenarioAttempt{ID: "at1", ScenarioID: "s1", CurrentStep: 2}))
		attempts, err = res.ListScenarioAttempts(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, attempts, 1)
		require.Equal(t, 2, attempts[0].CurrentStep)
	})
}
