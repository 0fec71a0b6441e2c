package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/justgovernance/govstore/internal/backend/domain"
	"github.com/justgovernance/govstore/internal/backend/store"
)

func TestResources_LazyDefaultsArePersisted(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx()
	v := f.registerVerified(t, "a@x.com", "p1")

	progress, err := f.resources.TopicProgress(ctx, v.ID, "governance")
	require.NoError(t, err)
	require.Nil(t, progress.LastScore)
	require.False(t, progress.Eligible)
	require.False(t, progress.Completed)

	nav, err := f.resources.NavUI(ctx, v.ID)
	require.NoError(t, err)
	require.NotNil(t, nav.Expanded)

	require.NoError(t, f.store.View(ctx, func(tx store.Tx) error {
		_, err := tx.Resources().GetTopicProgress(ctx, v.ID, "governance")
		require.NoError(t, err)
		_, err = tx.Resources().GetNavUI(ctx, v.ID)
		require.NoError(t, err)
		return nil
	}))
}

func TestResources_KeyResolution(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx()
	v := f.registerVerified(t, "a@x.com", "p1")

	score := 0.8
	require.NoError(t, f.resources.SaveTopicProgress(ctx, "a@x.com", "governance", domain.TopicProgress{LastScore: &score, Eligible: true}))

	byID, err := f.resources.TopicProgress(ctx, v.ID, "governance")
	require.NoError(t, err)
	require.True(t, byID.Eligible)
	require.InDelta(t, 0.8, *byID.LastScore, 0.0001)

	// keys without a user are stored verbatim
	require.NoError(t, f.resources.SaveNavUI(ctx, "guest", domain.NavUIState{Collapsed: true}))
	nav, err := f.resources.NavUI(ctx, "guest")
	require.NoError(t, err)
	require.True(t, nav.Collapsed)

	_, err = f.resources.NavUI(ctx, "")
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestResources_WholesaleReplace(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx()
	v := f.registerVerified(t, "a@x.com", "p1")

	convs := []domain.Conversation{
		{ID: "c1", Title: "Duties", Messages: []domain.ChatMessage{{Role: "user", Text: "hi"}}},
		{ID: "c2", Title: "Risk"},
	}
	require.NoError(t, f.resources.SaveConversations(ctx, v.ID, convs))
	require.NoError(t, f.resources.SaveConversations(ctx, v.ID, convs[1:]))

	got, err := f.resources.Conversations(ctx, v.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "c2", got[0].ID)

	chat, err := f.resources.TopicChat(ctx, v.ID, "t1")
	require.NoError(t, err)
	require.Empty(t, chat.Messages)
	chat.Messages = append(chat.Messages, domain.ChatMessage{Role: "ai", Text: "hello"})
	require.NoError(t, f.resources.SaveTopicChat(ctx, v.ID, "t1", chat))

	chat, err = f.resources.TopicChat(ctx, v.ID, "t1")
	require.NoError(t, err)
	require.Len(t, chat.Messages, 1)
}

func TestResources_AssessmentsNewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx()
	v := f.registerVerified(t, "a@x.com", "p1")

	empty, err := f.resources.AssessmentHistory(ctx, v.ID)
	require.NoError(t, err)
	require.Empty(t, empty)

	first, err := f.resources.AddAssessmentRecord(ctx, v.ID, domain.AssessmentRecord{Score: 60})
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	second, err := f.resources.AddAssessmentRecord(ctx, v.ID, domain.AssessmentRecord{Score: 80, ID: "ignored"})
	require.NoError(t, err)

	require.NotEqual(t, first.ID, second.ID)
	require.NotEqual(t, "ignored", second.ID)

	history, err := f.resources.AssessmentHistory(ctx, v.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, second.ID, history[0].ID)
	require.Equal(t, first.ID, history[1].ID)
	require.True(t, history[0].Date.After(history[1].Date))
}

func TestResources_LatestQuestionnaire(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx()
	v := f.registerVerified(t, "a@x.com", "p1")

	in, err := f.identity.Login(ctx, "", "a@x.com", "p1")
	require.NoError(t, err)

	latest, err := f.resources.LatestIntroQuestionnaire(ctx, in.Session.ID)
	require.NoError(t, err)
	require.Nil(t, latest)

	_, err = f.resources.SaveIntroQuestionnaire(ctx, v.ID, map[string]any{"role": "director"}, nil)
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	second, err := f.resources.SaveIntroQuestionnaire(ctx, "a@x.com", map[string]any{"role": "chair"}, nil)
	require.NoError(t, err)
	require.Equal(t, v.ID, second.UserID)

	all, err := f.resources.IntroQuestionnaires(ctx, v.ID)
	require.NoError(t, err)
	require.Len(t, all, 2)

	latest, err = f.resources.LatestIntroQuestionnaire(ctx, in.Session.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	require.Equal(t, second.ID, latest.ID)
	require.Equal(t, "chair", latest.Answers["role"])

	// legacy session carrying only the email resolves the same way
	require.NoError(t, f.store.WithTx(ctx, func(tx store.Tx) error {
		return tx.Sessions().PutSession(ctx, domain.Session{ID: "legacy", Email: "a@x.com"})
	}))
	latest, err = f.resources.LatestIntroQuestionnaire(ctx, "legacy")
	require.NoError(t, err)
	require.Equal(t, second.ID, latest.ID)
}

func TestResources_ScenarioAttempts(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx()
	v := f.registerVerified(t, "a@x.com", "p1")

	require.NoError(t, f.resources.SaveScenario(ctx, v.ID, domain.Scenario{
		ID:    "board-crisis",
		Title: "Board crisis",
		Steps: []domain.ScenarioStep{
			{Situation: "The CFO resigns", Options: []string{"Appoint interim", "Wait"}},
			{Situation: "Auditors call", Options: []string{"Disclose", "Delay", "Ignore"}},
		},
	}))

	attempt, err := f.resources.StartScenarioAttempt(ctx, v.ID, "board-crisis")
	require.NoError(t, err)
	require.Zero(t, attempt.CurrentStep)

	_, err = f.resources.RecordScenarioDecision(ctx, v.ID, attempt.ID, 5)
	require.ErrorIs(t, err, ErrInvalidInput)

	msg, err := f.resources.AppendScenarioMessage(ctx, v.ID, attempt.ID, "user", "Appointing an interim CFO")
	require.NoError(t, err)
	require.NotEmpty(t, msg.ID)

	attempt, err = f.resources.RecordScenarioDecision(ctx, v.ID, attempt.ID, 0)
	require.NoError(t, err)
	require.Equal(t, 1, attempt.CurrentStep)
	require.Nil(t, attempt.CompletedAt)

	attempt, err = f.resources.RecordScenarioDecision(ctx, v.ID, attempt.ID, 0)
	require.NoError(t, err)
	require.Equal(t, []int{0, 0}, attempt.Decisions)
	require.NotNil(t, attempt.CompletedAt)
	require.Len(t, attempt.Messages, 1)

	_, err = f.resources.RecordScenarioDecision(ctx, v.ID, attempt.ID, 0)
	require.ErrorIs(t, err, ErrAttemptCompleted)

	_, err = f.resources.AppendScenarioMessage(ctx, v.ID, "missing", "user", "hi")
	require.ErrorIs(t, err, ErrAttemptNotFound)

	other, err := f.resources.StartScenarioAttempt(ctx, v.ID, "vendor-audit")
	require.NoError(t, err)
	completed, err := f.resources.CompleteScenarioAttempt(ctx, v.ID, other.ID)
	require.NoError(t, err)
	require.NotNil(t, completed.CompletedAt)

	sc, err := f.resources.Scenario(ctx, v.ID, "vendor-audit")
	require.NoError(t, err)
	require.Equal(t, "vendor-audit", sc.ID)
	require.Empty(t, sc.Steps)

	attempts, err := f.resources.ScenarioAttempts(ctx, v.ID, "board-crisis")
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	all, err := f.resources.ScenarioAttempts(ctx, v.ID, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
}
