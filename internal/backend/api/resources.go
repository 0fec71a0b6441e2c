package api

import (
	"context"

	"github.com/justgovernance/govstore/internal/backend/domain"
)

func (c *Client) NavUI(ctx context.Context, userKey string) Result[domain.NavUIState] {
	ctx, _ = c.scope(ctx)
	v, err := c.svc.Resources.NavUI(ctx, userKey)
	return from(ctx, "nav_ui", v, err)
}

func (c *Client) SaveNavUI(ctx context.Context, userKey string, v domain.NavUIState) Result[Empty] {
	ctx, _ = c.scope(ctx)
	return from(ctx, "save_nav_ui", Empty{}, c.svc.Resources.SaveNavUI(ctx, userKey, v))
}

func (c *Client) GlobalConversations(ctx context.Context, userKey string) Result[[]domain.Conversation] {
	ctx, _ = c.scope(ctx)
	v, err := c.svc.Resources.Conversations(ctx, userKey)
	return from(ctx, "global_conversations", v, err)
}

func (c *Client) SaveGlobalConversations(ctx context.Context, userKey string, v []domain.Conversation) Result[Empty] {
	ctx, _ = c.scope(ctx)
	return from(ctx, "save_global_conversations", Empty{}, c.svc.Resources.SaveConversations(ctx, userKey, v))
}

func (c *Client) TopicChat(ctx context.Context, userKey, topicID string) Result[domain.TopicChat] {
	ctx, _ = c.scope(ctx)
	v, err := c.svc.Resources.TopicChat(ctx, userKey, topicID)
	return from(ctx, "topic_chat", v, err)
}

func (c *Client) SaveTopicChat(ctx context.Context, userKey, topicID string, v domain.TopicChat) Result[Empty] {
	ctx, _ = c.scope(ctx)
	return from(ctx, "save_topic_chat", Empty{}, c.svc.Resources.SaveTopicChat(ctx, userKey, topicID, v))
}

func (c *Client) TopicProgress(ctx context.Context, userKey, topicID string) Result[domain.TopicProgress] {
	ctx, _ = c.scope(ctx)
	v, err := c.svc.Resources.TopicProgress(ctx, userKey, topicID)
	return from(ctx, "topic_progress", v, err)
}

func (c *Client) SaveTopicProgress(ctx context.Context, userKey, topicID string, v domain.TopicProgress) Result[Empty] {
	ctx, _ = c.scope(ctx)
	return from(ctx, "save_topic_progress", Empty{}, c.svc.Resources.SaveTopicProgress(ctx, userKey, topicID, v))
}

// AssessmentHistory lists records newest first.
func (c *Client) AssessmentHistory(ctx context.Context, userKey string) Result[[]domain.AssessmentRecord] {
	ctx, _ = c.scope(ctx)
	v, err := c.svc.Resources.AssessmentHistory(ctx, userKey)
	return from(ctx, "assessment_history", v, err)
}

func (c *Client) AddAssessmentRecord(ctx context.Context, userKey string, rec domain.AssessmentRecord) Result[domain.AssessmentRecord] {
	ctx, _ = c.scope(ctx)
	v, err := c.svc.Resources.AddAssessmentRecord(ctx, userKey, rec)
	return from(ctx, "add_assessment_record", v, err)
}

func (c *Client) IntroQuestionnaires(ctx context.Context, userKey string) Result[[]domain.QuestionnaireSubmission] {
	ctx, _ = c.scope(ctx)
	v, err := c.svc.Resources.IntroQuestionnaires(ctx, userKey)
	return from(ctx, "intro_questionnaires", v, err)
}

func (c *Client) SaveIntroQuestionnaire(ctx context.Context, userKey string, answers map[string]any, score *float64) Result[domain.QuestionnaireSubmission] {
	ctx, _ = c.scope(ctx)
	v, err := c.svc.Resources.SaveIntroQuestionnaire(ctx, userKey, answers, score)
	return from(ctx, "save_intro_questionnaire", v, err)
}

// LatestIntroQuestionnaire looks at the signed-in user only; data is nil when
// signed out or nothing was submitted.
func (c *Client) LatestIntroQuestionnaire(ctx context.Context) Result[*domain.QuestionnaireSubmission] {
	ctx, sid := c.scope(ctx)
	v, err := c.svc.Resources.LatestIntroQuestionnaire(ctx, sid)
	return from(ctx, "latest_intro_questionnaire", v, err)
}

func (c *Client) Scenario(ctx context.Context, userKey, scenarioID string) Result[domain.Scenario] {
	ctx, _ = c.scope(ctx)
	v, err := c.svc.Resources.Scenario(ctx, userKey, scenarioID)
	return from(ctx, "scenario", v, err)
}

func (c *Client) SaveScenario(ctx context.Context, userKey string, v domain.Scenario) Result[Empty] {
	ctx, _ = c.scope(ctx)
	return from(ctx, "save_scenario", Empty{}, c.svc.Resources.SaveScenario(ctx, userKey, v))
}

func (c *Client) ScenarioAttempts(ctx context.Context, userKey, scenarioID string) Result[[]domain.ScenarioAttempt] {
	ctx, _ = c.scope(ctx)
	v, err := c.svc.Resources.ScenarioAttempts(ctx, userKey, scenarioID)
	return from(ctx, "scenario_attempts", v, err)
}

func (c *Client) StartScenarioAttempt(ctx context.Context, userKey, scenarioID string) Result[domain.ScenarioAttempt] {
	ctx, _ = c.scope(ctx)
	v, err := c.svc.Resources.StartScenarioAttempt(ctx, userKey, scenarioID)
	return from(ctx, "start_scenario_attempt", v, err)
}

func (c *Client) RecordScenarioDecision(ctx context.Context, userKey, attemptID string, option int) Result[domain.ScenarioAttempt] {
	ctx, _ = c.scope(ctx)
	v, err := c.svc.Resources.RecordScenarioDecision(ctx, userKey, attemptID, option)
	return from(ctx, "record_scenario_decision", v, err)
}

func (c *Client) AppendScenarioMessage(ctx context.Context, userKey, attemptID, role, text string) Result[domain.ScenarioMessage] {
	ctx, _ = c.scope(ctx)
	v, err := c.svc.Resources.AppendScenarioMessage(ctx, userKey, attemptID, role, text)
	return from(ctx, "append_scenario_message", v, err)
}

func (c *Client) CompleteScenarioAttempt(ctx context.Context, userKey, attemptID string) Result[domain.ScenarioAttempt] {
	ctx, _ = c.scope(ctx)
	v, err := c.svc.Resources.CompleteScenarioAttempt(ctx, userKey, attemptID)
	return from(ctx, "complete_scenario_attempt", v, err)
}
