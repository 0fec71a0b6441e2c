package snapshot

import (
	"context"

	"github.com/justgovernance/govstore/internal/backend/domain"
	"github.com/justgovernance/govstore/internal/backend/store"
)

// resourcesRepo hands out and takes in detached copies, so callers cannot
// reach into the live document through a shared map or slice.
type resourcesRepo struct{ tx *txStore }

func (r *resourcesRepo) GetNavUI(_ context.Context, userKey string) (domain.NavUIState, error) {
	v, ok := r.tx.doc.NavUI[userKey]
	if !ok {
		return domain.NavUIState{}, store.ErrNotFound
	}
	return detach(v)
}

func (r *resourcesRepo) PutNavUI(_ context.Context, userKey string, v domain.NavUIState) error {
	if err := r.tx.write(); err != nil {
		return err
	}
	v, err := detach(v)
	if err != nil {
		return err
	}
	if v.Expanded == nil {
		v.Expanded = map[string]bool{}
	}
	r.tx.doc.NavUI[userKey] = v
	return nil
}

func (r *resourcesRepo) GetConversations(_ context.Context, userKey string) ([]domain.Conversation, error) {
	v, ok := r.tx.doc.Conversations[userKey]
	if !ok {
		return nil, store.ErrNotFound
	}
	return detach(v)
}

func (r *resourcesRepo) PutConversations(_ context.Context, userKey string, v []domain.Conversation) error {
	if err := r.tx.write(); err != nil {
		return err
	}
	if v == nil {
		v = []domain.Conversation{}
	}
	v, err := detach(v)
	if err != nil {
		return err
	}
	r.tx.doc.Conversations[userKey] = v
	return nil
}

func (r *resourcesRepo) GetTopicChat(_ context.Context, userKey, topicID string) (domain.TopicChat, error) {
	v, ok := r.tx.doc.TopicChats[userKey][topicID]
	if !ok {
		return domain.TopicChat{}, store.ErrNotFound
	}
	return detach(v)
}

func (r *resourcesRepo) PutTopicChat(_ context.Context, userKey, topicID string, v domain.TopicChat) error {
	if err := r.tx.write(); err != nil {
		return err
	}
	v, err := detach(v)
	if err != nil {
		return err
	}
	if v.Messages == nil {
		v.Messages = []domain.ChatMessage{}
	}
	putNested(r.tx.doc.TopicChats, userKey, topicID, v)
	return nil
}

func (r *resourcesRepo) GetTopicProgress(_ context.Context, userKey, topicID string) (domain.TopicProgress, error) {
	v, ok := r.tx.doc.TopicProgress[userKey][topicID]
	if !ok {
		return domain.TopicProgress{}, store.ErrNotFound
	}
	return detach(v)
}

func (r *resourcesRepo) PutTopicProgress(_ context.Context, userKey, topicID string, v domain.TopicProgress) error {
	if err := r.tx.write(); err != nil {
		return err
	}
	v, err := detach(v)
	if err != nil {
		return err
	}
	putNested(r.tx.doc.TopicProgress, userKey, topicID, v)
	return nil
}

func (r *resourcesRepo) ListAssessments(_ context.Context, userKey string) ([]domain.AssessmentRecord, error) {
	v, ok := r.tx.doc.Assessments[userKey]
	if !ok {
		return nil, store.ErrNotFound
	}
	return detach(v)
}

func (r *resourcesRepo) PrependAssessment(_ context.Context, userKey string, rec domain.AssessmentRecord) error {
	if err := r.tx.write(); err != nil {
		return err
	}
	rec, err := detach(rec)
	if err != nil {
		return err
	}
	list := r.tx.doc.Assessments[userKey]
	r.tx.doc.Assessments[userKey] = append([]domain.AssessmentRecord{rec}, list...)
	return nil
}

func (r *resourcesRepo) ListQuestionnaires(_ context.Context, userKey string) ([]domain.QuestionnaireSubmission, error) {
	v, ok := r.tx.doc.Questionnaires[userKey]
	if !ok {
		return nil, store.ErrNotFound
	}
	return detach(v)
}

func (r *resourcesRepo) AppendQuestionnaire(_ context.Context, userKey string, s domain.QuestionnaireSubmission) error {
	if err := r.tx.write(); err != nil {
		return err
	}
	s, err := detach(s)
	if err != nil {
		return err
	}
	r.tx.doc.Questionnaires[userKey] = append(r.tx.doc.Questionnaires[userKey], s)
	return nil
}

func (r *resourcesRepo) GetScenario(_ context.Context, userKey, scenarioID string) (domain.Scenario, error) {
	v, ok := r.tx.doc.Scenarios[userKey][scenarioID]
	if !ok {
		return domain.Scenario{}, store.ErrNotFound
	}
	return detach(v)
}

func (r *resourcesRepo) PutScenario(_ context.Context, userKey string, v domain.Scenario) error {
	if err := r.tx.write(); err != nil {
		return err
	}
	v, err := detach(v)
	if err != nil {
		return err
	}
	if v.Steps == nil {
		v.Steps = []domain.ScenarioStep{}
	}
	putNested(r.tx.doc.Scenarios, userKey, v.ID, v)
	return nil
}

func (r *resourcesRepo) ListScenarioAttempts(_ context.Context, userKey string) ([]domain.ScenarioAttempt, error) {
	v, ok := r.tx.doc.ScenarioAttempts[userKey]
	if !ok {
		return []domain.ScenarioAttempt{}, nil
	}
	return detach(v)
}

func (r *resourcesRepo) GetScenarioAttempt(_ context.Context, userKey, attemptID string) (domain.ScenarioAttempt, error) {
	for _, a := range r.tx.doc.ScenarioAttempts[userKey] {
		if a.ID == attemptID {
			return detach(a)
		}
	}
	return domain.ScenarioAttempt{}, store.ErrNotFound
}

func (r *resourcesRepo) PutScenarioAttempt(_ context.Context, userKey string, a domain.ScenarioAttempt) error {
	if err := r.tx.write(); err != nil {
		return err
	}
	a, err := detach(a)
	if err != nil {
		return err
	}
	list := r.tx.doc.ScenarioAttempts[userKey]
	for i := range list {
		if list[i].ID == a.ID {
			list[i] = a
			return nil
		}
	}
	r.tx.doc.ScenarioAttempts[userKey] = append(list, a)
	return nil
}

func putNested[V any](m map[string]map[string]V, outer, inner string, v V) {
	if m[outer] == nil {
		m[outer] = make(map[string]V)
	}
	m[outer][inner] = v
}
