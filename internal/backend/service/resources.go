package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/justgovernance/govstore/internal/backend/domain"
	"github.com/justgovernance/govstore/internal/backend/store"
	"github.com/justgovernance/govstore/pkg/idx"
)

var (
	ErrAttemptNotFound  = fmt.Errorf("%w: scenario attempt", ErrNotFound)
	ErrAttemptCompleted = fmt.Errorf("%w: scenario attempt already completed", ErrConflict)
)

// ResourceService stores the per-user collections. Every userKey is
// resolved id first, email second; keys that match no user are used as is,
// which keeps records saved under an email before the account existed.
type ResourceService struct {
	Store store.Store
	Clock Clock
}

func ownerKey(ctx context.Context, tx store.Tx, userKey string) (string, error) {
	if userKey == "" {
		return "", fmt.Errorf("%w: user key is required", ErrInvalidInput)
	}
	u, err := resolveUser(ctx, tx, userKey)
	if errors.Is(err, store.ErrNotFound) {
		return userKey, nil
	}
	if err != nil {
		return "", err
	}
	return u.ID, nil
}

// lazyGet returns the stored record or stores and returns def.
func lazyGet[T any](
	ctx context.Context,
	s store.Store,
	userKey string,
	get func(tx store.Tx, key string) (T, error),
	put func(tx store.Tx, key string, v T) error,
	def func() T,
) (T, error) {
	var out T
	err := s.WithTx(ctx, func(tx store.Tx) error {
		key, err := ownerKey(ctx, tx, userKey)
		if err != nil {
			return err
		}
		out, err = get(tx, key)
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		out = def()
		return put(tx, key, out)
	})
	return out, err
}

func (s *ResourceService) put(ctx context.Context, userKey string, fn func(tx store.Tx, key string) error) error {
	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		key, err := ownerKey(ctx, tx, userKey)
		if err != nil {
			return err
		}
		return fn(tx, key)
	})
}

func (s *ResourceService) NavUI(ctx context.Context, userKey string) (domain.NavUIState, error) {
	return lazyGet(ctx, s.Store, userKey,
		func(tx store.Tx, key string) (domain.NavUIState, error) {
			return tx.Resources().GetNavUI(ctx, key)
		},
		func(tx store.Tx, key string, v domain.NavUIState) error {
			return tx.Resources().PutNavUI(ctx, key, v)
		},
		domain.DefaultNavUIState,
	)
}

func (s *ResourceService) SaveNavUI(ctx context.Context, userKey string, v domain.NavUIState) error {
	return s.put(ctx, userKey, func(tx store.Tx, key string) error {
		return tx.Resources().PutNavUI(ctx, key, v)
	})
}

func (s *ResourceService) Conversations(ctx context.Context, userKey string) ([]domain.Conversation, error) {
	return lazyGet(ctx, s.Store, userKey,
		func(tx store.Tx, key string) ([]domain.Conversation, error) {
			return tx.Resources().GetConversations(ctx, key)
		},
		func(tx store.Tx, key string, v []domain.Conversation) error {
			return tx.Resources().PutConversations(ctx, key, v)
		},
		func() []domain.Conversation { return []domain.Conversation{} },
	)
}

// SaveConversations replaces the whole list.
func (s *ResourceService) SaveConversations(ctx context.Context, userKey string, v []domain.Conversation) error {
	return s.put(ctx, userKey, func(tx store.Tx, key string) error {
		return tx.Resources().PutConversations(ctx, key, v)
	})
}

func (s *ResourceService) TopicChat(ctx context.Context, userKey, topicID string) (domain.TopicChat, error) {
	return lazyGet(ctx, s.Store, userKey,
		func(tx store.Tx, key string) (domain.TopicChat, error) {
			return tx.Resources().GetTopicChat(ctx, key, topicID)
		},
		func(tx store.Tx, key string, v domain.TopicChat) error {
			return tx.Resources().PutTopicChat(ctx, key, topicID, v)
		},
		domain.DefaultTopicChat,
	)
}

func (s *ResourceService) SaveTopicChat(ctx context.Context, userKey, topicID string, v domain.TopicChat) error {
	return s.put(ctx, userKey, func(tx store.Tx, key string) error {
		return tx.Resources().PutTopicChat(ctx, key, topicID, v)
	})
}

func (s *ResourceService) TopicProgress(ctx context.Context, userKey, topicID string) (domain.TopicProgress, error) {
	return lazyGet(ctx, s.Store, userKey,
		func(tx store.Tx, key string) (domain.TopicProgress, error) {
			return tx.Resources().GetTopicProgress(ctx, key, topicID)
		},
		func(tx store.Tx, key string, v domain.TopicProgress) error {
			return tx.Resources().PutTopicProgress(ctx, key, topicID, v)
		},
		func() domain.TopicProgress { return domain.TopicProgress{} },
	)
}

func (s *ResourceService) SaveTopicProgress(ctx context.Context, userKey, topicID string, v domain.TopicProgress) error {
	return s.put(ctx, userKey, func(tx store.Tx, key string) error {
		return tx.Resources().PutTopicProgress(ctx, key, topicID, v)
	})
}

// AssessmentHistory returns the records newest first.
func (s *ResourceService) AssessmentHistory(ctx context.Context, userKey string) ([]domain.AssessmentRecord, error) {
	out := []domain.AssessmentRecord{}
	err := s.Store.View(ctx, func(tx store.Tx) error {
		key, err := ownerKey(ctx, tx, userKey)
		if err != nil {
			return err
		}
		list, err := tx.Resources().ListAssessments(ctx, key)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		out = list
		return err
	})
	return out, err
}

// AddAssessmentRecord prepends rec under a fresh id. Date defaults to now.
func (s *ResourceService) AddAssessmentRecord(ctx context.Context, userKey string, rec domain.AssessmentRecord) (domain.AssessmentRecord, error) {
	now := s.Clock.now()
	rec.ID = idx.NewAt(now).String()
	if rec.Date.IsZero() {
		rec.Date = now
	}
	err := s.put(ctx, userKey, func(tx store.Tx, key string) error {
		return tx.Resources().PrependAssessment(ctx, key, rec)
	})
	if err != nil {
		return domain.AssessmentRecord{}, err
	}
	return rec, nil
}

// IntroQuestionnaires returns submissions oldest first.
func (s *ResourceService) IntroQuestionnaires(ctx context.Context, userKey string) ([]domain.QuestionnaireSubmission, error) {
	out := []domain.QuestionnaireSubmission{}
	err := s.Store.View(ctx, func(tx store.Tx) error {
		key, err := ownerKey(ctx, tx, userKey)
		if err != nil {
			return err
		}
		list, err := tx.Resources().ListQuestionnaires(ctx, key)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		out = list
		return err
	})
	return out, err
}

// SaveIntroQuestionnaire appends a new submission; earlier ones are kept.
func (s *ResourceService) SaveIntroQuestionnaire(ctx context.Context, userKey string, answers map[string]any, score *float64) (domain.QuestionnaireSubmission, error) {
	now := s.Clock.now()
	sub := domain.QuestionnaireSubmission{
		ID:        idx.NewAt(now).String(),
		Answers:   answers,
		Score:     score,
		CreatedAt: now,
	}
	if sub.Answers == nil {
		sub.Answers = map[string]any{}
	}
	err := s.put(ctx, userKey, func(tx store.Tx, key string) error {
		sub.UserID = key
		return tx.Resources().AppendQuestionnaire(ctx, key, sub)
	})
	if err != nil {
		return domain.QuestionnaireSubmission{}, err
	}
	return sub, nil
}

// LatestIntroQuestionnaire returns the signed-in user's submission with the
// greatest created_at, or nil. Submissions filed under the user's email by
// older builds are considered too.
func (s *ResourceService) LatestIntroQuestionnaire(ctx context.Context, sessionID string) (*domain.QuestionnaireSubmission, error) {
	var latest *domain.QuestionnaireSubmission
	err := s.Store.View(ctx, func(tx store.Tx) error {
		u, err := sessionUser(ctx, tx, sessionID)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		for _, key := range []string{u.ID, u.Email} {
			list, err := tx.Resources().ListQuestionnaires(ctx, key)
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			for i := range list {
				if latest == nil || !list[i].CreatedAt.Before(latest.CreatedAt) {
					latest = &list[i]
				}
			}
		}
		return nil
	})
	return latest, err
}

func (s *ResourceService) Scenario(ctx context.Context, userKey, scenarioID string) (domain.Scenario, error) {
	return lazyGet(ctx, s.Store, userKey,
		func(tx store.Tx, key string) (domain.Scenario, error) {
			return tx.Resources().GetScenario(ctx, key, scenarioID)
		},
		func(tx store.Tx, key string, v domain.Scenario) error {
			return tx.Resources().PutScenario(ctx, key, v)
		},
		func() domain.Scenario { return domain.DefaultScenario(scenarioID) },
	)
}

func (s *ResourceService) SaveScenario(ctx context.Context, userKey string, v domain.Scenario) error {
	if v.ID == "" {
		return fmt.Errorf("%w: scenario id is required", ErrInvalidInput)
	}
	v.UpdatedAt = s.Clock.now()
	return s.put(ctx, userKey, func(tx store.Tx, key string) error {
		return tx.Resources().PutScenario(ctx, key, v)
	})
}

// ScenarioAttempts lists attempts in start order, all of them when
// scenarioID is empty.
func (s *ResourceService) ScenarioAttempts(ctx context.Context, userKey, scenarioID string) ([]domain.ScenarioAttempt, error) {
	out := []domain.ScenarioAttempt{}
	err := s.Store.View(ctx, func(tx store.Tx) error {
		key, err := ownerKey(ctx, tx, userKey)
		if err != nil {
			return err
		}
		list, err := tx.Resources().ListScenarioAttempts(ctx, key)
		if err != nil {
			return err
		}
		for _, a := range list {
			if scenarioID == "" || a.ScenarioID == scenarioID {
				out = append(out, a)
			}
		}
		return nil
	})
	return out, err
}

// StartScenarioAttempt opens a new attempt, creating the user's copy of the
// scenario if there is none yet.
func (s *ResourceService) StartScenarioAttempt(ctx context.Context, userKey, scenarioID string) (domain.ScenarioAttempt, error) {
	if scenarioID == "" {
		return domain.ScenarioAttempt{}, fmt.Errorf("%w: scenario id is required", ErrInvalidInput)
	}
	now := s.Clock.now()
	attempt := domain.ScenarioAttempt{
		ID:         idx.NewAt(now).String(),
		ScenarioID: scenarioID,
		Decisions:  []int{},
		Messages:   []domain.ScenarioMessage{},
		StartedAt:  now,
	}
	err := s.put(ctx, userKey, func(tx store.Tx, key string) error {
		_, err := tx.Resources().GetScenario(ctx, key, scenarioID)
		if errors.Is(err, store.ErrNotFound) {
			err = tx.Resources().PutScenario(ctx, key, domain.DefaultScenario(scenarioID))
		}
		if err != nil {
			return err
		}
		return tx.Resources().PutScenarioAttempt(ctx, key, attempt)
	})
	if err != nil {
		return domain.ScenarioAttempt{}, err
	}
	return attempt, nil
}

// updateAttempt loads an attempt, lets fn change it and stores it back.
func (s *ResourceService) updateAttempt(ctx context.Context, userKey, attemptID string, fn func(tx store.Tx, key string, a *domain.ScenarioAttempt) error) (domain.ScenarioAttempt, error) {
	var out domain.ScenarioAttempt
	err := s.put(ctx, userKey, func(tx store.Tx, key string) error {
		a, err := tx.Resources().GetScenarioAttempt(ctx, key, attemptID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrAttemptNotFound
		}
		if err != nil {
			return err
		}
		if err := fn(tx, key, &a); err != nil {
			return err
		}
		out = a
		return tx.Resources().PutScenarioAttempt(ctx, key, a)
	})
	return out, err
}

// RecordScenarioDecision stores the chosen option for the current step and
// advances. Reaching the last step completes the attempt.
func (s *ResourceService) RecordScenarioDecision(ctx context.Context, userKey, attemptID string, option int) (domain.ScenarioAttempt, error) {
	return s.updateAttempt(ctx, userKey, attemptID, func(tx store.Tx, key string, a *domain.ScenarioAttempt) error {
		if a.CompletedAt != nil {
			return ErrAttemptCompleted
		}
		sc, err := tx.Resources().GetScenario(ctx, key, a.ScenarioID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if a.CurrentStep < len(sc.Steps) {
			if opts := sc.Steps[a.CurrentStep].Options; option < 0 || option >= len(opts) {
				return fmt.Errorf("%w: option %d out of range", ErrInvalidInput, option)
			}
		}

		now := s.Clock.now()
		a.Decisions = append(a.Decisions, option)
		a.CurrentStep++
		if len(sc.Steps) > 0 && a.CurrentStep >= len(sc.Steps) {
			a.CompletedAt = &now
		}
		return nil
	})
}

// AppendScenarioMessage adds a message to the attempt's log.
func (s *ResourceService) AppendScenarioMessage(ctx context.Context, userKey, attemptID, role, text string) (domain.ScenarioMessage, error) {
	now := s.Clock.now()
	msg := domain.ScenarioMessage{
		ID:        idx.NewAt(now).String(),
		Role:      role,
		Text:      text,
		CreatedAt: now,
	}
	_, err := s.updateAttempt(ctx, userKey, attemptID, func(_ store.Tx, _ string, a *domain.ScenarioAttempt) error {
		a.Messages = append(a.Messages, msg)
		return nil
	})
	if err != nil {
		return domain.ScenarioMessage{}, err
	}
	return msg, nil
}

// CompleteScenarioAttempt closes the attempt. Completing twice keeps the
// first completion time.
func (s *ResourceService) CompleteScenarioAttempt(ctx context.Context, userKey, attemptID string) (domain.ScenarioAttempt, error) {
	return s.updateAttempt(ctx, userKey, attemptID, func(_ store.Tx, _ string, a *domain.ScenarioAttempt) error {
		if a.CompletedAt == nil {
			now := s.Clock.now()
			a.CompletedAt = &now
		}
		return nil
	})
}
