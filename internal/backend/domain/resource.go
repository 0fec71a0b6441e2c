package domain

import "time"

// NavUIState is the left navigation state of one user.
type NavUIState struct {
	Expanded  map[string]bool `json:"expanded"`
	Collapsed bool            `json:"collapsed"`
}

func DefaultNavUIState() NavUIState {
	return NavUIState{Expanded: map[string]bool{}}
}

type ChatMessage struct {
	Role string    `json:"role"` // "user" or "ai"
	Text string    `json:"text"`
	TS   time.Time `json:"ts"`
}

// Conversation is one thread of the global assistant chat.
type Conversation struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Messages  []ChatMessage `json:"messages"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// TopicChat is the single chat thread a user keeps per topic.
type TopicChat struct {
	Messages  []ChatMessage `json:"messages"`
	UpdatedAt time.Time     `json:"updated_at"`
}

func DefaultTopicChat() TopicChat {
	return TopicChat{Messages: []ChatMessage{}}
}

// TopicProgress tracks quiz results per topic. LastScore is nil until the
// first attempt.
type TopicProgress struct {
	LastScore *float64 `json:"last_score"`
	Eligible  bool     `json:"eligible"`
	Completed bool     `json:"completed"`
}

type AssessmentRecord struct {
	ID        string         `json:"id"`
	Date      time.Time      `json:"date"`
	Score     float64        `json:"score"`
	Breakdown map[string]any `json:"breakdown,omitempty"`
	Advice    string         `json:"advice,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// QuestionnaireSubmission is one submission of the introductory
// questionnaire. Users may submit more than once.
type QuestionnaireSubmission struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	Answers   map[string]any `json:"answers"`
	Score     *float64       `json:"score,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

type ScenarioStep struct {
	Situation string   `json:"situation"`
	Options   []string `json:"options"`
}

// Scenario is a user's copy of a practice simulation.
type Scenario struct {
	ID          string         `json:"id"`
	TopicID     string         `json:"topic_id,omitempty"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Steps       []ScenarioStep `json:"steps"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func DefaultScenario(id string) Scenario {
	return Scenario{ID: id, Steps: []ScenarioStep{}}
}

type ScenarioMessage struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// ScenarioAttempt is one run through a scenario. Decisions holds the chosen
// option index for each completed step.
type ScenarioAttempt struct {
	ID          string            `json:"id"`
	ScenarioID  string            `json:"scenario_id"`
	CurrentStep int               `json:"current_step"`
	Decisions   []int             `json:"decisions"`
	Messages    []ScenarioMessage `json:"messages"`
	StartedAt   time.Time         `json:"started_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
}
