package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleRequest struct {
	InterviewType   string `json:"interview_type" validate:"required,interview_type"`
	EventType       string `json:"event_type" validate:"omitempty,security_event_type"`
	Category        string `json:"category" validate:"omitempty,response_category"`
	DurationMinutes int    `json:"duration_minutes" validate:"session_duration"`
}

func TestValidator_Accepts(t *testing.T) {
	v := New()

	err := v.Validate(sampleRequest{
		InterviewType:   "technical",
		EventType:       "screen_recording_detected",
		Category:        "problem_solving",
		DurationMinutes: 60,
	})
	assert.NoError(t, err)
}

func TestValidator_RejectsWithJSONFieldNames(t *testing.T) {
	v := New()

	err := v.Validate(sampleRequest{
		InterviewType:   "behavioural",
		EventType:       "devtools_open",
		Category:        "leadership",
		DurationMinutes: 301,
	})
	require.Error(t, err)

	var errs ValidationErrors
	require.ErrorAs(t, err, &errs)

	fields := map[string]string{}
	for _, e := range errs {
		fields[e.Field] = e.Rule
	}
	assert.Equal(t, map[string]string{
		"interview_type":   "interview_type",
		"event_type":       "security_event_type",
		"category":         "response_category",
		"duration_minutes": "session_duration",
	}, fields)
}

func TestValidator_DurationBounds(t *testing.T) {
	v := New()
	for _, minutes := range []int{MinSessionDuration, MaxSessionDuration} {
		assert.NoError(t, v.Validate(sampleRequest{InterviewType: "aptitude", DurationMinutes: minutes}))
	}
	for _, minutes := range []int{0, MinSessionDuration - 1, MaxSessionDuration + 1} {
		assert.Error(t, v.Validate(sampleRequest{InterviewType: "aptitude", DurationMinutes: minutes}))
	}
}
