package service

import (
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidatorReportsJSONNames(t *testing.T) {
	v := NewValidator()

	err := v.Struct(RecordProgressInput{TimeSpent: intPtr(-5)})
	var verrs validator.ValidationErrors
	require.True(t, errors.As(err, &verrs))

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	assert.ElementsMatch(t, []string{"student_id", "lesson_id", "time_spent"}, fields)
}

func TestNewValidatorFallsBackToGoName(t *testing.T) {
	type untagged struct {
		CourseID string `validate:"required"`
		Skipped  string `json:"-" validate:"required"`
	}

	err := NewValidator().Struct(untagged{})
	var verrs validator.ValidationErrors
	require.True(t, errors.As(err, &verrs))
	require.Len(t, verrs, 2)
	assert.Equal(t, "CourseID", verrs[0].Field())
	assert.Equal(t, "Skipped", verrs[1].Field())
}
