package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type createPayload struct {
	Login    string `validate:"required,min=2,max=100,login_format"`
	Email    string `validate:"required,email"`
	Password string `validate:"required,password_strength"`
}

func TestValidateReportsPerFieldMessages(t *testing.T) {
	v := New()

	err := v.Validate(createPayload{
		Login:    "bad login!",
		Email:    "not-an-email",
		Password: "short",
	})

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, validationErr.Fields, "login")
	assert.Contains(t, validationErr.Fields, "email")
	assert.Contains(t, validationErr.Fields, "password")
}

func TestValidateAcceptsValidPayload(t *testing.T) {
	v := New()

	err := v.Validate(createPayload{
		Login:    "bob.smith",
		Email:    "bob@example.com",
		Password: "CorrectHorse42",
	})
	assert.NoError(t, err)
}

func TestValidateMissingRequiredField(t *testing.T) {
	v := New()

	err := v.Validate(createPayload{
		Email:    "bob@example.com",
		Password: "CorrectHorse42",
	})

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, []string{"Missing data for required field."}, validationErr.Fields["login"])
}

func TestLoginFormat(t *testing.T) {
	v := New()

	for _, login := range []string{"bob", "bob.smith", "bob_smith-2"} {
		assert.NoError(t, v.Var("user_login", login, "login_format"), login)
	}
	for _, login := range []string{"bob smith", "bob@corp", "böb"} {
		assert.Error(t, v.Var("user_login", login, "login_format"), login)
	}
}

func TestPasswordStrength(t *testing.T) {
	v := New()

	assert.NoError(t, v.Var("user_password", "CorrectHorse42", "password_strength"))

	for _, password := range []string{"Short1a", "alllowercase42", "ALLUPPERCASE42", "NoDigitsAtAllHere"} {
		assert.Error(t, v.Var("user_password", password, "password_strength"), password)
	}
}

func TestVarReportsUnderGivenFieldName(t *testing.T) {
	v := New()

	err := v.Var("user_email", "nope", "email")
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, validationErr.Fields, "user_email")
}

func TestValidationErrorMessage(t *testing.T) {
	err := NewValidationError("org_name", "Organisation name already in use.")
	assert.Contains(t, err.Error(), "org_name")
	assert.Contains(t, err.Error(), "already in use")
}
