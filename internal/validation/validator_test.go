package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/quillapp/quill-server/internal/errors"
)

type createTaggingsInput struct {
	EntityType string `json:"entity_type" validate:"required"`
	EntityID   string `json:"entity_id" validate:"required"`
	Context    string `json:"context" validate:"required,oneof=post comment profile message photo activity"`
	Limit      int    `json:"limit" validate:"gte=0,lte=100"`
}

func TestValidate_Passes(t *testing.T) {
	v := New()

	err := v.Validate(createTaggingsInput{
		EntityType: "post",
		EntityID:   "post-1",
		Context:    "post",
		Limit:      20,
	})
	assert.NoError(t, err)
}

func TestValidate_MissingRequired(t *testing.T) {
	v := New()

	err := v.Validate(createTaggingsInput{Context: "post"})
	require.Error(t, err)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrValidation))

	var domainErr *domainerrors.Error
	require.True(t, domainerrors.As(err, &domainErr))

	details, ok := domainErr.Details.(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "is required", details["entity_type"], "errors use json field names")
	assert.Equal(t, "is required", details["entity_id"])
}

func TestValidate_OneOf(t *testing.T) {
	v := New()

	err := v.Validate(createTaggingsInput{
		EntityType: "post",
		EntityID:   "post-1",
		Context:    "carrier-pigeon",
	})
	require.Error(t, err)

	var domainErr *domainerrors.Error
	require.True(t, domainerrors.As(err, &domainErr))
	details := domainErr.Details.(map[string]string)
	assert.Contains(t, details["context"], "must be one of")
}

func TestValidate_Range(t *testing.T) {
	v := New()

	err := v.Validate(createTaggingsInput{
		EntityType: "post",
		EntityID:   "post-1",
		Context:    "post",
		Limit:      500,
	})
	require.Error(t, err)

	var domainErr *domainerrors.Error
	require.True(t, domainerrors.As(err, &domainErr))
	details := domainErr.Details.(map[string]string)
	assert.Contains(t, details["limit"], "less than or equal to 100")
}
