package entities

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencatalog/catalog.core/domain/tags"
	"github.com/opencatalog/catalog.core/pkg/apperror"
)

func assertReadOnly(t *testing.T, err error, field string) {
	t.Helper()
	require.Error(t, err)
	var appErr *apperror.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperror.ErrReadOnlyAttribute.Code, appErr.Code)
	assert.Equal(t, field, appErr.Details["field"])
}

func TestCheckReadOnly(t *testing.T) {
	r := &Repository{desc: Descriptor{Type: "location"}}
	serviceID := uuid.New()
	base := func() (*Entity, *Entity) {
		id := uuid.New()
		original := &Entity{ID: id, Name: "raw-zone", Service: &Reference{ID: serviceID, Type: "storageService"}}
		updated := &Entity{ID: id, Name: "raw-zone", Service: &Reference{ID: serviceID, Type: "storageService"}}
		return original, updated
	}

	t.Run("unchanged passes", func(t *testing.T) {
		original, updated := base()
		assert.NoError(t, r.checkReadOnly(original, updated))
	})

	t.Run("id change rejected", func(t *testing.T) {
		original, updated := base()
		updated.ID = uuid.New()
		assertReadOnly(t, r.checkReadOnly(original, updated), "id")
	})

	t.Run("name change rejected", func(t *testing.T) {
		original, updated := base()
		updated.Name = "renamed"
		assertReadOnly(t, r.checkReadOnly(original, updated), "name")
	})

	t.Run("service change rejected", func(t *testing.T) {
		original, updated := base()
		updated.Service = &Reference{ID: uuid.New(), Type: "storageService"}
		assertReadOnly(t, r.checkReadOnly(original, updated), "service")
	})

	t.Run("service removal rejected", func(t *testing.T) {
		original, updated := base()
		updated.Service = nil
		assertReadOnly(t, r.checkReadOnly(original, updated), "service")
	})

	t.Run("mutable fields pass", func(t *testing.T) {
		original, updated := base()
		updated.Description = "new description"
		updated.DisplayName = "Raw Zone"
		assert.NoError(t, r.checkReadOnly(original, updated))
	})
}

func TestReferencesDiffer(t *testing.T) {
	id := uuid.New()
	other := uuid.New()

	assert.False(t, referencesDiffer(nil, nil))
	assert.False(t, referencesDiffer(&Reference{ID: id}, &Reference{ID: id}))
	assert.True(t, referencesDiffer(nil, &Reference{ID: id}))
	assert.True(t, referencesDiffer(&Reference{ID: id}, nil))
	assert.True(t, referencesDiffer(&Reference{ID: id}, &Reference{ID: other}))
}

func TestLabelsEqual(t *testing.T) {
	stored := []tags.Label{
		{TagFQN: "PII", LabelType: tags.Derived, State: tags.Confirmed},
		{TagFQN: "PII.Sensitive", LabelType: tags.Manual, State: tags.Confirmed},
	}

	same := []tags.Label{
		{TagFQN: "PII", LabelType: tags.Derived, State: tags.Confirmed},
		{TagFQN: "PII.Sensitive", LabelType: tags.Manual, State: tags.Confirmed},
	}
	assert.True(t, labelsEqual(stored, same))
	assert.True(t, labelsEqual(nil, nil))
	assert.True(t, labelsEqual([]tags.Label{}, nil))

	assert.False(t, labelsEqual(stored, stored[:1]))
	assert.False(t, labelsEqual(stored, []tags.Label{
		{TagFQN: "Tier.Gold", LabelType: tags.Manual, State: tags.Confirmed},
		{TagFQN: "PII.Sensitive", LabelType: tags.Manual, State: tags.Confirmed},
	}))
	assert.False(t, labelsEqual(stored, []tags.Label{
		{TagFQN: "PII", LabelType: tags.Manual, State: tags.Confirmed},
		{TagFQN: "PII.Sensitive", LabelType: tags.Manual, State: tags.Confirmed},
	}))
}
