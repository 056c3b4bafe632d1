package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afyacare/clinic-api/pkg/apperror"
	"github.com/afyacare/clinic-api/pkg/pagination"
)

func TestRegisterPatient(t *testing.T) {
	env := newTestEnv(t)
	svc := NewPatientService(env.patientRepo)
	ctx := context.Background()

	t.Run("registers and retrieves a patient", func(t *testing.T) {
		patient, err := svc.Register(ctx, &RegisterPatientInput{
			FirstName:    "Brian",
			LastName:     "Kiptoo",
			Phone:        "+254722000111",
			Sex:          "male",
			RegisteredBy: env.actorID,
		})
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, patient.ID)

		found, err := svc.Get(ctx, patient.ID)
		require.NoError(t, err)
		assert.Equal(t, "Brian", found.FirstName)
	})

	t.Run("first name is required", func(t *testing.T) {
		_, err := svc.Register(ctx, &RegisterPatientInput{Phone: "+254722000112"})
		require.Error(t, err)
		assert.Equal(t, 400, apperror.GetAppError(err).Code)
	})

	t.Run("unknown patient", func(t *testing.T) {
		_, err := svc.Get(ctx, uuid.New())
		require.Error(t, err)
		assert.Equal(t, 404, apperror.GetAppError(err).Code)
	})

	t.Run("search by name", func(t *testing.T) {
		patients, total, err := svc.List(ctx, &pagination.PaginationParams{Page: 1, PerPage: 10}, "Kiptoo")
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, patients, 1)
	})
}
