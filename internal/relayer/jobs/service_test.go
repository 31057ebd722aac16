package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/cuongbtq/pool-relayer/internal/relayer/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) CreateJob(ctx context.Context, job *domain.Job) error {
	return m.Called(ctx, job).Error(0)
}

func (m *mockStore) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	args := m.Called(ctx, jobID)
	job, _ := args.Get(0).(*domain.Job)
	return job, args.Error(1)
}

func (m *mockStore) UpdateJob(ctx context.Context, job *domain.Job) error {
	return m.Called(ctx, job).Error(0)
}

type mockQueue struct {
	mock.Mock
}

func (m *mockQueue) PublishWithRetry(ctx context.Context, body []byte, contentType string) error {
	return m.Called(ctx, body, contentType).Error(0)
}

func TestService_Enqueue(t *testing.T) {
	store := &mockStore{}
	queue := &mockQueue{}
	svc := NewService(store, queue, nil)
	ctx := context.Background()

	var created *domain.Job
	store.On("CreateJob", ctx, mock.AnythingOfType("*domain.Job")).
		Run(func(args mock.Arguments) { created = args.Get(1).(*domain.Job) }).
		Return(nil)

	var published domain.JobMessage
	queue.On("PublishWithRetry", ctx, mock.Anything, "application/json").
		Run(func(args mock.Arguments) {
			require.NoError(t, json.Unmarshal(args.Get(1).([]byte), &published))
		}).
		Return(nil)

	tx := domain.Transaction{ExtData: domain.ExtData{Relayer: "0xbb"}}
	id, err := svc.Enqueue(ctx, tx)
	require.NoError(t, err)

	_, err = uuid.Parse(id)
	assert.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, id, created.ID)
	assert.Equal(t, domain.StatusQueued, created.Status)
	assert.Equal(t, tx, created.Payload)
	assert.Equal(t, id, published.JobID)

	store.AssertExpectations(t)
	queue.AssertExpectations(t)
	store.AssertNotCalled(t, "UpdateJob", mock.Anything, mock.Anything)
}

func TestService_Enqueue_StoreError(t *testing.T) {
	store := &mockStore{}
	queue := &mockQueue{}
	svc := NewService(store, queue, nil)

	store.On("CreateJob", mock.Anything, mock.Anything).Return(errors.New("db down"))

	_, err := svc.Enqueue(context.Background(), domain.Transaction{})
	assert.ErrorContains(t, err, "db down")
	queue.AssertNotCalled(t, "PublishWithRetry", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_Enqueue_PublishError(t *testing.T) {
	store := &mockStore{}
	queue := &mockQueue{}
	svc := NewService(store, queue, nil)

	store.On("CreateJob", mock.Anything, mock.Anything).Return(nil)
	store.On("UpdateJob", mock.Anything, mock.MatchedBy(func(j *domain.Job) bool {
		return j.Status == domain.StatusFailed && j.FailedReason != ""
	})).Return(nil)
	queue.On("PublishWithRetry", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("channel closed"))

	_, err := svc.Enqueue(context.Background(), domain.Transaction{})
	assert.ErrorContains(t, err, "channel closed")
	store.AssertExpectations(t)
}

func TestService_GetStatus(t *testing.T) {
	store := &mockStore{}
	svc := NewService(store, &mockQueue{}, nil)
	ctx := context.Background()
	id := uuid.New().String()

	job := &domain.Job{ID: id, Status: domain.StatusMined}
	store.On("GetJob", ctx, id).Return(job, nil)

	got, err := svc.GetStatus(ctx, id)
	require.NoError(t, err)
	assert.Same(t, job, got)

	missing := uuid.New().String()
	store.On("GetJob", ctx, missing).Return(nil, domain.ErrJobNotFound)
	_, err = svc.GetStatus(ctx, missing)
	assert.ErrorIs(t, err, domain.ErrJobNotFound)

	_, err = svc.GetStatus(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
}
