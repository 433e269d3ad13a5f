package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"cinema-reservation/internal/model"
	"cinema-reservation/internal/queue"
	"cinema-reservation/internal/repository"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Create(ctx context.Context, userID, scheduleID uint64) (*model.Reservation, error) {
	args := m.Called(ctx, userID, scheduleID)
	if r := args.Get(0); r != nil {
		return r.(*model.Reservation), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) Update(ctx context.Context, id uint64, cs model.ReservationChangeset) (*model.Reservation, error) {
	args := m.Called(ctx, id, cs)
	if r := args.Get(0); r != nil {
		return r.(*model.Reservation), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) GetByID(ctx context.Context, id uint64) (*model.Reservation, error) {
	args := m.Called(ctx, id)
	if r := args.Get(0); r != nil {
		return r.(*model.Reservation), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) GetDetail(ctx context.Context, id uint64) (*repository.ReservationDetail, error) {
	args := m.Called(ctx, id)
	if r := args.Get(0); r != nil {
		return r.(*repository.ReservationDetail), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) ListDetailsByUser(ctx context.Context, userID uint64) ([]repository.ReservationDetail, error) {
	args := m.Called(ctx, userID)
	if r := args.Get(0); r != nil {
		return r.([]repository.ReservationDetail), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) AllOwnedBy(ctx context.Context, ids []uint64, userID uint64) (bool, error) {
	args := m.Called(ctx, ids, userID)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) Delete(ctx context.Context, id uint64) (int64, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockStore) DeleteMany(ctx context.Context, ids []uint64) (int64, error) {
	args := m.Called(ctx, ids)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockStore) Availability(ctx context.Context, scheduleID uint64) (uint32, uint32, error) {
	args := m.Called(ctx, scheduleID)
	return args.Get(0).(uint32), args.Get(1).(uint32), args.Error(2)
}

// newTestContext builds an echo context carrying an authenticated user.
func newTestContext(t *testing.T, method, target, body string, userID uint64) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user_id", userID)
	c.Set("role", "USER")
	return c, rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestCreateReservation(t *testing.T) {
	store := new(mockStore)
	h := &ReservationHandler{Store: store}

	var published queue.ReservationConfirmedEvent
	var wg sync.WaitGroup
	wg.Add(1)
	h.Publish = func(ctx context.Context, ev queue.ReservationConfirmedEvent) {
		published = ev
		wg.Done()
	}

	res := &model.Reservation{ID: 7, UserID: 42, ScheduleID: 3, CreatedAt: time.Now().UTC()}
	store.On("Create", mock.Anything, uint64(42), uint64(3)).Return(res, nil)
	store.On("GetDetail", mock.Anything, uint64(7)).Return(&repository.ReservationDetail{
		ID: 7, UserEmail: "ada@example.com", MovieTitle: "Metropolis", RoomLabel: "Screen 1",
		ScheduleDate: "2026-09-01 20:00:00",
	}, nil)

	c, rec := newTestContext(t, http.MethodPost, "/v1/reservations", `{"schedule_id":3}`, 42)
	require.NoError(t, h.Create(c))

	assert.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	assert.EqualValues(t, 7, body["id"])
	assert.EqualValues(t, 3, body["schedule_id"])

	wg.Wait()
	assert.Equal(t, uint64(7), published.ReservationID)
	assert.Equal(t, "ada@example.com", published.UserEmail)
	store.AssertExpectations(t)
}

func TestCreateReservationScheduleMissing(t *testing.T) {
	store := new(mockStore)
	h := &ReservationHandler{Store: store}
	store.On("Create", mock.Anything, uint64(42), uint64(99)).Return(nil, repository.ErrNotFound)

	c, rec := newTestContext(t, http.MethodPost, "/v1/reservations", `{"schedule_id":99}`, 42)
	require.NoError(t, h.Create(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateReservationDuplicate(t *testing.T) {
	store := new(mockStore)
	h := &ReservationHandler{Store: store}
	store.On("Create", mock.Anything, uint64(42), uint64(3)).Return(nil, repository.ErrDuplicateReservation)

	c, rec := newTestContext(t, http.MethodPost, "/v1/reservations", `{"schedule_id":3}`, 42)
	require.NoError(t, h.Create(c))

	assert.Equal(t, http.StatusConflict, rec.Code)
	body := decodeBody(t, rec)
	assert.Contains(t, body["error"], "already have a reservation")
}

func TestCreateReservationCapacityExceeded(t *testing.T) {
	store := new(mockStore)
	h := &ReservationHandler{Store: store}
	store.On("Create", mock.Anything, uint64(42), uint64(3)).Return(nil, repository.ErrCapacityExceeded)
	store.On("Availability", mock.Anything, uint64(3)).Return(uint32(50), uint32(50), nil)

	c, rec := newTestContext(t, http.MethodPost, "/v1/reservations", `{"schedule_id":3}`, 42)
	require.NoError(t, h.Create(c))

	assert.Equal(t, http.StatusConflict, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "room capacity exceeded for schedule", body["error"])
	assert.EqualValues(t, 0, body["remaining_seats"])
}

func TestCreateReservationBadBody(t *testing.T) {
	store := new(mockStore)
	h := &ReservationHandler{Store: store}

	c, rec := newTestContext(t, http.MethodPost, "/v1/reservations", `{"schedule_id":0}`, 42)
	require.NoError(t, h.Create(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateReservationForeign(t *testing.T) {
	store := new(mockStore)
	h := &ReservationHandler{Store: store}
	store.On("GetByID", mock.Anything, uint64(7)).Return(&model.Reservation{ID: 7, UserID: 1, ScheduleID: 3}, nil)

	c, rec := newTestContext(t, http.MethodPatch, "/v1/reservations/7", `{"schedule_id":4}`, 42)
	c.SetParamNames("id")
	c.SetParamValues("7")
	require.NoError(t, h.Update(c))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	store.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateReservationCapacityExceeded(t *testing.T) {
	store := new(mockStore)
	h := &ReservationHandler{Store: store}
	store.On("GetByID", mock.Anything, uint64(7)).Return(&model.Reservation{ID: 7, UserID: 42, ScheduleID: 3}, nil)
	store.On("Update", mock.Anything, uint64(7), mock.Anything).Return(nil, repository.ErrCapacityExceeded)
	store.On("Availability", mock.Anything, uint64(4)).Return(uint32(10), uint32(10), nil)

	c, rec := newTestContext(t, http.MethodPatch, "/v1/reservations/7", `{"schedule_id":4}`, 42)
	c.SetParamNames("id")
	c.SetParamValues("7")
	require.NoError(t, h.Update(c))

	assert.Equal(t, http.StatusConflict, rec.Code)
	body := decodeBody(t, rec)
	assert.EqualValues(t, 0, body["remaining_seats"])
}

func TestDeleteReservationForeign(t *testing.T) {
	store := new(mockStore)
	h := &ReservationHandler{Store: store}
	store.On("AllOwnedBy", mock.Anything, []uint64{7}, uint64(42)).Return(false, nil)

	c, rec := newTestContext(t, http.MethodDelete, "/v1/reservations/7", "", 42)
	c.SetParamNames("id")
	c.SetParamValues("7")
	require.NoError(t, h.Delete(c))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	store.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestDeleteReservationOwned(t *testing.T) {
	store := new(mockStore)
	h := &ReservationHandler{Store: store}
	store.On("AllOwnedBy", mock.Anything, []uint64{7}, uint64(42)).Return(true, nil)
	store.On("Delete", mock.Anything, uint64(7)).Return(int64(1), nil)

	c, rec := newTestContext(t, http.MethodDelete, "/v1/reservations/7", "", 42)
	c.SetParamNames("id")
	c.SetParamValues("7")
	require.NoError(t, h.Delete(c))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	store.AssertExpectations(t)
}

func TestBulkDeleteMixedOwnership(t *testing.T) {
	store := new(mockStore)
	h := &ReservationHandler{Store: store}
	store.On("AllOwnedBy", mock.Anything, []uint64{1, 2, 3}, uint64(42)).Return(false, nil)

	c, rec := newTestContext(t, http.MethodPost, "/v1/reservations/bulk-delete", `{"ids":[1,2,3]}`, 42)
	require.NoError(t, h.BulkDelete(c))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	store.AssertNotCalled(t, "DeleteMany", mock.Anything, mock.Anything)
}

func TestBulkDeleteOwned(t *testing.T) {
	store := new(mockStore)
	h := &ReservationHandler{Store: store}
	store.On("AllOwnedBy", mock.Anything, []uint64{1, 2}, uint64(42)).Return(true, nil)
	store.On("DeleteMany", mock.Anything, []uint64{1, 2}).Return(int64(2), nil)

	c, rec := newTestContext(t, http.MethodPost, "/v1/reservations/bulk-delete", `{"ids":[1,2]}`, 42)
	require.NoError(t, h.BulkDelete(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.EqualValues(t, 2, body["deleted"])
}

func TestBulkDeleteEmpty(t *testing.T) {
	store := new(mockStore)
	h := &ReservationHandler{Store: store}

	c, rec := newTestContext(t, http.MethodPost, "/v1/reservations/bulk-delete", `{"ids":[]}`, 42)
	require.NoError(t, h.BulkDelete(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	store.AssertNotCalled(t, "AllOwnedBy", mock.Anything, mock.Anything, mock.Anything)
}

func TestListReservations(t *testing.T) {
	store := new(mockStore)
	h := &ReservationHandler{Store: store}
	store.On("ListDetailsByUser", mock.Anything, uint64(42)).Return([]repository.ReservationDetail{
		{ID: 1, UserEmail: "ada@example.com", MovieTitle: "Metropolis", RoomLabel: "Screen 1", ScheduleDate: "2026-09-01 20:00:00"},
	}, nil)

	c, rec := newTestContext(t, http.MethodGet, "/v1/reservations", "", 42)
	require.NoError(t, h.List(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	items, ok := body["items"].([]interface{})
	require.True(t, ok)
	assert.Len(t, items, 1)
}

func TestGetReservationForeign(t *testing.T) {
	store := new(mockStore)
	h := &ReservationHandler{Store: store}
	store.On("GetByID", mock.Anything, uint64(9)).Return(&model.Reservation{ID: 9, UserID: 1, ScheduleID: 2}, nil)

	c, rec := newTestContext(t, http.MethodGet, "/v1/reservations/9", "", 42)
	c.SetParamNames("id")
	c.SetParamValues("9")
	require.NoError(t, h.Get(c))

	assert.Equal(t, http.StatusForbidden, rec.Code)
}
