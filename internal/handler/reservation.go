package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"cinema-reservation/internal/model"
	"cinema-reservation/internal/queue"
	"cinema-reservation/internal/repository"
)

// ReservationStore is the slice of the reservation repository the
// handler depends on.  Tests substitute a mock.
type ReservationStore interface {
	Create(ctx context.Context, userID, scheduleID uint64) (*model.Reservation, error)
	Update(ctx context.Context, id uint64, cs model.ReservationChangeset) (*model.Reservation, error)
	GetByID(ctx context.Context, id uint64) (*model.Reservation, error)
	GetDetail(ctx context.Context, id uint64) (*repository.ReservationDetail, error)
	ListDetailsByUser(ctx context.Context, userID uint64) ([]repository.ReservationDetail, error)
	AllOwnedBy(ctx context.Context, ids []uint64, userID uint64) (bool, error)
	Delete(ctx context.Context, id uint64) (int64, error)
	DeleteMany(ctx context.Context, ids []uint64) (int64, error)
	Availability(ctx context.Context, scheduleID uint64) (capacity, reserved uint32, err error)
}

// ReservationHandler serves the customer-facing booking endpoints.
// Ownership is enforced here: every mutation first proves the acting
// user owns the targeted rows, and a failed proof means nothing is
// touched.  Publish is called after a successful create; it defaults
// to the RabbitMQ publisher and may be nil in tests.
type ReservationHandler struct {
	Store   ReservationStore
	Publish func(ctx context.Context, ev queue.ReservationConfirmedEvent)
}

// NewReservationHandler constructs a ReservationHandler wired to the
// RabbitMQ publisher.
func NewReservationHandler(store ReservationStore) *ReservationHandler {
	return &ReservationHandler{
		Store: store,
		Publish: func(ctx context.Context, ev queue.ReservationConfirmedEvent) {
			_ = queue.PublishReservationConfirmed(ctx, ev)
		},
	}
}

type createReservationReq struct {
	ScheduleID uint64 `json:"schedule_id"`
}
type updateReservationReq struct {
	ScheduleID *uint64 `json:"schedule_id"`
}
type bulkDeleteReq struct {
	IDs []uint64 `json:"ids"`
}

// capacityConflict renders the 409 for a full screening, including
// how many seats are left so clients can show a useful message.
func (h *ReservationHandler) capacityConflict(c echo.Context, scheduleID uint64) error {
	remaining := int64(0)
	ctx, cancel := reqContext(c)
	defer cancel()
	if capacity, reserved, err := h.Store.Availability(ctx, scheduleID); err == nil {
		remaining = int64(capacity) - int64(reserved)
		if remaining < 0 {
			remaining = 0
		}
	}
	return c.JSON(http.StatusConflict, echo.Map{
		"error":           "room capacity exceeded for schedule",
		"remaining_seats": remaining,
	})
}

// List handles GET /v1/reservations: the user's reservations joined
// with movie, room and schedule for display.
func (h *ReservationHandler) List(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := reqContext(c)
	defer cancel()

	items, err := h.Store.ListDetailsByUser(ctx, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load reservations"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Get handles GET /v1/reservations/:id.  Users only see their own
// rows; a foreign reservation reads as 403 rather than leaking data.
func (h *ReservationHandler) Get(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}

	ctx, cancel := reqContext(c)
	defer cancel()

	res, err := h.Store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch reservation"})
	}
	if res.UserID != userID {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	detail, err := h.Store.GetDetail(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch reservation"})
	}
	return c.JSON(http.StatusOK, echo.Map{"item": detail})
}

// Create handles POST /v1/reservations.  The repository runs the
// whole book-one-seat flow in a transaction; this handler only
// translates its outcome.  On success a confirmation event goes out
// best-effort.
func (h *ReservationHandler) Create(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createReservationReq
	if err := c.Bind(&req); err != nil || req.ScheduleID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "schedule_id required"})
	}

	ctx, cancel := reqContext(c)
	defer cancel()

	res, err := h.Store.Create(ctx, userID, req.ScheduleID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "schedule not found"})
		case errors.Is(err, repository.ErrDuplicateReservation):
			return c.JSON(http.StatusConflict, echo.Map{"error": "you already have a reservation for this schedule"})
		case errors.Is(err, repository.ErrCapacityExceeded):
			return h.capacityConflict(c, req.ScheduleID)
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create reservation"})
	}

	if h.Publish != nil {
		ev := queue.ReservationConfirmedEvent{
			ReservationID: res.ID,
			UserID:        res.UserID,
			ScheduleID:    res.ScheduleID,
			ConfirmedAt:   time.Now().UTC().Format(time.RFC3339),
		}
		if d, err := h.Store.GetDetail(ctx, res.ID); err == nil {
			ev.UserEmail = d.UserEmail
			ev.MovieTitle = d.MovieTitle
			ev.RoomLabel = d.RoomLabel
			ev.ScheduleDate = d.ScheduleDate
		}
		go h.Publish(context.Background(), ev)
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"id":          res.ID,
		"user_id":     res.UserID,
		"schedule_id": res.ScheduleID,
		"created_at":  res.CreatedAt,
	})
}

// Update handles PATCH /v1/reservations/:id.  Only the schedule can
// be moved; absent fields leave the row untouched.  Moving onto a
// full screening rolls the whole update back.
func (h *ReservationHandler) Update(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	var req updateReservationReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.ScheduleID != nil && *req.ScheduleID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid schedule_id"})
	}

	ctx, cancel := reqContext(c)
	defer cancel()

	current, err := h.Store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch reservation"})
	}
	if current.UserID != userID {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}

	updated, err := h.Store.Update(ctx, id, model.ReservationChangeset{ScheduleID: req.ScheduleID})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "schedule not found"})
		case errors.Is(err, repository.ErrDuplicateReservation):
			return c.JSON(http.StatusConflict, echo.Map{"error": "you already have a reservation for this schedule"})
		case errors.Is(err, repository.ErrCapacityExceeded):
			if req.ScheduleID != nil {
				return h.capacityConflict(c, *req.ScheduleID)
			}
			return h.capacityConflict(c, current.ScheduleID)
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update reservation"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"id":          updated.ID,
		"user_id":     updated.UserID,
		"schedule_id": updated.ScheduleID,
		"created_at":  updated.CreatedAt,
	})
}

// Delete handles DELETE /v1/reservations/:id.  The ownership gate
// runs first: a reservation that is missing or belongs to someone
// else yields 403 and nothing is deleted.
func (h *ReservationHandler) Delete(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}

	ctx, cancel := reqContext(c)
	defer cancel()

	owned, err := h.Store.AllOwnedBy(ctx, []uint64{id}, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to verify ownership"})
	}
	if !owned {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	if _, err := h.Store.Delete(ctx, id); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to delete reservation"})
	}
	return c.NoContent(http.StatusNoContent)
}

// BulkDelete handles POST /v1/reservations/bulk-delete.  The request
// is all-or-nothing: if any id in the set is missing or foreign, no
// row is deleted and the response is 403.
func (h *ReservationHandler) BulkDelete(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req bulkDeleteReq
	if err := c.Bind(&req); err != nil || len(req.IDs) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "ids required"})
	}
	for _, id := range req.IDs {
		if id == 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id in set"})
		}
	}

	ctx, cancel := reqContext(c)
	defer cancel()

	owned, err := h.Store.AllOwnedBy(ctx, req.IDs, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to verify ownership"})
	}
	if !owned {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	deleted, err := h.Store.DeleteMany(ctx, req.IDs)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to delete reservations"})
	}
	return c.JSON(http.StatusOK, echo.Map{"deleted": deleted})
}
