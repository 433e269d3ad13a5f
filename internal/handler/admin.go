package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"cinema-reservation/internal/model"
	"cinema-reservation/internal/repository"
)

// AdminHandler manages the reference data customers book against:
// movies, rooms and the screening schedule.  All routes behind it
// require the ADMIN role.
type AdminHandler struct {
	Movies       *repository.MovieRepo
	Rooms        *repository.RoomRepo
	Schedules    *repository.ScheduleRepo
	Reservations *repository.ReservationRepo
}

// NewAdminHandler constructs an AdminHandler.
func NewAdminHandler(m *repository.MovieRepo, r *repository.RoomRepo, s *repository.ScheduleRepo, res *repository.ReservationRepo) *AdminHandler {
	if m == nil || r == nil || s == nil || res == nil {
		panic("nil repository passed to NewAdminHandler")
	}
	return &AdminHandler{Movies: m, Rooms: r, Schedules: s, Reservations: res}
}

type createMovieReq struct {
	Title    string  `json:"title"`
	Year     int32   `json:"year"`
	Director string  `json:"director"`
	Poster   *string `json:"poster"`
}
type createRoomReq struct {
	Capacity uint32 `json:"capacity"`
	Label    string `json:"label"`
}
type createScheduleReq struct {
	MovieID uint64 `json:"movie_id"`
	RoomID  uint64 `json:"room_id"`
	Date    string `json:"date"` // RFC3339 or "2006-01-02 15:04:05"
}

// parseScheduleDate accepts RFC3339 or the bare datetime layout the
// schedule table stores; both are normalized to UTC.
func parseScheduleDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02 15:04:05", raw)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// CreateMovie handles POST /v1/movies.
func (h *AdminHandler) CreateMovie(c echo.Context) error {
	var req createMovieReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "title required"})
	}

	ctx, cancel := reqContext(c)
	defer cancel()

	m := &model.Movie{Title: req.Title, Year: req.Year, Director: strings.TrimSpace(req.Director), Poster: req.Poster}
	if err := h.Movies.Create(ctx, m); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create movie"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"item": toMovieResp(*m)})
}

// CreateRoom handles POST /v1/rooms.  Capacity must be positive; the
// schema enforces the same bound with a CHECK constraint.
func (h *AdminHandler) CreateRoom(c echo.Context) error {
	var req createRoomReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Label = strings.TrimSpace(req.Label)
	if req.Label == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "label required"})
	}
	if req.Capacity == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "capacity must be positive"})
	}

	ctx, cancel := reqContext(c)
	defer cancel()

	room := &model.Room{Capacity: req.Capacity, Label: req.Label}
	if err := h.Rooms.Create(ctx, room); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create room"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"item": toRoomResp(*room)})
}

// CreateSchedule handles POST /v1/schedules.  Both foreign keys must
// reference existing rows; a dangling one reads as 404.
func (h *AdminHandler) CreateSchedule(c echo.Context) error {
	var req createScheduleReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.MovieID == 0 || req.RoomID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "movie_id and room_id required"})
	}
	date, err := parseScheduleDate(req.Date)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid date"})
	}

	ctx, cancel := reqContext(c)
	defer cancel()

	s := &model.Schedule{MovieID: req.MovieID, RoomID: req.RoomID, Date: date}
	if err := h.Schedules.Create(ctx, s); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "movie or room not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create schedule"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"item": toScheduleResp(*s)})
}

// DeleteSchedule handles DELETE /v1/schedules/:id.  A schedule that
// still has reservations cannot be removed.
func (h *AdminHandler) DeleteSchedule(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid schedule id"})
	}

	ctx, cancel := reqContext(c)
	defer cancel()

	if err := h.Schedules.Delete(ctx, id); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "schedule not found"})
		case errors.Is(err, repository.ErrConflict):
			return c.JSON(http.StatusConflict, echo.Map{"error": "schedule still has reservations"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to delete schedule"})
	}
	return c.NoContent(http.StatusNoContent)
}

// ListScheduleReservations handles GET /v1/schedules/:id/reservations
// for admin oversight of one screening's bookings.
func (h *AdminHandler) ListScheduleReservations(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid schedule id"})
	}

	ctx, cancel := reqContext(c)
	defer cancel()

	if _, err := h.Schedules.GetByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "schedule not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load schedule"})
	}
	items, err := h.Reservations.ListBySchedule(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load reservations"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}
