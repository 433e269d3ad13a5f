package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"cinema-reservation/internal/model"
	"cinema-reservation/internal/repository"
)

// Response shapes for the catalog.  The model structs carry no json
// tags on purpose; the wire format is pinned here.
type movieResp struct {
	ID       uint64  `json:"id"`
	Title    string  `json:"title"`
	Year     int32   `json:"year"`
	Director string  `json:"director"`
	Poster   *string `json:"poster,omitempty"`
}
type roomResp struct {
	ID       uint64 `json:"id"`
	Capacity uint32 `json:"capacity"`
	Label    string `json:"label"`
}
type scheduleResp struct {
	ID      uint64 `json:"id"`
	MovieID uint64 `json:"movie_id"`
	RoomID  uint64 `json:"room_id"`
	Date    string `json:"date"`
}

func toMovieResp(m model.Movie) movieResp {
	return movieResp{ID: m.ID, Title: m.Title, Year: m.Year, Director: m.Director, Poster: m.Poster}
}

func toRoomResp(r model.Room) roomResp {
	return roomResp{ID: r.ID, Capacity: r.Capacity, Label: r.Label}
}

func toScheduleResp(s model.Schedule) scheduleResp {
	return scheduleResp{
		ID:      s.ID,
		MovieID: s.MovieID,
		RoomID:  s.RoomID,
		Date:    s.Date.UTC().Format("2006-01-02 15:04:05"),
	}
}

// BrowseHandler serves the public catalog: movies, rooms and the
// schedule with live seat availability.  No authentication required.
type BrowseHandler struct {
	Movies       *repository.MovieRepo
	Rooms        *repository.RoomRepo
	Schedules    *repository.ScheduleRepo
	Reservations *repository.ReservationRepo
}

// NewBrowseHandler constructs a BrowseHandler.
func NewBrowseHandler(m *repository.MovieRepo, r *repository.RoomRepo, s *repository.ScheduleRepo, res *repository.ReservationRepo) *BrowseHandler {
	if m == nil || r == nil || s == nil || res == nil {
		panic("nil repository passed to NewBrowseHandler")
	}
	return &BrowseHandler{Movies: m, Rooms: r, Schedules: s, Reservations: res}
}

// ListMovies handles GET /v1/movies.
func (h *BrowseHandler) ListMovies(c echo.Context) error {
	ctx, cancel := reqContext(c)
	defer cancel()

	movies, err := h.Movies.List(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load movies"})
	}
	items := make([]movieResp, 0, len(movies))
	for _, m := range movies {
		items = append(items, toMovieResp(m))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// GetMovie handles GET /v1/movies/:id.
func (h *BrowseHandler) GetMovie(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid movie id"})
	}

	ctx, cancel := reqContext(c)
	defer cancel()

	movie, err := h.Movies.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "movie not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load movie"})
	}
	return c.JSON(http.StatusOK, echo.Map{"item": toMovieResp(*movie)})
}

// ListRooms handles GET /v1/rooms.
func (h *BrowseHandler) ListRooms(c echo.Context) error {
	ctx, cancel := reqContext(c)
	defer cancel()

	rooms, err := h.Rooms.List(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load rooms"})
	}
	items := make([]roomResp, 0, len(rooms))
	for _, r := range rooms {
		items = append(items, toRoomResp(r))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// GetRoom handles GET /v1/rooms/:id.
func (h *BrowseHandler) GetRoom(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid room id"})
	}

	ctx, cancel := reqContext(c)
	defer cancel()

	room, err := h.Rooms.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "room not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load room"})
	}
	return c.JSON(http.StatusOK, echo.Map{"item": toRoomResp(*room)})
}

// ListSchedules handles GET /v1/schedules: every screening joined
// with its movie, room and current availability.
func (h *BrowseHandler) ListSchedules(c echo.Context) error {
	ctx, cancel := reqContext(c)
	defer cancel()

	items, err := h.Schedules.ListWithDetails(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load schedules"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// GetSchedule handles GET /v1/schedules/:id.
func (h *BrowseHandler) GetSchedule(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid schedule id"})
	}

	ctx, cancel := reqContext(c)
	defer cancel()

	s, err := h.Schedules.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "schedule not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load schedule"})
	}
	return c.JSON(http.StatusOK, echo.Map{"item": toScheduleResp(*s)})
}

// GetAvailability handles GET /v1/schedules/:id/availability and
// returns capacity, reserved count and remaining seats.
func (h *BrowseHandler) GetAvailability(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid schedule id"})
	}

	ctx, cancel := reqContext(c)
	defer cancel()

	capacity, reserved, err := h.Reservations.Availability(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "schedule not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load availability"})
	}
	remaining := int64(capacity) - int64(reserved)
	if remaining < 0 {
		remaining = 0
	}
	return c.JSON(http.StatusOK, echo.Map{
		"schedule_id": id,
		"capacity":    capacity,
		"reserved":    reserved,
		"remaining":   remaining,
	})
}
