package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/medicalcenter/clinic-system/internal/core/domain"
	"github.com/medicalcenter/clinic-system/internal/core/ports"
)

// ClinicHandler serves the tag and room collaborator endpoints.
type ClinicHandler struct {
	tags  ports.TagService
	rooms ports.RoomService
}

func NewClinicHandler(tags ports.TagService, rooms ports.RoomService) *ClinicHandler {
	return &ClinicHandler{tags: tags, rooms: rooms}
}

type createTagRequest struct {
	Name string `json:"name" validate:"required,max=64"`
}

type createRoomRequest struct {
	Name  string `json:"name" validate:"required,max=64"`
	Floor int    `json:"floor" validate:"gte=0"`
}

type updateRoomRequest struct {
	Name   *string `json:"name,omitempty" validate:"omitempty,min=1,max=64"`
	Floor  *int    `json:"floor,omitempty" validate:"omitempty,gte=0"`
	Status *string `json:"status,omitempty" validate:"omitempty,oneof=available occupied maintenance"`
}

// ListTags returns every tag.
//
// @Summary      List tags
// @Tags         tags
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   domain.Tag
// @Failure      401  {object}  map[string]string
// @Router       /api/tags [get]
func (h *ClinicHandler) ListTags(c echo.Context) error {
	tags, err := h.tags.ListTags(c.Request().Context())
	if err != nil {
		return err
	}
	if tags == nil {
		tags = []*domain.Tag{}
	}
	return c.JSON(http.StatusOK, tags)
}

// CreateTag adds a tag.
//
// @Summary      Create a tag
// @Tags         tags
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      createTagRequest  true  "Tag"
// @Success      201   {object}  domain.Tag
// @Failure      403   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Failure      422   {object}  map[string]string
// @Router       /api/tags [post]
func (h *ClinicHandler) CreateTag(c echo.Context) error {
	actor, err := ctxSession(c)
	if err != nil {
		return err
	}
	var req createTagRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	tag, err := h.tags.CreateTag(c.Request().Context(), actor, req.Name)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, tag)
}

// ListRooms returns every room.
//
// @Summary      List rooms
// @Tags         rooms
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   domain.Room
// @Failure      401  {object}  map[string]string
// @Router       /api/rooms [get]
func (h *ClinicHandler) ListRooms(c echo.Context) error {
	rooms, err := h.rooms.ListRooms(c.Request().Context())
	if err != nil {
		return err
	}
	if rooms == nil {
		rooms = []*domain.Room{}
	}
	return c.JSON(http.StatusOK, rooms)
}

// CreateRoom adds an available room.
//
// @Summary      Create a room
// @Tags         rooms
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      createRoomRequest  true  "Room"
// @Success      201   {object}  domain.Room
// @Failure      403   {object}  map[string]string
// @Failure      422   {object}  map[string]string
// @Router       /api/rooms [post]
func (h *ClinicHandler) CreateRoom(c echo.Context) error {
	var req createRoomRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	room, err := h.rooms.CreateRoom(c.Request().Context(), req.Name, req.Floor)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, room)
}

// UpdateRoom changes a room's name, floor or status.
//
// @Summary      Update a room
// @Tags         rooms
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string             true  "Room ID"
// @Param        body  body      updateRoomRequest  true  "Changes"
// @Success      200   {object}  domain.Room
// @Failure      403   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Failure      422   {object}  map[string]string
// @Router       /api/rooms/{id} [put]
func (h *ClinicHandler) UpdateRoom(c echo.Context) error {
	var req updateRoomRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	room, err := h.rooms.UpdateRoom(c.Request().Context(), c.Param("id"), ports.UpdateRoomInput{
		Name:   req.Name,
		Floor:  req.Floor,
		Status: req.Status,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, room)
}
