package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/medicalcenter/clinic-system/internal/core/domain"
	"github.com/medicalcenter/clinic-system/internal/core/ports"
)

const maxTagLength = 64

type TagService struct {
	repo   ports.TagRepository
	logger zerolog.Logger
}

func NewTagService(repo ports.TagRepository, logger zerolog.Logger) *TagService {
	return &TagService{repo: repo, logger: logger}
}

// CreateTag stores a new tag. Names are trimmed and must be unique.
func (s *TagService) CreateTag(ctx context.Context, actor *domain.Session, name string) (*domain.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxTagLength {
		return nil, fmt.Errorf("%w: tag name must be 1-%d characters", domain.ErrInvalidInput, maxTagLength)
	}

	tag := &domain.Tag{
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	if actor != nil {
		tag.CreatedBy = actor.Username
	}

	if err := s.repo.Create(ctx, tag); err != nil {
		return nil, err
	}

	s.logger.Info().Str("tag", tag.Name).Str("created_by", tag.CreatedBy).Msg("tag created")
	return tag, nil
}

func (s *TagService) ListTags(ctx context.Context) ([]*domain.Tag, error) {
	return s.repo.List(ctx)
}

type RoomService struct {
	repo   ports.RoomRepository
	logger zerolog.Logger
}

func NewRoomService(repo ports.RoomRepository, logger zerolog.Logger) *RoomService {
	return &RoomService{repo: repo, logger: logger}
}

// CreateRoom adds an available room.
func (s *RoomService) CreateRoom(ctx context.Context, name string, floor int) (*domain.Room, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: room name is required", domain.ErrInvalidInput)
	}

	now := time.Now().UTC()
	room := &domain.Room{
		Name:      name,
		Floor:     floor,
		Status:    domain.RoomAvailable,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, room); err != nil {
		s.logger.Error().Err(err).Msg("failed to create room")
		return nil, err
	}

	s.logger.Info().Str("room_id", room.ID).Str("name", room.Name).Msg("room created")
	return room, nil
}

// UpdateRoom applies in to the room, validating status transitions.
func (s *RoomService) UpdateRoom(ctx context.Context, id string, in ports.UpdateRoomInput) (*domain.Room, error) {
	room, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: room name is required", domain.ErrInvalidInput)
		}
		room.Name = name
	}
	if in.Floor != nil {
		room.Floor = *in.Floor
	}
	if in.Status != nil {
		next := domain.RoomStatus(*in.Status)
		if !room.Status.CanTransitionTo(next) {
			return nil, fmt.Errorf("%w (from %s to %s)", domain.ErrInvalidTransition, room.Status, next)
		}
		room.Status = next
	}
	room.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, room); err != nil {
		return nil, err
	}
	return room, nil
}

func (s *RoomService) ListRooms(ctx context.Context) ([]*domain.Room, error) {
	return s.repo.List(ctx)
}
