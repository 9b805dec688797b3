package ports

import (
	"context"

	"github.com/medicalcenter/clinic-system/internal/core/domain"
)

// TagRepository defines persistence for tags.
type TagRepository interface {
	Create(ctx context.Context, tag *domain.Tag) error
	List(ctx context.Context) ([]*domain.Tag, error)
}

// RoomRepository defines persistence for rooms.
type RoomRepository interface {
	Create(ctx context.Context, room *domain.Room) error
	FindByID(ctx context.Context, id string) (*domain.Room, error)
	Update(ctx context.Context, room *domain.Room) error
	List(ctx context.Context) ([]*domain.Room, error)
}

// UpdateRoomInput carries optional room changes; nil fields stay untouched.
type UpdateRoomInput struct {
	Name   *string
	Floor  *int
	Status *string
}

type TagService interface {
	CreateTag(ctx context.Context, actor *domain.Session, name string) (*domain.Tag, error)
	ListTags(ctx context.Context) ([]*domain.Tag, error)
}

type RoomService interface {
	CreateRoom(ctx context.Context, name string, floor int) (*domain.Room, error)
	UpdateRoom(ctx context.Context, id string, in UpdateRoomInput) (*domain.Room, error)
	ListRooms(ctx context.Context) ([]*domain.Room, error)
}
