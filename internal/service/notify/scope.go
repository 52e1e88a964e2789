package notify

import (
	"context"

	"hotel-ops-backend/internal/domain"
)

const guestBatch = 500

// GuestDirectory - источник гостей отеля
type GuestDirectory interface {
	FindByHotelID(ctx context.Context, hotelID string, limit, offset int) ([]*domain.Guest, int, error)
}

// HotelGuestIDs возвращает идентификаторы всех гостей отеля.
// Рассылки и статистика оператора ограничены этим списком.
func HotelGuestIDs(ctx context.Context, dir GuestDirectory, hotelID string) ([]string, error) {
	var ids []string
	for offset := 0; ; offset += guestBatch {
		guests, total, err := dir.FindByHotelID(ctx, hotelID, guestBatch, offset)
		if err != nil {
			return nil, err
		}
		for _, g := range guests {
			ids = append(ids, g.ID)
		}
		if len(guests) < guestBatch || offset+len(guests) >= total {
			return ids, nil
		}
	}
}
