package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"hotel-ops-backend/internal/domain"
	repoInterface "hotel-ops-backend/internal/repository/interface"
)

const guestColumns = `id, hotel_id, external_id, external_source, first_name, last_name, email, phone, language,
        room_number, vip, preferences, check_in_at, check_out_at, created_at, updated_at`

// GuestRepository - PostgreSQL реализация
type GuestRepository struct {
	db *sqlx.DB
}

// NewGuestRepository создает новый репозиторий гостей
func NewGuestRepository(db *sqlx.DB) repoInterface.GuestRepository {
	return &GuestRepository{db: db}
}

// Upsert создает гостя или обновляет существующего по (external_id, external_source)
func (r *GuestRepository) Upsert(ctx context.Context, guest *domain.Guest) (bool, error) {
	return r.upsert(ctx, guest, false)
}

// StartStay сохраняет гостя при заезде и сбрасывает дату выезда прошлого проживания
func (r *GuestRepository) StartStay(ctx context.Context, guest *domain.Guest) (bool, error) {
	return r.upsert(ctx, guest, true)
}

func (r *GuestRepository) upsert(ctx context.Context, guest *domain.Guest, newStay bool) (bool, error) {
	query := `
        INSERT INTO guests (id, hotel_id, external_id, external_source, first_name, last_name, email, phone, language,
            room_number, vip, preferences, check_in_at, check_out_at, created_at, updated_at)
        VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW())
        ON CONFLICT (external_id, external_source) DO UPDATE
        SET first_name = EXCLUDED.first_name,
            last_name = EXCLUDED.last_name,
            email = EXCLUDED.email,
            phone = EXCLUDED.phone,
            language = EXCLUDED.language,
            room_number = EXCLUDED.room_number,
            vip = EXCLUDED.vip,
            preferences = EXCLUDED.preferences,
            check_in_at = COALESCE(EXCLUDED.check_in_at, guests.check_in_at),
            check_out_at = CASE WHEN $14::boolean THEN EXCLUDED.check_out_at
                ELSE COALESCE(EXCLUDED.check_out_at, guests.check_out_at) END,
            updated_at = NOW()
        RETURNING id, created_at, updated_at, (xmax = 0) AS created
    `

	var created bool
	err := r.db.QueryRowContext(ctx, query,
		guest.HotelID,
		guest.ExternalID,
		guest.ExternalSource,
		guest.FirstName,
		guest.LastName,
		guest.Email,
		guest.Phone,
		guest.Language,
		guest.RoomNumber,
		guest.VIP,
		guest.Preferences,
		guest.CheckInAt,
		guest.CheckOutAt,
		newStay,
	).Scan(&guest.ID, &guest.CreatedAt, &guest.UpdatedAt, &created)
	if err != nil {
		return false, err
	}

	return created, nil
}

// FindByID находит гостя по ID
func (r *GuestRepository) FindByID(ctx context.Context, id string) (*domain.Guest, error) {
	if err := checkID("guest", id); err != nil {
		return nil, err
	}
	var guest domain.Guest

	if err := r.db.GetContext(ctx, &guest, `SELECT `+guestColumns+` FROM guests WHERE id = $1`, id); err != nil {
		return nil, notFound(err, "guest", id)
	}

	return &guest, nil
}

// FindByExternalID находит гостя по идентификатору во внешней системе
func (r *GuestRepository) FindByExternalID(ctx context.Context, externalID, externalSource string) (*domain.Guest, error) {
	var guest domain.Guest

	query := `SELECT ` + guestColumns + ` FROM guests WHERE external_id = $1 AND external_source = $2`
	if err := r.db.GetContext(ctx, &guest, query, externalID, externalSource); err != nil {
		return nil, notFound(err, "guest", externalSource+"/"+externalID)
	}

	return &guest, nil
}

// FindByHotelID возвращает страницу гостей отеля
func (r *GuestRepository) FindByHotelID(ctx context.Context, hotelID string, limit, offset int) ([]*domain.Guest, int, error) {
	var guests []*domain.Guest
	var total int

	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM guests WHERE hotel_id = $1`, hotelID); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + guestColumns + ` FROM guests WHERE hotel_id = $1 ORDER BY last_name, first_name LIMIT $2 OFFSET $3`
	if err := r.db.SelectContext(ctx, &guests, query, hotelID, limit, offset); err != nil {
		return nil, 0, err
	}

	return guests, total, nil
}
