package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"hotel-ops-backend/internal/domain"
)

func TestGuestUpsertKeepsStayDates(t *testing.T) {
	ctx := context.Background()
	guests := NewStore().Guests()

	checkIn := time.Date(2026, 5, 1, 14, 0, 0, 0, time.UTC)
	first := &domain.Guest{HotelID: "h", ExternalID: "p1", ExternalSource: "opera_cloud", FirstName: "Ann", CheckInAt: &checkIn}
	created, err := guests.Upsert(ctx, first)
	if err != nil || !created {
		t.Fatalf("first upsert: created=%v err=%v", created, err)
	}

	second := &domain.Guest{HotelID: "h", ExternalID: "p1", ExternalSource: "opera_cloud", FirstName: "Anna"}
	created, err = guests.Upsert(ctx, second)
	if err != nil || created {
		t.Fatalf("second upsert: created=%v err=%v", created, err)
	}
	if second.ID != first.ID {
		t.Fatalf("upsert produced a new id")
	}

	got, err := guests.FindByID(ctx, first.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.FirstName != "Anna" || got.CheckInAt == nil || !got.CheckInAt.Equal(checkIn) {
		t.Errorf("unexpected guest %+v", got)
	}

	if _, err := guests.FindByExternalID(ctx, "p1", "cloudbeds"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("external id must be scoped by source, got %v", err)
	}
}

func TestRecordSync(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	in := &domain.Integration{HotelID: "h", Name: "pms", Category: domain.CategoryPMS, Provider: "opera_cloud", Status: domain.StatusActive}
	if err := s.Create(ctx, in); err != nil {
		t.Fatalf("create: %v", err)
	}

	fail := domain.SyncOutcome{Error: "boom", At: time.Now(), DisableAfter: 2}
	if n, _ := s.RecordSync(ctx, in.ID, fail); n != 1 {
		t.Fatalf("error_count = %d", n)
	}
	got, _ := s.FindByID(ctx, in.ID)
	if got.Status != domain.StatusActive || got.LastError != "boom" {
		t.Fatalf("unexpected state after one failure %+v", got)
	}

	s.RecordSync(ctx, in.ID, fail)
	got, _ = s.FindByID(ctx, in.ID)
	if got.Status != domain.StatusError {
		t.Errorf("expected error status at threshold, got %q", got.Status)
	}

	if n, _ := s.RecordSync(ctx, in.ID, domain.SyncOutcome{Success: true, At: time.Now()}); n != 0 {
		t.Errorf("success must reset error_count, got %d", n)
	}
}

func TestDeleteCascadesLogs(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	in := &domain.Integration{HotelID: "h", Name: "pos", Category: domain.CategoryPOS, Provider: "toast", Status: domain.StatusActive}
	s.Create(ctx, in)
	for _, status := range []string{domain.LogStatusPending, domain.LogStatusSuccess, domain.LogStatusFailed} {
		s.CreateLog(ctx, &domain.IntegrationLog{IntegrationID: in.ID, OperationType: domain.OperationAPICall, Status: status, ProcessingTimeMS: 10})
	}

	stats, _ := s.LogStats(ctx, in.ID)
	if stats.Total != 3 || stats.Success != 1 || stats.Failed != 1 || stats.AvgProcessingMS != 10 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	if err := s.Delete(ctx, in.ID, "other-hotel"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("delete from another hotel: %v", err)
	}
	if err := s.Delete(ctx, in.ID, "h"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(s.Logs()) != 0 {
		t.Errorf("logs survived integration delete")
	}
}

func TestStartStayClearsCheckOut(t *testing.T) {
	ctx := context.Background()
	guests := NewStore().Guests()

	out := time.Date(2026, 5, 3, 11, 0, 0, 0, time.UTC)
	guests.Upsert(ctx, &domain.Guest{HotelID: "h", ExternalID: "p1", ExternalSource: "opera_cloud", CheckOutAt: &out})

	// обычный Upsert сохраняет дату выезда
	plain := &domain.Guest{HotelID: "h", ExternalID: "p1", ExternalSource: "opera_cloud"}
	guests.Upsert(ctx, plain)
	if got, _ := guests.FindByID(ctx, plain.ID); got.CheckOutAt == nil {
		t.Fatalf("Upsert dropped check out")
	}

	in := time.Date(2026, 6, 1, 14, 0, 0, 0, time.UTC)
	stay := &domain.Guest{HotelID: "h", ExternalID: "p1", ExternalSource: "opera_cloud", CheckInAt: &in}
	if created, err := guests.StartStay(ctx, stay); err != nil || created {
		t.Fatalf("start stay: created=%v err=%v", created, err)
	}
	got, _ := guests.FindByID(ctx, stay.ID)
	if got.CheckOutAt != nil || got.CheckInAt == nil || !got.CheckInAt.Equal(in) {
		t.Errorf("unexpected stay dates in=%v out=%v", got.CheckInAt, got.CheckOutAt)
	}
}
