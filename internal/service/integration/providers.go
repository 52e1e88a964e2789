package integration

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"hotel-ops-backend/internal/domain"
)

// SimphonyProvider - Oracle Simphony Cloud (POS)
type SimphonyProvider struct {
	BaseProvider
}

func NewSimphonyProvider() *SimphonyProvider {
	return &SimphonyProvider{BaseProvider{name: "simphony_cloud", category: domain.CategoryPOS}}
}

func (p *SimphonyProvider) BuildAuthHeaders(in *domain.Integration, creds domain.CredentialBundle) map[string]string {
	headers := p.BaseProvider.BuildAuthHeaders(in, creds)
	if org := in.ConfigString("org_short_name"); org != "" {
		headers["Simphony-OrgShortName"] = org
	}
	return headers
}

func (p *SimphonyProvider) TestConnection(in *domain.Integration, creds domain.CredentialBundle) TestSpec {
	return TestSpec{
		Method: http.MethodGet,
		URL:    in.BaseURL() + "/api/v1/config/sim/v1/organizations",
		Headers: testHeaders(creds, map[string]string{
			"Simphony-OrgShortName": in.ConfigString("org_short_name"),
		}),
	}
}

func (p *SimphonyProvider) TransformMenu(raw Record) (*domain.Menu, error) {
	id := raw.String("menuId", "id")
	if id == "" {
		return nil, fmt.Errorf("simphony menu without menuId: %w", domain.ErrInvalidInput)
	}
	menu := &domain.Menu{
		ExternalID: id,
		Name:       raw.String("name.en-US", "name"),
		Outlet:     raw.String("revenueCenterName", "rvcRef"),
	}
	for _, item := range raw.List("menuItems", "items") {
		menu.Items = append(menu.Items, domain.MenuItem{
			ExternalID: item.String("menuItemId", "id"),
			Name:       item.String("name.en-US", "name"),
			Category:   item.String("familyGroupName", "majorGroupName"),
			Price:      item.Float("prices.0.price", "price"),
			Currency:   item.String("currency"),
			Available:  !item.Bool("outOfStock"),
		})
	}
	return menu, nil
}

// ToastProvider - Toast (POS)
type ToastProvider struct {
	BaseProvider
}

func NewToastProvider() *ToastProvider {
	return &ToastProvider{BaseProvider{name: "toast", category: domain.CategoryPOS}}
}

func (p *ToastProvider) BuildAuthHeaders(in *domain.Integration, creds domain.CredentialBundle) map[string]string {
	headers := p.BaseProvider.BuildAuthHeaders(in, creds)
	if guid := in.ConfigString("restaurant_guid"); guid != "" {
		headers["Toast-Restaurant-External-ID"] = guid
	}
	return headers
}

func (p *ToastProvider) TestConnection(in *domain.Integration, creds domain.CredentialBundle) TestSpec {
	guid := in.ConfigString("restaurant_guid")
	return TestSpec{
		Method: http.MethodGet,
		URL:    in.BaseURL() + "/restaurants/v1/restaurants/" + url.PathEscape(guid),
		Headers: testHeaders(creds, map[string]string{
			"Toast-Restaurant-External-ID": guid,
		}),
	}
}

// TransformMenu раскрывает группы меню Toast в плоский список позиций
func (p *ToastProvider) TransformMenu(raw Record) (*domain.Menu, error) {
	id := raw.String("guid", "id")
	if id == "" {
		return nil, fmt.Errorf("toast menu without guid: %w", domain.ErrInvalidInput)
	}
	menu := &domain.Menu{ExternalID: id, Name: raw.String("name")}
	for _, group := range raw.List("menuGroups") {
		for _, item := range group.List("menuItems") {
			menu.Items = append(menu.Items, domain.MenuItem{
				ExternalID: item.String("guid"),
				Name:       item.String("name"),
				Category:   group.String("name"),
				Price:      item.Float("price"),
				Currency:   "USD",
				Available:  item.String("visibility") != "HIDDEN",
			})
		}
	}
	return menu, nil
}

// OperaProvider - Oracle OPERA Cloud (PMS)
type OperaProvider struct {
	BaseProvider
}

func NewOperaProvider() *OperaProvider {
	return &OperaProvider{BaseProvider{name: "opera_cloud", category: domain.CategoryPMS}}
}

func (p *OperaProvider) BuildAuthHeaders(in *domain.Integration, creds domain.CredentialBundle) map[string]string {
	headers := map[string]string{}
	if token := creds.Get("access_token", "bearer_token"); token != "" {
		headers["Authorization"] = "Bearer " + token
	}
	if key := creds.Get("app_key", "api_key"); key != "" {
		headers["x-app-key"] = key
	}
	if hotel := in.ConfigString("hotel_code"); hotel != "" {
		headers["x-hotelid"] = hotel
	}
	if len(headers) == 0 {
		return p.BaseProvider.BuildAuthHeaders(in, creds)
	}
	return headers
}

func (p *OperaProvider) TestConnection(in *domain.Integration, creds domain.CredentialBundle) TestSpec {
	hotel := in.ConfigString("hotel_code")
	return TestSpec{
		Method: http.MethodGet,
		URL:    in.BaseURL() + "/par/v1/hotels/" + url.PathEscape(hotel) + "/reservations?limit=1",
		Headers: testHeaders(creds, map[string]string{
			"x-app-key": creds.Get("app_key", "api_key"),
			"x-hotelid": hotel,
		}),
	}
}

func (p *OperaProvider) TransformReservation(raw Record) (*domain.Reservation, error) {
	id := raw.String("reservationIdList.0.id", "reservationId", "id")
	if id == "" {
		return nil, fmt.Errorf("opera reservation without id: %w", domain.ErrInvalidInput)
	}
	guest := raw.Object("reservationGuest")
	return &domain.Reservation{
		ExternalID:      id,
		ConfirmationNo:  raw.String("confirmationNumber"),
		GuestExternalID: guest.String("id", "profileId"),
		GuestName:       strings.TrimSpace(guest.String("givenName") + " " + guest.String("surname")),
		RoomNumber:      raw.String("roomStay.roomId", "roomId"),
		RoomType:        raw.String("roomStay.roomType", "roomType"),
		Status:          raw.String("reservationStatus", "status"),
		Arrival:         raw.Time("roomStay.arrivalDate", "arrivalDate"),
		Departure:       raw.Time("roomStay.departureDate", "departureDate"),
		Adults:          raw.Int("roomStay.adultCount", "adults"),
		Children:        raw.Int("roomStay.childCount", "children"),
	}, nil
}

func (p *OperaProvider) QueryParams(filter map[string]string) url.Values {
	return renameParams(p.BaseProvider.QueryParams(filter), map[string]string{
		"start_date": "arrivalStartDate",
		"end_date":   "arrivalEndDate",
	})
}

// CloudbedsProvider - Cloudbeds (PMS)
type CloudbedsProvider struct {
	BaseProvider
}

func NewCloudbedsProvider() *CloudbedsProvider {
	return &CloudbedsProvider{BaseProvider{name: "cloudbeds", category: domain.CategoryPMS}}
}

func (p *CloudbedsProvider) TestConnection(in *domain.Integration, creds domain.CredentialBundle) TestSpec {
	return TestSpec{
		Method: http.MethodGet,
		URL:    in.BaseURL() + "/api/v1.2/getHotelDetails",
		Headers: testHeaders(creds, nil),
	}
}

func (p *CloudbedsProvider) TransformReservation(raw Record) (*domain.Reservation, error) {
	id := raw.String("reservationID", "id")
	if id == "" {
		return nil, fmt.Errorf("cloudbeds reservation without reservationID: %w", domain.ErrInvalidInput)
	}
	return &domain.Reservation{
		ExternalID:      id,
		ConfirmationNo:  raw.String("thirdPartyIdentifier", "reservationID"),
		GuestExternalID: raw.String("guestID"),
		GuestName:       raw.String("guestName"),
		RoomNumber:      raw.String("roomName", "rooms.0.roomName"),
		RoomType:        raw.String("roomTypeName", "rooms.0.roomTypeName"),
		Status:          raw.String("status"),
		Arrival:         raw.Time("startDate"),
		Departure:       raw.Time("endDate"),
		Adults:          raw.Int("adults"),
		Children:        raw.Int("children"),
	}, nil
}

func (p *CloudbedsProvider) QueryParams(filter map[string]string) url.Values {
	return renameParams(p.BaseProvider.QueryParams(filter), map[string]string{
		"start_date": "checkInFrom",
		"end_date":   "checkInTo",
	})
}

// RevinateProvider - Revinate (управление гостями)
type RevinateProvider struct {
	BaseProvider
}

func NewRevinateProvider() *RevinateProvider {
	return &RevinateProvider{BaseProvider{name: "revinate", category: domain.CategoryGuestManagement}}
}

func (p *RevinateProvider) BuildAuthHeaders(in *domain.Integration, creds domain.CredentialBundle) map[string]string {
	user, key := creds.Get("username"), creds.Get("api_key")
	if user == "" || key == "" {
		return p.BaseProvider.BuildAuthHeaders(in, creds)
	}
	return map[string]string{
		"X-Revinate-Porter-Username": user,
		"X-Revinate-Porter-Key":      key,
	}
}

func (p *RevinateProvider) TestConnection(in *domain.Integration, creds domain.CredentialBundle) TestSpec {
	return TestSpec{
		Method: http.MethodGet,
		URL:    in.BaseURL() + "/hotels/" + url.PathEscape(in.ConfigString("hotel_id")),
		Headers: compactHeaders(map[string]string{
			"X-Revinate-Porter-Username": creds.Get("username"),
			"X-Revinate-Porter-Key":      creds.Get("api_key"),
		}),
	}
}

func (p *RevinateProvider) TransformGuest(raw Record) (*domain.Guest, error) {
	guest, err := p.BaseProvider.TransformGuest(raw)
	if err != nil {
		return nil, err
	}
	if guest.Language == "" {
		guest.Language = raw.String("preferredLanguage")
	}
	if !guest.VIP {
		guest.VIP = raw.String("loyaltyTier") != "" && raw.String("loyaltyTier") != "none"
	}
	return guest, nil
}

func (p *RevinateProvider) TransformOutbound(kind string, payload interface{}) (interface{}, error) {
	switch v := payload.(type) {
	case domain.Feedback:
		return map[string]interface{}{
			"guestId":  v.GuestID,
			"rating":   v.Rating,
			"comments": v.Comment,
			"category": v.Category,
			"source":   "hotel-ops",
		}, nil
	case domain.ChatMessage:
		return map[string]interface{}{
			"guestId":        v.GuestID,
			"conversationId": v.ConversationID,
			"author":         v.Sender,
			"body":           v.Text,
		}, nil
	case domain.GuestNotification:
		return map[string]interface{}{
			"guestId": v.GuestID,
			"subject": v.Title,
			"message": v.Body,
			"channel": v.Channel,
		}, nil
	}
	return p.BaseProvider.TransformOutbound(kind, payload)
}

func (p *RevinateProvider) QueryParams(filter map[string]string) url.Values {
	return renameParams(p.BaseProvider.QueryParams(filter), map[string]string{
		"guest_id": "guestId",
		"since":    "updatedSince",
		"limit":    "size",
	})
}

func renameParams(q url.Values, names map[string]string) url.Values {
	for from, to := range names {
		if v, ok := q[from]; ok {
			delete(q, from)
			q[to] = v
		}
	}
	return q
}

// testHeaders - bearer из секретов (если есть) плюс непустые заголовки провайдера
func testHeaders(creds domain.CredentialBundle, extra map[string]string) map[string]string {
	headers := compactHeaders(extra)
	if token := creds.Get("access_token", "bearer_token"); token != "" {
		headers["Authorization"] = "Bearer " + token
	}
	return headers
}

func compactHeaders(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		if v != "" {
			out[k] = v
		}
	}
	return out
}
