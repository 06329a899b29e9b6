package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stockbookhq/stockbook-backend/api/middleware"
	"github.com/stockbookhq/stockbook-backend/internal/properties"
	pkgerrors "github.com/stockbookhq/stockbook-backend/pkg/errors"
	"github.com/stockbookhq/stockbook-backend/pkg/pagination"
)

type stubPropertyService struct {
	dto  properties.PropertyDTO
	page properties.PropertyPageDTO
	err  error
}

func (s stubPropertyService) Create(ctx context.Context, userID uuid.UUID, input properties.CreatePropertyInput) (properties.PropertyDTO, error) {
	return s.dto, s.err
}

func (s stubPropertyService) Get(ctx context.Context, userID, propertyID uuid.UUID) (properties.PropertyDTO, error) {
	return s.dto, s.err
}

func (s stubPropertyService) List(ctx context.Context, userID uuid.UUID, params pagination.Params) (properties.PropertyPageDTO, error) {
	return s.page, s.err
}

func (s stubPropertyService) Remove(ctx context.Context, userID, propertyID uuid.UUID) (properties.PropertyDTO, error) {
	return s.dto, s.err
}

func authedRequest(method, target string, body []byte) *http.Request {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	return req.WithContext(middleware.WithUserID(req.Context(), uuid.NewString()))
}

func TestPropertyCreateReturns201(t *testing.T) {
	dto := properties.PropertyDTO{ID: uuid.New(), Name: "Widgets", Amount: decimal.NewFromInt(10)}
	handler := PropertyCreate(stubPropertyService{dto: dto}, nil)

	payload, _ := json.Marshal(map[string]any{"name": "Widgets"})
	req := authedRequest(http.MethodPost, "/api/v1/properties", payload)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", rec.Code)
	}
	var envelope struct {
		Data properties.PropertyDTO `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.ID != dto.ID {
		t.Fatalf("expected id %s got %s", dto.ID, envelope.Data.ID)
	}
}

func TestPropertyCreateDuplicateNameConflicts(t *testing.T) {
	svc := stubPropertyService{err: pkgerrors.New(pkgerrors.CodeConflict, "a live property with this name already exists")}
	handler := PropertyCreate(svc, nil)

	payload, _ := json.Marshal(map[string]any{"name": "Widgets"})
	req := authedRequest(http.MethodPost, "/api/v1/properties", payload)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", rec.Code)
	}
}

func TestPropertyCreateRejectsOutOfRangeFields(t *testing.T) {
	handler := PropertyCreate(stubPropertyService{}, nil)

	cases := map[string]map[string]any{
		"name too long":         {"name": strings.Repeat("x", 51)},
		"description too short": {"name": "Widgets", "description": "a"},
		"description too long":  {"name": "Widgets", "description": strings.Repeat("d", 101)},
	}
	for label, body := range cases {
		payload, _ := json.Marshal(body)
		req := authedRequest(http.MethodPost, "/api/v1/properties", payload)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400 got %d", label, rec.Code)
		}
	}
}

func TestPropertyCreateMissingContext(t *testing.T) {
	handler := PropertyCreate(stubPropertyService{}, nil)

	payload, _ := json.Marshal(map[string]any{"name": "Widgets"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/properties", bytes.NewReader(payload))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}

func TestPropertyRemoveReturnsDeletedProperty(t *testing.T) {
	dto := properties.PropertyDTO{ID: uuid.New(), Name: "Widgets", IsDeleted: true}
	handler := PropertyRemove(stubPropertyService{dto: dto}, nil)

	router := chi.NewRouter()
	router.Delete("/api/v1/properties/{propertyId}", handler)

	req := authedRequest(http.MethodDelete, "/api/v1/properties/"+dto.ID.String(), nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202 got %d", rec.Code)
	}
	var envelope struct {
		Data properties.PropertyDTO `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.ID != dto.ID {
		t.Fatalf("expected id %s got %s", dto.ID, envelope.Data.ID)
	}
	if !envelope.Data.IsDeleted {
		t.Fatalf("expected is_deleted true in response body")
	}
}

func TestPropertyRemoveUnknownIsNotFound(t *testing.T) {
	svc := stubPropertyService{err: pkgerrors.New(pkgerrors.CodeNotFound, "property not found")}
	handler := PropertyRemove(svc, nil)

	router := chi.NewRouter()
	router.Delete("/api/v1/properties/{propertyId}", handler)

	req := authedRequest(http.MethodDelete, "/api/v1/properties/"+uuid.NewString(), nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rec.Code)
	}
}

func TestPropertyGetRejectsMalformedID(t *testing.T) {
	handler := PropertyGet(stubPropertyService{}, nil)

	router := chi.NewRouter()
	router.Get("/api/v1/properties/{propertyId}", handler)

	req := authedRequest(http.MethodGet, "/api/v1/properties/not-a-uuid", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestPropertyListForwardsPage(t *testing.T) {
	page := properties.PropertyPageDTO{
		Items: []properties.PropertyDTO{{ID: uuid.New(), Name: "Widgets"}},
		Total: 42,
		Skip:  10,
		Limit: 20,
	}
	handler := PropertyList(stubPropertyService{page: page}, nil)

	req := authedRequest(http.MethodGet, "/api/v1/properties?skip=10&limit=20", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	var envelope struct {
		Data properties.PropertyPageDTO `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.Total != 42 || len(envelope.Data.Items) != 1 {
		t.Fatalf("unexpected page %+v", envelope.Data)
	}
}
