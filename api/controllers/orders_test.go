package controllers

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sokoplace/sokoplace-backend/internal/orders"
	"github.com/sokoplace/sokoplace-backend/internal/stream"
	"github.com/sokoplace/sokoplace-backend/pkg/db/models"
	"github.com/sokoplace/sokoplace-backend/pkg/enums"
	"github.com/sokoplace/sokoplace-backend/pkg/logger"
)

type stubOrdersService struct {
	order  *models.Order
	getErr error
}

func (s *stubOrdersService) Create(ctx context.Context, input orders.CreateOrderInput) (*models.Order, error) {
	return s.order, nil
}

func (s *stubOrdersService) Get(ctx context.Context, actor orders.Actor, orderID uuid.UUID) (*models.Order, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.order, nil
}

func (s *stubOrdersService) List(ctx context.Context, params orders.ListParams) (*orders.ListResult, error) {
	return &orders.ListResult{}, nil
}

func (s *stubOrdersService) SellerUpdateStatus(ctx context.Context, actor orders.Actor, orderID uuid.UUID, target enums.OrderStatus) error {
	return nil
}

func (s *stubOrdersService) OpenDispute(ctx context.Context, actor orders.Actor, orderID uuid.UUID, reason string) error {
	return nil
}

type stubStreamService struct {
	events []stream.Event
}

func (s *stubStreamService) Run(ctx context.Context, orderID uuid.UUID, send stream.SendFunc) error {
	for _, event := range s.events {
		if err := send(event); err != nil {
			return err
		}
	}
	return nil
}

func streamRequest(orderID uuid.UUID) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/"+orderID.String()+"/stream", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("orderId", orderID.String())
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestStreamOrderFramesCarryTypeInData(t *testing.T) {
	orderID := uuid.New()
	ordersSvc := &stubOrdersService{order: &models.Order{ID: orderID}}
	streamSvc := &stubStreamService{events: []stream.Event{
		{Name: stream.EventConnected, Data: stream.Snapshot{OrderID: orderID, OrderStatus: enums.OrderStatusPaid}},
		{Name: stream.EventOrderStatus, Data: stream.OrderStatusPayload{OrderID: orderID, Status: enums.OrderStatusPreparing}},
	}}
	handler := StreamOrder(ordersSvc, streamSvc, logger.New(logger.Options{ServiceName: "test"}))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, streamRequest(orderID))

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "text/event-stream", resp.Header().Get("Content-Type"))

	body := resp.Body.String()
	assert.Contains(t, body, "event: "+stream.EventConnected)
	assert.Contains(t, body, "event: "+stream.EventOrderStatus)

	// A client reading only data: lines can still tell event types apart.
	var dataTypes []string
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var frame struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &frame))
		require.NotEmpty(t, frame.Data)
		dataTypes = append(dataTypes, frame.Type)
	}
	assert.Equal(t, []string{stream.EventConnected, stream.EventOrderStatus}, dataTypes)
}

func TestStreamOrderRequiresReadableOrder(t *testing.T) {
	ordersSvc := &stubOrdersService{getErr: context.DeadlineExceeded}
	handler := StreamOrder(ordersSvc, &stubStreamService{}, logger.New(logger.Options{ServiceName: "test"}))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, streamRequest(uuid.New()))

	assert.NotEqual(t, http.StatusOK, resp.Code)
	assert.NotContains(t, resp.Header().Get("Content-Type"), "text/event-stream")
}
