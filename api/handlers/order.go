package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/GhasemiTaheri/aban-exchange/api/responses"
	"github.com/GhasemiTaheri/aban-exchange/internal/settlement"
	apierrors "github.com/GhasemiTaheri/aban-exchange/pkg/errors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReceiptMessage acknowledges receipt of an order. Acceptance is reported
// later through notifications.
const ReceiptMessage = "we received your order successfully. we will notify you by email!"

// UserIDKey is the gin context key the auth middleware stores the caller under
const UserIDKey = "userID"

// OrderSubmitter enqueues order requests
type OrderSubmitter interface {
	Submit(ctx context.Context, ownerID uint64, amount, price int64) (uuid.UUID, error)
}

// CreateOrderRequest is the body of POST /order/create
type CreateOrderRequest struct {
	Amount int64 `json:"amount" validate:"required,gte=1"`
	Price  int64 `json:"price" validate:"required,gte=1"`
}

// OrderHandler serves the order intake endpoint
type OrderHandler struct {
	intake    OrderSubmitter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewOrderHandler creates an order handler
func NewOrderHandler(intake OrderSubmitter, validate *validator.Validate, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{intake: intake, validator: validate, logger: logger}
}

// CreateOrder validates the body and enqueues it for the authenticated user
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	ownerID := c.GetUint64(UserIDKey)
	if ownerID == 0 {
		responses.Unauthorized(c, "authentication required")
		return
	}

	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.BadRequest(c, "request body must be a JSON object with integer amount and price")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		responses.BadRequest(c, "request validation failed", validationErrors(err)...)
		return
	}

	requestID, err := h.intake.Submit(c.Request.Context(), ownerID, req.Amount, req.Price)
	switch {
	case err == nil:
	case settlement.ErrQueueUnavailable.Has(err):
		h.logger.Error("Order intake unavailable", zap.Uint64("owner_id", ownerID), zap.Error(err))
		responses.ServiceUnavailable(c, "order intake is temporarily unavailable, please retry")
		return
	case settlement.ErrMalformedRecord.Has(err):
		responses.BadRequest(c, "request validation failed")
		return
	default:
		h.logger.Error("Order intake failed", zap.Uint64("owner_id", ownerID), zap.Error(err))
		responses.InternalServerError(c, "failed to receive order")
		return
	}

	h.logger.Info("Order received",
		zap.String("request_id", requestID.String()),
		zap.Uint64("owner_id", ownerID))
	responses.Created(c, ReceiptMessage)
}

func validationErrors(err error) []apierrors.ValidationError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make([]apierrors.ValidationError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, apierrors.ValidationError{
			Field:   jsonField(fe.Field()),
			Value:   fe.Value(),
			Message: fmt.Sprintf("must satisfy %s%s", fe.Tag(), paramSuffix(fe.Param())),
			Code:    fe.Tag(),
		})
	}
	return out
}

func jsonField(name string) string {
	switch name {
	case "Amount":
		return "amount"
	case "Price":
		return "price"
	}
	return name
}

func paramSuffix(param string) string {
	if param == "" {
		return ""
	}
	return "=" + param
}
