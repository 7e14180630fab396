package handler

import (
	"errors"
	"reflect"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sakashimaa/banobox-orders/internal/repository"
	"github.com/sakashimaa/banobox-orders/internal/service"
	"github.com/sakashimaa/banobox-orders/pkg/mylogger"
	"github.com/sakashimaa/banobox-orders/pkg/utils"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	msgEmptyCart    = "Порожній кошик"
	msgOrdersFetch  = "Orders fetch error"
	msgNotFound     = "Not found"
	msgInvalidID    = "Id is invalid"
	msgNotLoggedIn  = "Not logged in"
	msgInternal     = "internal error"
	msgParsingError = "error parsing body"
)

type OrderHandler struct {
	checkout service.CheckoutService
	history  service.HistoryService
	validate *validator.Validate
	logger   *zap.Logger
}

func NewOrderHandler(checkout service.CheckoutService, history service.HistoryService, logger *zap.Logger) *OrderHandler {
	v := utils.NewValidator()
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		d, ok := field.Interface().(decimal.Decimal)
		if !ok {
			return nil
		}
		return d.InexactFloat64()
	}, decimal.Decimal{})

	return &OrderHandler{
		checkout: checkout,
		history:  history,
		validate: v,
		logger:   logger,
	}
}

func (h *OrderHandler) PlaceOrder(c *fiber.Ctx) error {
	ctx := c.UserContext()

	userID, ok := currentUser(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": msgNotLoggedIn})
	}

	input := new(PlaceOrderInput)
	if err := c.BodyParser(input); err != nil {
		mylogger.Warn(ctx, h.logger, "failed to parse checkout body", zap.Error(err))

		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": msgParsingError,
		})
	}

	if len(input.Cart) == 0 {
		return h.fail(c, service.ErrEmptyCart, "")
	}

	if err := h.validate.Struct(input); err != nil {
		mylogger.Warn(ctx, h.logger, "checkout validation failed", zap.Error(err))

		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": utils.FormatValidationError(err),
		})
	}

	orderID, err := h.checkout.PlaceOrder(ctx, input.toDomain(userID))
	if err != nil {
		return h.fail(c, err, "")
	}

	mylogger.Info(
		ctx,
		h.logger,
		"order placed",
		zap.Int64("user_id", userID),
		zap.Int64("order_id", orderID),
		zap.Int("lines", len(input.Cart)),
	)

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"orderId": orderID,
	})
}

func (h *OrderHandler) ListMyOrders(c *fiber.Ctx) error {
	userID, ok := currentUser(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": msgNotLoggedIn})
	}

	views, err := h.history.ListOrders(c.UserContext(), userID)
	if err != nil {
		return h.fail(c, err, msgOrdersFetch)
	}

	orders := make([]OrderResponse, 0, len(views))
	for _, v := range views {
		orders = append(orders, toOrderResponse(v))
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"orders": orders,
	})
}

func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	userID, ok := currentUser(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": msgNotLoggedIn})
	}

	orderID, err := h.orderID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msgInvalidID})
	}

	view, err := h.history.GetOrder(c.UserContext(), userID, orderID)
	if err != nil {
		return h.fail(c, err, "")
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"order": toOrderResponse(*view),
	})
}

func (h *OrderHandler) GetOrderItems(c *fiber.Ctx) error {
	userID, ok := currentUser(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": msgNotLoggedIn})
	}

	orderID, err := h.orderID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msgInvalidID})
	}

	lines, err := h.history.GetOrderItems(c.UserContext(), userID, orderID)
	if err != nil {
		return h.fail(c, err, "")
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"items": toItemResponses(lines),
	})
}

func (h *OrderHandler) orderID(c *fiber.Ctx) (int64, error) {
	idStr := c.Params("id")

	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		mylogger.Warn(c.UserContext(), h.logger, "invalid order id", zap.String("id", idStr))
		return 0, errors.New("invalid order id")
	}

	return id, nil
}

func (h *OrderHandler) fail(c *fiber.Ctx, err error, storageMsg string) error {
	code, msg := mapErrorCode(err)
	if storageMsg != "" && code == fiber.StatusInternalServerError {
		msg = storageMsg
	}

	fields := []zap.Field{
		zap.String("path", c.Path()),
		zap.Int("http_code", code),
		zap.Error(err),
	}
	if code >= fiber.StatusInternalServerError {
		mylogger.Error(c.UserContext(), h.logger, "request failed", fields...)
	} else {
		mylogger.Warn(c.UserContext(), h.logger, "request rejected", fields...)
	}

	return c.Status(code).JSON(fiber.Map{"error": msg})
}

// mapErrorCode converts service errors to an HTTP status and message.
func mapErrorCode(err error) (int, string) {
	var storageErr *service.StorageError

	switch {
	case errors.Is(err, service.ErrEmptyCart):
		return fiber.StatusBadRequest, msgEmptyCart
	case errors.Is(err, repository.ErrOrderNotFound):
		return fiber.StatusNotFound, msgNotFound
	case errors.As(err, &storageErr):
		return fiber.StatusInternalServerError, storageErr.Error()
	default:
		return fiber.StatusInternalServerError, msgInternal
	}
}

func currentUser(c *fiber.Ctx) (int64, bool) {
	userID, ok := c.Locals("userId").(int64)
	return userID, ok && userID != 0
}
