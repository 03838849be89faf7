package services

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/anmilktea/storefront-api/internal/models"
	"github.com/anmilktea/storefront-api/internal/queue"
	"github.com/anmilktea/storefront-api/internal/sanitize"
	"github.com/anmilktea/storefront-api/internal/security"
	"github.com/anmilktea/storefront-api/internal/views"
	"github.com/anmilktea/storefront-api/pkg"
	"github.com/anmilktea/storefront-api/pkg/utils"
)

// priceTolerance absorbs float rounding from the client; anything beyond it
// is treated as tampering.
const priceTolerance = 0.01

// OrderNotifier posts the order announcement to the shop group.
type OrderNotifier interface {
	NotifyOrder(order models.Order, posSynced bool, posErr string)
}

// OrderResult is what the handler returns to the client.
type OrderResult struct {
	OrderNo   string `json:"orderNo"`
	PosSynced bool   `json:"posSynced"`
	Queued    bool   `json:"queued"`
}

// OrderService turns a raw order request into a sanitized order, pushes it to
// the POS and parks it in the retry queue when the POS is down.
type OrderService struct {
	pos      posSubmitter
	queue    *queue.RetryQueue
	txLog    *security.TransactionLog
	healer   *security.AutoHealer
	notifier OrderNotifier
	logger   *zap.Logger

	orderNoPrefix string
	newOrderNo    func() string
}

type posSubmitter interface {
	SubmitOrder(ctx context.Context, order models.Order) (string, error)
}

func NewOrderService(pos posSubmitter, q *queue.RetryQueue, txLog *security.TransactionLog,
	healer *security.AutoHealer, notifier OrderNotifier, orderNoPrefix string, logger *zap.Logger) *OrderService {
	s := &OrderService{
		pos:           pos,
		queue:         q,
		txLog:         txLog,
		healer:        healer,
		notifier:      notifier,
		logger:        logger,
		orderNoPrefix: orderNoPrefix,
	}
	s.newOrderNo = s.defaultOrderNo
	return s
}

func (s *OrderService) defaultOrderNo() string {
	return fmt.Sprintf("%s-%d", s.orderNoPrefix, time.Now().UnixMilli())
}

// Create sanitizes and validates the request, revalidates pricing server-side
// and submits to the POS. A POS failure queues the order for retry instead of
// failing the request; the customer's order is accepted either way.
func (s *OrderService) Create(ctx context.Context, req views.CreateOrderRequest, clientIP string) (OrderResult, error) {
	// Body fields are scanned before sanitization strips the evidence. The
	// gate already covered path and query values.
	if err := s.scanFields(req, clientIP); err != nil {
		return OrderResult{}, err
	}

	order, err := s.buildOrder(req)
	if err != nil {
		return OrderResult{}, err
	}
	order.OrderNo = s.newOrderNo()
	s.logger.Info("order received",
		zap.String("order_no", order.OrderNo),
		zap.String("order_type", string(order.OrderType)),
		zap.String("phone", utils.MaskPhone(order.Customer.Phone)),
		zap.String("address", utils.MaskAddress(order.Customer.Address)),
		zap.Float64("total", order.Total))

	posID, posErr := s.pos.SubmitOrder(ctx, order)
	result := OrderResult{OrderNo: order.OrderNo, PosSynced: posErr == nil}

	txStatus := security.TxSuccess
	txErr := ""
	if posErr != nil {
		s.logger.Warn("pos submit failed, queueing order",
			zap.String("order_no", order.OrderNo), zap.Error(posErr))
		s.queue.Enqueue(order, posErr.Error())
		result.Queued = true
		txStatus = security.TxFailed
		txErr = posErr.Error()
	} else {
		s.logger.Info("order synced to pos",
			zap.String("order_no", order.OrderNo), zap.String("pos_id", posID))
	}

	s.txLog.Record(security.Transaction{
		Type:     security.TxOrder,
		Status:   txStatus,
		Amount:   order.Total,
		Currency: "VND",
		OrderID:  order.OrderNo,
		ClientIP: clientIP,
		Error:    txErr,
	})

	if s.notifier != nil {
		errText := ""
		if posErr != nil {
			errText = posErr.Error()
		}
		go s.notifier.NotifyOrder(order, posErr == nil, errText)
	}

	return result, nil
}

// Track reports the retry-queue status of an order. Orders that synced on
// first submit never enter the queue and report not-found here.
func (s *OrderService) Track(orderNo string) (models.PendingOrder, bool) {
	return s.queue.Status(orderNo)
}

// scanFields runs attack detection over every free-text field of the
// request. A match is a critical incident: the IP gets the pattern-family
// block and the request fails with a generic client error.
func (s *OrderService) scanFields(req views.CreateOrderRequest, clientIP string) error {
	fields := map[string]string{
		"customer.name":    req.Customer.Name,
		"customer.address": req.Customer.Address,
		"customer.note":    req.Customer.Note,
	}
	for i, it := range req.Items {
		fields[fmt.Sprintf("items[%d].name", i)] = it.Name
		fields[fmt.Sprintf("items[%d].note", i)] = it.Note
	}

	for field, value := range fields {
		family, ok := security.DetectAttack(value)
		if !ok {
			continue
		}
		if s.healer != nil {
			s.healer.RecordIncident(security.IncidentForFamily(family), security.SeverityCritical, clientIP,
				map[string]any{
					"family": string(family),
					"field":  field,
					"value":  value,
				})
		}
		return pkg.NewAppError(pkg.ErrMaliciousInputCode, "invalid request", nil)
	}
	return nil
}

func (s *OrderService) buildOrder(req views.CreateOrderRequest) (models.Order, error) {
	orderType := pkg.OrderType(req.OrderType)

	customer := models.Customer{
		Name:      sanitize.String(req.Customer.Name),
		Phone:     sanitize.Phone(req.Customer.Phone),
		Address:   sanitize.String(req.Customer.Address),
		Note:      sanitize.Note(req.Customer.Note),
		Latitude:  req.Customer.Latitude,
		Longitude: req.Customer.Longitude,
	}
	if customer.Name == "" {
		return models.Order{}, pkg.NewAppError(pkg.ErrInvalidInputCode, "customer name is required", nil)
	}
	if !sanitize.IsValidVietnamesePhone(customer.Phone) {
		return models.Order{}, pkg.NewAppError(pkg.ErrInvalidInputCode, "invalid phone number", nil)
	}
	if orderType == pkg.OrderTypeDelivery && strings.TrimSpace(customer.Address) == "" {
		return models.Order{}, pkg.NewAppError(pkg.ErrInvalidInputCode, "delivery address is required", nil)
	}

	items := make([]models.OrderItem, 0, len(req.Items))
	var subtotal float64
	for i, it := range req.Items {
		qty := sanitize.Quantity(it.Quantity)
		item := models.OrderItem{
			ProductID: sanitize.String(it.ProductID),
			PosID:     sanitize.String(it.PosID),
			PosCode:   sanitize.String(it.PosCode),
			PosUnitID: sanitize.String(it.PosUnitID),
			ItemType:  it.ItemType,
			UnitName:  sanitize.String(it.UnitName),
			Name:      sanitize.String(it.Name),
			Quantity:  qty,
			Price:     sanitize.Amount(it.Price),
			Note:      sanitize.ItemNote(it.Note),
		}
		if item.Name == "" {
			return models.Order{}, pkg.NewAppError(pkg.ErrInvalidInputCode,
				fmt.Sprintf("item %d has no name", i+1), nil)
		}
		var optionsTotal float64
		for _, opt := range it.Options {
			price := sanitize.Amount(opt.Price)
			optionsTotal += price
			item.Options = append(item.Options, models.ItemOption{
				OptionID:   sanitize.String(opt.OptionID),
				OptionName: sanitize.String(opt.OptionName),
				ChoiceID:   sanitize.String(opt.ChoiceID),
				ChoiceName: sanitize.String(opt.ChoiceName),
				Price:      price,
			})
		}
		// The line amount is recomputed from price, options and quantity;
		// the client's amount is never trusted.
		item.Amount = (item.Price + optionsTotal) * float64(item.Quantity)
		subtotal += item.Amount
		items = append(items, item)
	}

	// Pricing is recomputed from the line amounts; the client's numbers are
	// only accepted when they agree.
	deliveryFee := sanitize.Amount(req.DeliveryFee)
	if orderType == pkg.OrderTypePickup {
		deliveryFee = 0
	}
	total := subtotal + deliveryFee
	if math.Abs(req.Total-total) > priceTolerance {
		return models.Order{}, pkg.NewAppError(pkg.ErrInvalidInputCode,
			"order total does not match item amounts", nil)
	}

	return models.Order{
		OrderType:   orderType,
		Customer:    customer,
		Items:       items,
		Subtotal:    subtotal,
		DeliveryFee: deliveryFee,
		Total:       total,
	}, nil
}
