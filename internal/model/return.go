package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ReturnMethodRefund is the only supported return method: a bank refund.
const ReturnMethodRefund = "refund"

// ReturnRequest is a customer's request to return a delivered order.
// AssetsRefunded is set once, in the same transaction that restocks
// inventory and reverses points and coupon usage.
type ReturnRequest struct {
	ID                 uuid.UUID    `json:"id" db:"id"`
	OrderID            uuid.UUID    `json:"orderId" db:"order_id"`
	UserID             uuid.UUID    `json:"userId" db:"user_id"`
	Reason             string       `json:"reason" db:"reason"`
	Status             ReturnStatus `json:"status" db:"status"`
	ImagesJSON         *string      `json:"-" db:"images_json"`
	ReturnMethod       string       `json:"returnMethod" db:"return_method"`
	BankName           string       `json:"bankName" db:"bank_name"`
	BankAccountNumber  string       `json:"bankAccountNumber" db:"bank_account_number"`
	BankAccountHolder  string       `json:"bankAccountHolder" db:"bank_account_holder"`
	AdminNote          *string      `json:"adminNote,omitempty" db:"admin_note"`
	ItemConditionsJSON *string      `json:"-" db:"item_conditions_json"`
	AssetsRefunded     bool         `json:"assetsRefunded" db:"assets_refunded"`
	ApprovedBy         *uuid.UUID   `json:"approvedBy,omitempty" db:"approved_by"`
	ApprovedAt         *time.Time   `json:"approvedAt,omitempty" db:"approved_at"`
	CreatedAt          time.Time    `json:"createdAt" db:"created_at"`
	UpdatedAt          time.Time    `json:"updatedAt" db:"updated_at"`
}

// ItemCondition is the good/damaged split of one returned variant.
type ItemCondition struct {
	VariantID       uuid.UUID `json:"variantId"`
	GoodQuantity    int       `json:"goodQuantity"`
	DamagedQuantity int       `json:"damagedQuantity"`
}

// Total is the number of units returned for the variant.
func (c ItemCondition) Total() int {
	return c.GoodQuantity + c.DamagedQuantity
}

// EncodeConditions serialises a condition record for storage.
func EncodeConditions(conditions []ItemCondition) (string, error) {
	data, err := json.Marshal(conditions)
	if err != nil {
		return "", fmt.Errorf("failed to encode item conditions: %w", err)
	}
	return string(data), nil
}

// Conditions decodes the stored condition record keyed by variant.
// Later entries for the same variant win. A missing record yields nil.
func (r *ReturnRequest) Conditions() (map[uuid.UUID]ItemCondition, error) {
	if r.ItemConditionsJSON == nil || *r.ItemConditionsJSON == "" {
		return nil, nil
	}

	var conditions []ItemCondition
	if err := json.Unmarshal([]byte(*r.ItemConditionsJSON), &conditions); err != nil {
		return nil, fmt.Errorf("failed to decode item conditions: %w", err)
	}

	byVariant := make(map[uuid.UUID]ItemCondition, len(conditions))
	for _, c := range conditions {
		byVariant[c.VariantID] = c
	}
	return byVariant, nil
}

// Images decodes the stored image URL list.
func (r *ReturnRequest) Images() []string {
	if r.ImagesJSON == nil || *r.ImagesJSON == "" {
		return []string{}
	}
	var images []string
	if err := json.Unmarshal([]byte(*r.ImagesJSON), &images); err != nil {
		return []string{}
	}
	return images
}

// SetImages stores the image URL list; an empty list clears it.
func (r *ReturnRequest) SetImages(images []string) error {
	if len(images) == 0 {
		r.ImagesJSON = nil
		return nil
	}
	data, err := json.Marshal(images)
	if err != nil {
		return fmt.Errorf("failed to encode return images: %w", err)
	}
	encoded := string(data)
	r.ImagesJSON = &encoded
	return nil
}

// ReturnItemView is one order line as presented on a return request.
type ReturnItemView struct {
	VariantID       *uuid.UUID `json:"variantId,omitempty"`
	ProductName     string     `json:"productName"`
	VariantSKU      string     `json:"variantSku"`
	Size            string     `json:"size"`
	Color           string     `json:"color"`
	Quantity        int        `json:"quantity"`
	GoodQuantity    int        `json:"goodQuantity"`
	DamagedQuantity int        `json:"damagedQuantity"`
}

// ReturnView is a return request with its order lines and condition split.
type ReturnView struct {
	ReturnRequest
	OrderNumber string           `json:"orderNumber"`
	Images      []string         `json:"images"`
	Items       []ReturnItemView `json:"items"`
}

// BuildReturnView assembles the read model for a return request. Lines
// without a stored condition are presented as entirely good. A variant's
// condition is spread over its lines in order, good units first, never
// exceeding a line's quantity.
func BuildReturnView(req *ReturnRequest, order *Order) (*ReturnView, error) {
	conditions, err := req.Conditions()
	if err != nil {
		return nil, err
	}

	items := make([]ReturnItemView, 0, len(order.Details))
	for _, d := range order.Details {
		item := ReturnItemView{
			VariantID:    d.VariantID,
			ProductName:  d.ProductName,
			VariantSKU:   d.VariantSKU,
			Size:         d.Size,
			Color:        d.Color,
			Quantity:     d.Quantity,
			GoodQuantity: d.Quantity,
		}
		if d.VariantID != nil {
			if c, ok := conditions[*d.VariantID]; ok {
				item.GoodQuantity = min(c.GoodQuantity, d.Quantity)
				item.DamagedQuantity = min(c.DamagedQuantity, d.Quantity-item.GoodQuantity)
				c.GoodQuantity -= item.GoodQuantity
				c.DamagedQuantity -= item.DamagedQuantity
				conditions[*d.VariantID] = c
			}
		}
		items = append(items, item)
	}

	return &ReturnView{
		ReturnRequest: *req,
		OrderNumber:   order.OrderNumber,
		Images:        req.Images(),
		Items:         items,
	}, nil
}

// ReturnPage is a page of return requests.
type ReturnPage struct {
	Items []ReturnView `json:"items"`
	Total int          `json:"total"`
	Page  int          `json:"page"`
	Size  int          `json:"size"`
}
