package coupon

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"order-settlement/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// catalogEntry is one line of a coupon catalog file.
type catalogEntry struct {
	Code              string              `json:"code"`
	DiscountType      string              `json:"discountType"`
	Value             decimal.Decimal     `json:"value"`
	MaxDiscountAmount decimal.NullDecimal `json:"maxDiscountAmount"`
	MinOrderAmount    decimal.NullDecimal `json:"minOrderAmount"`
	MaxUses           *int                `json:"maxUses"`
	StartsAt          *time.Time          `json:"startsAt"`
	ExpiresAt         *time.Time          `json:"expiresAt"`
	Active            *bool               `json:"active"`
}

// toCoupon validates the entry and converts it to a coupon.
func (e catalogEntry) toCoupon() (model.Coupon, error) {
	code := strings.TrimSpace(e.Code)
	if code == "" {
		return model.Coupon{}, fmt.Errorf("coupon code is empty")
	}

	discountType := model.DiscountType(strings.ToLower(e.DiscountType))
	if discountType != model.DiscountPercent && discountType != model.DiscountFixed {
		return model.Coupon{}, fmt.Errorf("coupon %s: unknown discount type %q", code, e.DiscountType)
	}
	if e.Value.IsNegative() {
		return model.Coupon{}, fmt.Errorf("coupon %s: negative value", code)
	}
	if discountType == model.DiscountPercent && e.Value.GreaterThan(decimal.NewFromInt(100)) {
		return model.Coupon{}, fmt.Errorf("coupon %s: percent value above 100", code)
	}

	active := true
	if e.Active != nil {
		active = *e.Active
	}

	return model.Coupon{
		ID:                uuid.New(),
		Code:              strings.ToUpper(code),
		DiscountType:      discountType,
		Value:             e.Value,
		MaxDiscountAmount: e.MaxDiscountAmount,
		MinOrderAmount:    e.MinOrderAmount,
		MaxUses:           e.MaxUses,
		StartsAt:          e.StartsAt,
		ExpiresAt:         e.ExpiresAt,
		IsActive:          active,
	}, nil
}

// mapCatalog implements Catalog using a map keyed by upper-case code.
type mapCatalog struct {
	coupons map[string]model.Coupon
}

// NewMapCatalog creates a new map-based coupon catalog.
func NewMapCatalog(capacity int) Catalog {
	return &mapCatalog{
		coupons: make(map[string]model.Coupon, capacity),
	}
}

// Get returns the coupon for a code, ignoring case.
func (c *mapCatalog) Get(code string) (model.Coupon, bool) {
	coupon, ok := c.coupons[strings.ToUpper(strings.TrimSpace(code))]
	return coupon, ok
}

// Coupons returns every coupon sorted by code.
func (c *mapCatalog) Coupons() []model.Coupon {
	out := make([]model.Coupon, 0, len(c.coupons))
	for _, coupon := range c.coupons {
		out = append(out, coupon)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Size returns the number of coupons in the catalog.
func (c *mapCatalog) Size() int {
	return len(c.coupons)
}

// Add adds or replaces a coupon.
func (c *mapCatalog) Add(coupon model.Coupon) {
	c.coupons[strings.ToUpper(coupon.Code)] = coupon
}

// readCatalog parses JSON lines from r. Blank lines are skipped and the
// last definition of a code wins.
func readCatalog(ctx context.Context, r io.Reader, source string) (*mapCatalog, error) {
	catalog := NewMapCatalog(1024).(*mapCatalog)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if lineNo%10_000 == 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var entry catalogEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return nil, fmt.Errorf("%s line %d: invalid coupon record: %w", source, lineNo, err)
		}
		coupon, err := entry.toCoupon()
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", source, lineNo, err)
		}
		catalog.Add(coupon)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading coupon catalog %s: %w", source, err)
	}

	return catalog, nil
}

var gzipMagic = []byte{0x1f, 0x8b}

// decodeCatalog reads a catalog stream that is either gzipped or plain JSON
// lines. The format is picked from the leading bytes, not the file name.
func decodeCatalog(ctx context.Context, r io.Reader, source string) (*mapCatalog, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(len(gzipMagic))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read coupon catalog %s: %w", source, err)
	}
	if !bytes.Equal(head, gzipMagic) {
		return readCatalog(ctx, br, source)
	}

	gz, err := gzip.NewReader(br)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader for %s: %w", source, err)
	}
	defer gz.Close()

	return readCatalog(ctx, gz, source)
}
