//go:build ignore

package main

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

// sampleCoupon mirrors one line of the coupon catalog format.
type sampleCoupon struct {
	Code              string     `json:"code"`
	DiscountType      string     `json:"discountType"`
	Value             string     `json:"value"`
	MaxDiscountAmount *string    `json:"maxDiscountAmount,omitempty"`
	MinOrderAmount    *string    `json:"minOrderAmount,omitempty"`
	MaxUses           *int       `json:"maxUses,omitempty"`
	StartsAt          *time.Time `json:"startsAt,omitempty"`
	ExpiresAt         *time.Time `json:"expiresAt,omitempty"`
	Active            *bool      `json:"active,omitempty"`
}

// generateSampleCoupons writes a gzipped JSON-lines coupon catalog for local runs.
// Usage: go run scripts/generate_sample_coupons.go [output path]
func main() {
	outPath := "data/coupons/catalog.jsonl.gz"
	if len(os.Args) > 1 {
		outPath = os.Args[1]
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		log.Fatalf("Failed to create directory: %v", err)
	}

	now := time.Now().UTC().Truncate(24 * time.Hour)
	nextMonth := now.AddDate(0, 1, 0)
	lastWeek := now.AddDate(0, 0, -7)
	inactive := false
	hundred := 100

	coupons := []sampleCoupon{
		{Code: "SPRING10", DiscountType: "percent", Value: "10"},
		{Code: "WELCOME50K", DiscountType: "fixed", Value: "50000", MinOrderAmount: ptr("300000")},
		{Code: "VIP30", DiscountType: "percent", Value: "30", MaxDiscountAmount: ptr("200000"), MaxUses: &hundred},
		{Code: "FLASHSALE", DiscountType: "percent", Value: "20", StartsAt: &now, ExpiresAt: &nextMonth},
		{Code: "EXPIRED15", DiscountType: "percent", Value: "15", ExpiresAt: &lastWeek},
		{Code: "RETIRED", DiscountType: "fixed", Value: "20000", Active: &inactive},
	}

	if err := writeCatalog(outPath, coupons); err != nil {
		log.Fatalf("Failed to create %s: %v", outPath, err)
	}

	fmt.Printf("Created %s with %d coupons\n", outPath, len(coupons))
	fmt.Println("\nUsable coupons:")
	fmt.Println("  - SPRING10   (10% off)")
	fmt.Println("  - WELCOME50K (50,000 off orders from 300,000)")
	fmt.Println("  - VIP30      (30% off capped at 200,000, 100 uses)")
	fmt.Println("  - FLASHSALE  (20% off for one month)")
	fmt.Println("\nUnusable coupons:")
	fmt.Println("  - EXPIRED15  (expired last week)")
	fmt.Println("  - RETIRED    (inactive)")
}

func writeCatalog(filePath string, coupons []sampleCoupon) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	gzipWriter := gzip.NewWriter(file)
	defer gzipWriter.Close()

	encoder := json.NewEncoder(gzipWriter)
	for _, coupon := range coupons {
		if err := encoder.Encode(coupon); err != nil {
			return fmt.Errorf("failed to write coupon %s: %w", coupon.Code, err)
		}
	}

	return nil
}

func ptr(s string) *string {
	return &s
}
