package reference

import (
	"context"
	"fmt"
)

func strPtr(s string) *string { return &s }

// Facilities of the Riyadh Third Health Cluster.
var seedFacilities = []Facility{
	{NameEn: "Ad Diriyah Hospital", NameAr: strPtr("مستشفى الدرعية"), Code: "ADH"},
	{NameEn: "Eradah Mental Health Complex", NameAr: strPtr("مجمع إرادة للصحة النفسية"), Code: "EMH"},
	{NameEn: "Dharmaa General Hospital", NameAr: strPtr("مستشفى ضرماء العام"), Code: "DGH"},
	{NameEn: "Al-Bejadiah General Hospital", NameAr: strPtr("مستشفى البجادية العام"), Code: "BGH"},
	{NameEn: "Marat General Hospital", NameAr: strPtr("مستشفى مرات العام"), Code: "MGH"},
	{NameEn: "Al-Rafaia in Jemsh General Hospital", NameAr: strPtr("مستشفى الرفايع في جمش العام"), Code: "RJH"},
	{NameEn: "Wethelan General Hospital", NameAr: strPtr("مستشفى وثيلان العام"), Code: "WGH"},
	{NameEn: "Nafy General Hospital", NameAr: strPtr("مستشفى نافع العام"), Code: "NGH"},
	{NameEn: "Sajer General Hospital", NameAr: strPtr("مستشفى ساجر العام"), Code: "SGH"},
	{NameEn: "Thadeq General Hospital", NameAr: strPtr("مستشفى ثادق العام"), Code: "TGH"},
	{NameEn: "Huraymla General Hospital", NameAr: strPtr("مستشفى حريملاء العام"), Code: "HGH"},
	{NameEn: "Afif General Hospital", NameAr: strPtr("مستشفى عفيف العام"), Code: "AGH"},
	{NameEn: "Shaqra General Hospital", NameAr: strPtr("مستشفى شقراء العام"), Code: "SqGH"},
	{NameEn: "Al Dawadmi General Hospital", NameAr: strPtr("مستشفى الدوادمي العام"), Code: "DAWH"},
}

var seedCategories = []Category{
	{Name: "Patient Safety", Description: strPtr("Incidents related to patient safety and care")},
	{Name: "Equipment Failure", Description: strPtr("Medical equipment malfunctions or failures")},
	{Name: "Medication Error", Description: strPtr("Errors in medication administration or prescription")},
	{Name: "Falls", Description: strPtr("Patient or staff falls and related injuries")},
	{Name: "Infection Control", Description: strPtr("Healthcare-associated infections and prevention failures")},
	{Name: "Communication", Description: strPtr("Communication breakdowns between staff or with patients")},
	{Name: "Other", Description: strPtr("Other incident types not covered by main categories")},
}

// SeedResult reports how many rows Seed inserted per table.
type SeedResult struct {
	Facilities int
	Categories int
}

// Seed fills the facility and category tables. Each table is only touched
// while it is empty, so running it on every boot is safe.
func (s *Service) Seed(ctx context.Context) (SeedResult, error) {
	var res SeedResult
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		n, err := s.facilities.Count(ctx)
		if err != nil {
			return err
		}
		if n == 0 {
			for _, f := range seedFacilities {
				f := f
				f.IsActive = true
				if err := s.facilities.Create(ctx, &f); err != nil {
					return fmt.Errorf("seed facility %s: %w", f.Code, err)
				}
				res.Facilities++
			}
		}

		n, err = s.categories.Count(ctx)
		if err != nil {
			return err
		}
		if n == 0 {
			for _, c := range seedCategories {
				c := c
				c.IsActive = true
				if err := s.categories.Create(ctx, &c); err != nil {
					return fmt.Errorf("seed category %s: %w", c.Name, err)
				}
				res.Categories++
			}
		}
		return nil
	})
	if err != nil {
		return SeedResult{}, err
	}
	if res.Facilities > 0 || res.Categories > 0 {
		s.logger.Info().Int("facilities", res.Facilities).Int("categories", res.Categories).Msg("reference data seeded")
	}
	return res, nil
}
