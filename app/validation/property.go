package validation

import (
	"strings"

	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/models"
)

type AddPropertyInput struct {
	Address   string `json:"address" validate:"required,min=1,max=500"`
	STROTier  int    `json:"stro_tier" validate:"min=1,max=4"`
	LicenseID string `json:"license_id" validate:"required,min=1,max=100"`
}

// Normalize trims the free-text fields in place.
func (in *AddPropertyInput) Normalize() {
	in.Address = strings.TrimSpace(in.Address)
	in.LicenseID = strings.TrimSpace(in.LicenseID)
}

// UpdatePropertyInput is a partial update; absent fields stay unchanged.
type UpdatePropertyInput struct {
	Address         *string `json:"address" validate:"omitnil,min=1,max=500"`
	STROTier        *int    `json:"stro_tier" validate:"omitnil,min=1,max=4"`
	LicenseID       *string `json:"license_id" validate:"omitnil,min=1,max=100"`
	ReportingStatus *string `json:"reporting_status" validate:"omitnil,oneof=pending compliant violation"`
}

func (in *UpdatePropertyInput) Normalize() {
	if in.Address != nil {
		s := strings.TrimSpace(*in.Address)
		in.Address = &s
	}
	if in.LicenseID != nil {
		s := strings.TrimSpace(*in.LicenseID)
		in.LicenseID = &s
	}
}

// Patch converts the input to a store patch.
func (in UpdatePropertyInput) Patch() models.PropertyPatch {
	p := models.PropertyPatch{
		Address:   in.Address,
		STROTier:  in.STROTier,
		LicenseID: in.LicenseID,
	}
	if in.ReportingStatus != nil {
		s := models.ReportingStatus(*in.ReportingStatus)
		p.ReportingStatus = &s
	}
	return p
}

// AddProperty normalizes and validates in.
func (v *Validator) AddProperty(in *AddPropertyInput) error {
	in.Normalize()
	return v.Struct(in)
}

// UpdateProperty normalizes and validates in. A patch with no fields fails.
func (v *Validator) UpdateProperty(in *UpdatePropertyInput) error {
	in.Normalize()
	if err := v.Struct(in); err != nil {
		return err
	}
	if in.Patch().Empty() {
		return &Error{Fields: map[string]string{"_": "No fields to update"}}
	}
	return nil
}
