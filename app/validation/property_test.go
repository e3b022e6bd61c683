package validation

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddPropertyTrimsAndAccepts(t *testing.T) {
	v := New()
	in := AddPropertyInput{Address: "  123 Main St  ", STROTier: 3, LicenseID: " STR-1 "}

	require.NoError(t, v.AddProperty(&in))
	assert.Equal(t, "123 Main St", in.Address)
	assert.Equal(t, "STR-1", in.LicenseID)
}

func TestAddPropertyFieldMessages(t *testing.T) {
	v := New()
	cases := []struct {
		name  string
		in    AddPropertyInput
		field string
		msg   string
	}{
		{"blank address", AddPropertyInput{Address: "   ", STROTier: 1, LicenseID: "L"}, "address", "Address is required"},
		{"long address", AddPropertyInput{Address: strings.Repeat("a", 501), STROTier: 1, LicenseID: "L"}, "address", "Address must be under 500 characters"},
		{"tier zero", AddPropertyInput{Address: "a", STROTier: 0, LicenseID: "L"}, "stro_tier", "STRO tier must be between 1 and 4"},
		{"tier five", AddPropertyInput{Address: "a", STROTier: 5, LicenseID: "L"}, "stro_tier", "STRO tier must be between 1 and 4"},
		{"long license", AddPropertyInput{Address: "a", STROTier: 2, LicenseID: strings.Repeat("x", 101)}, "license_id", "License ID must be under 100 characters"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := tc.in
			err := v.AddProperty(&in)
			ve, ok := AsError(err)
			require.True(t, ok, "expected validation error, got %v", err)
			assert.Equal(t, tc.msg, ve.Fields[tc.field])
		})
	}
}

func TestUpdatePropertyPartial(t *testing.T) {
	v := New()

	tier := 2
	in := UpdatePropertyInput{STROTier: &tier}
	require.NoError(t, v.UpdateProperty(&in))
	p := in.Patch()
	assert.Nil(t, p.Address)
	assert.Equal(t, 2, *p.STROTier)

	status := "archived"
	bad := UpdatePropertyInput{ReportingStatus: &status}
	_, ok := AsError(v.UpdateProperty(&bad))
	assert.True(t, ok)

	empty := UpdatePropertyInput{}
	_, ok = AsError(v.UpdateProperty(&empty))
	assert.True(t, ok, "empty patch should be rejected")

	blank := "  "
	trimmed := UpdatePropertyInput{Address: &blank}
	ve, ok := AsError(v.UpdateProperty(&trimmed))
	require.True(t, ok)
	assert.Equal(t, "Address is required", ve.Fields["address"])
}

func TestAddPropertyTierProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)
	v := New()

	properties.Property("tier is accepted exactly when it lies in 1..4", prop.ForAll(
		func(addr string, tier int) bool {
			in := AddPropertyInput{Address: "x" + addr, STROTier: tier, LicenseID: "STR-1"}
			err := v.AddProperty(&in)
			return (err == nil) == (tier >= 1 && tier <= 4)
		},
		gen.AlphaString(),
		gen.IntRange(-10, 10),
	))

	properties.Property("trimmed address is never longer than its input", prop.ForAll(
		func(pad int, addr string) bool {
			raw := strings.Repeat(" ", pad) + addr + strings.Repeat(" ", pad)
			in := AddPropertyInput{Address: raw, STROTier: 1, LicenseID: "L"}
			_ = v.AddProperty(&in)
			return in.Address == strings.TrimSpace(raw)
		},
		gen.IntRange(0, 5),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
