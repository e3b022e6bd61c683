package policy

import (
	"errors"
	"testing"

	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/models"
)

func TestNotify(t *testing.T) {
	cases := []struct {
		name   string
		target models.NotificationTarget
		want   NotifyVerdict
	}{
		{"no email", models.NotificationTarget{EmailNotifications: true}, FailNoEmail},
		{"opted out", models.NotificationTarget{Email: "a@b.test"}, SkipOptedOut},
		{"send", models.NotificationTarget{Email: "a@b.test", EmailNotifications: true}, Send},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Notify(tc.target); got != tc.want {
				t.Fatalf("Notify = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestPropertyLimit(t *testing.T) {
	want := map[models.Tier]int{
		models.TierFree:         1,
		models.TierStarter:      5,
		models.TierProfessional: 10,
		models.TierEnterprise:   999999,
		"":                      1,
	}
	for tier, n := range want {
		if got := PropertyLimit(tier); got != n {
			t.Fatalf("PropertyLimit(%q) = %d, want %d", tier, got, n)
		}
	}
}

func TestCanAddProperties(t *testing.T) {
	if err := CanAddProperties(models.TierFree, 0, 1); err != nil {
		t.Fatalf("first free property should be allowed: %v", err)
	}

	err := CanAddProperties(models.TierFree, 1, 1)
	var le LimitError
	if !errors.As(err, &le) || le.Limit != 1 {
		t.Fatalf("expected LimitError with limit 1, got %v", err)
	}

	if err := CanAddProperties(models.TierProfessional, 5, 5); err != nil {
		t.Fatalf("professional at 10 should be allowed: %v", err)
	}
	if err := CanAddProperties(models.TierStarter, 3, 3); err == nil {
		t.Fatalf("starter at 6 should be rejected")
	}
}
