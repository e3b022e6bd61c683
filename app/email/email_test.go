package email

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/config"
	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

type fakeDialer struct {
	sent []*gomail.Message
	err  error
}

func (f *fakeDialer) DialAndSend(m ...*gomail.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, m...)
	return nil
}

var testCfg = config.EmailConfig{
	From:    "DoggyBagg <notifications@example.test>",
	ReplyTo: "support@example.test",
	AdminTo: "admin@example.test",
}

func newTestSender(t *testing.T, d Dialer) *Sender {
	t.Helper()
	s, err := NewSenderWithDialer(testCfg, "https://app.example.test/", d, nil)
	require.NoError(t, err)
	return s
}

func TestNotConfigured(t *testing.T) {
	s, err := NewSender(config.EmailConfig{}, "https://app.example.test", nil)
	require.NoError(t, err)

	res := s.SendAuditWelcome(context.Background(), "buyer@example.test")
	assert.Equal(t, models.Fail(MsgNotConfigured), res)
}

func TestSendComplianceViolation(t *testing.T) {
	d := &fakeDialer{}
	s := newTestSender(t, d)

	res := s.SendComplianceViolation(context.Background(), "owner@example.test", models.Violation{
		PropertyAddress: "1 Ocean Blvd",
		ViolationType:   "Noise",
	})
	require.True(t, res.OK)
	require.Len(t, d.sent, 1)

	m := d.sent[0]
	assert.Equal(t, []string{"owner@example.test"}, m.GetHeader("To"))
	assert.Equal(t, []string{"Compliance alert: 1 Ocean Blvd"}, m.GetHeader("Subject"))
	assert.Equal(t, []string{"support@example.test"}, m.GetHeader("Reply-To"))
}

func TestSendPassesDialerError(t *testing.T) {
	s := newTestSender(t, &fakeDialer{err: errors.New("535 authentication failed")})

	res := s.SendAuditFollowUp(context.Background(), "buyer@example.test")
	assert.False(t, res.OK)
	assert.Equal(t, "535 authentication failed", res.Error)
}

func TestRenderEscapesAndLinks(t *testing.T) {
	s := newTestSender(t, &fakeDialer{})

	body, err := s.render("violation", models.Violation{PropertyAddress: "<b>1 A St</b>"})
	require.NoError(t, err)
	assert.Contains(t, body, "&lt;b&gt;1 A St&lt;/b&gt;")
	assert.Contains(t, body, "https://app.example.test/dashboard")
	assert.NotContains(t, body, "()")

	body, err = s.render("receipt", struct{ ProductName, Amount string }{"Professional", "$49.00"})
	require.NoError(t, err)
	assert.Contains(t, body, "Professional")
	assert.Contains(t, body, "$49.00")
}

func TestRenderSentinel(t *testing.T) {
	s := newTestSender(t, &fakeDialer{})

	body, err := s.render("sentinel", models.SentinelReport{})
	require.NoError(t, err)
	assert.Contains(t, body, "No targets today")

	body, err = s.render("sentinel", models.SentinelReport{
		Targets:  []models.Target{{Type: "code_enforcement", Address: "1 A St", CaseID: "CE-1"}},
		Expiring: []models.ExpiringLicense{{LicenseID: "STR-9", ExpirationDate: "2026-11-30", LocalContactName: "Lee"}},
	})
	require.NoError(t, err)
	assert.Contains(t, body, "CE-1")
	assert.Contains(t, body, "STR-9")
	assert.Contains(t, body, "Lee")
	assert.False(t, strings.Contains(body, "No targets today"))
}

func TestSentinelSubject(t *testing.T) {
	assert.Equal(t, "Sentinel: Daily Report (0 targets) | DoggyBagg", SentinelSubject(models.SentinelReport{}))

	r := models.SentinelReport{Targets: make([]models.Target, 3)}
	assert.Equal(t, "Sentinel: 3 High-Priority Targets | DoggyBagg", SentinelSubject(r))

	r.Expiring = make([]models.ExpiringLicense, 2)
	assert.Equal(t, "Sentinel: 2 Upcoming Renewal(s) + 3 targets | DoggyBagg", SentinelSubject(r))

	r.TaxRisks = make([]models.TaxRisk, 1)
	assert.Equal(t, "Sentinel: 1 TOT Gap(s) + 3 targets | DoggyBagg", SentinelSubject(r))
}

func TestSendSentinelGoesToAdmin(t *testing.T) {
	d := &fakeDialer{}
	s := newTestSender(t, d)

	require.True(t, s.SendSentinelSummary(context.Background(), models.SentinelReport{}).OK)
	assert.Equal(t, []string{"admin@example.test"}, d.sent[0].GetHeader("To"))
}
