// Package email renders and delivers transactional mail over SMTP.
package email

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"strings"

	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/config"
	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/logging"
	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/metrics"
	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/models"
	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/products"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

const MsgNotConfigured = "Email not configured"

//go:embed templates/*.html
var templateFS embed.FS

// Dialer is satisfied by *gomail.Dialer.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

type Sender struct {
	from    string
	replyTo string
	adminTo string
	siteURL string
	dialer  Dialer
	pages   map[string]*template.Template
	log     *zap.Logger
}

// NewSender builds an SMTP sender. When SMTP is not configured every send
// reports "Email not configured".
func NewSender(cfg config.EmailConfig, siteURL string, log *zap.Logger) (*Sender, error) {
	var d Dialer
	if cfg.Configured() {
		d = gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword)
	}
	return NewSenderWithDialer(cfg, siteURL, d, log)
}

func NewSenderWithDialer(cfg config.EmailConfig, siteURL string, d Dialer, log *zap.Logger) (*Sender, error) {
	pages, err := parsePages()
	if err != nil {
		return nil, err
	}
	return &Sender{
		from:    cfg.From,
		replyTo: cfg.ReplyTo,
		adminTo: cfg.AdminTo,
		siteURL: strings.TrimRight(siteURL, "/"),
		dialer:  d,
		pages:   pages,
		log:     logging.OrNop(log),
	}, nil
}

var pageNames = []string{
	"welcome",
	"receipt",
	"payment_failed",
	"audit_welcome",
	"audit_followup",
	"violation",
	"sentinel",
}

var funcs = template.FuncMap{
	"contact": func(parts ...string) string {
		var kept []string
		for _, p := range parts {
			if p != "" {
				kept = append(kept, p)
			}
		}
		if len(kept) == 0 {
			return "-"
		}
		return strings.Join(kept, " / ")
	},
}

func parsePages() (map[string]*template.Template, error) {
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		t, err := template.New(name).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse email template %s: %w", name, err)
		}
		pages[name] = t
	}
	return pages, nil
}

type page struct {
	SiteURL string
	ReplyTo string
	Data    any
}

func (s *Sender) render(name string, data any) (string, error) {
	var buf bytes.Buffer
	err := s.pages[name].ExecuteTemplate(&buf, "layout", page{SiteURL: s.siteURL, ReplyTo: s.replyTo, Data: data})
	if err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

func (s *Sender) send(ctx context.Context, tmpl, to, subject string, data any) (res models.Result) {
	defer func() { metrics.EmailsSent.WithLabelValues(tmpl, metrics.Result(res.OK)).Inc() }()

	if s.dialer == nil {
		s.log.Warn("SMTP not configured; email not sent", zap.String("template", tmpl))
		return models.Fail(MsgNotConfigured)
	}
	if err := ctx.Err(); err != nil {
		return models.Fail(err.Error())
	}

	body, err := s.render(tmpl, data)
	if err != nil {
		s.log.Error("email render failed", zap.String("template", tmpl), zap.Error(err))
		return models.Fail(err.Error())
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	if s.replyTo != "" {
		m.SetHeader("Reply-To", s.replyTo)
	}
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		s.log.Error("email send failed", zap.String("template", tmpl), zap.Error(err))
		return models.Fail(err.Error())
	}
	return models.OK()
}

func (s *Sender) SendWelcome(ctx context.Context, to, name string) models.Result {
	if name == "" {
		name, _, _ = strings.Cut(to, "@")
	}
	return s.send(ctx, "welcome", to, "Welcome to DoggyBagg", struct{ Name string }{name})
}

// SendReceipt confirms a purchase. amountCents of zero omits the amount.
func (s *Sender) SendReceipt(ctx context.Context, to, productName string, amountCents int64) models.Result {
	amount := ""
	if amountCents > 0 {
		amount = products.FormatPrice(amountCents)
	}
	return s.send(ctx, "receipt", to, "Receipt: "+productName, struct{ ProductName, Amount string }{productName, amount})
}

func (s *Sender) SendPaymentFailed(ctx context.Context, to string) models.Result {
	return s.send(ctx, "payment_failed", to, "Action required: DoggyBagg payment failed", nil)
}

// SendAuditWelcome is the first message of the Portfolio Audit workflow.
func (s *Sender) SendAuditWelcome(ctx context.Context, to string) models.Result {
	return s.send(ctx, "audit_welcome", to, "Portfolio Audit: Welcome & Deliverable Specs | DoggyBagg", nil)
}

// SendAuditFollowUp is sent three days after the Portfolio Audit purchase.
func (s *Sender) SendAuditFollowUp(ctx context.Context, to string) models.Result {
	return s.send(ctx, "audit_followup", to, "Portfolio Audit: follow-up | DoggyBagg", nil)
}

func (s *Sender) SendComplianceViolation(ctx context.Context, to string, v models.Violation) models.Result {
	return s.send(ctx, "violation", to, "Compliance alert: "+v.PropertyAddress, v)
}

// SendSentinelSummary mails the daily outreach report to the admin inbox.
func (s *Sender) SendSentinelSummary(ctx context.Context, r models.SentinelReport) models.Result {
	if len(r.TaxRisks) > 15 {
		r.TaxRisks = r.TaxRisks[:15]
	}
	if len(r.Expiring) > 15 {
		r.Expiring = r.Expiring[:15]
	}
	if len(r.Targets) > 50 {
		r.Targets = r.Targets[:50]
	}
	return s.send(ctx, "sentinel", s.adminTo, SentinelSubject(r), r)
}

// SentinelSubject leads with the most urgent finding.
func SentinelSubject(r models.SentinelReport) string {
	switch {
	case len(r.TaxRisks) > 0:
		return fmt.Sprintf("Sentinel: %d TOT Gap(s) + %d targets | DoggyBagg", len(r.TaxRisks), len(r.Targets))
	case len(r.Expiring) > 0:
		return fmt.Sprintf("Sentinel: %d Upcoming Renewal(s) + %d targets | DoggyBagg", len(r.Expiring), len(r.Targets))
	case len(r.Targets) > 0:
		return fmt.Sprintf("Sentinel: %d High-Priority Targets | DoggyBagg", len(r.Targets))
	default:
		return "Sentinel: Daily Report (0 targets) | DoggyBagg"
	}
}
