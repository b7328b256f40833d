package service

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"deep-research/internal/config"
	"deep-research/internal/logger"
	"deep-research/internal/model"

	"github.com/microcosm-cc/bluemonday"
	"github.com/resend/resend-go/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

const maxSubjectRunes = 78

// Mailer delivers one email. Implementations make a single attempt.
type Mailer interface {
	Send(ctx context.Context, from, to, subject, html string) (id string, err error)
}

type resendMailer struct {
	client *resend.Client
}

func (m *resendMailer) Send(ctx context.Context, from, to, subject, htmlBody string) (string, error) {
	sent, err := m.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    from,
		To:      []string{to},
		Subject: subject,
		Html:    htmlBody,
	})
	if err != nil {
		return "", err
	}
	return sent.Id, nil
}

// Notifier turns a finished report into a presentable HTML email and sends
// it exactly once.
type Notifier struct {
	cfg    config.EmailConfig
	mailer Mailer
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

func NewNotifier(cfg config.EmailConfig) *Notifier {
	return newNotifier(cfg, &resendMailer{client: resend.NewClient(cfg.APIKey)})
}

func newNotifier(cfg config.EmailConfig, mailer Mailer) *Notifier {
	return &Notifier{
		cfg:    cfg,
		mailer: mailer,
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(html.WithHardWraps()),
		),
		policy: bluemonday.UGCPolicy(),
	}
}

// SendReport delivers the report markdown to the configured recipient. The
// caller invokes it at most once per completed report.
func (n *Notifier) SendReport(ctx context.Context, report string) (model.EmailResult, error) {
	if !n.cfg.Enabled() {
		return n.failure(&model.DeliveryError{Reason: "email credentials not configured"})
	}
	if strings.TrimSpace(report) == "" {
		return n.failure(&model.DeliveryError{Reason: "report is empty"})
	}

	body, err := n.renderHTML(report)
	if err != nil {
		return n.failure(&model.DeliveryError{Reason: "render report", Err: err})
	}
	subject := subjectFor(report)

	id, err := n.mailer.Send(ctx, n.cfg.From, n.cfg.To, subject, body)
	if err != nil {
		return n.failure(&model.DeliveryError{Reason: "send", Err: err})
	}

	logger.Info("report email sent", "id", id, "to", n.cfg.To, "subject", subject)
	return model.EmailResult{Status: model.EmailStatusSuccess, ID: id}, nil
}

func (n *Notifier) failure(derr *model.DeliveryError) (model.EmailResult, error) {
	logger.Error("report email failed", "reason", derr.Reason, "error", derr.Err)
	return model.EmailResult{Status: model.EmailStatusFailure, Reason: derr.Error()}, derr
}

func (n *Notifier) renderHTML(report string) (string, error) {
	var buf bytes.Buffer
	if err := n.md.Convert([]byte(report), &buf); err != nil {
		return "", fmt.Errorf("convert markdown: %w", err)
	}
	safe := n.policy.SanitizeBytes(buf.Bytes())

	var doc bytes.Buffer
	doc.WriteString(`<!DOCTYPE html><html><head><meta charset="utf-8"></head>` +
		`<body style="margin:0;padding:24px;background:#f8fafc;">` +
		`<div style="max-width:720px;margin:0 auto;padding:24px;background:#ffffff;` +
		`border-radius:8px;font-family:Helvetica,Arial,sans-serif;line-height:1.6;color:#1e293b;">`)
	doc.Write(safe)
	doc.WriteString(`</div></body></html>`)
	return doc.String(), nil
}

// subjectFor derives the mail subject from the report: the first ATX heading
// if one exists, otherwise the first non-empty line, capped at 78 runes.
func subjectFor(report string) string {
	var fallback string
	for _, line := range strings.Split(report, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			if h := strings.TrimSpace(strings.TrimLeft(line, "# ")); h != "" {
				return truncateRunes(h, maxSubjectRunes)
			}
			continue
		}
		if fallback == "" {
			fallback = line
		}
	}
	if fallback == "" {
		return "Research Report"
	}
	return truncateRunes(fallback, maxSubjectRunes)
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
