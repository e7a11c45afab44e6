package services

import (
	"context"
	"fmt"

	"github.com/mrz1836/postmark"
	"github.com/sirupsen/logrus"
)

// EmailSender is the outbound email contract the notification engine sends
// through. The engine never sees transport details; implementations report
// success or failure and nothing else.
type EmailSender interface {
	SendEmail(ctx context.Context, params SendEmailParams) error
}

// SendEmailParams carries one outbound message.
type SendEmailParams struct {
	SendTo  string
	Subject string
	Body    string
	Tag     string
}

// PostmarkSender sends email through the Postmark transactional API.
type PostmarkSender struct {
	client *postmark.Client
	from   string
}

// NewPostmarkSender builds a Postmark-backed sender. Both tokens and the
// sender address are required.
func NewPostmarkSender(serverToken, accountToken, from string) (*PostmarkSender, error) {
	if serverToken == "" || accountToken == "" {
		return nil, fmt.Errorf("postmark tokens are required")
	}
	if from == "" {
		return nil, fmt.Errorf("sender email address is required")
	}

	return &PostmarkSender{
		client: postmark.NewClient(serverToken, accountToken),
		from:   from,
	}, nil
}

func (s *PostmarkSender) SendEmail(ctx context.Context, params SendEmailParams) error {
	resp, err := s.client.SendEmail(ctx, postmark.Email{
		From:     s.from,
		To:       params.SendTo,
		Subject:  params.Subject,
		TextBody: params.Body,
		Tag:      params.Tag,
	})
	if err != nil {
		return fmt.Errorf("postmark send failed: %w", err)
	}

	if resp.ErrorCode > 0 {
		return fmt.Errorf("postmark send failed: %s (code %d)", resp.Message, resp.ErrorCode)
	}

	return nil
}

// LogSender is a development stand-in that logs every message instead of
// sending it.
type LogSender struct{}

func (LogSender) SendEmail(ctx context.Context, params SendEmailParams) error {
	logrus.WithFields(logrus.Fields{
		"to":      params.SendTo,
		"subject": params.Subject,
		"tag":     params.Tag,
	}).Info("email sending disabled, message logged only")
	return nil
}
