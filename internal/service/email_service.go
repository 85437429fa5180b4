package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/resend/resend-go/v2"

	"github.com/yourusername/examprep-api/internal/domain/entity"
)

// EmailService sends transactional emails.
type EmailService interface {
	SendAttemptSummary(ctx context.Context, toEmail string, exam *entity.Exam, attempt *entity.Attempt) error
}

// NoopEmailService is used when completion emails are disabled.
type NoopEmailService struct{}

func (s *NoopEmailService) SendAttemptSummary(ctx context.Context, toEmail string, exam *entity.Exam, attempt *entity.Attempt) error {
	log.Printf("[EmailService] noop send attempt summary to=%s attempt=%s", toEmail, attempt.ID)
	return nil
}

// ResendEmailService sends emails via Resend REST API.
type ResendEmailService struct {
	from   string
	client *resend.Client
}

func NewResendEmailService(apiKey, from string) (*ResendEmailService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("resend api key is required")
	}
	if from == "" {
		return nil, fmt.Errorf("email from is required")
	}
	return &ResendEmailService{
		from:   from,
		client: resend.NewClient(apiKey),
	}, nil
}

func (s *ResendEmailService) SendAttemptSummary(ctx context.Context, toEmail string, exam *entity.Exam, attempt *entity.Attempt) error {
	if toEmail == "" {
		return fmt.Errorf("toEmail is required")
	}
	if attempt.Score == nil || attempt.TotalPoints == nil || attempt.Percentage == nil {
		return fmt.Errorf("attempt %s has no score to report", attempt.ID)
	}

	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{toEmail},
		Subject: fmt.Sprintf("Your result for %s", exam.Title),
		Text: fmt.Sprintf("You scored %d out of %d (%d%%) on %s.",
			*attempt.Score, *attempt.TotalPoints, *attempt.Percentage, exam.Title),
		Html: fmt.Sprintf("<p>You scored <strong>%d out of %d (%d%%)</strong> on %s.</p>",
			*attempt.Score, *attempt.TotalPoints, *attempt.Percentage, exam.Title),
	}

	// The attempt ID makes retried sends idempotent on the Resend side.
	options := &resend.SendEmailOptions{
		IdempotencyKey: "attempt-summary/" + attempt.ID,
	}

	var lastErr error
	for attemptNo := 0; attemptNo < 3; attemptNo++ {
		_, err := s.client.Emails.SendWithOptions(ctx, params, options)
		if err == nil {
			return nil
		}
		lastErr = err

		if wait, ok := resendRetryDelay(err, attemptNo); ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
				continue
			}
		}

		return fmt.Errorf("resend send failed: %w", err)
	}

	return fmt.Errorf("resend send failed after retries: %w", lastErr)
}

func resendRetryDelay(err error, attempt int) (time.Duration, bool) {
	var rateLimitErr *resend.RateLimitError
	if errors.As(err, &rateLimitErr) {
		if seconds, convErr := strconv.Atoi(strings.TrimSpace(rateLimitErr.RetryAfter)); convErr == nil && seconds > 0 {
			if seconds > 30 {
				seconds = 30
			}
			return time.Duration(seconds) * time.Second, true
		}
		return time.Duration(attempt+1) * time.Second, true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && (netErr.Timeout() || netErr.Temporary()) {
		return time.Duration(attempt+1) * 500 * time.Millisecond, true
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "timeout") || strings.Contains(msg, "temporar") {
		return time.Duration(attempt+1) * 500 * time.Millisecond, true
	}

	return 0, false
}
