package notify

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// EmailMessage is one outbound email, optionally carrying a PDF attachment.
type EmailMessage struct {
	To         []string
	CC         []string
	Subject    string
	BodyHTML   string
	Attachment []byte // rendered invoice PDF; nil means no attachment
	AttachName string
}

// Mailer delivers email. Returns the provider message ID on success.
type Mailer interface {
	Send(ctx context.Context, msg EmailMessage) (string, error)
}

type sesMailer struct {
	client *ses.Client
	sender string
}

// NewSESMailerFromEnv builds an SES-backed mailer with static credentials.
func NewSESMailerFromEnv(ctx context.Context) (Mailer, error) {
	sender := os.Getenv("EMAIL_SENDER")
	if sender == "" {
		return nil, fmt.Errorf("EMAIL_SENDER is not configured")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(os.Getenv("AWS_REGION")),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			os.Getenv("AWS_ACCESS_KEY_ID"), os.Getenv("AWS_SECRET_ACCESS_KEY"), "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS SDK config: %w", err)
	}

	return &sesMailer{client: ses.NewFromConfig(awsCfg), sender: sender}, nil
}

func (m *sesMailer) Send(ctx context.Context, msg EmailMessage) (string, error) {
	if len(msg.To) == 0 {
		return "", fmt.Errorf("recipient list is empty")
	}

	if msg.Attachment == nil {
		out, err := m.client.SendEmail(ctx, &ses.SendEmailInput{
			Source: aws.String(m.sender),
			Destination: &types.Destination{
				ToAddresses: msg.To,
				CcAddresses: msg.CC,
			},
			Message: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject)},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(msg.BodyHTML)},
				},
			},
		})
		if err != nil {
			return "", fmt.Errorf("SES send failed: %w", err)
		}
		return aws.ToString(out.MessageId), nil
	}

	raw, err := buildRawMessage(m.sender, msg)
	if err != nil {
		return "", err
	}
	out, err := m.client.SendRawEmail(ctx, &ses.SendRawEmailInput{
		Source:       aws.String(m.sender),
		Destinations: append(append([]string{}, msg.To...), msg.CC...),
		RawMessage:   &types.RawMessage{Data: raw},
	})
	if err != nil {
		return "", fmt.Errorf("SES raw send failed: %w", err)
	}
	return aws.ToString(out.MessageId), nil
}

// buildRawMessage assembles a multipart MIME message with an HTML body and a
// PDF attachment, as SendRawEmail requires.
func buildRawMessage(sender string, msg EmailMessage) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fmt.Fprintf(&buf, "From: %s\r\n", sender)
	fmt.Fprintf(&buf, "To: %s\r\n", strings.Join(msg.To, ", "))
	if len(msg.CC) > 0 {
		fmt.Fprintf(&buf, "Cc: %s\r\n", strings.Join(msg.CC, ", "))
	}
	fmt.Fprintf(&buf, "Subject: %s\r\n", msg.Subject)
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", writer.Boundary())

	htmlPart, err := writer.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"text/html; charset=utf-8"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create html part: %w", err)
	}
	if _, err := htmlPart.Write([]byte(msg.BodyHTML)); err != nil {
		return nil, err
	}

	name := msg.AttachName
	if name == "" {
		name = "invoice.pdf"
	}
	attachPart, err := writer.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {"application/pdf"},
		"Content-Disposition":       {fmt.Sprintf("attachment; filename=%q", name)},
		"Content-Transfer-Encoding": {"base64"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create attachment part: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(msg.Attachment)
	if _, err := attachPart.Write([]byte(encoded)); err != nil {
		return nil, err
	}

	if err := writer.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
