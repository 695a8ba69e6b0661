package ingress

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"

	"github.com/mikey/supplier-mail-router/internal/core"
)

const noTextPlaceholder = "[No text content found in multipart message]"

var wordDecoder = new(mime.WordDecoder)

// ParseMessage reads an RFC 5322 message into an EmailMessage. envelopeFrom is
// used when the message has no From header.
func ParseMessage(r io.Reader, envelopeFrom string) (*core.EmailMessage, error) {
	msg, err := mail.ReadMessage(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse email message: %w", err)
	}

	body, err := extractTextFromMessage(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to extract text content: %w", err)
	}

	sender := decodeEncodedHeader(msg.Header.Get("From"))
	if sender == "" {
		sender = envelopeFrom
	}

	return &core.EmailMessage{
		Sender:  sender,
		Subject: decodeEncodedHeader(msg.Header.Get("Subject")),
		Body:    body,
	}, nil
}

// decodeEncodedHeader decodes RFC 2047 encoded words, returning the input on failure
func decodeEncodedHeader(value string) string {
	decoded, err := wordDecoder.DecodeHeader(value)
	if err != nil {
		return value
	}
	return decoded
}

// extractTextFromMessage extracts the text content from an email message.
// For multipart messages it collects the text/plain parts, descending into
// nested multiparts.
func extractTextFromMessage(msg *mail.Message) (string, error) {
	contentType := msg.Header.Get("Content-Type")
	encoding := msg.Header.Get("Content-Transfer-Encoding")

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") || params["boundary"] == "" {
		return readPart(msg.Body, encoding)
	}

	var textContent bytes.Buffer
	if err := collectText(multipart.NewReader(msg.Body, params["boundary"]), &textContent); err != nil && textContent.Len() == 0 {
		return "", err
	}

	if textContent.Len() > 0 {
		return textContent.String(), nil
	}
	return noTextPlaceholder, nil
}

func collectText(mr *multipart.Reader, out *bytes.Buffer) error {
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		mediaType, params, err := mime.ParseMediaType(part.Header.Get("Content-Type"))
		if err != nil {
			continue
		}

		switch {
		case mediaType == "text/plain":
			text, err := readPart(part, part.Header.Get("Content-Transfer-Encoding"))
			if err != nil {
				continue
			}
			out.WriteString(text)
			out.WriteString("\n")
		case strings.HasPrefix(mediaType, "multipart/") && params["boundary"] != "":
			if err := collectText(multipart.NewReader(part, params["boundary"]), out); err != nil {
				return err
			}
		}
		// attachments and other parts are skipped
	}
}

func readPart(r io.Reader, transferEncoding string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(transferEncoding)) {
	case "base64":
		r = base64.NewDecoder(base64.StdEncoding, r)
	case "quoted-printable":
		r = quotedprintable.NewReader(r)
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
