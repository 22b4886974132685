package postmaster

import (
	"bytes"
	"errors"
	"io"
	"log"
	"mime"
	stdmail "net/mail"
	"regexp"
	"strings"

	gomessage "github.com/emersion/go-message"
	gomail "github.com/emersion/go-message/mail"
	"github.com/microcosm-cc/bluemonday"
	htmlcharset "golang.org/x/net/html/charset"
)

func init() {
	gomessage.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		return htmlcharset.NewReaderLabel(charset, input)
	}
}

// Envelope is the parsed view of one inbound message: the headers intake
// correlates on plus the preferred text body. Cc entries keep their raw
// header form so address validation sees exactly what the sender wrote.
type Envelope struct {
	Subject      string
	From         string
	CC           []string
	MessageID    string
	ReferenceIDs []string
	ContentType  string
	Charset      string
	Body         string
	Attachments  []AttachmentPart
}

// AttachmentPart is one decoded attachment from a multipart message.
type AttachmentPart struct {
	Filename    string
	ContentType string
	Data        []byte
}

type envelopeParser struct {
	logger       *log.Logger
	decoder      *mime.WordDecoder
	maxBodyBytes int64
	htmlPolicy   *bluemonday.Policy
}

func newEnvelopeParser(logger *log.Logger, maxBodyBytes int64) *envelopeParser {
	return &envelopeParser{
		logger:       logger,
		decoder:      &mime.WordDecoder{},
		maxBodyBytes: maxBodyBytes,
		htmlPolicy:   bluemonday.StrictPolicy(),
	}
}

// parse extracts the envelope with the structured reader, falling back to
// the stdlib parser for malformed MIME.
func (p *envelopeParser) parse(raw []byte) Envelope {
	var env Envelope
	if len(raw) == 0 {
		return env
	}
	reader, err := gomail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		p.logf("intake: structured parse failed: %v", err)
		return p.legacyParse(raw)
	}
	env.Subject = p.subjectFromHeader(&reader.Header)
	env.From = p.addressFromHeader(&reader.Header, "From")
	env.CC = p.rawAddressList(&reader.Header, "Cc")
	env.ContentType, env.Charset = p.contentTypeFromHeader(&reader.Header)
	env.MessageID = normalizeMessageID(reader.Header.Get("Message-Id"))
	referenceValues := []string{reader.Header.Get("In-Reply-To")}
	referenceValues = append(referenceValues, reader.Header.Values("References")...)
	env.ReferenceIDs = uniqueMessageIDs(referenceValues...)

	body, mimeType, charset, attachments := p.readBodyParts(reader)
	env.Attachments = attachments
	if body != "" {
		env.Body = body
		if mimeType != "" {
			env.ContentType = mimeType
		}
		if charset != "" {
			env.Charset = charset
		}
		return env
	}

	// Structured parsing yielded no body; merge in whatever the stdlib
	// parser can recover.
	legacy := p.legacyParse(raw)
	if env.Subject == "" {
		env.Subject = legacy.Subject
	}
	if env.From == "" {
		env.From = legacy.From
	}
	if len(env.CC) == 0 {
		env.CC = legacy.CC
	}
	env.Body = legacy.Body
	if env.ContentType == "" {
		env.ContentType = legacy.ContentType
	}
	if env.Charset == "" {
		env.Charset = legacy.Charset
	}
	return env
}

func (p *envelopeParser) legacyParse(raw []byte) Envelope {
	var env Envelope
	reader, err := stdmail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		p.logf("intake: parse message failed: %v", err)
		env.Body = p.fallbackBody(raw)
		return env
	}
	env.Subject = p.decodeHeader(reader.Header.Get("Subject"))
	env.From = p.parseAddress(reader.Header.Get("From"))
	env.CC = splitAddressHeader(p.decodeHeader(reader.Header.Get("Cc")))
	env.ContentType, env.Charset = p.parseContentType(reader.Header.Get("Content-Type"))
	env.MessageID = normalizeMessageID(reader.Header.Get("Message-Id"))
	env.ReferenceIDs = uniqueMessageIDs(reader.Header.Get("In-Reply-To"), reader.Header.Get("References"))
	body, err := io.ReadAll(io.LimitReader(reader.Body, p.bodyLimit()))
	if err != nil {
		p.logf("intake: read body failed: %v", err)
		env.Body = p.fallbackBody(raw)
	} else {
		env.Body = string(body)
	}
	return env
}

func (p *envelopeParser) subjectFromHeader(header *gomail.Header) string {
	if subject, err := header.Subject(); err == nil {
		return subject
	}
	return p.decodeHeader(header.Get("Subject"))
}

func (p *envelopeParser) addressFromHeader(header *gomail.Header, key string) string {
	if list, err := header.AddressList(key); err == nil && len(list) > 0 {
		return strings.TrimSpace(list[0].Address)
	}
	return p.parseAddress(header.Get(key))
}

// rawAddressList returns the header's entries without normalization so
// that an invalid entry survives to the validation layer instead of
// being silently repaired or dropped here.
func (p *envelopeParser) rawAddressList(header *gomail.Header, key string) []string {
	value := p.decodeHeader(header.Get(key))
	return splitAddressHeader(value)
}

func splitAddressHeader(value string) []string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	var out []string
	depth := 0
	start := 0
	for i, r := range value {
		switch r {
		case '"':
			if depth == 0 {
				depth = 1
			} else {
				depth = 0
			}
		case ',':
			if depth == 0 {
				if entry := strings.TrimSpace(value[start:i]); entry != "" {
					out = append(out, stripDisplayName(entry))
				}
				start = i + 1
			}
		}
	}
	if entry := strings.TrimSpace(value[start:]); entry != "" {
		out = append(out, stripDisplayName(entry))
	}
	return out
}

func stripDisplayName(entry string) string {
	if open := strings.LastIndex(entry, "<"); open >= 0 {
		if close := strings.LastIndex(entry, ">"); close > open {
			return strings.TrimSpace(entry[open+1 : close])
		}
	}
	return entry
}

func (p *envelopeParser) contentTypeFromHeader(header *gomail.Header) (string, string) {
	if mediaType, params, err := header.ContentType(); err == nil {
		return strings.ToLower(mediaType), strings.ToLower(strings.TrimSpace(params["charset"]))
	}
	return p.parseContentType(header.Get("Content-Type"))
}

func (p *envelopeParser) readBodyParts(reader *gomail.Reader) (string, string, string, []AttachmentPart) {
	var plainCandidate, htmlCandidate *bodyCandidate
	var attachments []AttachmentPart
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			p.logf("intake: read part failed: %v", err)
			break
		}
		switch header := part.Header.(type) {
		case *gomail.InlineHeader:
			body, mimeType, charset := p.extractInlineBody(part, header)
			if body == "" {
				continue
			}
			candidate := &bodyCandidate{body: body, mimeType: mimeType, charset: charset}
			switch {
			case strings.HasPrefix(mimeType, "text/plain"):
				if plainCandidate == nil {
					plainCandidate = candidate
				}
			case strings.HasPrefix(mimeType, "text/html"):
				if htmlCandidate == nil {
					htmlCandidate = candidate
				}
			default:
				if plainCandidate == nil && htmlCandidate == nil {
					plainCandidate = candidate
				}
			}
		case *gomail.AttachmentHeader:
			if att := p.extractAttachment(part, header); att != nil {
				attachments = append(attachments, *att)
			}
		default:
		}
	}
	if plainCandidate != nil {
		return plainCandidate.body, plainCandidate.mimeType, plainCandidate.charset, attachments
	}
	if htmlCandidate != nil {
		// HTML-only message: store the stripped text representation.
		text := strings.TrimSpace(p.htmlPolicy.Sanitize(htmlCandidate.body))
		return text, "text/plain", htmlCandidate.charset, attachments
	}
	return "", "", "", attachments
}

type bodyCandidate struct {
	body     string
	mimeType string
	charset  string
}

func (p *envelopeParser) extractInlineBody(part *gomail.Part, header *gomail.InlineHeader) (string, string, string) {
	mimeType, params, err := header.ContentType()
	charset := ""
	if err != nil {
		mimeType, charset = p.parseContentType(header.Get("Content-Type"))
	} else {
		charset = params["charset"]
	}
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	charset = strings.ToLower(strings.TrimSpace(charset))
	if mimeType == "" {
		mimeType = "text/plain"
	}
	data, readErr := io.ReadAll(io.LimitReader(part.Body, p.bodyLimit()))
	if readErr != nil {
		p.logf("intake: read part body failed: %v", readErr)
		return "", "", ""
	}
	return string(data), mimeType, charset
}

func (p *envelopeParser) extractAttachment(part *gomail.Part, header *gomail.AttachmentHeader) *AttachmentPart {
	filename, err := header.Filename()
	if err != nil || strings.TrimSpace(filename) == "" {
		filename = "attachment.bin"
	}
	mimeType, _, ctErr := header.ContentType()
	if ctErr != nil || strings.TrimSpace(mimeType) == "" {
		mimeType, _ = p.parseContentType(header.Get("Content-Type"))
	}
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	data, readErr := io.ReadAll(io.LimitReader(part.Body, p.bodyLimit()))
	if readErr != nil {
		p.logf("intake: read attachment failed: %v", readErr)
		return nil
	}
	if len(data) == 0 {
		return nil
	}
	return &AttachmentPart{Filename: filename, ContentType: mimeType, Data: data}
}

func (p *envelopeParser) decodeHeader(value string) string {
	value = strings.TrimSpace(value)
	if value == "" || p.decoder == nil {
		return value
	}
	decoded, err := p.decoder.DecodeHeader(value)
	if err != nil {
		return value
	}
	return decoded
}

func (p *envelopeParser) parseAddress(value string) string {
	value = p.decodeHeader(value)
	if value == "" {
		return ""
	}
	if addrs, err := stdmail.ParseAddressList(value); err == nil && len(addrs) > 0 {
		return strings.TrimSpace(addrs[0].Address)
	}
	if addr, err := stdmail.ParseAddress(value); err == nil {
		return strings.TrimSpace(addr.Address)
	}
	return strings.TrimSpace(value)
}

func (p *envelopeParser) parseContentType(value string) (string, string) {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return "", ""
	}
	mediaType := raw
	charset := ""
	if parsed, params, err := mime.ParseMediaType(raw); err == nil {
		mediaType = parsed
		if cs, ok := params["charset"]; ok {
			charset = strings.TrimSpace(cs)
		}
	}
	return strings.ToLower(mediaType), strings.ToLower(charset)
}

func (p *envelopeParser) fallbackBody(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	limit := p.bodyLimit()
	if limit > 0 && int64(len(raw)) > limit {
		raw = raw[:limit]
	}
	return string(raw)
}

func (p *envelopeParser) bodyLimit() int64 {
	if p == nil || p.maxBodyBytes <= 0 {
		return defaultBodyLimit
	}
	return p.maxBodyBytes
}

func (p *envelopeParser) logf(format string, args ...any) {
	if p == nil || p.logger == nil {
		return
	}
	p.logger.Printf(format, args...)
}

var messageIDPattern = regexp.MustCompile(`<([^<>]+)>`)

// uniqueMessageIDs extracts message-ids from header values in order,
// dropping duplicates. Callers pass In-Reply-To before References so the
// direct parent is tried first.
func uniqueMessageIDs(values ...string) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, raw := range values {
		for _, candidate := range parseMessageIDs(raw) {
			if _, ok := seen[candidate]; ok {
				continue
			}
			seen[candidate] = struct{}{}
			ids = append(ids, candidate)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	return ids
}

func parseMessageIDs(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	matches := messageIDPattern.FindAllStringSubmatch(raw, -1)
	if len(matches) == 0 {
		if id := normalizeMessageID(raw); id != "" {
			return []string{id}
		}
		return nil
	}
	ids := make([]string, 0, len(matches))
	for _, match := range matches {
		if id := normalizeMessageID(match[1]); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func normalizeMessageID(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	value = strings.Trim(value, "<>")
	value = strings.Trim(value, "\"")
	return strings.TrimSpace(value)
}
