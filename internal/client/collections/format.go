package collections

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/openmined/davsync/internal/davsdk"
)

var ErrInvalidContent = errors.New("collections: invalid content")

// maxLineOctets is the content line limit of RFC 6350 3.2 and RFC 5545 3.1,
// without the line break.
const maxLineOctets = 75

// recordCodec reads and rewrites the records of one format.
type recordCodec interface {
	validate(content string) error
	uid(content string) string
	ensureUID(content, uid string) (string, error)
}

// Format describes the record format of a collection kind.
type Format struct {
	Kind        string
	FileExt     string
	ContentType string
	DavClass    string
	ErrorTitle  string

	codec recordCodec
}

var (
	AddressBookFormat = Format{
		Kind:        "addressbook",
		FileExt:     ".vcf",
		ContentType: "text/vcard",
		DavClass:    davsdk.ClassAddressBook,
		ErrorTitle:  "Address book synchronization failed",
		codec:       vcardCodec{},
	}

	CalendarFormat = Format{
		Kind:        "calendar",
		FileExt:     ".ics",
		ContentType: "text/calendar",
		DavClass:    davsdk.ClassCalendarAccess,
		ErrorTitle:  "Calendar synchronization failed",
		codec:       icalCodec{},
	}
)

// FormatFor returns the format registered under kind.
func FormatFor(kind string) (Format, error) {
	switch kind {
	case AddressBookFormat.Kind:
		return AddressBookFormat, nil
	case CalendarFormat.Kind:
		return CalendarFormat, nil
	default:
		return Format{}, fmt.Errorf("collections: unknown kind %q", kind)
	}
}

// Validate checks that content holds exactly one well-formed record.
func (f Format) Validate(content string) error {
	return f.codec.validate(content)
}

// UID returns the UID of the record, "" if it has none or can't be parsed.
func (f Format) UID(content string) string {
	return f.codec.uid(content)
}

// EnsureUID sets uid on every part of the record that needs one and lacks
// it. The record is re-encoded with CRLF line endings and folded lines.
func (f Format) EnsureUID(content, uid string) (string, error) {
	return f.codec.ensureUID(content, uid)
}

func invalidContent(what string, err error) error {
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidContent, what, err)
	}
	return fmt.Errorf("%w: %s", ErrInvalidContent, what)
}

// withCRLF normalizes bare LF line endings for the decoders.
func withCRLF(content string) string {
	return strings.ReplaceAll(strings.ReplaceAll(content, "\r\n", "\n"), "\n", "\r\n")
}

// foldLines splits content lines longer than maxLineOctets into continuation
// lines starting with a space. Multi-octet characters are never split.
func foldLines(content string) string {
	lines := strings.SplitAfter(content, "\r\n")
	var b strings.Builder
	b.Grow(len(content))
	for _, line := range lines {
		body := strings.TrimSuffix(line, "\r\n")
		limit := maxLineOctets
		for len(body) > limit {
			cut := limit
			for cut > 0 && !utf8.RuneStart(body[cut]) {
				cut--
			}
			b.WriteString(body[:cut])
			b.WriteString("\r\n ")
			body = body[cut:]
			// the leading space counts
			limit = maxLineOctets - 1
		}
		b.WriteString(body)
		if strings.HasSuffix(line, "\r\n") {
			b.WriteString("\r\n")
		}
	}
	return b.String()
}
