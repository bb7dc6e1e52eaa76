package collections

import (
	"errors"
	"io"
	"strings"

	"github.com/emersion/go-vcard"
)

// vCardVersion is set on cards without VERSION, which the encoder requires.
const vCardVersion = "4.0"

type vcardCodec struct{}

func (vcardCodec) decode(content string) (vcard.Card, error) {
	dec := vcard.NewDecoder(strings.NewReader(withCRLF(content)))
	card, err := dec.Decode()
	if errors.Is(err, io.EOF) {
		return nil, invalidContent("empty VCARD", nil)
	}
	if err != nil {
		return nil, invalidContent("VCARD", err)
	}

	if _, err := dec.Decode(); !errors.Is(err, io.EOF) {
		return nil, invalidContent("more than one VCARD", err)
	}
	return card, nil
}

func (c vcardCodec) validate(content string) error {
	_, err := c.decode(content)
	return err
}

func (c vcardCodec) uid(content string) string {
	card, err := c.decode(content)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(card.Value(vcard.FieldUID))
}

func (c vcardCodec) ensureUID(content, uid string) (string, error) {
	card, err := c.decode(content)
	if err != nil {
		return "", err
	}

	if strings.TrimSpace(card.Value(vcard.FieldUID)) == "" {
		if uid == "" {
			return "", invalidContent("missing UID", nil)
		}
		card.SetValue(vcard.FieldUID, uid)
	}
	if card.Value(vcard.FieldVersion) == "" {
		card.SetValue(vcard.FieldVersion, vCardVersion)
	}

	var b strings.Builder
	if err := vcard.NewEncoder(&b).Encode(card); err != nil {
		return "", invalidContent("encode VCARD", err)
	}
	return foldLines(b.String()), nil
}
