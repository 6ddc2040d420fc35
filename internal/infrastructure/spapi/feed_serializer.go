package spapi

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
	"unicode"

	"github.com/msylla54/ECOMSIMPLY-Prod-V1.10-sub002/internal/domain/variation"
)

const (
	documentVersion       = "1.01"
	messageTypeRelation   = "Relationship"
	operationTypeUpdate   = "Update"
	relationTypeVariation = "Variation"

	// XMLContentType is the content type of relationship feed documents
	XMLContentType = "text/xml; charset=UTF-8"
)

type amazonEnvelope struct {
	XMLName         xml.Name       `xml:"AmazonEnvelope"`
	XSI             string         `xml:"xmlns:xsi,attr"`
	NoNamespace     string         `xml:"xsi:noNamespaceSchemaLocation,attr"`
	Header          envelopeHeader `xml:"Header"`
	MessageType     string         `xml:"MessageType"`
	PurgeAndReplace bool           `xml:"PurgeAndReplace"`
	Messages        []relationMsg  `xml:"Message"`
}

type envelopeHeader struct {
	DocumentVersion    string `xml:"DocumentVersion"`
	MerchantIdentifier string `xml:"MerchantIdentifier"`
}

type relationMsg struct {
	MessageID     int          `xml:"MessageID"`
	OperationType string       `xml:"OperationType"`
	Relationship  relationship `xml:"Relationship"`
}

type relationship struct {
	ParentSKU string   `xml:"ParentSKU"`
	Relation  relation `xml:"Relation"`
}

type relation struct {
	SKU        string         `xml:"SKU"`
	Type       string         `xml:"Type"`
	Attributes []themeElement `xml:",any"`
}

// themeElement renders one theme attribute under its own element name
type themeElement struct {
	XMLName xml.Name
	Value   string `xml:",chardata"`
}

// XMLFeedSerializer renders families as AmazonEnvelope relationship feeds
type XMLFeedSerializer struct {
	merchantID      string
	relationType    string
	purgeAndReplace bool
}

// NewXMLFeedSerializer creates a serializer. relationType defaults to Variation.
func NewXMLFeedSerializer(merchantID, relationType string, purgeAndReplace bool) *XMLFeedSerializer {
	if strings.TrimSpace(relationType) == "" {
		relationType = relationTypeVariation
	}
	return &XMLFeedSerializer{
		merchantID:      merchantID,
		relationType:    relationType,
		purgeAndReplace: purgeAndReplace,
	}
}

// ContentType implements variation.FeedSerializer
func (s *XMLFeedSerializer) ContentType() string {
	return XMLContentType
}

// Serialize emits the parent message first, then one message per child in
// relationship order. Output is identical for identical families.
func (s *XMLFeedSerializer) Serialize(family *variation.VariationFamily) ([]byte, error) {
	if family == nil || family.ParentSKU == "" {
		return nil, fmt.Errorf("%w: family has no parent", variation.ErrFamilyInvalid)
	}
	if len(family.Relationships) == 0 {
		return nil, fmt.Errorf("%w: family has no relationships", variation.ErrFamilyInvalid)
	}

	env := amazonEnvelope{
		XSI:         "http://www.w3.org/2001/XMLSchema-instance",
		NoNamespace: "amzn-envelope.xsd",
		Header: envelopeHeader{
			DocumentVersion:    documentVersion,
			MerchantIdentifier: s.merchantID,
		},
		MessageType:     messageTypeRelation,
		PurgeAndReplace: s.purgeAndReplace,
		Messages:        make([]relationMsg, 0, len(family.Relationships)+1),
	}

	env.Messages = append(env.Messages, relationMsg{
		MessageID:     1,
		OperationType: operationTypeUpdate,
		Relationship: relationship{
			ParentSKU: family.ParentSKU,
			Relation:  relation{SKU: family.ParentSKU, Type: relationTypeVariation},
		},
	})

	for i, rel := range family.Relationships {
		r := relation{SKU: rel.ChildSKU, Type: s.relationType}
		for _, attr := range rel.Attributes {
			r.Attributes = append(r.Attributes, themeElement{
				XMLName: xml.Name{Local: elementName(attr.Name)},
				Value:   attr.Value,
			})
		}
		env.Messages = append(env.Messages, relationMsg{
			MessageID:     i + 2,
			OperationType: operationTypeUpdate,
			Relationship:  relationship{ParentSKU: family.ParentSKU, Relation: r},
		})
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(env); err != nil {
		return nil, fmt.Errorf("encode relationship feed: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode relationship feed: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// elementName turns an attribute name into a valid XML element name
func elementName(name string) string {
	var b strings.Builder
	for i, r := range strings.TrimSpace(name) {
		switch {
		case unicode.IsLetter(r) || r == '_':
			b.WriteRune(r)
		case unicode.IsDigit(r) || r == '-' || r == '.':
			if i == 0 {
				b.WriteRune('_')
			}
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "Attribute"
	}
	return b.String()
}
