package datasplit

import (
	"bytes"
	"os"
	"strings"

	"github.com/bep/imagemeta"
)

// ImageMetadata holds the rights-related EXIF, IPTC and XMP fields of a
// dataset image. It is recorded in the manifest so scraped images from stock
// agencies can be found before a model is trained on them.
type ImageMetadata struct {
	EXIFCopyright   string `json:"exif_copyright,omitempty"`
	EXIFArtist      string `json:"exif_artist,omitempty"`
	IPTCCopyright   string `json:"iptc_copyright,omitempty"`
	IPTCCredit      string `json:"iptc_credit,omitempty"`
	IPTCSource      string `json:"iptc_source,omitempty"`
	IPTCByline      string `json:"iptc_byline,omitempty"`
	XMPLicense      string `json:"xmp_license,omitempty"`
	XMPWebStatement string `json:"xmp_web_statement,omitempty"`
	XMPUsageTerms   string `json:"xmp_usage_terms,omitempty"`
	XMPMarked       bool   `json:"xmp_marked,omitempty"`
	DCRights        string `json:"dc_rights,omitempty"`
	DCCreator       string `json:"dc_creator,omitempty"`
}

// Rights is the verdict derived from an image's metadata.
type Rights int

const (
	RightsUnknown Rights = iota
	RightsCC             // Creative Commons or public-domain marker
	RightsStock          // stock-agency fingerprint
)

func (r Rights) String() string {
	switch r {
	case RightsCC:
		return "cc"
	case RightsStock:
		return "stock"
	default:
		return "unknown"
	}
}

// MarshalText encodes the verdict as its name.
func (r Rights) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText decodes a verdict name; anything unrecognised is RightsUnknown.
func (r *Rights) UnmarshalText(text []byte) error {
	switch string(text) {
	case "cc":
		*r = RightsCC
	case "stock":
		*r = RightsStock
	default:
		*r = RightsUnknown
	}
	return nil
}

// AssessRights combines stock and CC detection. Stock wins over CC.
func AssessRights(meta *ImageMetadata) Rights {
	switch {
	case IsStockByMetadata(meta):
		return RightsStock
	case IsCCByMetadata(meta):
		return RightsCC
	default:
		return RightsUnknown
	}
}

// stockMetadataKeywords are lowercase substrings naming a stock agency.
// "istock" also covers istockphoto.
var stockMetadataKeywords = []string{
	"123rf", "adobe stock", "adobestock", "age fotostock", "agefotostock",
	"alamy", "bigstockphoto", "canstockphoto", "colourbox", "depositphotos",
	"dreamstime", "freepik", "getty images", "gettyimages", "istock",
	"masterfile", "pond5", "shutterstock", "stocksy", "superstock",
	"vectorstock", "yayimages",
}

// ccLicensePathSegments identify a Creative Commons license or public-domain
// dedication (not the CC homepage).
var ccLicensePathSegments = []string{
	"creativecommons.org/licenses/",
	"creativecommons.org/publicdomain/",
}

// IsStockByMetadata reports whether any attribution field mentions a known
// stock agency.
func IsStockByMetadata(meta *ImageMetadata) bool {
	if meta == nil {
		return false
	}
	for _, f := range []string{
		meta.EXIFCopyright, meta.EXIFArtist,
		meta.IPTCCopyright, meta.IPTCCredit, meta.IPTCSource, meta.IPTCByline,
		meta.DCRights, meta.DCCreator,
	} {
		if containsAny(strings.ToLower(f), stockMetadataKeywords) {
			return true
		}
	}
	return false
}

// IsCCByMetadata reports whether a license field carries a Creative Commons
// URL, either alone or inside free text.
func IsCCByMetadata(meta *ImageMetadata) bool {
	if meta == nil {
		return false
	}
	for _, f := range []string{meta.XMPLicense, meta.XMPWebStatement, meta.XMPUsageTerms, meta.DCRights} {
		if IsCCLicenseURL(f) {
			return true
		}
	}
	return false
}

// IsCCLicenseURL reports whether s contains a Creative Commons license path.
// Case-insensitive; scheme is irrelevant.
func IsCCLicenseURL(s string) bool {
	return s != "" && containsAny(strings.ToLower(s), ccLicensePathSegments)
}

func containsAny(s string, subs []string) bool {
	if s == "" {
		return false
	}
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// ReadImageRights reads the rights metadata of the file at path and
// returns the verdict with it. Files without readable metadata are
// RightsUnknown with nil metadata.
func ReadImageRights(path string) (Rights, *ImageMetadata) {
	meta := ReadImageMetadata(path)
	return AssessRights(meta), meta
}

// ReadImageMetadata reads the file at path and extracts its rights metadata.
// It returns nil when the file has none or cannot be parsed.
func ReadImageMetadata(path string) *ImageMetadata {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	return ExtractImageMetadata(data)
}

// ExtractImageMetadata parses EXIF/IPTC/XMP rights fields from raw image
// bytes. Returns nil if nothing was found or the data cannot be parsed.
func ExtractImageMetadata(data []byte) *ImageMetadata {
	if len(data) == 0 {
		return nil
	}

	var meta ImageMetadata
	found := false
	_, err := imagemeta.Decode(imagemeta.Options{
		R:       bytes.NewReader(data),
		Sources: imagemeta.EXIF | imagemeta.IPTC | imagemeta.XMP,
		ShouldHandleTag: func(ti imagemeta.TagInfo) bool {
			return rightsTag(ti.Source, ti.Tag)
		},
		HandleTag: func(ti imagemeta.TagInfo) error {
			if meta.set(ti.Source, ti.Tag, ti.Value) {
				found = true
			}
			return nil
		},
	})
	if err != nil || !found {
		return nil
	}
	return &meta
}

// rightsTag reports whether a tag carries attribution or license data.
func rightsTag(src imagemeta.Source, tag string) bool {
	switch src {
	case imagemeta.EXIF:
		return tag == "Copyright" || tag == "Artist"
	case imagemeta.IPTC:
		return tag == "CopyrightNotice" || tag == "Credit" || tag == "Byline" || tag == "Source"
	case imagemeta.XMP:
		switch tag {
		case "WebStatement", "UsageTerms", "License", "Rights", "Creator", "Marked":
			return true
		}
	}
	return false
}

// set stores a tag value and reports whether anything was recorded.
func (m *ImageMetadata) set(src imagemeta.Source, tag string, v any) bool {
	if src == imagemeta.XMP && tag == "Marked" {
		b, ok := v.(bool)
		if ok {
			m.XMPMarked = b
		}
		return ok
	}

	s := tagValueString(v)
	if s == "" {
		return false
	}
	var field *string
	switch src {
	case imagemeta.EXIF:
		field = map[string]*string{"Copyright": &m.EXIFCopyright, "Artist": &m.EXIFArtist}[tag]
	case imagemeta.IPTC:
		field = map[string]*string{
			"CopyrightNotice": &m.IPTCCopyright,
			"Credit":          &m.IPTCCredit,
			"Byline":          &m.IPTCByline,
			"Source":          &m.IPTCSource,
		}[tag]
	case imagemeta.XMP:
		field = map[string]*string{
			"WebStatement": &m.XMPWebStatement,
			"UsageTerms":   &m.XMPUsageTerms,
			"License":      &m.XMPLicense,
			"Rights":       &m.DCRights,
			"Creator":      &m.DCCreator,
		}[tag]
	}
	if field == nil {
		return false
	}
	*field = s
	return true
}

// tagValueString extracts a string from a tag value. XMP lists arrive as
// []string or []any; the first element wins.
func tagValueString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []string:
		if len(val) > 0 {
			return val[0]
		}
	case []any:
		if len(val) > 0 {
			if s, ok := val[0].(string); ok {
				return s
			}
		}
	}
	return ""
}
