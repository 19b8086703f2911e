package datasplit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/bep/imagemeta"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsStockByMetadata(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		meta *ImageMetadata
		want bool
	}{
		{name: "nil", meta: nil},
		{name: "empty", meta: &ImageMetadata{}},
		{name: "shutterstock copyright", meta: &ImageMetadata{IPTCCopyright: "Copyright Shutterstock Inc."}, want: true},
		{name: "getty credit", meta: &ImageMetadata{IPTCCredit: "Getty Images"}, want: true},
		{name: "istock exif", meta: &ImageMetadata{EXIFCopyright: "iStockPhoto.com/jeweller"}, want: true},
		{name: "adobe stock id", meta: &ImageMetadata{IPTCSource: "AdobeStock_998877"}, want: true},
		{name: "age fotostock spaced", meta: &ImageMetadata{IPTCCredit: "Age Fotostock"}, want: true},
		{name: "freepik dc rights", meta: &ImageMetadata{DCRights: "Freepik Company"}, want: true},
		{name: "creator byline", meta: &ImageMetadata{IPTCByline: "dreamstime contributor"}, want: true},
		{name: "own photographer", meta: &ImageMetadata{EXIFArtist: "Studio Lumen", IPTCCopyright: "(c) 2024 Studio Lumen"}},
		// License fields are not searched for agencies.
		{name: "agency only in usage terms", meta: &ImageMetadata{XMPUsageTerms: "not from shutterstock"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, IsStockByMetadata(tc.meta))
		})
	}
}

func TestIsCCByMetadata(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		meta *ImageMetadata
		want bool
	}{
		{name: "nil", meta: nil},
		{name: "empty", meta: &ImageMetadata{}},
		{name: "xmp license", meta: &ImageMetadata{XMPLicense: "https://creativecommons.org/licenses/by/4.0/"}, want: true},
		{name: "cc0 web statement", meta: &ImageMetadata{XMPWebStatement: "https://creativecommons.org/publicdomain/zero/1.0/"}, want: true},
		{name: "url inside usage terms", meta: &ImageMetadata{XMPUsageTerms: "Licensed under https://creativecommons.org/licenses/by-sa/4.0/"}, want: true},
		{name: "dc rights", meta: &ImageMetadata{DCRights: "https://creativecommons.org/publicdomain/mark/1.0/"}, want: true},
		{name: "other license", meta: &ImageMetadata{XMPLicense: "https://example.com/license"}},
		{name: "cc homepage", meta: &ImageMetadata{XMPLicense: "https://creativecommons.org/about"}},
		{name: "url in copyright only", meta: &ImageMetadata{IPTCCopyright: "https://creativecommons.org/licenses/by/4.0/"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, IsCCByMetadata(tc.meta))
		})
	}
}

func TestIsCCLicenseURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url  string
		want bool
	}{
		{"https://creativecommons.org/licenses/by-nc-nd/4.0/", true},
		{"http://creativecommons.org/licenses/by/2.0/", true},
		{"//creativecommons.org/licenses/by-sa/4.0/", true},
		{"HTTPS://CREATIVECOMMONS.ORG/LICENSES/BY/4.0/", true},
		{"https://creativecommons.org/publicdomain/zero/1.0/", true},
		{"https://creativecommons.org/", false},
		{"https://example.com/licenses/mit", false},
		{"", false},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, IsCCLicenseURL(tc.url), tc.url)
	}
}

func TestAssessRights(t *testing.T) {
	t.Parallel()

	cc := "https://creativecommons.org/licenses/by/4.0/"
	assert.Equal(t, RightsUnknown, AssessRights(nil))
	assert.Equal(t, RightsUnknown, AssessRights(&ImageMetadata{EXIFArtist: "Studio Lumen"}))
	assert.Equal(t, RightsCC, AssessRights(&ImageMetadata{XMPLicense: cc}))
	assert.Equal(t, RightsStock, AssessRights(&ImageMetadata{IPTCCredit: "Alamy"}))
	// A stock fingerprint outweighs a CC claim.
	assert.Equal(t, RightsStock, AssessRights(&ImageMetadata{IPTCCredit: "Alamy", XMPLicense: cc}))
}

func TestRights_Text(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(map[string]Rights{"a": RightsStock, "b": RightsCC, "c": RightsUnknown})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"stock","b":"cc","c":"unknown"}`, string(data))

	var got map[string]Rights
	require.NoError(t, json.Unmarshal([]byte(`{"a":"stock","b":"cc","c":"bogus"}`), &got))
	assert.Equal(t, map[string]Rights{"a": RightsStock, "b": RightsCC, "c": RightsUnknown}, got)
}

func TestExtractImageMetadata_NothingFound(t *testing.T) {
	t.Parallel()

	for name, data := range map[string][]byte{
		"nil":      nil,
		"empty":    {},
		"garbage":  {0xDE, 0xAD, 0xBE, 0xEF, 0x00, 0x11, 0x22, 0x33},
		"bare png": makePNG(t, 4, 4, colorFor(1)),
	} {
		assert.Nil(t, ExtractImageMetadata(data), name)
	}
}

func TestReadImageMetadata_MissingFile(t *testing.T) {
	t.Parallel()

	assert.Nil(t, ReadImageMetadata(filepath.Join(t.TempDir(), "gone.jpg")))

	path := filepath.Join(t.TempDir(), "plain.png")
	require.NoError(t, os.WriteFile(path, makePNG(t, 4, 4, colorFor(2)), 0o644))
	assert.Nil(t, ReadImageMetadata(path))
}

func TestImageMetadata_Set(t *testing.T) {
	t.Parallel()

	var m ImageMetadata
	assert.True(t, m.set(imagemeta.IPTC, "Credit", "Alamy"))
	assert.True(t, m.set(imagemeta.XMP, "Rights", []any{"https://creativecommons.org/licenses/by/4.0/", "other"}))
	assert.True(t, m.set(imagemeta.XMP, "Creator", []string{"Studio Lumen"}))
	assert.True(t, m.set(imagemeta.XMP, "Marked", true))
	assert.False(t, m.set(imagemeta.XMP, "Marked", "yes"))
	assert.False(t, m.set(imagemeta.EXIF, "Copyright", ""))
	assert.False(t, m.set(imagemeta.EXIF, "Make", "Canon"))

	assert.Equal(t, ImageMetadata{
		IPTCCredit: "Alamy",
		DCRights:   "https://creativecommons.org/licenses/by/4.0/",
		DCCreator:  "Studio Lumen",
		XMPMarked:  true,
	}, m)
	assert.Equal(t, RightsStock, AssessRights(&m))

	assert.True(t, rightsTag(imagemeta.XMP, "UsageTerms"))
	assert.False(t, rightsTag(imagemeta.EXIF, "Make"))
}

func TestReadImageRights(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "plain.png")
	require.NoError(t, os.WriteFile(path, makePNG(t, 4, 4, colorFor(3)), 0o644))
	rights, meta := ReadImageRights(path)
	assert.Equal(t, RightsUnknown, rights)
	assert.Nil(t, meta)
}
