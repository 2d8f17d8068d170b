package master

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	r, err := ParseRole(" Pengabsen ")
	require.NoError(t, err)
	assert.Equal(t, RolePengabsen, r)
	assert.True(t, r.Records())
	assert.True(t, RolePembimbing.Records())
	assert.False(t, RoleWali.Records())

	_, err = ParseRole("guru")
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestNormalizeGender(t *testing.T) {
	for in, want := range map[string]string{"": "", "l": "L", " P ": "P"} {
		got, err := NormalizeGender(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := NormalizeGender("x")
	assert.ErrorIs(t, err, ErrInvalidGender)
}

func TestSantriFilter_Match(t *testing.T) {
	s := Santri{ID: "1", AsramaID: "a1", Gender: "L", WaliID: "w1"}
	tests := []struct {
		name string
		f    SantriFilter
		want bool
	}{
		{name: "empty", want: true},
		{name: "asrama hit", f: SantriFilter{AsramaID: "a1"}, want: true},
		{name: "asrama miss", f: SantriFilter{AsramaID: "a2"}},
		{name: "gender case insensitive", f: SantriFilter{Gender: "l"}, want: true},
		{name: "gender miss", f: SantriFilter{Gender: "P"}},
		{name: "wali miss", f: SantriFilter{WaliID: "w2"}},
		{name: "all hit", f: SantriFilter{AsramaID: "a1", Gender: "L", WaliID: "w1"}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.f.Match(s))
		})
	}
}

func TestQRCode(t *testing.T) {
	png, err := QRCode(Santri{NIS: "2024001"}, 0)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))

	_, err = QRCode(Santri{}, 128)
	assert.Error(t, err)

	assert.Equal(t, "2024001", NISFromPayload(QRPayload(Santri{NIS: "2024001"})))
	assert.Equal(t, "2024001", NISFromPayload("2024001"))
}
