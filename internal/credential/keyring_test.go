package credential

import (
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCookieKey(t *testing.T) {
	assert.Equal(t, "cookie/u/0", CookieKey(0))
	assert.Equal(t, "cookie/u/3", CookieKey(3))
}

func TestStore_CookieLifecycle(t *testing.T) {
	s := New(keyring.NewArrayKeyring(nil))

	_, err := s.Cookie(0)
	require.ErrorIs(t, err, ErrNoCookie)

	require.NoError(t, s.SetCookie(0, "Cookie: SID=abc; GMAIL_AT=xyz"))
	got, err := s.Cookie(0)
	require.NoError(t, err)
	assert.Equal(t, "SID=abc; GMAIL_AT=xyz", got)

	_, err = s.Cookie(1)
	require.ErrorIs(t, err, ErrNoCookie)

	require.NoError(t, s.DeleteCookie(0))
	_, err = s.Cookie(0)
	require.ErrorIs(t, err, ErrNoCookie)
	require.ErrorIs(t, s.DeleteCookie(0), ErrNoCookie)
}

func TestNormalizeCookie(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "plain", in: "SID=abc", want: "SID=abc"},
		{name: "prefixed", in: "cookie:  SID=abc; HSID=def ", want: "SID=abc; HSID=def"},
		{name: "empty", in: "   ", wantErr: true},
		{name: "no pairs", in: "Cookie: nothing", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeCookie(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidCookie)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStore_SetCookieRejectsInvalid(t *testing.T) {
	s := New(keyring.NewArrayKeyring(nil))
	require.ErrorIs(t, s.SetCookie(0, ""), ErrInvalidCookie)
}
