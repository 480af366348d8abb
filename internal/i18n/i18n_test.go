package i18n

import "testing"

func TestTranslate(t *testing.T) {
	Register("fr", map[string]string{
		"auth.login.success": "connecté",
	})

	cases := []struct {
		name   string
		key    string
		locale string
		want   string
	}{
		{"registered locale", "auth.login.success", "fr", "connecté"},
		{"fallback to default", "auth.logout.success", "fr", "logged out"},
		{"default locale", "auth.login.success", "en", "logged in"},
		{"unknown key passes through", "no.such.key", "en", "no.such.key"},
		{"unknown locale falls back", "auth.login.success", "de", "logged in"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Translate(tc.key, tc.locale); got != tc.want {
				t.Errorf("Translate(%q, %q) = %q, want %q", tc.key, tc.locale, got, tc.want)
			}
		})
	}
}
