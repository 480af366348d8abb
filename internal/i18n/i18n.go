// Package i18n resolves user-visible message keys to localized text.
// Dictionaries are registered at startup; the rest of the code only ever
// calls Translate.
package i18n

import "sync"

var (
	mu            sync.RWMutex
	dictionaries  = map[string]map[string]string{}
	defaultLocale = "en"
)

// Register installs the dictionary for a locale, replacing any previous one.
func Register(locale string, dict map[string]string) {
	mu.Lock()
	defer mu.Unlock()
	dictionaries[locale] = dict
}

// SetDefaultLocale sets the fallback locale used when a key is missing
// from the requested one.
func SetDefaultLocale(locale string) {
	mu.Lock()
	defer mu.Unlock()
	if locale != "" {
		defaultLocale = locale
	}
}

// Translate returns the localized text for key, falling back to the default
// locale and finally to the key itself.
func Translate(key, locale string) string {
	mu.RLock()
	defer mu.RUnlock()

	if dict, ok := dictionaries[locale]; ok {
		if msg, ok := dict[key]; ok {
			return msg
		}
	}
	if dict, ok := dictionaries[defaultLocale]; ok {
		if msg, ok := dict[key]; ok {
			return msg
		}
	}
	return key
}

func init() {
	Register("en", map[string]string{
		"auth.register.success":      "account created",
		"auth.login.success":         "logged in",
		"auth.login.bad_credentials": "invalid email or password",
		"auth.login.suspended":       "account suspended",
		"auth.refresh.success":       "token refreshed",
		"auth.logout.success":        "logged out",
		"auth.forgot.success":        "if the address is registered, a reset link has been sent",
		"auth.reset.success":         "password changed",
		"auth.reset.invalid":         "reset token is invalid or expired",
		"auth.reset.mismatch":        "passwords do not match",
		"error.unauthorized":         "authentication required",
		"error.forbidden":            "insufficient permissions",
		"error.bad_input":            "invalid request",
		"error.conflict":             "resource already exists",
		"error.not_found":            "resource not found",
		"error.internal":             "internal server error",
		"crud.create.success":        "created",
		"crud.update.success":        "updated",
		"crud.delete.success":        "deleted",
		"crud.list.success":          "ok",
	})
}
