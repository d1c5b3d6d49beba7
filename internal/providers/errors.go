package providers

import "errors"

// ErrProviderNotConfigured is returned by the registry when a Config names
// a provider that is disabled (e.g. missing API key) in settings.
var ErrProviderNotConfigured = errors.New("provider not configured")

// ErrProviderNotFound is returned when Config.Provider names a provider
// the registry has no driver constructor for.
var ErrProviderNotFound = errors.New("provider not found")
