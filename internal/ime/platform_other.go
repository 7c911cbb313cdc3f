//go:build !windows && !linux

package ime

import "fmt"

func platformProvider(ProviderConfig) (Provider, error) {
	return NullProvider{}, nil
}

func backendProvider(name string, _ ProviderConfig) (Provider, error) {
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedHere, name)
}
