package core

import (
	"regexp"
	"strconv"
	"strings"
)

var repeatedSlashes = regexp.MustCompile(`/{2,}`)

// AssembleAddress builds protocol://host[:port][root]path for the provider.
// Runs of "/" after the scheme are collapsed into one.
func AssembleAddress(provider ProviderInfo, path string) string {
	protocol := strings.TrimSpace(provider.Protocol)
	if protocol == "" {
		protocol = DefaultProtocol
	}
	protocol = strings.TrimSuffix(protocol, "://")
	protocol = strings.TrimSuffix(protocol, ":")

	host := strings.TrimSpace(provider.Host)
	if host == "" {
		host = DefaultHost
	}

	var rest strings.Builder
	rest.WriteString(host)
	if provider.Port > 0 {
		rest.WriteString(":")
		rest.WriteString(strconv.Itoa(provider.Port))
	}
	rest.WriteString(strings.TrimSpace(provider.Root))
	rest.WriteString(path)

	return protocol + "://" + repeatedSlashes.ReplaceAllString(rest.String(), "/")
}
