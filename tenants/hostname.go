package tenants

import "strings"

// BuildHostname computes the hostname that serves newSlug. With a base domain
// configured the answer is always "{slug}.{baseDomain}", whatever the current
// hostname. Without one, the positional heuristic of resolution is applied in
// reverse: a 2-part hostname gains a label, a 3+-part hostname has its first
// label replaced. A single-label host (e.g. "localhost") has no valid place
// to attach a subdomain and yields "".
func BuildHostname(newSlug, currentHostname, baseDomain string) string {
	if newSlug == "" {
		return ""
	}
	if baseDomain != "" {
		return newSlug + "." + strings.ToLower(baseDomain)
	}

	host := normaliseHost(currentHostname)
	if host == "" {
		return ""
	}

	labels := strings.Split(host, ".")
	switch {
	case len(labels) == 1:
		return ""
	case len(labels) == 2:
		return newSlug + "." + host
	default:
		labels[0] = newSlug
		return strings.Join(labels, ".")
	}
}
