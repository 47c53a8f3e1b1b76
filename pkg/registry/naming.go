package registry

import (
	"strings"

	"github.com/webordinary/switchboard/pkg/types"
)

// Queue kinds within a tenant triplet.
const (
	KindInput  = "input"
	KindOutput = "output"
	KindDLQ    = "dlq"
)

// QueueName builds the canonical name for one queue of a tenant triplet:
// "<prefix>-<kind>-<sanitizedProjectId>-<sanitizedUserId>".
func QueueName(prefix, kind string, key types.TenantKey) string {
	return prefix + "-" + kind + "-" + key.Sanitized()
}

// UnclaimedQueueName is the singleton shared queue where claim requests
// are announced.
func UnclaimedQueueName(prefix string) string {
	return prefix + "-unclaimed"
}

// ParseQueueName decomposes a managed queue name back into its kind and
// tenant key. Sanitized identifiers may themselves contain hyphens, so the
// split is best-effort: the first segment after the kind is taken as the
// project, the remainder as the user. Callers that can should prefer
// matching against registry records.
func ParseQueueName(prefix, name string) (kind string, key types.TenantKey, ok bool) {
	rest, found := strings.CutPrefix(name, prefix+"-")
	if !found {
		return "", types.TenantKey{}, false
	}
	for _, k := range []string{KindInput, KindOutput, KindDLQ} {
		if tenantPart, found := strings.CutPrefix(rest, k+"-"); found {
			project, user, found := strings.Cut(tenantPart, "-")
			if !found || project == "" || user == "" {
				return "", types.TenantKey{}, false
			}
			return k, types.TenantKey{ProjectID: project, UserID: user}, true
		}
	}
	return "", types.TenantKey{}, false
}
