package backend

import (
	"fmt"
	"strings"

	"github.com/lightldap/lightldap/pkg/handler"
)

// userIDFromBindName accepts either a bare user id or a DN whose first
// component is cn=<id> or uid=<id> and whose remainder lies under root.
func userIDFromBindName(name string, root handler.BaseDN) (string, error) {
	if !strings.Contains(name, "=") {
		if name == "" {
			return "", fmt.Errorf("%w: empty name", ErrInvalidBindName)
		}
		return name, nil
	}

	dn, err := handler.ParseDistinguishedName(name)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidBindName, err)
	}

	switch strings.ToLower(dn[0].Type) {
	case "cn", "uid":
	default:
		return "", fmt.Errorf("%w: %s is not a user attribute", ErrInvalidBindName, dn[0].Type)
	}

	if !handler.IsSubtree(dn[1:], root.DN) {
		return "", fmt.Errorf("%w: %s is outside of %s", ErrInvalidBindName, name, root.Text)
	}

	return dn[0].Value, nil
}
