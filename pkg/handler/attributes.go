package handler

import "fmt"

// UnsupportedAttributeError is returned when a search asks for an attribute
// the projector does not know about.
type UnsupportedAttributeError struct {
	Name string
}

func (e *UnsupportedAttributeError) Error() string {
	return fmt.Sprintf("Unsupported attribute: %s", e.Name)
}

// GetAttribute projects one user field onto the named LDAP attribute.
// Names are matched exactly, case included.
func GetAttribute(user User, attribute string) ([]string, error) {
	switch attribute {
	case "objectClass":
		return []string{"inetOrgPerson", "posixAccount", "mailAccount"}, nil
	case "uid":
		return []string{user.ID}, nil
	case "mail":
		return []string{user.Email}, nil
	case "givenName":
		return []string{user.FirstName}, nil
	case "sn":
		return []string{user.LastName}, nil
	case "cn":
		return []string{user.DisplayName}, nil
	default:
		return nil, &UnsupportedAttributeError{Name: attribute}
	}
}

// MakeSearchResultEntry builds the entry for a user under the configured base
// DN text, with the requested attributes in request order.
func MakeSearchResultEntry(user User, baseDNText string, attributes []string) (SearchResultEntry, error) {
	entry := SearchResultEntry{
		DN:         fmt.Sprintf("cn=%s,%s", user.ID, baseDNText),
		Attributes: make([]PartialAttribute, 0, len(attributes)),
	}
	for _, a := range attributes {
		values, err := GetAttribute(user, a)
		if err != nil {
			return SearchResultEntry{}, err
		}
		entry.Attributes = append(entry.Attributes, PartialAttribute{Type: a, Values: values})
	}
	return entry, nil
}
