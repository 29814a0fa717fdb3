package common

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
)

// GetAndValidateURLParam extracts, decodes, and validates a URL parameter from the request.
// The value must not be empty and must not contain whitespace.
func GetAndValidateURLParam(r *http.Request, paramName string) (string, error) {
	decoded, err := url.PathUnescape(chi.URLParam(r, paramName))
	if err != nil {
		return "", fmt.Errorf("invalid URL encoding in %s", paramName)
	}
	if strings.TrimSpace(decoded) == "" {
		return "", fmt.Errorf("%s cannot be empty", paramName)
	}
	if strings.ContainsAny(decoded, " \t\n\r") {
		return "", fmt.Errorf("%s cannot contain whitespace", paramName)
	}
	return decoded, nil
}

// GetPackageName returns the package fullname of a route declared either with a
// single {fullname} segment (which may hold an encoded "@scope%2Fname") or with
// {scope}/{name} segments.
func GetPackageName(r *http.Request) (string, error) {
	var fullname string
	if chi.URLParam(r, "scope") != "" {
		scope, err := GetAndValidateURLParam(r, "scope")
		if err != nil {
			return "", err
		}
		name, err := GetAndValidateURLParam(r, "name")
		if err != nil {
			return "", err
		}
		fullname = scope + "/" + name
	} else {
		var err error
		if fullname, err = GetAndValidateURLParam(r, "fullname"); err != nil {
			return "", err
		}
	}
	return fullname, validatePackageName(fullname)
}

func validatePackageName(fullname string) error {
	if len(fullname) > 214 {
		return fmt.Errorf("package name %q is longer than 214 characters", fullname)
	}
	if !strings.HasPrefix(fullname, "@") {
		if strings.Contains(fullname, "/") {
			return fmt.Errorf("package name %q must be scoped to contain '/'", fullname)
		}
		if strings.HasPrefix(fullname, ".") || strings.HasPrefix(fullname, "_") {
			return fmt.Errorf("package name %q cannot start with '.' or '_'", fullname)
		}
		return nil
	}
	scope, name, ok := strings.Cut(fullname, "/")
	if !ok || len(scope) < 2 || name == "" || strings.Contains(name, "/") {
		return fmt.Errorf("scoped package name %q must look like @scope/name", fullname)
	}
	return nil
}
