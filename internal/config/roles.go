package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RolesFile maps platform role ids to the privilege ids they grant.
//
//	roles:
//	  certificate-maker:
//	    - CERTIFICATES_VIEW_CERTIFICATES
//	    - CERTIFICATES_CREATE_REQUEST
type RolesFile struct {
	Roles map[string][]string `yaml:"roles"`
}

// DefaultRoles separates makers from checkers so no single default role can
// both submit and decide a request.
func DefaultRoles() map[string][]string {
	return map[string][]string{
		"certificate-viewer": {
			"CERTIFICATES_VIEW_CERTIFICATES",
		},
		"certificate-maker": {
			"CERTIFICATES_VIEW_CERTIFICATES",
			"CERTIFICATES_CREATE_REQUEST",
		},
		"certificate-checker": {
			"CERTIFICATES_VIEW_CERTIFICATES",
			"CERTIFICATES_APPROVE_REQUEST",
			"CERTIFICATES_REJECT_REQUEST",
		},
	}
}

// LoadRoles reads the role file at path, or returns DefaultRoles when path is empty.
func LoadRoles(path string) (map[string][]string, error) {
	if path == "" {
		return DefaultRoles(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read roles file: %w", err)
	}

	return ParseRoles(data)
}

func ParseRoles(data []byte) (map[string][]string, error) {
	var file RolesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse roles file: %w", err)
	}
	if len(file.Roles) == 0 {
		return nil, fmt.Errorf("roles file defines no roles")
	}
	return file.Roles, nil
}
