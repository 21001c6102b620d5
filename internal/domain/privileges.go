package domain

type Privilege string

const (
	PrivilegeViewCertificates          Privilege = "CERTIFICATES_VIEW_CERTIFICATES"
	PrivilegeCreateCertificateRequest  Privilege = "CERTIFICATES_CREATE_REQUEST"
	PrivilegeApproveCertificateRequest Privilege = "CERTIFICATES_APPROVE_REQUEST"
	PrivilegeRejectCertificateRequest  Privilege = "CERTIFICATES_REJECT_REQUEST"
)

type PrivilegeDefinition struct {
	PrivID      Privilege `json:"privId"`
	LabelName   string    `json:"labelName"`
	Description string    `json:"description"`
}

var PrivilegeDefinitions = []PrivilegeDefinition{
	{
		PrivID:      PrivilegeViewCertificates,
		LabelName:   "View Certificates",
		Description: "Allows for the retrieval of any certificates",
	},
	{
		PrivID:      PrivilegeCreateCertificateRequest,
		LabelName:   "Create Certificate Request",
		Description: "Allows for the creation of a new certificate request",
	},
	{
		PrivID:      PrivilegeApproveCertificateRequest,
		LabelName:   "Approve Certificate Request",
		Description: "Allows for the approval of a certificate request",
	},
	{
		PrivID:      PrivilegeRejectCertificateRequest,
		LabelName:   "Reject Certificate Request",
		Description: "Allows for the rejection of a certificate request",
	},
}

// SecurityContext identifies the caller of an authenticated request.
type SecurityContext struct {
	Username        string
	ClientID        string
	PlatformRoleIDs []string
}

// RoleAuthorizer resolves whether a platform role grants a privilege.
type RoleAuthorizer interface {
	RoleHasPrivilege(roleID string, privilege Privilege) bool
}
