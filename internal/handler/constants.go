package handler

const (
	APIPrefix = "/cert-management/v1"

	MsgNotAuthenticated       = "not authenticated"
	MsgInvalidRequestBody     = "invalid request body"
	MsgCertificateIDsRequired = "certificateIds must not be empty"
	MsgParticipantIDsRequired = "participantIds must not be empty"
	MsgParticipantIDRequired  = "participantId is required"
	MsgCertFileRequired       = "cert file is required"
	MsgCertFileTooLarge       = "cert file is too large"
	MsgCertFileUnreadable     = "cert file could not be read"
	MsgStorageUnavailable     = "certificate storage is unavailable"
)
