// Package docs contains Swagger documentation for the Certificate Management API.
//
//	@title						Certificate Management API
//	@version					1.0
//	@description				Maker-checker lifecycle for participant certificates
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//	@host						localhost:3200
//	@BasePath					/cert-management/v1
//	@schemes					http https
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@tag.name					requests
//	@tag.description			Certificate upload requests and their approval
//	@tag.name					certificates
//	@tag.description			Approved participant certificates
//	@tag.name					public
//	@tag.description			Read API for downstream services
//	@tag.name					audit
//	@tag.description			Audit trail of request decisions
package docs
