package azure

// ConfigurationError reports settings that make a client unusable: a missing
// endpoint, no usable authentication method, or no model/deployment. It is
// always fatal and never retried.
type ConfigurationError struct {
	Message string
	// Detail is an optional operator hint appended to Message.
	Detail string
}

func (e *ConfigurationError) Error() string {
	if e.Detail == "" {
		return e.Message
	}
	return e.Message + ": " + e.Detail
}

// Is implements errors.Is support for ConfigurationError.
// This allows errors.Is(err, &ConfigurationError{}) to work with wrapped errors.
func (e *ConfigurationError) Is(target error) bool {
	_, ok := target.(*ConfigurationError)
	return ok
}

// NewConfigurationError creates a configuration error with an optional detail.
func NewConfigurationError(message string, detail ...string) *ConfigurationError {
	err := &ConfigurationError{Message: message}
	if len(detail) > 0 {
		err.Detail = detail[0]
	}
	return err
}

const (
	msgMissingEndpoint = "missing endpoint"
	msgNoAuthMethod    = "no authentication method"
	msgNoModel         = "no model configured"
)

// ErrMissingEndpoint, ErrNoAuthMethod and ErrNoModel build the three configuration
// failures the resolver and the clients built on it can report.
func ErrMissingEndpoint() *ConfigurationError {
	return NewConfigurationError(msgMissingEndpoint, "set AZURE_OPENAI_ENDPOINT")
}

func ErrNoAuthMethod() *ConfigurationError {
	return NewConfigurationError(msgNoAuthMethod,
		"set AZURE_OPENAI_KEY for API key authentication, or AZURE_TENANT_ID and AZURE_CLIENT_ID "+
			"(with AZURE_CLIENT_SECRET for a service principal) for Azure AD authentication")
}

func ErrNoModel(what string) *ConfigurationError {
	return NewConfigurationError(msgNoModel, what)
}
