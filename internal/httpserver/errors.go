package httpserver

const (
	ErrInvalidJSON       = "invalid json"
	ErrBadForm           = "bad form"
	ErrMissingEmail      = "Missing email"
	ErrMissingSMSFields  = "Missing from or message"
	ErrMissingLongURL    = "Missing longUrl"
	ErrMissingEmailField = "Missing 'to' or 'subject'"
	ErrEmailNotEnabled   = "Missing BREVO_API_KEY"
	ErrRecipientOptedOut = "Recipient has unsubscribed."
	ErrCustomers         = "Failed to fetch customers"
	ErrDependency        = "dependency error"
	ErrInternal          = "internal error"
)
