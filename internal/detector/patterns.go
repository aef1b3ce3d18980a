package detector

// patternDef describes one entry of the built-in detection catalog. The
// expression is compiled at detector construction so the case-sensitivity
// setting can be applied uniformly.
type patternDef struct {
	Name   string
	Type   TokenType
	Expr   string
	Weight float64
}

// catalog is the fixed, process-wide table of built-in detection patterns.
// Expressions that contain a capturing group report only the group as the
// detected value; otherwise the whole match is reported.
var catalog = []patternDef{
	{
		Name:   "api_key",
		Type:   TypeAPIKey,
		Expr:   `(?:api[_\- ]?key|apikey)["':=\s]+([A-Za-z0-9_\-]{12,})`,
		Weight: 0.85,
	},
	{
		Name:   "openai_key",
		Type:   TypeAPIKey,
		Expr:   `\b(sk-[A-Za-z0-9]{12,})\b`,
		Weight: 0.85,
	},
	{
		Name:   "access_token",
		Type:   TypeAccessToken,
		Expr:   `(?:access[_\- ]?token)["':=\s]+([A-Za-z0-9_\-.]{12,})`,
		Weight: 0.85,
	},
	{
		Name:   "secret_key",
		Type:   TypeSecretKey,
		Expr:   `(?:secret[_\- ]?key|client[_\- ]?secret)["':=\s]+([A-Za-z0-9_\-/+=]{12,})`,
		Weight: 0.85,
	},
	{
		Name:   "bearer_token",
		Type:   TypeBearerToken,
		Expr:   `bearer\s+([A-Za-z0-9_\-.=]{12,})`,
		Weight: 0.9,
	},
	{
		Name:   "jwt",
		Type:   TypeJWT,
		Expr:   `\beyJ[A-Za-z0-9_-]{8,}\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+`,
		Weight: 0.95,
	},
	{
		Name:   "password",
		Type:   TypePassword,
		Expr:   `(?:password|passwd|pwd)["':=\s]+([^\s"',;]{6,})`,
		Weight: 0.7,
	},
	{
		Name:   "database_url",
		Type:   TypeDatabaseURL,
		Expr:   `\b(?:postgres(?:ql)?|mysql|mongodb(?:\+srv)?|redis|amqp)://[^\s"']+`,
		Weight: 0.85,
	},
	{
		Name:   "aws_access_key",
		Type:   TypeAWSAccessKey,
		Expr:   `\b(AKIA[0-9A-Z]{16})\b`,
		Weight: 0.95,
	},
	{
		Name:   "aws_secret_key",
		Type:   TypeAWSSecretKey,
		Expr:   `aws[_\- ]?secret[_\- ]?(?:access[_\- ]?)?key["':=\s]+([A-Za-z0-9/+=]{40})`,
		Weight: 0.95,
	},
	{
		Name:   "gcp_api_key",
		Type:   TypeGCPAPIKey,
		Expr:   `\b(AIza[0-9A-Za-z_\-]{35})\b`,
		Weight: 0.95,
	},
	{
		Name:   "email",
		Type:   TypeEmail,
		Expr:   `\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`,
		Weight: 0.9,
	},
	{
		Name:   "phone",
		Type:   TypePhone,
		Expr:   `\+?\b\d{1,3}[-.\s]?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}\b`,
		Weight: 0.8,
	},
	{
		Name:   "ssn",
		Type:   TypeSSN,
		Expr:   `\b\d{3}-\d{2}-\d{4}\b`,
		Weight: 0.9,
	},
	{
		Name:   "credit_card",
		Type:   TypeCreditCard,
		Expr:   `\b\d{4}[- ]?\d{4}[- ]?\d{4}[- ]?\d{4}\b`,
		Weight: 0.95,
	},
	{
		Name:   "private_ip",
		Type:   TypePrivateIP,
		Expr:   `\b(?:10\.\d{1,3}\.\d{1,3}\.\d{1,3}|192\.168\.\d{1,3}\.\d{1,3}|172\.(?:1[6-9]|2\d|3[01])\.\d{1,3}\.\d{1,3})\b`,
		Weight: 0.8,
	},
	{
		Name:   "uuid",
		Type:   TypeUUID,
		Expr:   `\b[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}\b`,
		Weight: 0.9,
	},
	{
		Name:   "hex_blob",
		Type:   TypeHexBlob,
		Expr:   `\b[0-9a-fA-F]{32,}\b`,
		Weight: 0.6,
	},
	{
		Name:   "base64_blob",
		Type:   TypeBase64Blob,
		Expr:   `\b[A-Za-z0-9+/]{40,}={0,2}`,
		Weight: 0.6,
	},
}

// PatternNames returns the names of all built-in catalog patterns.
func PatternNames() []string {
	names := make([]string, 0, len(catalog))
	for _, def := range catalog {
		names = append(names, def.Name)
	}
	return names
}
