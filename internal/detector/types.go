package detector

// TokenType identifies the category of a detected sensitive token.
type TokenType string

// Known token types produced by the built-in pattern catalog.
const (
	TypeAPIKey       TokenType = "API_KEY"
	TypeAccessToken  TokenType = "ACCESS_TOKEN"
	TypeSecretKey    TokenType = "SECRET_KEY"
	TypeBearerToken  TokenType = "BEARER_TOKEN"
	TypeJWT          TokenType = "JWT"
	TypePassword     TokenType = "PASSWORD"
	TypeDatabaseURL  TokenType = "DATABASE_URL"
	TypeAWSAccessKey TokenType = "AWS_ACCESS_KEY"
	TypeAWSSecretKey TokenType = "AWS_SECRET_KEY"
	TypeGCPAPIKey    TokenType = "GCP_API_KEY"
	TypeEmail        TokenType = "EMAIL"
	TypePhone        TokenType = "PHONE"
	TypeSSN          TokenType = "SSN"
	TypeCreditCard   TokenType = "CREDIT_CARD"
	TypePrivateIP    TokenType = "PRIVATE_IP"
	TypeUUID         TokenType = "UUID"
	TypeHexBlob      TokenType = "HEX_BLOB"
	TypeBase64Blob   TokenType = "BASE64_BLOB"
	TypeCustom       TokenType = "CUSTOM"
)

// DetectedToken is a single sensitive span found in the input text.
// EndIndex is exclusive. Instances are produced fresh per detection call and
// are never persisted.
type DetectedToken struct {
	Value      string    `json:"value"`
	Type       TokenType `json:"type"`
	StartIndex int       `json:"startIndex"`
	EndIndex   int       `json:"endIndex"`
	Confidence float64   `json:"confidence"`
}

// Config controls which patterns run and how matches are filtered.
type Config struct {
	// Patterns lists catalog pattern names to enable. Empty means all.
	Patterns []string `yaml:"patterns" mapstructure:"patterns"`
	// MinLength discards matches shorter than this many bytes.
	MinLength int `yaml:"min_length" mapstructure:"min_length"`
	// CustomPatterns are caller-supplied regular expressions, tagged CUSTOM.
	CustomPatterns []string `yaml:"custom_patterns" mapstructure:"custom_patterns"`
	// Exclusions is a case-insensitive allow-list of literal values that are
	// never reported.
	Exclusions []string `yaml:"exclusions" mapstructure:"exclusions"`
	// CaseSensitive disables the default case-insensitive matching.
	CaseSensitive bool `yaml:"case_sensitive" mapstructure:"case_sensitive"`
}

// Stats summarizes the detections for one input text.
type Stats struct {
	TotalTokens         int               `json:"totalTokens"`
	ByType              map[TokenType]int `json:"byType"`
	AverageConfidence   float64           `json:"averageConfidence"`
	HighConfidenceCount int               `json:"highConfidenceCount"`
}

// DefaultMinLength applies when Config.MinLength is zero.
const DefaultMinLength = 8

// highConfidenceThreshold marks detections counted as high confidence in Stats.
const highConfidenceThreshold = 0.8
