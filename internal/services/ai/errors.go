package ai

import "fmt"

// Kind classifies why a request cycle produced no suggestion.
type Kind string

const (
	KindConfig    Kind = "config"
	KindQuota     Kind = "quota"
	KindTransport Kind = "transport"
	KindProvider  Kind = "provider"
	KindMalformed Kind = "malformed"
)

// KindOK labels a successful request cycle in metrics and stored suggestions.
const KindOK = "ok"

// Error is a failed request cycle. Message is the text shown to the user.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s error (%s): %s", e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

// Suggestion is the outcome of one request cycle. Text is always display-ready,
// whether or not Err is set.
type Suggestion struct {
	Text  string
	Model string
	Err   *Error
}

// Kind returns the outcome label of the suggestion.
func (s Suggestion) Kind() string {
	if s.Err == nil {
		return KindOK
	}
	return string(s.Err.Kind)
}

// Cacheable reports whether the text is a provider answer worth reusing.
func (s Suggestion) Cacheable() bool {
	return s.Err == nil
}
