package model

type IndicatorType string

const (
	IndicatorIP         IndicatorType = "ip"
	IndicatorHash       IndicatorType = "hash"
	IndicatorURL        IndicatorType = "url"
	IndicatorIdentifier IndicatorType = "identifier"
)

// Investigation is the reputation verdict for one indicator.
type Investigation struct {
	Indicator string        `json:"indicator"`
	Type      IndicatorType `json:"indicator_type"`
	Source    string        `json:"source"`
	Malicious bool          `json:"is_malicious"`
	Detail    string        `json:"detail,omitempty"`
}
